package ports

import (
	"context"

	"gremio-backoffice/internal/domain"

	"github.com/google/uuid"
)

// OrderRepository persists credit orders together with their installments.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o *domain.CreditOrder) error
	GetOrder(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CreditOrder, error)
	// LockOrder loads the order and its installments with a row lock held until the transaction ends.
	LockOrder(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CreditOrder, error)
	UpdateOrder(ctx context.Context, o *domain.CreditOrder) error
	UpdateInstallment(ctx context.Context, inst *domain.Installment) error
	// OrderIDByObligation returns uuid.Nil when the obligation was not generated from an installment.
	OrderIDByObligation(ctx context.Context, tenant domain.TenantID, obligationID uuid.UUID) (uuid.UUID, error)
}

type ObligationRepository interface {
	CreateObligation(ctx context.Context, o *domain.Obligation) error
	GetObligation(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.Obligation, error)
	LockObligation(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.Obligation, error)
	UpdateObligation(ctx context.Context, o *domain.Obligation) error
}

type LedgerRepository interface {
	PostEntry(ctx context.Context, tenant domain.TenantID, p domain.LedgerPosting) (*domain.LedgerEntry, error)
	GetEntry(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.LedgerEntry, error)
}

type CashRepository interface {
	// CreateSession fails with domain.ErrSessionAlreadyOpen when the site has an open session.
	CreateSession(ctx context.Context, s *domain.CashSession) error
	GetSession(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CashSession, error)
	LockSession(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CashSession, error)
	CreateCollection(ctx context.Context, tenant domain.TenantID, c *domain.Collection) error
	ListCollections(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID) ([]domain.Collection, error)
	MethodTotals(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID) (map[domain.PaymentMethod]domain.Cents, error)
	// CloseSession stores the close lines and flips the session to closed.
	CloseSession(ctx context.Context, s *domain.CashSession) error
}

type NoveltyRepository interface {
	// CutoffDay returns 0 when the period has no configured cutoff.
	CutoffDay(ctx context.Context, tenant domain.TenantID, period domain.Period) (int, error)
	SetCutoff(ctx context.Context, tenant domain.TenantID, period domain.Period, day int) error
	CreateNovelty(ctx context.Context, n *domain.Novelty) error
	ListByPeriod(ctx context.Context, tenant domain.TenantID, period domain.Period) ([]domain.Novelty, error)
}

// Repositories groups the repositories bound to one executor: the pool or a single transaction.
type Repositories interface {
	Orders() OrderRepository
	Obligations() ObligationRepository
	Ledger() LedgerRepository
	Cash() CashRepository
	Novelties() NoveltyRepository
}

// Store runs fn inside one transaction. A non-nil error from fn rolls everything back.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}
