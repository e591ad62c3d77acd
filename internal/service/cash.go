package service

import (
	"context"
	"strings"
	"time"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/logger"
	"gremio-backoffice/internal/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CollectionInput struct {
	AfiliadoID   *uuid.UUID
	Methods      []domain.MethodLine
	Applications []domain.Application
}

// DeclaredLine is what the operator counted for one payment method at close.
type DeclaredLine struct {
	Method domain.PaymentMethod
	Amount domain.Cents
}

type CloseResult struct {
	Session   *domain.CashSession `json:"session"`
	Lines     []domain.CloseLine  `json:"lines"`
	DiffTotal domain.Cents        `json:"diff_total"`
	Entry     *domain.LedgerEntry `json:"entry"`
}

type CashService struct {
	store    ports.Store
	accounts domain.LedgerAccounts
	log      *zap.Logger
	now      func() time.Time
}

func NewCashService(store ports.Store, accounts domain.LedgerAccounts, log *zap.Logger) *CashService {
	return &CashService{
		store:    store,
		accounts: accounts,
		log:      log,
		now:      time.Now,
	}
}

func (s *CashService) OpenSession(ctx context.Context, tenant domain.TenantID, site string, operatorID int64) (*domain.CashSession, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(site) == "" {
		return nil, domain.ErrSiteRequired
	}

	session := domain.NewCashSession(tenant, site, operatorID, s.now())
	if err := s.store.Cash().CreateSession(ctx, session); err != nil {
		return nil, domain.ExternalWrite("open cash session", err)
	}

	logger.FromContext(ctx).Info("cash session opened",
		zap.String("session_id", session.ID.String()),
		zap.String("site", session.Site),
		zap.Int64("operator_id", operatorID),
	)
	return session, nil
}

func (s *CashService) GetSession(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CashSession, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	session, err := s.store.Cash().GetSession(ctx, tenant, id)
	if err != nil {
		return nil, domain.ExternalWrite("get cash session", err)
	}
	return session, nil
}

// RegisterCollection records money taken at the register and applies it to obligations.
func (s *CashService) RegisterCollection(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID, in CollectionInput) (*domain.Collection, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	c := &domain.Collection{
		ID:           uuid.New(),
		SessionID:    sessionID,
		AfiliadoID:   in.AfiliadoID,
		Applications: in.Applications,
		CreatedAt:    now,
	}
	for _, m := range in.Methods {
		m.Method = domain.NormalizeMethod(string(m.Method))
		c.Methods = append(c.Methods, m)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(r ports.Repositories) error {
		session, err := r.Cash().LockSession(ctx, tenant, sessionID)
		if err != nil {
			return err
		}
		if session.State != domain.SessionOpen {
			return domain.ErrSessionNotOpen.Withf("cash session %s is %s", session.ID, session.State)
		}

		// same lock order as VoidOrder: credit orders first, then obligations
		obligationIDs := make([]uuid.UUID, 0, len(c.Applications))
		amounts := make(map[uuid.UUID]domain.Cents, len(c.Applications))
		for _, a := range c.Applications {
			obligationIDs = append(obligationIDs, a.ObligationID)
			amounts[a.ObligationID] = a.Amount
		}
		orders, err := lockOrdersFor(ctx, r, tenant, obligationIDs)
		if err != nil {
			return err
		}
		sortIDs(obligationIDs)

		for _, id := range obligationIDs {
			ob, err := r.Obligations().LockObligation(ctx, tenant, id)
			if err != nil {
				return err
			}
			if _, err := ob.ApplyPayment(amounts[id], now); err != nil {
				return err
			}
			if err := r.Obligations().UpdateObligation(ctx, ob); err != nil {
				return err
			}
			if order, ok := orders[id]; ok {
				if err := settleInstallment(ctx, r, order, id, amounts[id], now); err != nil {
					return err
				}
			}
		}

		return r.Cash().CreateCollection(ctx, tenant, c)
	})
	if err != nil {
		return nil, domain.ExternalWrite("register collection", err)
	}

	logger.FromContext(ctx).Info("collection registered",
		zap.String("session_id", sessionID.String()),
		zap.String("collection_id", c.ID.String()),
		zap.String("total", c.Total().String()),
	)
	return c, nil
}

// PreviewClose reconciles the declaration against the session's collections without writing.
func (s *CashService) PreviewClose(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID, declared []DeclaredLine) (domain.ReconcileResult, error) {
	if err := tenant.Validate(); err != nil {
		return domain.ReconcileResult{}, err
	}

	session, err := s.store.Cash().GetSession(ctx, tenant, sessionID)
	if err != nil {
		return domain.ReconcileResult{}, domain.ExternalWrite("get cash session", err)
	}
	res, err := s.reconcile(ctx, s.store, session, declared)
	if err != nil {
		return domain.ReconcileResult{}, domain.ExternalWrite("preview close", err)
	}
	return res, nil
}

// CloseSession reconciles, posts the balancing entry when there is a variance and closes the session,
// all in one transaction. A session that is already closed is rejected before anything is written.
func (s *CashService) CloseSession(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID, declared []DeclaredLine) (*CloseResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var out *CloseResult
	err := s.store.WithinTx(ctx, func(r ports.Repositories) error {
		session, err := r.Cash().LockSession(ctx, tenant, sessionID)
		if err != nil {
			return err
		}
		res, err := s.reconcile(ctx, r, session, declared)
		if err != nil {
			return err
		}

		now := s.now()
		var entry *domain.LedgerEntry
		if res.Posting != nil {
			entry, err = r.Ledger().PostEntry(ctx, tenant, *res.Posting)
			if err != nil {
				return err
			}
			session.CloseEntryID = &entry.ID
		}

		diff := res.DiffTotal
		session.State = domain.SessionClosed
		session.ClosedAt = &now
		session.DiffTotal = &diff
		session.CloseLines = res.Lines
		if err := r.Cash().CloseSession(ctx, session); err != nil {
			return err
		}

		out = &CloseResult{Session: session, Lines: res.Lines, DiffTotal: res.DiffTotal, Entry: entry}
		return nil
	})
	if err != nil {
		return nil, domain.ExternalWrite("close cash session", err)
	}

	fields := []zap.Field{
		zap.String("session_id", sessionID.String()),
		zap.String("diff_total", out.DiffTotal.String()),
	}
	if out.Entry != nil {
		fields = append(fields, zap.String("entry_id", out.Entry.ID.String()))
	}
	logger.FromContext(ctx).Info("cash session closed", fields...)
	return out, nil
}

func (s *CashService) reconcile(ctx context.Context, r ports.Repositories, session *domain.CashSession, declared []DeclaredLine) (domain.ReconcileResult, error) {
	if session.State != domain.SessionOpen {
		return domain.ReconcileResult{}, domain.ErrSessionNotOpen.Withf("cash session %s is %s", session.ID, session.State)
	}

	theoretical, err := r.Cash().MethodTotals(ctx, session.TenantID, session.ID)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	byMethod := make(map[domain.PaymentMethod]domain.Cents, len(declared))
	var blank []domain.CloseLine
	for _, d := range declared {
		if d.Amount < 0 {
			return domain.ReconcileResult{}, domain.ErrInvalidAmount.Withf("declared amount for %q cannot be negative", d.Method)
		}
		method := domain.NormalizeMethod(string(d.Method))
		if method == "" {
			blank = append(blank, domain.CloseLine{Declared: d.Amount})
			continue
		}
		byMethod[method] += d.Amount
	}

	lines := append(domain.BuildCloseLines(theoretical, byMethod), blank...)
	return domain.Reconcile(*session, lines, s.accounts, s.now())
}
