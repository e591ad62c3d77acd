package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gremio-backoffice/internal/domain"

	"github.com/google/uuid"
)

const obligationColumns = `
	id, tenant_id, afiliado_id, padron_id, concepto_codigo, period,
	amount, balance, state, installment_id, created_at, updated_at`

type ObligationRepository struct {
	db DBTX
}

func NewObligationRepository(db DBTX) *ObligationRepository {
	return &ObligationRepository{db: db}
}

func (r *ObligationRepository) CreateObligation(ctx context.Context, o *domain.Obligation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO obligations (`+obligationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID,
		o.TenantID.String(),
		o.AfiliadoID,
		nullUUID(o.PadronID),
		o.ConceptoCodigo,
		o.Period.String(),
		int64(o.Amount),
		int64(o.Balance),
		string(o.State),
		nullUUID(o.InstallmentID),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert obligation: %w", err)
	}
	return nil
}

func (r *ObligationRepository) GetObligation(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.Obligation, error) {
	return r.load(ctx, tenant, id, false)
}

func (r *ObligationRepository) LockObligation(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.Obligation, error) {
	return r.load(ctx, tenant, id, true)
}

func (r *ObligationRepository) load(ctx context.Context, tenant domain.TenantID, id uuid.UUID, forUpdate bool) (*domain.Obligation, error) {
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		o           domain.Obligation
		tenantID    string
		padron      uuid.NullUUID
		state       string
		installment uuid.NullUUID
	)
	err := r.db.QueryRowContext(ctx, query, tenant.String(), id).Scan(
		&o.ID,
		&tenantID,
		&o.AfiliadoID,
		&padron,
		&o.ConceptoCodigo,
		&o.Period,
		(*int64)(&o.Amount),
		(*int64)(&o.Balance),
		&state,
		&installment,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrObligationNotFound.Withf("obligation %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select obligation: %w", err)
	}

	o.TenantID = domain.TenantID(tenantID)
	o.PadronID = uuidPtr(padron)
	o.State = domain.ObligationState(state)
	o.InstallmentID = uuidPtr(installment)
	return &o, nil
}

func (r *ObligationRepository) UpdateObligation(ctx context.Context, o *domain.Obligation) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE obligations SET balance = $3, state = $4, updated_at = $5
		WHERE tenant_id = $1 AND id = $2`,
		o.TenantID.String(),
		o.ID,
		int64(o.Balance),
		string(o.State),
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrObligationNotFound.Withf("obligation %s not found", o.ID)
	}
	return nil
}
