package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gremio-backoffice/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const orderColumns = `
	id, tenant_id, afiliado_id, padron_id, concepto_codigo,
	principal, en_cuotas, total_installments, current_installment,
	total_amount, balance, first_period, interest_rate, system, state,
	created_at, updated_at`

const installmentColumns = `
	id, order_id, number, period, capital, interest, amount, paid, balance,
	state, obligation_id, generated_at, cancelled_at`

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, o *domain.CreditOrder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credit_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		o.ID,
		o.TenantID.String(),
		o.AfiliadoID,
		nullUUID(o.PadronID),
		o.ConceptoCodigo,
		int64(o.Principal),
		o.EnCuotas,
		o.TotalInstallments,
		o.CurrentInstallment,
		int64(o.TotalAmount),
		int64(o.Balance),
		o.FirstPeriod.String(),
		nullDecimal(o.InterestRate),
		string(o.System),
		string(o.State),
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert credit order: %w", err)
	}

	for i := range o.Installments {
		inst := &o.Installments[i]
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO installments (tenant_id, `+installmentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			o.TenantID.String(),
			inst.ID,
			o.ID,
			inst.Number,
			inst.Period.String(),
			int64(inst.Capital),
			int64(inst.Interest),
			int64(inst.Amount),
			int64(inst.Paid),
			int64(inst.Balance),
			string(inst.State),
			nullUUID(inst.ObligationID),
			nullTime(inst.GeneratedAt),
			nullTime(inst.CancelledAt),
		)
		if err != nil {
			return fmt.Errorf("insert installment %d: %w", inst.Number, err)
		}
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CreditOrder, error) {
	return r.load(ctx, tenant, id, false)
}

func (r *OrderRepository) LockOrder(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CreditOrder, error) {
	return r.load(ctx, tenant, id, true)
}

func (r *OrderRepository) load(ctx context.Context, tenant domain.TenantID, id uuid.UUID, forUpdate bool) (*domain.CreditOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM credit_orders WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	o, err := scanOrder(r.db.QueryRowContext(ctx, query, tenant.String(), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound.Withf("credit order %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select credit order: %w", err)
	}

	instQuery := `SELECT ` + installmentColumns + ` FROM installments WHERE order_id = $1 ORDER BY number`
	if forUpdate {
		instQuery += ` FOR UPDATE`
	}
	rows, err := r.db.QueryContext(ctx, instQuery, id)
	if err != nil {
		return nil, fmt.Errorf("select installments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan installment: %w", err)
		}
		o.Installments = append(o.Installments, *inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installments: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) UpdateOrder(ctx context.Context, o *domain.CreditOrder) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE credit_orders
		SET current_installment = $3, balance = $4, state = $5, updated_at = $6
		WHERE tenant_id = $1 AND id = $2`,
		o.TenantID.String(),
		o.ID,
		o.CurrentInstallment,
		int64(o.Balance),
		string(o.State),
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update credit order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOrderNotFound.Withf("credit order %s not found", o.ID)
	}
	return nil
}

func (r *OrderRepository) UpdateInstallment(ctx context.Context, inst *domain.Installment) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE installments
		SET paid = $2, balance = $3, state = $4, obligation_id = $5, generated_at = $6, cancelled_at = $7
		WHERE id = $1`,
		inst.ID,
		int64(inst.Paid),
		int64(inst.Balance),
		string(inst.State),
		nullUUID(inst.ObligationID),
		nullTime(inst.GeneratedAt),
		nullTime(inst.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("update installment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrInstallmentNotFound.Withf("installment %s not found", inst.ID)
	}
	return nil
}

func (r *OrderRepository) OrderIDByObligation(ctx context.Context, tenant domain.TenantID, obligationID uuid.UUID) (uuid.UUID, error) {
	var orderID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT order_id FROM installments WHERE tenant_id = $1 AND obligation_id = $2`,
		tenant.String(), obligationID,
	).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("select installment by obligation: %w", err)
	}
	return orderID, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.CreditOrder, error) {
	var (
		o       domain.CreditOrder
		tenant  string
		padron  uuid.NullUUID
		rate    decimal.NullDecimal
		system  string
		state   string
		current sql.NullInt64
	)
	err := row.Scan(
		&o.ID,
		&tenant,
		&o.AfiliadoID,
		&padron,
		&o.ConceptoCodigo,
		(*int64)(&o.Principal),
		&o.EnCuotas,
		&o.TotalInstallments,
		&current,
		(*int64)(&o.TotalAmount),
		(*int64)(&o.Balance),
		&o.FirstPeriod,
		&rate,
		&system,
		&state,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.TenantID = domain.TenantID(tenant)
	o.PadronID = uuidPtr(padron)
	o.CurrentInstallment = int(current.Int64)
	if rate.Valid {
		d := rate.Decimal
		o.InterestRate = &d
	}
	o.System = domain.AmortizationSystem(system)
	o.State = domain.OrderState(state)
	return &o, nil
}

func scanInstallment(row rowScanner) (*domain.Installment, error) {
	var (
		inst       domain.Installment
		state      string
		obligation uuid.NullUUID
		generated  sql.NullTime
		cancelled  sql.NullTime
	)
	err := row.Scan(
		&inst.ID,
		&inst.OrderID,
		&inst.Number,
		&inst.Period,
		(*int64)(&inst.Capital),
		(*int64)(&inst.Interest),
		(*int64)(&inst.Amount),
		(*int64)(&inst.Paid),
		(*int64)(&inst.Balance),
		&state,
		&obligation,
		&generated,
		&cancelled,
	)
	if err != nil {
		return nil, err
	}
	inst.State = domain.InstallmentState(state)
	inst.ObligationID = uuidPtr(obligation)
	inst.GeneratedAt = timePtr(generated)
	inst.CancelledAt = timePtr(cancelled)
	return &inst, nil
}
