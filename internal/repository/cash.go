package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gremio-backoffice/internal/domain"

	"github.com/google/uuid"
)

const sessionColumns = `id, tenant_id, site, operator_id, state, opened_at, closed_at, diff_total, close_entry_id`

type CashRepository struct {
	db DBTX
}

func NewCashRepository(db DBTX) *CashRepository {
	return &CashRepository{db: db}
}

func (r *CashRepository) CreateSession(ctx context.Context, s *domain.CashSession) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cash_sessions (id, tenant_id, site, operator_id, state, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.TenantID.String(), s.Site, s.OperatorID, string(s.State), s.OpenedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrSessionAlreadyOpen.Withf("site %q already has an open cash session", s.Site)
	}
	if err != nil {
		return fmt.Errorf("insert cash session: %w", err)
	}
	return nil
}

func (r *CashRepository) GetSession(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CashSession, error) {
	s, err := r.load(ctx, tenant, id, false)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT method, declared, theoretical, diff
		FROM cash_close_lines WHERE session_id = $1 ORDER BY method`, id)
	if err != nil {
		return nil, fmt.Errorf("select close lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.CloseLine
		if err := rows.Scan(&l.Method, (*int64)(&l.Declared), (*int64)(&l.Theoretical), (*int64)(&l.Diff)); err != nil {
			return nil, fmt.Errorf("scan close line: %w", err)
		}
		s.CloseLines = append(s.CloseLines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate close lines: %w", err)
	}
	return s, nil
}

func (r *CashRepository) LockSession(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.CashSession, error) {
	return r.load(ctx, tenant, id, true)
}

func (r *CashRepository) load(ctx context.Context, tenant domain.TenantID, id uuid.UUID, forUpdate bool) (*domain.CashSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM cash_sessions WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		s        domain.CashSession
		tenantID string
		state    string
		closedAt sql.NullTime
		diff     sql.NullInt64
		entryID  uuid.NullUUID
	)
	err := r.db.QueryRowContext(ctx, query, tenant.String(), id).Scan(
		&s.ID, &tenantID, &s.Site, &s.OperatorID, &state, &s.OpenedAt, &closedAt, &diff, &entryID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound.Withf("cash session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select cash session: %w", err)
	}

	s.TenantID = domain.TenantID(tenantID)
	s.State = domain.SessionState(state)
	s.ClosedAt = timePtr(closedAt)
	if diff.Valid {
		d := domain.Cents(diff.Int64)
		s.DiffTotal = &d
	}
	s.CloseEntryID = uuidPtr(entryID)
	return &s, nil
}

func (r *CashRepository) CreateCollection(ctx context.Context, tenant domain.TenantID, c *domain.Collection) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO collections (id, tenant_id, session_id, afiliado_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, tenant.String(), c.SessionID, nullUUID(c.AfiliadoID), c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}

	for _, m := range c.Methods {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO collection_methods (collection_id, method, amount, reference)
			VALUES ($1, $2, $3, $4)`,
			c.ID, string(m.Method), int64(m.Amount), m.Reference,
		)
		if err != nil {
			return fmt.Errorf("insert collection method %s: %w", m.Method, err)
		}
	}

	for _, a := range c.Applications {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO collection_applications (collection_id, obligation_id, amount)
			VALUES ($1, $2, $3)`,
			c.ID, a.ObligationID, int64(a.Amount),
		)
		if err != nil {
			return fmt.Errorf("insert collection application: %w", err)
		}
	}
	return nil
}

func (r *CashRepository) ListCollections(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID) ([]domain.Collection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.afiliado_id, c.created_at, m.method, m.amount, m.reference
		FROM collections c
		JOIN collection_methods m ON m.collection_id = c.id
		WHERE c.tenant_id = $1 AND c.session_id = $2
		ORDER BY c.created_at, c.id, m.id`,
		tenant.String(), sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select collections: %w", err)
	}
	defer rows.Close()

	var out []domain.Collection
	index := map[uuid.UUID]int{}
	for rows.Next() {
		var (
			c        domain.Collection
			afiliado uuid.NullUUID
			m        domain.MethodLine
		)
		if err := rows.Scan(&c.ID, &afiliado, &c.CreatedAt, &m.Method, (*int64)(&m.Amount), &m.Reference); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		i, ok := index[c.ID]
		if !ok {
			c.SessionID = sessionID
			c.AfiliadoID = uuidPtr(afiliado)
			out = append(out, c)
			i = len(out) - 1
			index[c.ID] = i
		}
		out[i].Methods = append(out[i].Methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}

// MethodTotals sums what was collected per payment method during the session.
func (r *CashRepository) MethodTotals(ctx context.Context, tenant domain.TenantID, sessionID uuid.UUID) (map[domain.PaymentMethod]domain.Cents, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT m.method, COALESCE(SUM(m.amount), 0)
		FROM collection_methods m
		JOIN collections c ON c.id = m.collection_id
		WHERE c.tenant_id = $1 AND c.session_id = $2
		GROUP BY m.method`,
		tenant.String(), sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("select method totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[domain.PaymentMethod]domain.Cents)
	for rows.Next() {
		var (
			method string
			total  int64
		)
		if err := rows.Scan(&method, &total); err != nil {
			return nil, fmt.Errorf("scan method total: %w", err)
		}
		totals[domain.PaymentMethod(method)] = domain.Cents(total)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate method totals: %w", err)
	}
	return totals, nil
}

func (r *CashRepository) CloseSession(ctx context.Context, s *domain.CashSession) error {
	for _, l := range s.CloseLines {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO cash_close_lines (session_id, method, declared, theoretical, diff)
			VALUES ($1, $2, $3, $4, $5)`,
			s.ID, string(l.Method), int64(l.Declared), int64(l.Theoretical), int64(l.Diff),
		)
		if err != nil {
			return fmt.Errorf("insert close line %s: %w", l.Method, err)
		}
	}

	var diff sql.NullInt64
	if s.DiffTotal != nil {
		diff = sql.NullInt64{Int64: int64(*s.DiffTotal), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE cash_sessions
		SET state = $3, closed_at = $4, diff_total = $5, close_entry_id = $6
		WHERE tenant_id = $1 AND id = $2 AND state = 'open'`,
		s.TenantID.String(),
		s.ID,
		string(s.State),
		nullTime(s.ClosedAt),
		diff,
		nullUUID(s.CloseEntryID),
	)
	if err != nil {
		return fmt.Errorf("update cash session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotOpen.Withf("cash session %s is not open", s.ID)
	}
	return nil
}
