package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gremio-backoffice/internal/domain"

	"github.com/google/uuid"
)

type NoveltyRepository struct {
	db DBTX
}

func NewNoveltyRepository(db DBTX) *NoveltyRepository {
	return &NoveltyRepository{db: db}
}

func (r *NoveltyRepository) CutoffDay(ctx context.Context, tenant domain.TenantID, period domain.Period) (int, error) {
	var day int
	err := r.db.QueryRowContext(ctx, `
		SELECT cutoff_day FROM cutoff_settings WHERE tenant_id = $1 AND period = $2`,
		tenant.String(), period.String(),
	).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select cutoff day: %w", err)
	}
	return day, nil
}

func (r *NoveltyRepository) SetCutoff(ctx context.Context, tenant domain.TenantID, period domain.Period, day int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cutoff_settings (tenant_id, period, cutoff_day)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, period) DO UPDATE SET cutoff_day = EXCLUDED.cutoff_day`,
		tenant.String(), period.String(), day,
	)
	if err != nil {
		return fmt.Errorf("upsert cutoff day: %w", err)
	}
	return nil
}

func (r *NoveltyRepository) CreateNovelty(ctx context.Context, n *domain.Novelty) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO novelties (id, tenant_id, afiliado_id, padron_id, kind, concepto_codigo, amount, event_date, period, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID,
		n.TenantID.String(),
		n.AfiliadoID,
		nullUUID(n.PadronID),
		string(n.Kind),
		n.ConceptoCodigo,
		int64(n.Amount),
		n.EventDate,
		n.Period.String(),
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert novelty: %w", err)
	}
	return nil
}

func (r *NoveltyRepository) ListByPeriod(ctx context.Context, tenant domain.TenantID, period domain.Period) ([]domain.Novelty, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, afiliado_id, padron_id, kind, concepto_codigo, amount, event_date, period, created_at
		FROM novelties
		WHERE tenant_id = $1 AND period = $2
		ORDER BY event_date, created_at`,
		tenant.String(), period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("select novelties: %w", err)
	}
	defer rows.Close()

	var out []domain.Novelty
	for rows.Next() {
		var (
			n      domain.Novelty
			padron uuid.NullUUID
			kind   string
		)
		err := rows.Scan(
			&n.ID, &n.AfiliadoID, &padron, &kind, &n.ConceptoCodigo,
			(*int64)(&n.Amount), &n.EventDate, &n.Period, &n.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan novelty: %w", err)
		}
		n.TenantID = tenant
		n.PadronID = uuidPtr(padron)
		n.Kind = domain.NoveltyKind(kind)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate novelties: %w", err)
	}
	return out, nil
}
