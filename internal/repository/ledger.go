package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gremio-backoffice/internal/domain"

	"github.com/google/uuid"
)

type LedgerRepository struct {
	db  DBTX
	now func() time.Time
}

func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{db: db, now: time.Now}
}

// PostEntry validates the posting and writes the entry with its lines.
func (r *LedgerRepository) PostEntry(ctx context.Context, tenant domain.TenantID, p domain.LedgerPosting) (*domain.LedgerEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	entry := &domain.LedgerEntry{
		ID:            uuid.New(),
		TenantID:      tenant,
		LedgerPosting: p,
		PostedAt:      r.now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, tenant_id, origin, reference_id, description, entry_date, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		tenant.String(),
		p.Origin,
		p.ReferenceID,
		p.Description,
		p.Date,
		entry.PostedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	for _, l := range p.Lines {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO ledger_lines (entry_id, account, debit, credit)
			VALUES ($1, $2, $3, $4)`,
			entry.ID, l.Account, int64(l.Debit), int64(l.Credit),
		)
		if err != nil {
			return nil, fmt.Errorf("insert ledger line %s: %w", l.Account, err)
		}
	}
	return entry, nil
}

func (r *LedgerRepository) GetEntry(ctx context.Context, tenant domain.TenantID, id uuid.UUID) (*domain.LedgerEntry, error) {
	entry := &domain.LedgerEntry{ID: id, TenantID: tenant}
	err := r.db.QueryRowContext(ctx, `
		SELECT origin, reference_id, description, entry_date, posted_at
		FROM ledger_entries WHERE tenant_id = $1 AND id = $2`,
		tenant.String(), id,
	).Scan(&entry.Origin, &entry.ReferenceID, &entry.Description, &entry.Date, &entry.PostedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntryNotFound.Withf("ledger entry %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select ledger entry: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT account, debit, credit FROM ledger_lines WHERE entry_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("select ledger lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.LedgerLine
		if err := rows.Scan(&l.Account, (*int64)(&l.Debit), (*int64)(&l.Credit)); err != nil {
			return nil, fmt.Errorf("scan ledger line: %w", err)
		}
		entry.Lines = append(entry.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger lines: %w", err)
	}
	return entry, nil
}
