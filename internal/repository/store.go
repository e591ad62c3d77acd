package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gremio-backoffice/internal/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repos struct {
	orders      *OrderRepository
	obligations *ObligationRepository
	ledger      *LedgerRepository
	cash        *CashRepository
	novelties   *NoveltyRepository
}

func newRepos(db DBTX) repos {
	return repos{
		orders:      NewOrderRepository(db),
		obligations: NewObligationRepository(db),
		ledger:      NewLedgerRepository(db),
		cash:        NewCashRepository(db),
		novelties:   NewNoveltyRepository(db),
	}
}

func (r repos) Orders() ports.OrderRepository           { return r.orders }
func (r repos) Obligations() ports.ObligationRepository { return r.obligations }
func (r repos) Ledger() ports.LedgerRepository          { return r.ledger }
func (r repos) Cash() ports.CashRepository              { return r.cash }
func (r repos) Novelties() ports.NoveltyRepository      { return r.novelties }

// Store hands out repositories bound to the pool and runs transactional units of work.
type Store struct {
	repos
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{repos: newRepos(db), db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ports.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(newRepos(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func uuidPtr(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}
	id := n.UUID
	return &id
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}
