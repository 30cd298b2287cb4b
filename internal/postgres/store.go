package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/saga/internal/domain"
)

// dbConn is the subset of pgx shared by pools and transactions.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements domain.Repository backed by PostgreSQL via pgx.
// A Store is bound either to a connection pool or, inside RunInTx, to a
// single transaction.
type Store struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// Compile-time check that Store implements domain.Repository.
var _ domain.Repository = (*Store)(nil)

// NewStore creates a new PostgreSQL-backed repository.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) conn() dbConn {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

// RunInTx executes fn inside a transaction. The Store passed to fn is
// bound to that transaction, so nested calls share the same snapshot
// and locks.
func (s *Store) RunInTx(ctx context.Context, fn func(domain.Repository) error) error {
	if s.tx != nil {
		// Already in a transaction; reuse it.
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(&Store{pool: s.pool, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}
