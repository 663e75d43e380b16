package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithTx executes fn within a transaction at RepeatableRead isolation.
// The transaction is rolled back unless fn returns nil and commit succeeds.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// Execer is the subset of a pool or transaction needed to run one statement.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// XactLock takes a transaction-scoped advisory lock on key. The lock is held
// until the surrounding transaction commits or rolls back, serializing every
// transaction that locks the same key. Calling it outside a transaction is a
// database error.
func XactLock(ctx context.Context, db Execer, key string) error {
	if _, err := db.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("platform/db: advisory lock %q: %w", key, err)
	}
	return nil
}
