package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// WithReadOnlyTx runs fn inside a read-only RepeatableRead transaction. A
// positive timeout bounds every statement of the transaction.
func WithReadOnlyTx(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if timeout > 0 {
		if _, err := tx.Exec(ctx, statementTimeoutSQL(timeout)); err != nil {
			return fmt.Errorf("platform/db: set statement timeout: %w", err)
		}
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// SET does not accept bind parameters, so the value is formatted from a
// duration and never from user input.
func statementTimeoutSQL(timeout time.Duration) string {
	return fmt.Sprintf("SET LOCAL statement_timeout = %d", timeout.Milliseconds())
}
