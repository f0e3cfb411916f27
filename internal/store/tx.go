package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is satisfied by both *sql.DB and *sql.Tx, so repositories can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn in a transaction, committing on success and rolling back on error.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// TxRunner runs a function inside a transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(q Querier) error) error
}

// Transactor is the TxRunner backed by a database handle.
type Transactor struct {
	DB *sql.DB
}

// InTx implements TxRunner.
func (t Transactor) InTx(ctx context.Context, fn func(q Querier) error) error {
	return WithTx(ctx, t.DB, func(tx *sql.Tx) error { return fn(tx) })
}
