package core

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx represents a database transaction.
// It implements the Executor interface and can be passed wherever a Session is accepted.
type Tx struct {
	db    *DB
	sqlTx *sql.Tx
}

func (tx *Tx) session() (*DB, Executor) {
	return tx.db, tx
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if err := tx.sqlTx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	if err := tx.sqlTx.Rollback(); err != nil {
		return fmt.Errorf("transaction rollback failed: %w", err)
	}
	return nil
}

// Insert inserts entity within the transaction.
func (tx *Tx) Insert(ctx context.Context, entity any) error {
	return insert(ctx, tx, entity)
}

// Update updates entity by primary key within the transaction.
func (tx *Tx) Update(ctx context.Context, entity any) (int64, error) {
	return update(ctx, tx, entity)
}

// Delete deletes entity by primary key within the transaction.
func (tx *Tx) Delete(ctx context.Context, entity any) (int64, error) {
	return remove(ctx, tx, entity)
}

// QueryContext executes a query that returns rows, typically a SELECT.
func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := tx.sqlTx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction query failed: %w", err)
	}
	return rows, nil
}

// QueryRowContext executes a query that is expected to return at most one row.
func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.sqlTx.QueryRowContext(ctx, query, args...)
}

// ExecContext executes a query that doesn't return rows, such as an INSERT or UPDATE.
func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := tx.sqlTx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transaction exec failed: %w", err)
	}
	return res, nil
}

// PrepareContext prepares a statement bound to the transaction.
func (tx *Tx) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	stmt, err := tx.sqlTx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("transaction prepare failed: %w", err)
	}
	return stmt, nil
}
