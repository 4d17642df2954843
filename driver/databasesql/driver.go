// Package databasesql implements the archive driver on database/sql with
// lib/pq.
//
// Delta inserts run one statement at a time and LISTEN goes through a
// pq.Listener, which opens its own connection from connStr.
package databasesql

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"github.com/youssefsiam38/arenawatch/driver"
	"github.com/youssefsiam38/arenawatch/storage"
)

// Driver implements driver.Driver using database/sql.
type Driver struct {
	db      *sql.DB
	connStr string
}

// New creates a driver on db. connStr is used to open listener
// connections; without it SupportsListener reports false.
func New(db *sql.DB, connStr string) *Driver {
	return &Driver{db: db, connStr: connStr}
}

// GetExecutor returns an executor backed by the pool.
func (d *Driver) GetExecutor() driver.Executor {
	return &Executor{db: d.db}
}

// UnwrapExecutor wraps a *sql.Tx.
func (d *Driver) UnwrapExecutor(tx *sql.Tx) driver.ExecutorTx {
	return &ExecutorTx{tx: tx}
}

// UnwrapTx extracts the *sql.Tx from an ExecutorTx.
func (d *Driver) UnwrapTx(execTx driver.ExecutorTx) *sql.Tx {
	switch tx := execTx.(type) {
	case *ExecutorTx:
		return tx.tx
	case *savepointTx:
		return tx.tx
	}
	return nil
}

// Begin starts a transaction.
func (d *Driver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	return d.GetExecutor().Begin(ctx)
}

// PoolIsSet returns true if the driver has a database.
func (d *Driver) PoolIsSet() bool {
	return d.db != nil
}

// GetStore returns the archive store.
func (d *Driver) GetStore() storage.Store {
	return NewStore(d)
}

// DB returns the underlying database.
func (d *Driver) DB() *sql.DB {
	return d.db
}

// SupportsListener reports whether a connection string was given.
func (d *Driver) SupportsListener() bool {
	return d.connStr != ""
}

// SupportsNotify returns true.
func (d *Driver) SupportsNotify() bool {
	return true
}

// GetListener opens a pq.Listener.
func (d *Driver) GetListener(ctx context.Context) (driver.Listener, error) {
	if d.connStr == "" {
		return nil, fmt.Errorf("databasesql: listener requires a connection string")
	}
	return NewListener(d.connStr), nil
}

// GetNotifier returns a Notifier on the pool.
func (d *Driver) GetNotifier() driver.Notifier {
	return &Notifier{db: d.db}
}

// Executor runs statements on the pool.
type Executor struct {
	db *sql.DB
}

// Begin starts a transaction.
func (e *Executor) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &ExecutorTx{tx: tx}, nil
}

// Exec returns the number of rows affected.
func (e *Executor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return rowsAffected(e.db.ExecContext(ctx, query, args...))
}

// Query runs a query returning rows.
func (e *Executor) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return wrapRows(e.db.QueryContext(ctx, query, args...))
}

// QueryRow runs a query returning at most one row.
func (e *Executor) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return e.db.QueryRowContext(ctx, query, args...)
}

// ExecutorTx runs statements inside a *sql.Tx.
type ExecutorTx struct {
	tx         *sql.Tx
	savepoints atomic.Int64
}

// Begin opens a savepoint inside the transaction.
func (e *ExecutorTx) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	name := fmt.Sprintf("arenawatch_sp_%d", e.savepoints.Add(1))
	if _, err := e.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, err
	}
	return &savepointTx{ExecutorTx: e, name: name}, nil
}

// Exec returns the number of rows affected.
func (e *ExecutorTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return rowsAffected(e.tx.ExecContext(ctx, query, args...))
}

// Query runs a query returning rows.
func (e *ExecutorTx) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	return wrapRows(e.tx.QueryContext(ctx, query, args...))
}

// QueryRow runs a query returning at most one row.
func (e *ExecutorTx) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	return e.tx.QueryRowContext(ctx, query, args...)
}

// Commit commits the transaction.
func (e *ExecutorTx) Commit(ctx context.Context) error {
	return e.tx.Commit()
}

// Rollback rolls back the transaction.
func (e *ExecutorTx) Rollback(ctx context.Context) error {
	return e.tx.Rollback()
}

// savepointTx is a nested transaction. Commit releases the savepoint and
// Rollback rolls back to it; the outer transaction stays open.
type savepointTx struct {
	*ExecutorTx
	name string
}

func (s *savepointTx) Commit(ctx context.Context) error {
	_, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+s.name)
	return err
}

func (s *savepointTx) Rollback(ctx context.Context) error {
	_, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+s.name)
	return err
}

// rows adapts *sql.Rows, whose Close returns an error.
type rows struct {
	*sql.Rows
}

func (r rows) Close() {
	_ = r.Rows.Close()
}

func wrapRows(r *sql.Rows, err error) (driver.Rows, error) {
	if err != nil {
		return nil, err
	}
	return rows{r}, nil
}

func rowsAffected(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var (
	_ driver.Driver[*sql.Tx] = (*Driver)(nil)
	_ driver.Executor        = (*Executor)(nil)
	_ driver.ExecutorTx      = (*ExecutorTx)(nil)
	_ driver.ExecutorTx      = (*savepointTx)(nil)
)
