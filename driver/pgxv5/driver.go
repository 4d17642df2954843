// Package pgxv5 implements the archive driver on pgx/v5.
//
// This is the recommended driver: it batches delta inserts into one round
// trip and holds a dedicated connection for LISTEN.
//
// Usage:
//
//	pool, _ := pgxpool.New(ctx, databaseURL)
//	drv := pgxv5.New(pool)
//	rec := archive.NewRecorder(drv.GetStore(), drv.GetNotifier(), nil)
package pgxv5

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/arenawatch/driver"
	"github.com/youssefsiam38/arenawatch/storage"
)

// Driver implements driver.Driver for pgx/v5.
type Driver struct {
	pool *pgxpool.Pool
}

// New creates a driver on pool.
func New(pool *pgxpool.Pool) *Driver {
	return &Driver{pool: pool}
}

// GetExecutor returns an executor backed by the pool.
func (d *Driver) GetExecutor() driver.Executor {
	return &Executor{q: d.pool}
}

// UnwrapExecutor wraps a pgx.Tx.
func (d *Driver) UnwrapExecutor(tx pgx.Tx) driver.ExecutorTx {
	return &ExecutorTx{Executor: Executor{q: tx}, tx: tx}
}

// UnwrapTx extracts the pgx.Tx from an ExecutorTx.
func (d *Driver) UnwrapTx(execTx driver.ExecutorTx) pgx.Tx {
	return execTx.(*ExecutorTx).tx
}

// Begin starts a transaction.
func (d *Driver) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	return d.GetExecutor().Begin(ctx)
}

// PoolIsSet returns true if the driver has a pool.
func (d *Driver) PoolIsSet() bool {
	return d.pool != nil
}

// GetStore returns the archive store.
func (d *Driver) GetStore() storage.Store {
	return NewStore(d)
}

// Pool returns the underlying pool.
func (d *Driver) Pool() *pgxpool.Pool {
	return d.pool
}

// SupportsListener returns true.
func (d *Driver) SupportsListener() bool {
	return true
}

// SupportsNotify returns true.
func (d *Driver) SupportsNotify() bool {
	return true
}

// GetListener acquires a dedicated connection for LISTEN.
func (d *Driver) GetListener(ctx context.Context) (driver.Listener, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn}, nil
}

// GetNotifier returns a Notifier on the pool.
func (d *Driver) GetNotifier() driver.Notifier {
	return &Notifier{pool: d.pool}
}

// querier is what *pgxpool.Pool and pgx.Tx have in common.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Executor runs statements on a pool or, embedded in ExecutorTx, a
// transaction.
type Executor struct {
	q querier
}

// Begin starts a transaction, or a savepoint when already inside one.
func (e *Executor) Begin(ctx context.Context) (driver.ExecutorTx, error) {
	tx, err := e.q.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &ExecutorTx{Executor: Executor{q: tx}, tx: tx}, nil
}

// Exec returns the number of rows affected.
func (e *Executor) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := e.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query runs a query returning rows.
func (e *Executor) Query(ctx context.Context, sql string, args ...any) (driver.Rows, error) {
	rows, err := e.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryRow runs a query returning at most one row.
func (e *Executor) QueryRow(ctx context.Context, sql string, args ...any) driver.Row {
	return e.q.QueryRow(ctx, sql, args...)
}

// SendBatch queues every item in one pgx.Batch.
func (e *Executor) SendBatch(ctx context.Context, items []driver.BatchItem) (affected []int64, err error) {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(item.Query, item.Args...)
	}

	results := e.q.SendBatch(ctx, batch)
	defer func() {
		if closeErr := results.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	affected = make([]int64, len(items))
	for i := range items {
		tag, execErr := results.Exec()
		if execErr != nil {
			return nil, execErr
		}
		affected[i] = tag.RowsAffected()
	}
	return affected, nil
}

// ExecutorTx is an Executor inside a pgx transaction.
type ExecutorTx struct {
	Executor
	tx pgx.Tx
}

// Commit commits the transaction.
func (e *ExecutorTx) Commit(ctx context.Context) error {
	return e.tx.Commit(ctx)
}

// Rollback rolls back the transaction.
func (e *ExecutorTx) Rollback(ctx context.Context) error {
	return e.tx.Rollback(ctx)
}

// Tx returns the underlying pgx.Tx.
func (e *ExecutorTx) Tx() pgx.Tx {
	return e.tx
}

// Notifier sends NOTIFY through the pool.
type Notifier struct {
	pool *pgxpool.Pool
}

// Notify sends a notification.
func (n *Notifier) Notify(ctx context.Context, channel, payload string) error {
	_, err := n.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	return err
}

var (
	_ driver.Driver[pgx.Tx] = (*Driver)(nil)
	_ driver.BatchExecutor  = (*Executor)(nil)
	_ driver.ExecutorTx     = (*ExecutorTx)(nil)
	_ driver.Notifier       = (*Notifier)(nil)
)
