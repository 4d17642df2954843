// Package driver abstracts the PostgreSQL client used by the match archive.
//
// TTx is the driver's native transaction type, so callers can archive a
// match inside a transaction they already hold:
//   - github.com/youssefsiam38/arenawatch/driver/pgxv5.New(pool)
//   - github.com/youssefsiam38/arenawatch/driver/databasesql.New(db, connStr)
package driver

import (
	"context"

	"github.com/youssefsiam38/arenawatch/storage"
)

// Driver provides database access for the archive.
type Driver[TTx any] interface {
	// GetExecutor returns an executor backed by the connection pool.
	GetExecutor() Executor

	// UnwrapExecutor wraps a native transaction.
	UnwrapExecutor(tx TTx) ExecutorTx

	// UnwrapTx extracts the native transaction from an ExecutorTx.
	UnwrapTx(execTx ExecutorTx) TTx

	// Begin starts a new transaction.
	Begin(ctx context.Context) (ExecutorTx, error)

	// PoolIsSet returns true if the driver has a database pool configured.
	PoolIsSet() bool

	// GetStore returns the archive store for this driver.
	GetStore() storage.Store

	// SupportsListener reports whether GetListener can return a listener.
	SupportsListener() bool

	// SupportsNotify reports whether GetNotifier can send notifications.
	SupportsNotify() bool

	// GetListener returns a dedicated LISTEN connection. The caller must
	// close it.
	GetListener(ctx context.Context) (Listener, error)

	// GetNotifier returns a Notifier using the pool.
	GetNotifier() Notifier
}

// Beginner starts transactions.
type Beginner interface {
	Begin(ctx context.Context) (ExecutorTx, error)
}

// RunInTx runs fn inside a transaction. If ctx already carries one, fn
// joins it and the caller stays responsible for committing.
func RunInTx(ctx context.Context, b Beginner, fn func(ctx context.Context, exec Executor) error) error {
	if exec := ExecutorFromContext(ctx); exec != nil {
		return fn(ctx, exec)
	}

	tx, err := b.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(WithExecutor(ctx, tx), tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}
