package driver

import "context"

// Row is one result row. pgx.Row and *sql.Row satisfy it.
type Row interface {
	Scan(dest ...any) error
}

// Rows is a result set. Drivers adapt pgx.Rows and *sql.Rows to it.
type Rows interface {
	Close()
	Err() error
	Next() bool
	Scan(dest ...any) error
}

// Executor runs statements against a pool or a transaction.
type Executor interface {
	// Begin starts a transaction, or a savepoint inside one.
	Begin(ctx context.Context) (ExecutorTx, error)

	// Exec returns the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// ExecutorTx is an Executor inside an open transaction.
type ExecutorTx interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// BatchItem is one statement of a batch.
type BatchItem struct {
	Query string
	Args  []any
}

// BatchExecutor sends several statements in one round trip. Only pgx
// implements it; callers fall back to one Exec per item.
type BatchExecutor interface {
	Executor
	SendBatch(ctx context.Context, items []BatchItem) ([]int64, error)
}

// ExecBatch runs items through SendBatch when exec supports it and one at
// a time otherwise.
func ExecBatch(ctx context.Context, exec Executor, items []BatchItem) ([]int64, error) {
	if b, ok := exec.(BatchExecutor); ok {
		return b.SendBatch(ctx, items)
	}

	affected := make([]int64, len(items))
	for i, item := range items {
		n, err := exec.Exec(ctx, item.Query, item.Args...)
		if err != nil {
			return nil, err
		}
		affected[i] = n
	}
	return affected, nil
}
