package driver

import "context"

type executorTxContextKey struct{}

// WithExecutor returns a context carrying exec. Store calls made with it
// join the transaction.
//
// Example:
//
//	tx, _ := drv.Begin(ctx)
//	txCtx := driver.WithExecutor(ctx, tx)
//	_ = store.CreateMatch(txCtx, params)
//	_ = tx.Commit(ctx)
func WithExecutor(ctx context.Context, exec ExecutorTx) context.Context {
	return context.WithValue(ctx, executorTxContextKey{}, exec)
}

// ExecutorFromContext returns the transaction carried by ctx, or nil.
func ExecutorFromContext(ctx context.Context) ExecutorTx {
	if exec, ok := ctx.Value(executorTxContextKey{}).(ExecutorTx); ok {
		return exec
	}
	return nil
}

// StripExecutor hides any transaction carried by ctx while keeping its
// deadline, cancellation and other values. The archive recorder uses it
// so its writes never join a caller's transaction.
func StripExecutor(ctx context.Context) context.Context {
	return &executorStrippedContext{ctx}
}

type executorStrippedContext struct {
	context.Context
}

func (c *executorStrippedContext) Value(key any) any {
	if _, ok := key.(executorTxContextKey); ok {
		return nil
	}
	return c.Context.Value(key)
}
