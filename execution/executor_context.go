package execution

import (
	"log/slog"

	"mit.edu/dsg/heapdb/catalog"
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// ExecutorContext holds all the state and resources required for query execution.
// It is passed to every operator during construction, which binds the operator to a transaction.
type ExecutorContext struct {
	tid     common.TransactionID
	catalog *catalog.Catalog
	pool    *storage.BufferPool
	logger  *slog.Logger
}

func NewExecutorContext(tid common.TransactionID, cat *catalog.Catalog, pool *storage.BufferPool,
	logger *slog.Logger) *ExecutorContext {
	return &ExecutorContext{
		tid:     tid,
		catalog: cat,
		pool:    pool,
		logger:  logger.With("component", "execution"),
	}
}

func (ctx *ExecutorContext) TransactionID() common.TransactionID {
	return ctx.tid
}

func (ctx *ExecutorContext) Catalog() *catalog.Catalog {
	return ctx.catalog
}

func (ctx *ExecutorContext) BufferPool() *storage.BufferPool {
	return ctx.pool
}

func (ctx *ExecutorContext) Logger() *slog.Logger {
	return ctx.logger
}
