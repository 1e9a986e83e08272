package heapdb

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	// Imports all sub-components
	"mit.edu/dsg/heapdb/catalog"
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/config"
	"mit.edu/dsg/heapdb/execution"
	"mit.edu/dsg/heapdb/storage"
	"mit.edu/dsg/heapdb/transaction"
)

// Database is the top-level container for the storage engine. It owns the catalog, the buffer
// pool and the transaction machinery, and wires them to each other.
type Database struct {
	cfg         *config.Config
	logger      *slog.Logger
	catalogPath string

	catalog            *catalog.Catalog
	bufferPool         *storage.BufferPool
	lockManager        *transaction.LockManager
	transactionManager *transaction.TransactionManager
}

// Open creates the data directory if needed and loads the schema file found there, if any. A nil
// logger discards all output.
func Open(cfg *config.Config, logger *slog.Logger) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = config.DiscardLogger()
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, common.WrapIOError(err, "create data dir %s", cfg.Storage.DataDir)
	}

	cat := catalog.NewCatalog(logger)
	lockManager := transaction.NewLockManager()
	bufferPool := storage.NewBufferPool(cfg.BufferPool.NumPages, cfg.Storage.PageSize, cat, lockManager,
		cfg.BufferPool.LockTimeout, logger)

	catalogPath := cfg.Storage.CatalogFile
	if !filepath.IsAbs(catalogPath) {
		catalogPath = filepath.Join(cfg.Storage.DataDir, catalogPath)
	}
	err := cat.LoadSchema(catalogPath, bufferPool)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("no schema file, starting with an empty catalog", "path", catalogPath)
	case err != nil:
		return nil, err
	}

	return &Database{
		cfg:                cfg,
		logger:             logger.With("component", "database"),
		catalogPath:        catalogPath,
		catalog:            cat,
		bufferPool:         bufferPool,
		lockManager:        lockManager,
		transactionManager: transaction.NewTransactionManager(),
	}, nil
}

func (db *Database) Catalog() *catalog.Catalog {
	return db.catalog
}

func (db *Database) BufferPool() *storage.BufferPool {
	return db.bufferPool
}

func (db *Database) LockManager() *transaction.LockManager {
	return db.lockManager
}

func (db *Database) TransactionManager() *transaction.TransactionManager {
	return db.transactionManager
}

// CreateTable creates the heap file <data dir>/<name>.dat, registers it and saves the schema. A new
// file gets one empty page so that it can be scanned right away.
func (db *Database) CreateTable(name string, desc *storage.TupleDesc, primaryKey string) (common.FileID, error) {
	file, err := storage.NewHeapFile(filepath.Join(db.cfg.Storage.DataDir, name+".dat"), desc, db.bufferPool)
	if err != nil {
		return common.InvalidFileID, err
	}
	numPages, err := file.NumPages()
	if err != nil {
		return common.InvalidFileID, err
	}
	if numPages == 0 {
		pid := common.PageID{File: file.ID(), PageNum: 0}
		empty, err := storage.NewHeapPage(pid, storage.EmptyPageData(db.cfg.Storage.PageSize), desc)
		if err != nil {
			return common.InvalidFileID, err
		}
		if err := file.WritePage(empty); err != nil {
			return common.InvalidFileID, err
		}
	}
	if err := db.catalog.AddTable(file, name, primaryKey); err != nil {
		return common.InvalidFileID, err
	}
	if err := db.catalog.SaveSchema(db.catalogPath); err != nil {
		return common.InvalidFileID, err
	}
	db.logger.Info("table created", "table", name, "id", file.ID())
	return file.ID(), nil
}

// Begin starts a transaction.
func (db *Database) Begin() common.TransactionID {
	tid := db.transactionManager.Begin()
	db.logger.Debug("transaction started", "tx_id", tid)
	return tid
}

// Commit makes tid's changes durable and releases its locks.
func (db *Database) Commit(tid common.TransactionID) error {
	return db.complete(tid, true)
}

// Abort throws away tid's changes and releases its locks.
func (db *Database) Abort(tid common.TransactionID) error {
	return db.complete(tid, false)
}

func (db *Database) complete(tid common.TransactionID, commit bool) error {
	elapsed, err := db.transactionManager.Finish(tid)
	if err != nil {
		return err
	}
	if err := db.bufferPool.TransactionComplete(tid, commit); err != nil {
		return err
	}
	db.logger.Debug("transaction finished", "tx_id", tid, "commit", commit, "elapsed", elapsed)
	return nil
}

// NewExecutorContext binds operators to transaction tid.
func (db *Database) NewExecutorContext(tid common.TransactionID) *execution.ExecutorContext {
	return execution.NewExecutorContext(tid, db.catalog, db.bufferPool, db.logger)
}

// Close flushes every dirty page. Transactions still running lose their isolation, so callers
// should commit or abort them first.
func (db *Database) Close() error {
	if n := db.transactionManager.NumActive(); n > 0 {
		db.logger.Warn("closing with active transactions", "active", n)
	}
	return db.bufferPool.FlushAllPages()
}
