package transaction

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"mit.edu/dsg/heapdb/common"
)

// TransactionManager hands out transaction ids and tracks which transactions are still running.
// Committing or aborting page state is the BufferPool's job; the manager only records the
// lifecycle so that callers cannot finish a transaction twice.
type TransactionManager struct {
	// activeTxns maps running TransactionIDs to their start time
	activeTxns *xsync.MapOf[common.TransactionID, time.Time]
	nextTxnID  atomic.Uint64
}

func NewTransactionManager() *TransactionManager {
	return &TransactionManager{
		activeTxns: xsync.NewMapOf[common.TransactionID, time.Time](),
	}
}

// Begin starts a new transaction. Ids are strictly increasing and never InvalidTransactionID.
func (tm *TransactionManager) Begin() common.TransactionID {
	tid := common.TransactionID(tm.nextTxnID.Add(1))
	tm.activeTxns.Store(tid, time.Now())
	return tid
}

// IsActive reports whether tid has begun and not yet finished.
func (tm *TransactionManager) IsActive(tid common.TransactionID) bool {
	_, ok := tm.activeTxns.Load(tid)
	return ok
}

// Finish marks tid as done and returns how long it ran. It fails if tid is not active.
func (tm *TransactionManager) Finish(tid common.TransactionID) (time.Duration, error) {
	start, ok := tm.activeTxns.LoadAndDelete(tid)
	if !ok {
		return 0, common.NewError(common.IllegalArgumentError, "transaction %d is not active", tid)
	}
	return time.Since(start), nil
}

// NumActive returns the number of running transactions.
func (tm *TransactionManager) NumActive() int {
	return tm.activeTxns.Size()
}
