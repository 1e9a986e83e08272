package transaction

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"mit.edu/dsg/heapdb/common"
)

// LockMode represents the type of access a transaction is requesting on a page.
type LockMode int

const (
	// LockModeS (Shared) allows reading a page. Multiple transactions can hold S locks simultaneously.
	LockModeS LockMode = iota
	// LockModeX (Exclusive) allows modification. It is incompatible with all other modes.
	LockModeX
)

func (m LockMode) String() string {
	switch m {
	case LockModeS:
		return "LockModeS"
	case LockModeX:
		return "LockModeX"
	}
	return "Unknown lock mode"
}

// ModeFor maps a page permission to the lock mode that guards it.
func ModeFor(perm common.Permission) LockMode {
	if perm == common.ReadWrite {
		return LockModeX
	}
	return LockModeS
}

type pageLock struct {
	mutex     sync.Mutex
	shared    mapset.Set[common.TransactionID]
	exclusive common.TransactionID
	// released is closed (and replaced) whenever a holder leaves, waking every waiter to retry.
	released chan struct{}
}

func newPageLock() *pageLock {
	return &pageLock{
		shared:   mapset.NewThreadUnsafeSet[common.TransactionID](),
		released: make(chan struct{}),
	}
}

// tryGrant grants the lock if compatible with the current holders. The caller holds l.mutex.
func (l *pageLock) tryGrant(tid common.TransactionID, mode LockMode) bool {
	if l.exclusive == tid {
		// X covers both modes
		return true
	}
	if l.exclusive != common.InvalidTransactionID {
		return false
	}
	if mode == LockModeS {
		l.shared.Add(tid)
		return true
	}
	// Exclusive: grant if nobody else shares the page. This also upgrades a sole S holder.
	if l.shared.Cardinality() == 0 || (l.shared.Cardinality() == 1 && l.shared.Contains(tid)) {
		l.shared.Remove(tid)
		l.exclusive = tid
		return true
	}
	return false
}

// release drops whatever tid holds. The caller holds l.mutex.
func (l *pageLock) release(tid common.TransactionID) bool {
	held := false
	if l.exclusive == tid {
		l.exclusive = common.InvalidTransactionID
		held = true
	}
	if l.shared.Contains(tid) {
		l.shared.Remove(tid)
		held = true
	}
	if held {
		close(l.released)
		l.released = make(chan struct{})
	}
	return held
}

// LockManager grants page-granularity shared and exclusive locks to transactions. Locks are held
// until released explicitly, normally all at once when the transaction completes.
//
// The LockManager does no deadlock detection: a blocked Acquire waits until its context is done
// and then reports a TransactionAbortedError, which the caller answers by aborting.
type LockManager struct {
	locks *xsync.MapOf[common.PageID, *pageLock]
	held  *xsync.MapOf[common.TransactionID, mapset.Set[common.PageID]]
}

func NewLockManager() *LockManager {
	return &LockManager{
		locks: xsync.NewMapOf[common.PageID, *pageLock](),
		held:  xsync.NewMapOf[common.TransactionID, mapset.Set[common.PageID]](),
	}
}

// Acquire blocks until tid holds pid in at least the requested mode, or ctx is done.
func (lm *LockManager) Acquire(ctx context.Context, tid common.TransactionID, pid common.PageID, mode LockMode) error {
	lock, _ := lm.locks.LoadOrCompute(pid, newPageLock)
	for {
		lock.mutex.Lock()
		if lock.tryGrant(tid, mode) {
			lock.mutex.Unlock()
			pages, _ := lm.held.LoadOrCompute(tid, func() mapset.Set[common.PageID] {
				return mapset.NewSet[common.PageID]()
			})
			pages.Add(pid)
			return nil
		}
		wait := lock.released
		lock.mutex.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return common.GoDBError{
				Code:      common.TransactionAbortedError,
				ErrString: "transaction timed out waiting for " + mode.String() + " on " + pid.String(),
				Cause:     ctx.Err(),
			}
		}
	}
}

// Release drops tid's lock on pid, if any.
func (lm *LockManager) Release(tid common.TransactionID, pid common.PageID) {
	if lock, ok := lm.locks.Load(pid); ok {
		lock.mutex.Lock()
		lock.release(tid)
		lock.mutex.Unlock()
	}
	if pages, ok := lm.held.Load(tid); ok {
		pages.Remove(pid)
	}
}

// ReleaseAll drops every lock tid holds.
func (lm *LockManager) ReleaseAll(tid common.TransactionID) {
	pages, ok := lm.held.LoadAndDelete(tid)
	if !ok {
		return
	}
	for _, pid := range pages.ToSlice() {
		if lock, ok := lm.locks.Load(pid); ok {
			lock.mutex.Lock()
			lock.release(tid)
			lock.mutex.Unlock()
		}
	}
}

// Holds reports whether tid holds any lock on pid.
func (lm *LockManager) Holds(tid common.TransactionID, pid common.PageID) bool {
	lock, ok := lm.locks.Load(pid)
	if !ok {
		return false
	}
	lock.mutex.Lock()
	defer lock.mutex.Unlock()
	return lock.exclusive == tid || lock.shared.Contains(tid)
}

// ModeHeld returns the strongest mode tid holds on pid.
func (lm *LockManager) ModeHeld(tid common.TransactionID, pid common.PageID) (LockMode, bool) {
	lock, ok := lm.locks.Load(pid)
	if !ok {
		return LockModeS, false
	}
	lock.mutex.Lock()
	defer lock.mutex.Unlock()
	if lock.exclusive == tid {
		return LockModeX, true
	}
	return LockModeS, lock.shared.Contains(tid)
}

// PagesLockedBy returns the pages tid currently holds a lock on, in no particular order.
func (lm *LockManager) PagesLockedBy(tid common.TransactionID) []common.PageID {
	pages, ok := lm.held.Load(tid)
	if !ok {
		return nil
	}
	return pages.ToSlice()
}
