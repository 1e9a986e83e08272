package storage

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/transaction"
)

// bufferFrame is one slot of the pool. The page a frame holds never changes: replacing a cached
// page installs a new frame in the same slot.
type bufferFrame struct {
	slot   int
	page   Page
	refBit atomic.Bool
}

// BufferPool caches pages read from DbFiles in a fixed number of slots and hands them out to
// transactions under page-level locks. It implements PageSource.
//
// The pool runs a NO-STEAL policy: a page dirtied by a running transaction stays in memory until
// the transaction commits (its pages are flushed) or aborts (its pages are discarded). Only clean
// pages are ever evicted, chosen with the clock algorithm.
type BufferPool struct {
	pageSize    int
	files       FileResolver
	locks       *transaction.LockManager
	lockTimeout time.Duration
	logger      *slog.Logger

	// frameMu serializes page loads, installs and evictions. Cache hits only touch pageTable.
	frameMu   sync.Mutex
	frames    []*bufferFrame
	clockHand int
	pageTable *xsync.MapOf[common.PageID, *bufferFrame]
}

// NewBufferPool creates a pool of numPages slots of pageSize bytes. Files are looked up through
// files, and a transaction that waits longer than lockTimeout for a page lock is told to abort.
func NewBufferPool(numPages, pageSize int, files FileResolver, locks *transaction.LockManager,
	lockTimeout time.Duration, logger *slog.Logger) *BufferPool {
	common.Assert(numPages > 0, "buffer pool needs at least one slot, got %d", numPages)
	common.Assert(pageSize > 0, "page size must be positive, got %d", pageSize)
	return &BufferPool{
		pageSize:    pageSize,
		files:       files,
		locks:       locks,
		lockTimeout: lockTimeout,
		logger:      logger.With("component", "buffer_pool"),
		frames:      make([]*bufferFrame, numPages),
		pageTable:   xsync.NewMapOf[common.PageID, *bufferFrame](),
	}
}

func (bp *BufferPool) PageSize() int {
	return bp.pageSize
}

// Capacity returns the number of slots in the pool.
func (bp *BufferPool) Capacity() int {
	return len(bp.frames)
}

// NumCachedPages returns the number of pages currently held in memory.
func (bp *BufferPool) NumCachedPages() int {
	return bp.pageTable.Size()
}

// GetPage returns page pid on behalf of tid, first acquiring a shared lock for ReadOnly or an
// exclusive lock for ReadWrite. The lock is held until the transaction completes. If the lock
// cannot be obtained within the pool's lock timeout, GetPage fails with a TransactionAbortedError
// and the caller is expected to abort tid.
//
// InvalidTransactionID reads without taking any lock, which is only safe when no transaction is
// modifying the file.
func (bp *BufferPool) GetPage(tid common.TransactionID, pid common.PageID, perm common.Permission) (Page, error) {
	if tid != common.InvalidTransactionID {
		ctx, cancel := context.WithTimeout(context.Background(), bp.lockTimeout)
		err := bp.locks.Acquire(ctx, tid, pid, transaction.ModeFor(perm))
		cancel()
		if err != nil {
			bp.logger.Warn("lock wait timed out", "tx_id", tid, "page", pid.String(), "perm", perm.String())
			return nil, err
		}
	}

	if frame, ok := bp.pageTable.Load(pid); ok {
		frame.refBit.Store(true)
		return frame.page, nil
	}

	bp.frameMu.Lock()
	defer bp.frameMu.Unlock()
	// Another goroutine may have loaded the page while we waited.
	if frame, ok := bp.pageTable.Load(pid); ok {
		frame.refBit.Store(true)
		return frame.page, nil
	}

	file, err := bp.files.DatabaseFile(pid.File)
	if err != nil {
		return nil, err
	}
	page, err := file.ReadPage(pid)
	if err != nil {
		return nil, err
	}
	if err := bp.installLocked(page); err != nil {
		return nil, err
	}
	bp.logger.Debug("page loaded", "tx_id", tid, "page", pid.String())
	return page, nil
}

// installLocked caches page, replacing any other page object cached under the same id. The caller
// holds frameMu.
func (bp *BufferPool) installLocked(page Page) error {
	pid := page.ID()
	if frame, ok := bp.pageTable.Load(pid); ok {
		if frame.page == page {
			frame.refBit.Store(true)
			return nil
		}
		replacement := &bufferFrame{slot: frame.slot, page: page}
		bp.frames[frame.slot] = replacement
		bp.pageTable.Store(pid, replacement)
		return nil
	}

	slot, err := bp.findVictimLocked()
	if err != nil {
		return err
	}
	if victim := bp.frames[slot]; victim != nil {
		bp.pageTable.Delete(victim.page.ID())
		bp.logger.Debug("page evicted", "page", victim.page.ID().String())
	}
	// Do not initially set the ref bit -- only on second access do we consider it a hot page
	frame := &bufferFrame{slot: slot, page: page}
	bp.frames[slot] = frame
	bp.pageTable.Store(pid, frame)
	return nil
}

// findVictimLocked returns a free slot, or the slot of a clean page chosen by the clock algorithm.
// Dirty pages are never chosen. The caller holds frameMu.
func (bp *BufferPool) findVictimLocked() (int, error) {
	numFrames := len(bp.frames)
	// Two sweeps: the first may only clear reference bits.
	for i := 0; i < 2*numFrames; i++ {
		slot := bp.clockHand
		bp.clockHand = (bp.clockHand + 1) % numFrames

		frame := bp.frames[slot]
		if frame == nil {
			return slot, nil
		}
		if _, dirty := frame.page.IsDirty(); dirty {
			continue
		}
		if frame.refBit.Load() {
			// Second chance
			frame.refBit.Store(false)
			continue
		}
		return slot, nil
	}
	return 0, common.NewError(common.BufferPoolFullError, "all %d cached pages are dirty", numFrames)
}

// ReleasePage drops tid's lock on pid before the transaction ends. This breaks two-phase locking
// and should only be used for pages tid has not read anything decisive from.
func (bp *BufferPool) ReleasePage(tid common.TransactionID, pid common.PageID) {
	bp.locks.Release(tid, pid)
}

// HoldsLock reports whether tid holds a lock on pid.
func (bp *BufferPool) HoldsLock(tid common.TransactionID, pid common.PageID) bool {
	return bp.locks.Holds(tid, pid)
}

// cacheDirty marks the pages a file operation modified as dirtied by tid and makes sure the
// modified objects are the ones cached.
func (bp *BufferPool) cacheDirty(tid common.TransactionID, pages []Page) error {
	bp.frameMu.Lock()
	defer bp.frameMu.Unlock()
	for _, p := range pages {
		p.MarkDirty(true, tid)
		if err := bp.installLocked(p); err != nil {
			return err
		}
	}
	return nil
}

func (bp *BufferPool) writableFile(id common.FileID) (WritableDbFile, error) {
	file, err := bp.files.DatabaseFile(id)
	if err != nil {
		return nil, err
	}
	wf, ok := file.(WritableDbFile)
	if !ok {
		return nil, common.NewError(common.IllegalArgumentError, "file %d does not support modification", id)
	}
	return wf, nil
}

// InsertTuple adds t to table tableID on behalf of tid. The pages touched are locked exclusively
// and stay dirty in the pool until tid completes.
func (bp *BufferPool) InsertTuple(tid common.TransactionID, tableID common.FileID, t *Tuple) error {
	wf, err := bp.writableFile(tableID)
	if err != nil {
		return err
	}
	pages, err := wf.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.cacheDirty(tid, pages)
}

// DeleteTuple removes t, located by its RecordID, on behalf of tid.
func (bp *BufferPool) DeleteTuple(tid common.TransactionID, t *Tuple) error {
	wf, err := bp.writableFile(t.RID().File)
	if err != nil {
		return err
	}
	pages, err := wf.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	return bp.cacheDirty(tid, pages)
}

// flushPage writes pid back to its file if it is cached and dirty.
func (bp *BufferPool) flushPage(pid common.PageID) error {
	frame, ok := bp.pageTable.Load(pid)
	if !ok {
		return nil
	}
	if _, dirty := frame.page.IsDirty(); !dirty {
		return nil
	}
	file, err := bp.files.DatabaseFile(pid.File)
	if err != nil {
		return err
	}
	if err := file.WritePage(frame.page); err != nil {
		return err
	}
	frame.page.MarkDirty(false, common.InvalidTransactionID)
	return nil
}

// FlushAllPages writes every dirty page to disk. Pages stay cached. Flushing pages of running
// transactions breaks NO-STEAL, so this is meant for shutdown and tests.
func (bp *BufferPool) FlushAllPages() error {
	var pids []common.PageID
	bp.pageTable.Range(func(pid common.PageID, _ *bufferFrame) bool {
		pids = append(pids, pid)
		return true
	})
	for _, pid := range pids {
		if err := bp.flushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// FlushPages writes the pages dirtied by tid to disk.
func (bp *BufferPool) FlushPages(tid common.TransactionID) error {
	for _, pid := range bp.locks.PagesLockedBy(tid) {
		frame, ok := bp.pageTable.Load(pid)
		if !ok {
			continue
		}
		if owner, dirty := frame.page.IsDirty(); !dirty || owner != tid {
			continue
		}
		if err := bp.flushPage(pid); err != nil {
			return err
		}
	}
	return nil
}

// DiscardPage drops pid from the pool without writing it back.
func (bp *BufferPool) DiscardPage(pid common.PageID) {
	bp.frameMu.Lock()
	defer bp.frameMu.Unlock()
	if frame, ok := bp.pageTable.LoadAndDelete(pid); ok {
		bp.frames[frame.slot] = nil
	}
}

// TransactionComplete ends tid. On commit the pages it dirtied are flushed; on abort they are
// discarded so the next reader sees the on-disk image. Either way every lock tid holds is
// released, even if flushing fails.
func (bp *BufferPool) TransactionComplete(tid common.TransactionID, commit bool) error {
	defer bp.locks.ReleaseAll(tid)

	if commit {
		if err := bp.FlushPages(tid); err != nil {
			bp.logger.Error("flush on commit failed", "tx_id", tid, "err", err)
			return err
		}
		bp.logger.Debug("transaction committed", "tx_id", tid)
		return nil
	}

	discarded := 0
	for _, pid := range bp.locks.PagesLockedBy(tid) {
		frame, ok := bp.pageTable.Load(pid)
		if !ok {
			continue
		}
		if owner, dirty := frame.page.IsDirty(); dirty && owner == tid {
			bp.DiscardPage(pid)
			discarded++
		}
	}
	bp.logger.Debug("transaction aborted", "tx_id", tid, "discarded_pages", discarded)
	return nil
}
