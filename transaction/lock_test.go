package transaction

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/heapdb/common"
)

var testPage = common.PageID{File: 7, PageNum: 3}

func shortCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

func TestSharedLocksAreCompatible(t *testing.T) {
	lm := NewLockManager()
	require.NoError(t, lm.Acquire(shortCtx(t), 1, testPage, LockModeS))
	require.NoError(t, lm.Acquire(shortCtx(t), 2, testPage, LockModeS))
	assert.True(t, lm.Holds(1, testPage))
	assert.True(t, lm.Holds(2, testPage))

	err := lm.Acquire(shortCtx(t), 3, testPage, LockModeX)
	assert.ErrorIs(t, err, common.ErrTransactionAborted, "X must wait while others share the page")
	assert.False(t, lm.Holds(3, testPage))
}

func TestUpgradeSoleSharedHolder(t *testing.T) {
	lm := NewLockManager()
	require.NoError(t, lm.Acquire(shortCtx(t), 1, testPage, LockModeS))
	require.NoError(t, lm.Acquire(shortCtx(t), 1, testPage, LockModeX))

	mode, ok := lm.ModeHeld(1, testPage)
	assert.True(t, ok)
	assert.Equal(t, LockModeX, mode)

	// Re-requesting S under X is a no-op.
	require.NoError(t, lm.Acquire(shortCtx(t), 1, testPage, LockModeS))
	mode, _ = lm.ModeHeld(1, testPage)
	assert.Equal(t, LockModeX, mode)

	assert.ErrorIs(t, lm.Acquire(shortCtx(t), 2, testPage, LockModeS), common.ErrTransactionAborted)
}

func TestWaiterWakesOnRelease(t *testing.T) {
	lm := NewLockManager()
	require.NoError(t, lm.Acquire(context.Background(), 1, testPage, LockModeX))

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := make(chan error, 1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		acquired <- lm.Acquire(ctx, 2, testPage, LockModeX)
	}()

	time.Sleep(20 * time.Millisecond)
	lm.ReleaseAll(1)
	wg.Wait()
	require.NoError(t, <-acquired)
	assert.True(t, lm.Holds(2, testPage))
	assert.False(t, lm.Holds(1, testPage))
}

func TestReleaseAllAndPagesLockedBy(t *testing.T) {
	lm := NewLockManager()
	other := common.PageID{File: 7, PageNum: 4}
	require.NoError(t, lm.Acquire(shortCtx(t), 1, testPage, LockModeS))
	require.NoError(t, lm.Acquire(shortCtx(t), 1, other, LockModeX))
	assert.ElementsMatch(t, []common.PageID{testPage, other}, lm.PagesLockedBy(1))

	lm.Release(1, testPage)
	assert.False(t, lm.Holds(1, testPage))
	assert.ElementsMatch(t, []common.PageID{other}, lm.PagesLockedBy(1))

	lm.ReleaseAll(1)
	assert.Empty(t, lm.PagesLockedBy(1))
	assert.False(t, lm.Holds(1, other))
}

func TestModeFor(t *testing.T) {
	assert.Equal(t, LockModeS, ModeFor(common.ReadOnly))
	assert.Equal(t, LockModeX, ModeFor(common.ReadWrite))
}

func TestTransactionManagerLifecycle(t *testing.T) {
	tm := NewTransactionManager()
	a := tm.Begin()
	b := tm.Begin()
	assert.NotEqual(t, common.InvalidTransactionID, a)
	assert.Greater(t, b, a)
	assert.Equal(t, 2, tm.NumActive())
	assert.True(t, tm.IsActive(a))

	_, err := tm.Finish(a)
	require.NoError(t, err)
	assert.False(t, tm.IsActive(a))

	_, err = tm.Finish(a)
	assert.ErrorIs(t, err, common.ErrIllegalArgument)
}
