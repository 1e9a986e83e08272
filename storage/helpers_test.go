package storage

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/config"
	"mit.edu/dsg/heapdb/transaction"
)

const testLockTimeout = 100 * time.Millisecond

// StatsHeapFile counts the page I/O the buffer pool issues against a HeapFile.
type StatsHeapFile struct {
	*HeapFile
	ReadCnt, WriteCnt atomic.Int64
}

func (f *StatsHeapFile) ReadPage(pid common.PageID) (Page, error) {
	f.ReadCnt.Add(1)
	return f.HeapFile.ReadPage(pid)
}

func (f *StatsHeapFile) WritePage(p Page) error {
	f.WriteCnt.Add(1)
	return f.HeapFile.WritePage(p)
}

// fileMap is a minimal FileResolver for tests that do not need a catalog.
type fileMap struct {
	files *xsync.MapOf[common.FileID, DbFile]
}

func newFileMap() *fileMap {
	return &fileMap{files: xsync.NewMapOf[common.FileID, DbFile]()}
}

func (m *fileMap) DatabaseFile(id common.FileID) (DbFile, error) {
	if f, ok := m.files.Load(id); ok {
		return f, nil
	}
	return nil, common.NewError(common.NoSuchObjectError, "no file %d", id)
}

type testEnv struct {
	files *fileMap
	locks *transaction.LockManager
	pool  *BufferPool
	dir   string
}

func setupEnv(t *testing.T, numPages, pageSize int) *testEnv {
	files := newFileMap()
	locks := transaction.NewLockManager()
	return &testEnv{
		files: files,
		locks: locks,
		pool:  NewBufferPool(numPages, pageSize, files, locks, testLockTimeout, config.DiscardLogger()),
		dir:   t.TempDir(),
	}
}

// addFile creates a heap file named name in the test directory and registers it with the pool.
func (e *testEnv) addFile(t *testing.T, name string, desc *TupleDesc) *StatsHeapFile {
	hf, err := NewHeapFile(filepath.Join(e.dir, name), desc, e.pool)
	require.NoError(t, err)
	stats := &StatsHeapFile{HeapFile: hf}
	e.files.files.Store(hf.ID(), stats)
	return stats
}

func intPairDesc(t *testing.T) *TupleDesc {
	desc, err := NewTupleDesc([]common.Type{common.IntType, common.IntType}, []string{"a", "b"})
	require.NoError(t, err)
	return desc
}

func intPair(t *testing.T, desc *TupleDesc, a, b int64) *Tuple {
	tup, err := NewTuple(desc, common.NewIntValue(a), common.NewIntValue(b))
	require.NoError(t, err)
	return tup
}

// writePages writes one page per entry of pages straight to hf, bypassing the pool. Page k holds
// the tuples (v, v) for every v in pages[k].
func writePages(t *testing.T, hf *HeapFile, pages [][]int64) {
	for pageNum, values := range pages {
		pid := common.PageID{File: hf.ID(), PageNum: int32(pageNum)}
		hp, err := NewHeapPage(pid, EmptyPageData(hf.pageSize), hf.TupleDesc())
		require.NoError(t, err)
		for _, v := range values {
			require.NoError(t, hp.InsertTuple(intPair(t, hf.TupleDesc(), v, v)))
		}
		require.NoError(t, hf.WritePage(hp))
	}
}

// drain collects the first column of every tuple the iterator still has.
func drain(t *testing.T, it DbFileIterator) []int64 {
	var out []int64
	for {
		hasNext, err := it.HasNext()
		require.NoError(t, err)
		if !hasNext {
			return out
		}
		tup, err := it.Next()
		require.NoError(t, err)
		v, err := tup.Value(0)
		require.NoError(t, err)
		out = append(out, v.IntValue())
	}
}
