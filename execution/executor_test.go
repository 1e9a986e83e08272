package execution

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/heapdb/catalog"
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/config"
	"mit.edu/dsg/heapdb/storage"
	"mit.edu/dsg/heapdb/transaction"
)

type testDB struct {
	catalog *catalog.Catalog
	pool    *storage.BufferPool
	dir     string
	nextTid common.TransactionID
}

func setupTestDB(t *testing.T) *testDB {
	c := catalog.NewCatalog(config.DiscardLogger())
	pool := storage.NewBufferPool(32, 512, c, transaction.NewLockManager(), 100*time.Millisecond,
		config.DiscardLogger())
	return &testDB{catalog: c, pool: pool, dir: t.TempDir()}
}

func (db *testDB) begin() *ExecutorContext {
	db.nextTid++
	return NewExecutorContext(db.nextTid, db.catalog, db.pool, config.DiscardLogger())
}

func (db *testDB) commit(t *testing.T, ctx *ExecutorContext) {
	require.NoError(t, db.pool.TransactionComplete(ctx.TransactionID(), true))
}

// createTable registers a table with columns (id int, name string) holding rows 0..n-1.
func (db *testDB) createTable(t *testing.T, name string, n int) common.FileID {
	desc, err := storage.NewTupleDesc([]common.Type{common.IntType, common.StringType}, []string{"id", "name"})
	require.NoError(t, err)
	hf, err := storage.NewHeapFile(filepath.Join(db.dir, name+".dat"), desc, db.pool)
	require.NoError(t, err)
	require.NoError(t, db.catalog.AddTable(hf, name, "id"))

	if n == 0 {
		return hf.ID()
	}
	rows := make([]*storage.Tuple, n)
	for i := range rows {
		rows[i], err = storage.NewTuple(desc, common.NewIntValue(int64(i)), common.NewStringValue(fmt.Sprintf("row-%d", i)))
		require.NoError(t, err)
	}
	ctx := db.begin()
	ins, err := NewInsert(ctx, hf.ID(), NewValues(desc, rows))
	require.NoError(t, err)
	require.NoError(t, ins.Open())
	out, err := Drain(ins)
	require.NoError(t, err)
	require.Len(t, out, 1)
	ins.Close()
	db.commit(t, ctx)
	return hf.ID()
}

func ids(t *testing.T, tuples []*storage.Tuple) []int64 {
	out := make([]int64, len(tuples))
	for i, tup := range tuples {
		v, err := tup.Value(0)
		require.NoError(t, err)
		out[i] = v.IntValue()
	}
	return out
}

func TestFilter(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "t", 20)
	ctx := db.begin()

	scan, err := NewSeqScan(ctx, tableID, "t")
	require.NoError(t, err)
	filter := NewFilter(Predicate{Field: 0, CompType: GreaterThanOrEqual, Operand: common.NewIntValue(15)}, scan)
	assert.Equal(t, scan.TupleDesc(), filter.TupleDesc())

	require.NoError(t, filter.Open())
	out, err := Drain(filter)
	require.NoError(t, err)
	assert.Equal(t, []int64{15, 16, 17, 18, 19}, ids(t, out))

	_, err = filter.Next()
	assert.ErrorIs(t, err, common.ErrNoSuchElement)

	require.NoError(t, filter.Rewind())
	out, err = Drain(filter)
	require.NoError(t, err)
	assert.Len(t, out, 5)
	filter.Close()
}

func TestPredicate(t *testing.T) {
	desc, err := storage.NewTupleDesc([]common.Type{common.IntType, common.StringType}, nil)
	require.NoError(t, err)
	tup, err := storage.NewTuple(desc, common.NewIntValue(5), common.NewStringValue("b"))
	require.NoError(t, err)

	cases := []struct {
		pred Predicate
		want bool
	}{
		{Predicate{0, Equal, common.NewIntValue(5)}, true},
		{Predicate{0, NotEqual, common.NewIntValue(5)}, false},
		{Predicate{0, LessThan, common.NewIntValue(6)}, true},
		{Predicate{0, LessThanOrEqual, common.NewIntValue(4)}, false},
		{Predicate{0, GreaterThan, common.NewIntValue(4)}, true},
		{Predicate{1, GreaterThan, common.NewStringValue("a")}, true},
		{Predicate{1, Equal, common.NewIntValue(5)}, false},
	}
	for _, c := range cases {
		got, err := c.pred.Eval(tup)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, c.pred.String())
	}

	_, err = Predicate{Field: 2, CompType: Equal, Operand: common.NewIntValue(1)}.Eval(tup)
	assert.ErrorIs(t, err, common.ErrIndexOutOfRange)
}

func TestLimit(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "t", 10)
	ctx := db.begin()

	scan, err := NewSeqScan(ctx, tableID, "t")
	require.NoError(t, err)
	limit := NewLimit(3, scan)
	require.NoError(t, limit.Open())
	out, err := Drain(limit)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, ids(t, out))
	_, err = limit.Next()
	assert.ErrorIs(t, err, common.ErrNoSuchElement)

	require.NoError(t, limit.Rewind())
	out, err = Drain(limit)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	limit.Close()
}

func TestInsertAndDelete(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "t", 50)

	ctx := db.begin()
	scan, err := NewSeqScan(ctx, tableID, "t")
	require.NoError(t, err)
	del := NewDelete(ctx, NewFilter(Predicate{Field: 0, CompType: LessThan, Operand: common.NewIntValue(10)}, scan))
	assert.Equal(t, "int(count)", del.TupleDesc().String())

	require.NoError(t, del.Open())
	out, err := Drain(del)
	require.NoError(t, err)
	require.Len(t, out, 1)
	cnt, err := out[0].Value(0)
	require.NoError(t, err)
	assert.Equal(t, int64(10), cnt.IntValue())

	// Rewinding reports the count again without deleting anything more.
	require.NoError(t, del.Rewind())
	out, err = Drain(del)
	require.NoError(t, err)
	require.Len(t, out, 1)
	del.Close()
	db.commit(t, ctx)

	ctx = db.begin()
	scan, err = NewSeqScan(ctx, tableID, "t")
	require.NoError(t, err)
	require.NoError(t, scan.Open())
	rest, err := Drain(scan)
	require.NoError(t, err)
	assert.Len(t, rest, 40)
	assert.Equal(t, int64(10), ids(t, rest)[0])
	scan.Close()
	db.commit(t, ctx)
}

func TestInsertRejectsSchemaMismatch(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "t", 0)
	desc, err := storage.NewTupleDesc([]common.Type{common.IntType}, nil)
	require.NoError(t, err)

	_, err = NewInsert(db.begin(), tableID, NewValues(desc, nil))
	assert.ErrorIs(t, err, common.ErrIllegalArgument)

	_, err = NewInsert(db.begin(), 12345, NewValues(desc, nil))
	assert.ErrorIs(t, err, common.ErrNoSuchObject)
}

func TestAbortedInsertIsInvisible(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "t", 5)
	desc, err := db.catalog.TupleDesc(tableID)
	require.NoError(t, err)

	ctx := db.begin()
	row, err := storage.NewTuple(desc, common.NewIntValue(100), common.NewStringValue("ghost"))
	require.NoError(t, err)
	ins, err := NewInsert(ctx, tableID, NewValues(desc, []*storage.Tuple{row}))
	require.NoError(t, err)
	require.NoError(t, ins.Open())
	_, err = Drain(ins)
	require.NoError(t, err)
	ins.Close()
	require.NoError(t, db.pool.TransactionComplete(ctx.TransactionID(), false))

	ctx = db.begin()
	scan, err := NewSeqScan(ctx, tableID, "t")
	require.NoError(t, err)
	require.NoError(t, scan.Open())
	out, err := Drain(scan)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, ids(t, out))
}

func TestValues(t *testing.T) {
	desc, err := storage.NewTupleDesc([]common.Type{common.IntType}, nil)
	require.NoError(t, err)
	a, err := storage.NewTuple(desc, common.NewIntValue(1))
	require.NoError(t, err)

	v := NewValues(desc, []*storage.Tuple{a})
	hasNext, err := v.HasNext()
	require.NoError(t, err)
	assert.False(t, hasNext)
	assert.ErrorIs(t, v.Rewind(), common.ErrIllegalArgument)

	require.NoError(t, v.Open())
	out, err := Drain(v)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	_, err = v.Next()
	assert.ErrorIs(t, err, common.ErrNoSuchElement)
}
