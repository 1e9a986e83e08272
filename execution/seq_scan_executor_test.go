package execution

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"mit.edu/dsg/heapdb/common"
)

func TestSeqScan_ReadsAllTuples(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "test_table", 30)
	ctx := db.begin()

	scan, err := NewSeqScan(ctx, tableID, "t1")
	require.NoError(t, err)
	assert.Equal(t, "test_table", scan.TableName())
	assert.Equal(t, "t1", scan.Alias())
	assert.Equal(t, tableID, scan.TableID())

	require.NoError(t, scan.Open())
	count := 0
	for {
		hasNext, err := scan.HasNext()
		require.NoError(t, err)
		if !hasNext {
			break
		}
		tup, err := scan.Next()
		require.NoError(t, err)

		valID, err := tup.Value(0)
		require.NoError(t, err)
		assert.Equal(t, int64(count), valID.IntValue(), "tuple id mismatch at row %d", count)
		valName, err := tup.Value(1)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("row-%d", count), valName.StringValue())
		count++
	}
	assert.Equal(t, 30, count, "SeqScan failed to return all tuples")

	_, err = scan.Next()
	assert.ErrorIs(t, err, common.ErrNoSuchElement)
	scan.Close()
}

func TestSeqScan_AliasRewritesFieldNames(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "people", 1)
	ctx := db.begin()

	scan, err := NewSeqScan(ctx, tableID, "t1")
	require.NoError(t, err)
	desc := scan.TupleDesc()
	idx, err := desc.FieldIndex("t1.name")
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "alias keeps field positions")
	_, err = desc.FieldIndex("name")
	assert.ErrorIs(t, err, common.ErrFieldNotFound)

	tableDesc, err := db.catalog.TupleDesc(tableID)
	require.NoError(t, err)
	assert.True(t, desc.Equals(tableDesc))

	noAlias, err := NewSeqScan(ctx, tableID, "")
	require.NoError(t, err)
	name, err := noAlias.TupleDesc().FieldName(0)
	require.NoError(t, err)
	assert.Equal(t, "null.id", name)

	byName, err := NewSeqScanDefaultAlias(ctx, tableID)
	require.NoError(t, err)
	assert.Equal(t, "people", byName.Alias())
	name, err = byName.TupleDesc().FieldName(0)
	require.NoError(t, err)
	assert.Equal(t, "people.id", name)
}

func TestSeqScan_UnknownTable(t *testing.T) {
	db := setupTestDB(t)
	_, err := NewSeqScan(db.begin(), 12345, "x")
	assert.ErrorIs(t, err, common.ErrNoSuchObject)
	_, err = NewSeqScanDefaultAlias(db.begin(), 12345)
	assert.ErrorIs(t, err, common.ErrNoSuchObject)
}

func TestSeqScan_NotOpened(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "t", 3)
	scan, err := NewSeqScan(db.begin(), tableID, "t")
	require.NoError(t, err)

	hasNext, err := scan.HasNext()
	require.NoError(t, err)
	assert.False(t, hasNext)
	_, err = scan.Next()
	assert.ErrorIs(t, err, common.ErrNoSuchElement)
	assert.ErrorIs(t, scan.Rewind(), common.ErrIllegalArgument)

	require.NoError(t, scan.Open())
	scan.Close()
	scan.Close()
	hasNext, err = scan.HasNext()
	require.NoError(t, err)
	assert.False(t, hasNext, "a closed scan has nothing")
}

func TestSeqScan_Rewind(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "t", 25)
	scan, err := NewSeqScan(db.begin(), tableID, "t")
	require.NoError(t, err)

	require.NoError(t, scan.Open())
	first, err := Drain(scan)
	require.NoError(t, err)

	require.NoError(t, scan.Rewind())
	second, err := Drain(scan)
	require.NoError(t, err)
	assert.Equal(t, ids(t, first), ids(t, second))

	// Opening an open scan starts over too.
	require.NoError(t, scan.Open())
	third, err := Drain(scan)
	require.NoError(t, err)
	assert.Len(t, third, 25)
}

func TestSeqScan_Reset(t *testing.T) {
	db := setupTestDB(t)
	first := db.createTable(t, "first", 3)
	second := db.createTable(t, "second", 7)
	scan, err := NewSeqScan(db.begin(), first, "a")
	require.NoError(t, err)
	require.NoError(t, scan.Open())
	_, err = scan.Next()
	require.NoError(t, err)

	require.NoError(t, scan.Reset(second, "b"))
	assert.Equal(t, "second", scan.TableName())
	assert.Equal(t, "b", scan.Alias())
	name, err := scan.TupleDesc().FieldName(1)
	require.NoError(t, err)
	assert.Equal(t, "b.name", name)

	out, err := Drain(scan)
	require.NoError(t, err)
	assert.Len(t, out, 7, "reset reopens the scan on the new table")

	// A failed lookup leaves the scan bound to its current table.
	assert.ErrorIs(t, scan.Reset(12345, "c"), common.ErrNoSuchObject)
	assert.Equal(t, "second", scan.TableName())
}

func TestSeqScan_ResetReportsOpenFailure(t *testing.T) {
	db := setupTestDB(t)
	full := db.createTable(t, "full", 3)
	empty := db.createTable(t, "empty", 0)
	scan, err := NewSeqScan(db.begin(), full, "f")
	require.NoError(t, err)
	require.NoError(t, scan.Open())

	// A table without pages cannot be opened.
	err = scan.Reset(empty, "e")
	assert.ErrorIs(t, err, common.ErrPageNotInFile)
	assert.Equal(t, "empty", scan.TableName())
	hasNext, err := scan.HasNext()
	require.NoError(t, err)
	assert.False(t, hasNext)
}

func TestSeqScan_LockTimeoutAborts(t *testing.T) {
	db := setupTestDB(t)
	tableID := db.createTable(t, "t", 3)

	writer := db.begin()
	pid := common.PageID{File: tableID, PageNum: 0}
	_, err := db.pool.GetPage(writer.TransactionID(), pid, common.ReadWrite)
	require.NoError(t, err)

	scan, err := NewSeqScan(db.begin(), tableID, "t")
	require.NoError(t, err)
	assert.ErrorIs(t, scan.Open(), common.ErrTransactionAborted)

	db.commit(t, writer)
	require.NoError(t, scan.Open())
	out, err := Drain(scan)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}
