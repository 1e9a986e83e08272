package storage

import (
	"mit.edu/dsg/heapdb/common"
)

// Page is an in-memory image of one fixed-size page of a DbFile. The storage layer only relies on a
// page knowing its identity, serializing itself back to a page-sized byte image, and iterating
// the tuples it holds; the slot layout is the page implementation's own business.
//
// Pages are owned by the BufferPool for the duration of a transaction.
type Page interface {
	// ID returns the PageID this page was read from (or will be written to).
	ID() common.PageID
	// PageData returns the full serialized page image, exactly one page size long.
	PageData() []byte
	// Iterator returns a fresh cursor over the live tuples of this page. The cursor is finite and
	// cannot be restarted.
	Iterator() TupleIterator
	// IsDirty reports whether the page has been modified since it was read, and by whom.
	IsDirty() (common.TransactionID, bool)
	// MarkDirty sets or clears the dirty flag on behalf of tid.
	MarkDirty(dirty bool, tid common.TransactionID)
}

// TupleIterator is a page-local, single-pass cursor over tuples.
type TupleIterator interface {
	HasNext() bool
	// Next returns the next tuple, or a NoSuchElementError if the cursor is exhausted.
	Next() (*Tuple, error)
}

// sliceTupleIterator walks a snapshot of tuples.
type sliceTupleIterator struct {
	tuples []*Tuple
	pos    int
}

func (it *sliceTupleIterator) HasNext() bool {
	return it.pos < len(it.tuples)
}

func (it *sliceTupleIterator) Next() (*Tuple, error) {
	if !it.HasNext() {
		return nil, common.NewError(common.NoSuchElementError, "page iterator exhausted")
	}
	t := it.tuples[it.pos]
	it.pos++
	return t, nil
}
