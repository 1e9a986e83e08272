package storage

import (
	"mit.edu/dsg/heapdb/common"
)

type iteratorState int

const (
	iteratorClosed iteratorState = iota
	iteratorOpen
	iteratorExhausted
)

// HeapFileIterator streams the tuples of a HeapFile page by page. Pages are requested from the
// file's PageSource with ReadOnly permission one at a time, only when the previous page has been
// drained; the iterator caches no page bytes of its own.
//
// A HeapFileIterator is not safe for concurrent use.
type HeapFileIterator struct {
	file *HeapFile
	tid  common.TransactionID

	state   iteratorState
	pageNum int
	current TupleIterator
}

func newHeapFileIterator(file *HeapFile, tid common.TransactionID) *HeapFileIterator {
	return &HeapFileIterator{file: file, tid: tid}
}

// pageTuples fetches page pageNum and returns its tuple cursor.
func (it *HeapFileIterator) pageTuples(pageNum int) (TupleIterator, error) {
	numPages, err := it.file.NumPages()
	if err != nil {
		return nil, err
	}
	if pageNum < 0 || pageNum >= numPages {
		return nil, common.NewError(common.PageNotInFileError,
			"heap file %d has no page %d (file has %d pages)", it.file.ID(), pageNum, numPages)
	}
	pid := common.PageID{File: it.file.ID(), PageNum: int32(pageNum)}
	page, err := it.file.pages.GetPage(it.tid, pid, common.ReadOnly)
	if err != nil {
		return nil, err
	}
	return page.Iterator(), nil
}

// Open positions the iterator at the start of page 0. It fails with a PageNotInFileError when the
// file has no pages.
func (it *HeapFileIterator) Open() error {
	current, err := it.pageTuples(0)
	if err != nil {
		it.Close()
		return err
	}
	it.pageNum = 0
	it.current = current
	it.state = iteratorOpen
	return nil
}

// HasNext advances across pages until it finds one with a tuple left, skipping empty pages.
func (it *HeapFileIterator) HasNext() (bool, error) {
	if it.state != iteratorOpen {
		return false, nil
	}
	for !it.current.HasNext() {
		numPages, err := it.file.NumPages()
		if err != nil {
			return false, err
		}
		if it.pageNum+1 >= numPages {
			it.current = nil
			it.state = iteratorExhausted
			return false, nil
		}
		next, err := it.pageTuples(it.pageNum + 1)
		if err != nil {
			return false, err
		}
		it.pageNum++
		it.current = next
	}
	return true, nil
}

// Next returns the next tuple in page order, then slot order within the page.
func (it *HeapFileIterator) Next() (*Tuple, error) {
	hasNext, err := it.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, common.NewError(common.NoSuchElementError, "no more tuples in heap file %d", it.file.ID())
	}
	return it.current.Next()
}

// Rewind restarts the scan from page 0, fetching pages again from the PageSource.
func (it *HeapFileIterator) Rewind() error {
	it.Close()
	return it.Open()
}

// Close drops the current page cursor. It is idempotent.
func (it *HeapFileIterator) Close() {
	it.current = nil
	it.pageNum = 0
	it.state = iteratorClosed
}
