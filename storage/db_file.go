package storage

import (
	"mit.edu/dsg/heapdb/common"
)

// DbFile abstracts the physical file on storage that stores a table.
// It handles page-level reads and writes and knows the schema of the tuples it stores.
//
// Implementations hold no lock across calls: concurrent ReadPage/WritePage calls on different
// pages are safe, but a read-modify-write of one page must be serialized by the caller (the
// BufferPool and its lock manager).
type DbFile interface {
	// ID returns the identity of the file, which doubles as the table id in the Catalog. It is a
	// stable function of the file and never changes for the lifetime of the object.
	ID() common.FileID
	// TupleDesc returns the schema of the tuples stored in the file.
	TupleDesc() *TupleDesc
	// ReadPage reads the page identified by pid from storage. The page must exist.
	ReadPage(pid common.PageID) (Page, error)
	// WritePage writes the page image to its position in the file. The page number may be equal to
	// NumPages(), which appends a page.
	WritePage(p Page) error
	// NumPages returns the number of pages currently in the file.
	NumPages() (int, error)
	// Iterator returns an unopened cursor over every tuple of the file, reading pages through the
	// BufferPool on behalf of tid.
	Iterator(tid common.TransactionID) DbFileIterator
}

// DbFileIterator is a restartable cursor over the tuples of a DbFile.
type DbFileIterator interface {
	// Open positions the cursor before the first tuple.
	Open() error
	// HasNext reports whether Next would return a tuple. It returns false, not an error, on a
	// cursor that is closed or was never opened.
	HasNext() (bool, error)
	// Next returns the next tuple, or a NoSuchElementError if there is none.
	Next() (*Tuple, error)
	// Rewind restarts the cursor from the first tuple.
	Rewind() error
	// Close releases the cursor's state. It is safe to call more than once.
	Close()
}

// PageSource hands out pages under a transaction and a permission level. The BufferPool is the
// production implementation; heap files and their iterators only ever see this interface.
type PageSource interface {
	GetPage(tid common.TransactionID, pid common.PageID, perm common.Permission) (Page, error)
	PageSize() int
}

// FileResolver maps a file id to the open DbFile. The Catalog is the production implementation.
type FileResolver interface {
	DatabaseFile(id common.FileID) (DbFile, error)
}
