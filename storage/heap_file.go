package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"mit.edu/dsg/heapdb/common"
)

// HeapFile implements the DbFile interface as a flat sequence of fixed-size pages in one OS file.
// Tuples are stored on HeapPages in no particular order. Page k occupies bytes
// [k*pageSize, (k+1)*pageSize).
//
// A HeapFile keeps no file handle open between calls: every ReadPage and WritePage opens the file,
// performs one positioned read or write, and closes it again before returning.
type HeapFile struct {
	path     string
	id       common.FileID
	desc     *TupleDesc
	pages    PageSource
	pageSize int

	// appendMu serializes InsertTuple's file extension so two inserts never append the same page.
	appendMu sync.Mutex
}

// WritableDbFile is a DbFile that also supports tuple-level modification.
type WritableDbFile interface {
	DbFile
	// InsertTuple adds t to the file on behalf of tid and returns the pages it modified.
	InsertTuple(tid common.TransactionID, t *Tuple) ([]Page, error)
	// DeleteTuple removes t (located by its RecordID) and returns the pages it modified.
	DeleteTuple(tid common.TransactionID, t *Tuple) ([]Page, error)
}

// NewHeapFile creates a heap file backed by the file at path, which need not exist yet. Pages are
// fetched through pages, which also fixes the page size.
func NewHeapFile(path string, desc *TupleDesc, pages PageSource) (*HeapFile, error) {
	canonical, err := canonicalPath(path)
	if err != nil {
		return nil, err
	}
	if slotsPerPage(pages.PageSize(), desc.Size()) == 0 {
		return nil, common.NewError(common.IllegalArgumentError,
			"a %d-byte tuple does not fit on a %d-byte page", desc.Size(), pages.PageSize())
	}
	return &HeapFile{
		path:     canonical,
		id:       FileIDForPath(canonical),
		desc:     desc,
		pages:    pages,
		pageSize: pages.PageSize(),
	}, nil
}

// canonicalPath returns the absolute, symlink-free form of path. If the file does not exist yet,
// only its directory is resolved.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", common.WrapIOError(err, "resolve %s", path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs)), nil
	}
	return abs, nil
}

// FileIDForPath derives a file id from a canonical path. The id is a 32-bit hash, so distinct
// paths can collide; the Catalog refuses to register a second file under an id already in use.
func FileIDForPath(canonical string) common.FileID {
	id := common.FileID(common.Hash32([]byte(canonical)))
	if id == common.InvalidFileID {
		id = 1
	}
	return id
}

// Path returns the canonical path of the backing file.
func (hf *HeapFile) Path() string {
	return hf.path
}

func (hf *HeapFile) ID() common.FileID {
	return hf.id
}

func (hf *HeapFile) TupleDesc() *TupleDesc {
	return hf.desc
}

// NumPages returns ceil(file length / page size), read from the file system on every call so that
// concurrent growth is visible. A file that does not exist yet has no pages.
func (hf *HeapFile) NumPages() (int, error) {
	stat, err := os.Stat(hf.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, common.WrapIOError(err, "stat %s", hf.path)
	}
	return int((stat.Size() + int64(hf.pageSize) - 1) / int64(hf.pageSize)), nil
}

// checkPage verifies pid names a page of this file. With allowAppend, the page right past the end
// of the file is accepted as well.
func (hf *HeapFile) checkPage(pid common.PageID, allowAppend bool) error {
	if pid.File != hf.id {
		return common.NewError(common.PageNotInFileError, "%s does not belong to heap file %d", pid, hf.id)
	}
	numPages, err := hf.NumPages()
	if err != nil {
		return err
	}
	limit := numPages
	if allowAppend {
		limit++
	}
	if pid.PageNum < 0 || int(pid.PageNum) >= limit {
		return common.NewError(common.PageNotInFileError,
			"heap file %d does not contain page %d (file has %d pages)", hf.id, pid.PageNum, numPages)
	}
	return nil
}

func (hf *HeapFile) offset(pageNum int32) int64 {
	return int64(pageNum) * int64(hf.pageSize)
}

// ReadPage reads page pid.PageNum from disk and parses it as a HeapPage.
func (hf *HeapFile) ReadPage(pid common.PageID) (Page, error) {
	if err := hf.checkPage(pid, false); err != nil {
		return nil, err
	}

	f, err := os.Open(hf.path)
	if err != nil {
		return nil, common.WrapIOError(err, "open %s for reading", hf.path)
	}
	defer f.Close()

	data := make([]byte, hf.pageSize)
	n, err := f.ReadAt(data, hf.offset(pid.PageNum))
	if n < len(data) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, common.WrapIOError(err, "short read of %s: got %d of %d bytes", pid, n, len(data))
	}
	return NewHeapPage(pid, data, hf.desc)
}

// WritePage writes the full image of p at its offset. Writing page NumPages() extends the file.
func (hf *HeapFile) WritePage(p Page) (err error) {
	pid := p.ID()
	if err := hf.checkPage(pid, true); err != nil {
		return err
	}
	data := p.PageData()
	if len(data) != hf.pageSize {
		return common.NewError(common.IllegalArgumentError,
			"page image of %d bytes does not match page size %d", len(data), hf.pageSize)
	}

	f, err := os.OpenFile(hf.path, os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return common.WrapIOError(err, "open %s for writing", hf.path)
	}
	defer func() {
		// The write error, if any, is the one worth reporting.
		if cerr := f.Close(); cerr != nil && err == nil {
			err = common.WrapIOError(cerr, "close %s", hf.path)
		}
	}()

	if _, err := f.WriteAt(data, hf.offset(pid.PageNum)); err != nil {
		return common.WrapIOError(err, "write %s", pid)
	}
	return nil
}

// Iterator returns an unopened iterator over the file's tuples on behalf of tid.
func (hf *HeapFile) Iterator(tid common.TransactionID) DbFileIterator {
	return newHeapFileIterator(hf, tid)
}

func asHeapPage(p Page) (*HeapPage, error) {
	hp, ok := p.(*HeapPage)
	if !ok {
		return nil, common.NewError(common.IllegalArgumentError, "%s is not a heap page", p.ID())
	}
	return hp, nil
}

// InsertTuple puts t on the first page with a free slot. Pages are searched with ReadOnly permission
// and only the page that receives t is fetched ReadWrite.
// If every page is full, an empty page is appended to the file first.
func (hf *HeapFile) InsertTuple(tid common.TransactionID, t *Tuple) ([]Page, error) {
	if !hf.desc.Equals(t.Desc()) {
		return nil, common.NewError(common.IllegalArgumentError,
			"tuple schema %s does not match table schema %s", t.Desc(), hf.desc)
	}

	numPages, err := hf.NumPages()
	if err != nil {
		return nil, err
	}
	for pageNum := 0; pageNum < numPages; pageNum++ {
		pid := common.PageID{File: hf.id, PageNum: int32(pageNum)}
		page, err := hf.pages.GetPage(tid, pid, common.ReadOnly)
		if err != nil {
			return nil, err
		}
		hp, err := asHeapPage(page)
		if err != nil {
			return nil, err
		}
		if hp.NumEmptySlots() == 0 {
			continue
		}
		// Upgrade to an exclusive lock only on the page that gets the tuple.
		if page, err = hf.pages.GetPage(tid, pid, common.ReadWrite); err != nil {
			return nil, err
		}
		if hp, err = asHeapPage(page); err != nil {
			return nil, err
		}
		if err := hp.InsertTuple(t); err != nil {
			return nil, err
		}
		return []Page{hp}, nil
	}

	pid, err := hf.appendEmptyPage()
	if err != nil {
		return nil, err
	}
	page, err := hf.pages.GetPage(tid, pid, common.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp, err := asHeapPage(page)
	if err != nil {
		return nil, err
	}
	if err := hp.InsertTuple(t); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}

func (hf *HeapFile) appendEmptyPage() (common.PageID, error) {
	hf.appendMu.Lock()
	defer hf.appendMu.Unlock()

	numPages, err := hf.NumPages()
	if err != nil {
		return common.PageID{}, err
	}
	pid := common.PageID{File: hf.id, PageNum: int32(numPages)}
	empty, err := NewHeapPage(pid, EmptyPageData(hf.pageSize), hf.desc)
	if err != nil {
		return common.PageID{}, err
	}
	if err := hf.WritePage(empty); err != nil {
		return common.PageID{}, err
	}
	return pid, nil
}

// DeleteTuple removes t from the page named by its RecordID.
func (hf *HeapFile) DeleteTuple(tid common.TransactionID, t *Tuple) ([]Page, error) {
	rid := t.RID()
	if rid.File != hf.id {
		return nil, common.NewError(common.IllegalArgumentError, "tuple %s is not stored in heap file %d", rid, hf.id)
	}
	page, err := hf.pages.GetPage(tid, rid.PageID, common.ReadWrite)
	if err != nil {
		return nil, err
	}
	hp, err := asHeapPage(page)
	if err != nil {
		return nil, err
	}
	if err := hp.DeleteTuple(t); err != nil {
		return nil, err
	}
	return []Page{hp}, nil
}
