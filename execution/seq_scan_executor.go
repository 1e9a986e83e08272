package execution

import (
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// SeqScan implements a sequential scan over a table. It reads every tuple of the table's file in
// page order on behalf of the context's transaction, and exposes the table's schema with every
// field renamed to "alias.field".
type SeqScan struct {
	ctx *ExecutorContext

	tableID   common.FileID
	alias     string
	tableName string
	file      storage.DbFile
	desc      *storage.TupleDesc

	// Runtime state; nil unless open
	iterator storage.DbFileIterator
}

// NewSeqScan creates a scan of table tableID whose field names are prefixed with alias. An empty
// alias (or field name) is rendered as "null".
func NewSeqScan(ctx *ExecutorContext, tableID common.FileID, alias string) (*SeqScan, error) {
	s := &SeqScan{ctx: ctx}
	if err := s.bind(tableID, alias); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSeqScanDefaultAlias creates a scan that uses the table's name as its alias.
func NewSeqScanDefaultAlias(ctx *ExecutorContext, tableID common.FileID) (*SeqScan, error) {
	name, err := ctx.Catalog().TableName(tableID)
	if err != nil {
		return nil, err
	}
	return NewSeqScan(ctx, tableID, name)
}

// bind looks up tableID and switches the scan over to it. Nothing changes if the lookup fails.
func (s *SeqScan) bind(tableID common.FileID, alias string) error {
	file, err := s.ctx.Catalog().DatabaseFile(tableID)
	if err != nil {
		return err
	}
	name, err := s.ctx.Catalog().TableName(tableID)
	if err != nil {
		return err
	}
	s.tableID = tableID
	s.alias = alias
	s.tableName = name
	s.file = file
	s.desc = file.TupleDesc().WithAlias(alias)
	return nil
}

// TableName returns the catalog name of the scanned table.
func (s *SeqScan) TableName() string {
	return s.tableName
}

// Alias returns the alias the scan's field names are prefixed with.
func (s *SeqScan) Alias() string {
	return s.alias
}

// TableID returns the id of the scanned table.
func (s *SeqScan) TableID() common.FileID {
	return s.tableID
}

// TupleDesc returns the table's schema with alias-prefixed field names.
func (s *SeqScan) TupleDesc() *storage.TupleDesc {
	return s.desc
}

func (s *SeqScan) Open() error {
	if s.iterator != nil {
		s.iterator.Close()
		s.iterator = nil
	}
	it := s.file.Iterator(s.ctx.TransactionID())
	if err := it.Open(); err != nil {
		return err
	}
	s.iterator = it
	s.ctx.Logger().Debug("seq scan opened", "tx_id", s.ctx.TransactionID(), "table", s.tableName)
	return nil
}

// Reset retargets the scan to table tableID under alias and opens it again. Errors from the lookup
// or from reopening are returned to the caller.
func (s *SeqScan) Reset(tableID common.FileID, alias string) error {
	if err := s.bind(tableID, alias); err != nil {
		return err
	}
	s.Close()
	s.ctx.Logger().Debug("seq scan reset", "tx_id", s.ctx.TransactionID(), "table", s.tableName,
		"alias", alias)
	return s.Open()
}

func (s *SeqScan) HasNext() (bool, error) {
	if s.iterator == nil {
		return false, nil
	}
	return s.iterator.HasNext()
}

func (s *SeqScan) Next() (*storage.Tuple, error) {
	if s.iterator == nil {
		return nil, noSuchElement("seq scan of " + s.tableName)
	}
	return s.iterator.Next()
}

// Rewind restarts the scan from the first tuple of the table.
func (s *SeqScan) Rewind() error {
	if s.iterator == nil {
		return notOpened("seq scan of " + s.tableName)
	}
	return s.iterator.Rewind()
}

func (s *SeqScan) Close() {
	if s.iterator == nil {
		return
	}
	s.iterator.Close()
	s.iterator = nil
	s.ctx.Logger().Debug("seq scan closed", "tx_id", s.ctx.TransactionID(), "table", s.tableName)
}
