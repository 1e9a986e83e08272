package execution

import (
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// modifyExecutor is the shared machinery of Insert and Delete: on the first call to HasNext it
// applies apply to every tuple of the child, then produces a single tuple holding the count.
type modifyExecutor struct {
	name  string
	ctx   *ExecutorContext
	child OpIterator
	apply func(t *storage.Tuple) error
	desc  *storage.TupleDesc

	opened   bool
	executed bool
	emitted  bool
	cnt      int
}

func (e *modifyExecutor) TupleDesc() *storage.TupleDesc {
	return e.desc
}

func (e *modifyExecutor) Open() error {
	e.opened = true
	e.executed = false
	e.emitted = false
	e.cnt = 0
	return e.child.Open()
}

func (e *modifyExecutor) execute() error {
	for {
		hasNext, err := e.child.HasNext()
		if err != nil {
			return err
		}
		if !hasNext {
			break
		}
		t, err := e.child.Next()
		if err != nil {
			return err
		}
		if err := e.apply(t); err != nil {
			return err
		}
		e.cnt++
	}
	e.executed = true
	e.ctx.Logger().Debug(e.name+" finished", "tx_id", e.ctx.TransactionID(), "count", e.cnt)
	return nil
}

func (e *modifyExecutor) HasNext() (bool, error) {
	if !e.opened || e.emitted {
		return false, nil
	}
	if !e.executed {
		if err := e.execute(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (e *modifyExecutor) Next() (*storage.Tuple, error) {
	hasNext, err := e.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, noSuchElement(e.name)
	}
	e.emitted = true
	return storage.NewTuple(e.desc, common.NewIntValue(int64(e.cnt)))
}

// Rewind makes the count available again. The modification itself is not repeated.
func (e *modifyExecutor) Rewind() error {
	if !e.opened {
		return notOpened(e.name)
	}
	e.emitted = false
	return nil
}

func (e *modifyExecutor) Close() {
	e.opened = false
	e.child.Close()
}

// Insert adds every tuple of its child to a table and reports how many it inserted.
type Insert struct {
	modifyExecutor
}

// NewInsert creates an insert into table tableID. The child's schema must match the table's.
func NewInsert(ctx *ExecutorContext, tableID common.FileID, child OpIterator) (*Insert, error) {
	tableDesc, err := ctx.Catalog().TupleDesc(tableID)
	if err != nil {
		return nil, err
	}
	if !tableDesc.Equals(child.TupleDesc()) {
		return nil, common.NewError(common.IllegalArgumentError,
			"cannot insert %s into a table of %s", child.TupleDesc(), tableDesc)
	}
	pool := ctx.BufferPool()
	return &Insert{modifyExecutor{
		name:  "insert",
		ctx:   ctx,
		child: child,
		desc:  countDesc(),
		apply: func(t *storage.Tuple) error {
			// Store the tuple under the table's own schema.
			row, err := storage.NewTuple(tableDesc)
			if err != nil {
				return err
			}
			for i := 0; i < t.NumFields(); i++ {
				v, err := t.Value(i)
				if err != nil {
					return err
				}
				if err := row.SetValue(i, v); err != nil {
					return err
				}
			}
			return pool.InsertTuple(ctx.TransactionID(), tableID, row)
		},
	}}, nil
}

// Delete removes every tuple of its child, located by RecordID, and reports how many it deleted.
type Delete struct {
	modifyExecutor
}

func NewDelete(ctx *ExecutorContext, child OpIterator) *Delete {
	pool := ctx.BufferPool()
	return &Delete{modifyExecutor{
		name:  "delete",
		ctx:   ctx,
		child: child,
		desc:  countDesc(),
		apply: func(t *storage.Tuple) error {
			return pool.DeleteTuple(ctx.TransactionID(), t)
		},
	}}
}
