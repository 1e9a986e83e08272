package execution

import (
	"mit.edu/dsg/heapdb/storage"
)

// Limit returns at most limit tuples of its child.
type Limit struct {
	limit int
	child OpIterator

	numEmitted int
}

func NewLimit(limit int, child OpIterator) *Limit {
	return &Limit{limit: limit, child: child}
}

func (e *Limit) TupleDesc() *storage.TupleDesc {
	return e.child.TupleDesc()
}

func (e *Limit) Open() error {
	e.numEmitted = 0
	return e.child.Open()
}

func (e *Limit) HasNext() (bool, error) {
	if e.numEmitted >= e.limit {
		return false, nil
	}
	return e.child.HasNext()
}

func (e *Limit) Next() (*storage.Tuple, error) {
	if e.numEmitted >= e.limit {
		return nil, noSuchElement("limit")
	}
	t, err := e.child.Next()
	if err != nil {
		return nil, err
	}
	e.numEmitted++
	return t, nil
}

func (e *Limit) Rewind() error {
	e.numEmitted = 0
	return e.child.Rewind()
}

func (e *Limit) Close() {
	e.child.Close()
}
