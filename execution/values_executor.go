package execution

import (
	"mit.edu/dsg/heapdb/storage"
)

// Values produces a fixed list of tuples held in memory.
type Values struct {
	desc   *storage.TupleDesc
	tuples []*storage.Tuple

	opened bool
	pos    int
}

func NewValues(desc *storage.TupleDesc, tuples []*storage.Tuple) *Values {
	return &Values{desc: desc, tuples: tuples}
}

func (e *Values) TupleDesc() *storage.TupleDesc {
	return e.desc
}

func (e *Values) Open() error {
	e.opened = true
	e.pos = 0
	return nil
}

func (e *Values) HasNext() (bool, error) {
	return e.opened && e.pos < len(e.tuples), nil
}

func (e *Values) Next() (*storage.Tuple, error) {
	if !e.opened || e.pos >= len(e.tuples) {
		return nil, noSuchElement("values")
	}
	t := e.tuples[e.pos]
	e.pos++
	return t, nil
}

func (e *Values) Rewind() error {
	if !e.opened {
		return notOpened("values")
	}
	e.pos = 0
	return nil
}

func (e *Values) Close() {
	e.opened = false
}
