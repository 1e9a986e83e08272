package execution

import (
	"fmt"

	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

type ComparisonType int

const (
	Equal ComparisonType = iota
	NotEqual
	GreaterThan
	LessThan
	GreaterThanOrEqual
	LessThanOrEqual
)

func (c ComparisonType) String() string {
	switch c {
	case Equal:
		return "="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case LessThan:
		return "<"
	case GreaterThanOrEqual:
		return ">="
	case LessThanOrEqual:
		return "<="
	}
	return "???"
}

// Predicate compares one field of a tuple against a constant.
type Predicate struct {
	Field    int
	CompType ComparisonType
	Operand  common.Value
}

func (p Predicate) String() string {
	return fmt.Sprintf("$%d %s %s", p.Field, p.CompType, p.Operand)
}

// Eval applies the predicate to t. Unset values and values of a different type never match.
func (p Predicate) Eval(t *storage.Tuple) (bool, error) {
	v, err := t.Value(p.Field)
	if err != nil {
		return false, err
	}
	if v.IsNil() || v.Type() != p.Operand.Type() {
		return false, nil
	}

	cmp := v.Compare(p.Operand)
	switch p.CompType {
	case Equal:
		return cmp == 0, nil
	case NotEqual:
		return cmp != 0, nil
	case GreaterThan:
		return cmp > 0, nil
	case LessThan:
		return cmp < 0, nil
	case GreaterThanOrEqual:
		return cmp >= 0, nil
	case LessThanOrEqual:
		return cmp <= 0, nil
	}
	return false, common.NewError(common.IllegalArgumentError, "unknown comparison %d", p.CompType)
}

// Filter passes on the tuples of its child that satisfy a predicate.
type Filter struct {
	pred  Predicate
	child OpIterator

	// next is the matching tuple found by HasNext but not yet returned
	next *storage.Tuple
}

func NewFilter(pred Predicate, child OpIterator) *Filter {
	return &Filter{pred: pred, child: child}
}

func (e *Filter) TupleDesc() *storage.TupleDesc {
	return e.child.TupleDesc()
}

func (e *Filter) Open() error {
	e.next = nil
	return e.child.Open()
}

func (e *Filter) HasNext() (bool, error) {
	for e.next == nil {
		hasNext, err := e.child.HasNext()
		if err != nil || !hasNext {
			return false, err
		}
		t, err := e.child.Next()
		if err != nil {
			return false, err
		}
		ok, err := e.pred.Eval(t)
		if err != nil {
			return false, err
		}
		if ok {
			e.next = t
		}
	}
	return true, nil
}

func (e *Filter) Next() (*storage.Tuple, error) {
	hasNext, err := e.HasNext()
	if err != nil {
		return nil, err
	}
	if !hasNext {
		return nil, noSuchElement("filter")
	}
	t := e.next
	e.next = nil
	return t, nil
}

func (e *Filter) Rewind() error {
	e.next = nil
	return e.child.Rewind()
}

func (e *Filter) Close() {
	e.next = nil
	e.child.Close()
}
