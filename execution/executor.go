package execution

import (
	"mit.edu/dsg/heapdb/common"
	"mit.edu/dsg/heapdb/storage"
)

// OpIterator is the interface that all physical execution nodes implement. Operators form a tree
// and pull tuples from their children one at a time.
//
// The usual life cycle is Open, then HasNext/Next until HasNext reports false, then Close. An
// operator that is not open reports no tuples.
type OpIterator interface {
	// Open prepares the operator (and its children) to produce tuples.
	Open() error

	// HasNext reports whether Next would return a tuple.
	HasNext() (bool, error)

	// Next returns the next tuple, or a NoSuchElementError if there is none.
	Next() (*storage.Tuple, error)

	// Rewind restarts the operator from its first tuple.
	Rewind() error

	// Close releases the operator's resources. It is safe to call more than once.
	Close()

	// TupleDesc returns the schema of the tuples the operator produces.
	TupleDesc() *storage.TupleDesc
}

// Drain collects every remaining tuple of an open operator.
func Drain(op OpIterator) ([]*storage.Tuple, error) {
	var out []*storage.Tuple
	for {
		hasNext, err := op.HasNext()
		if err != nil {
			return out, err
		}
		if !hasNext {
			return out, nil
		}
		t, err := op.Next()
		if err != nil {
			return out, err
		}
		out = append(out, t)
	}
}

// countDesc is the schema of the single tuple Insert and Delete report.
func countDesc() *storage.TupleDesc {
	desc, err := storage.NewTupleDesc([]common.Type{common.IntType}, []string{"count"})
	common.Assert(err == nil, "count schema: %v", err)
	return desc
}

func noSuchElement(op string) error {
	return common.NewError(common.NoSuchElementError, "%s has no more tuples", op)
}

func notOpened(op string) error {
	return common.NewError(common.IllegalArgumentError, "%s not opened", op)
}
