package storage

import (
	"strings"

	"mit.edu/dsg/heapdb/common"
)

// Tuple is a row: a value for every field of its TupleDesc, plus the RecordID of the slot it was
// read from (nil for tuples that have not been stored yet).
type Tuple struct {
	desc   *TupleDesc
	values []common.Value
	rid    common.RecordID
}

// NewTuple creates a tuple of the given schema. Values may be omitted and set later with SetValue;
// if supplied, there must be one per field and each must match the field's type.
func NewTuple(desc *TupleDesc, values ...common.Value) (*Tuple, error) {
	t := &Tuple{desc: desc, values: make([]common.Value, desc.NumFields())}
	if len(values) == 0 {
		return t, nil
	}
	if len(values) != desc.NumFields() {
		return nil, common.NewError(common.IllegalArgumentError,
			"got %d values for a schema of %d fields", len(values), desc.NumFields())
	}
	for i, v := range values {
		if err := t.SetValue(i, v); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ReadTuple deserializes a tuple of the given schema from buf.
func ReadTuple(desc *TupleDesc, buf []byte, rid common.RecordID) *Tuple {
	common.Assert(len(buf) >= desc.Size(), "tuple buffer too small")
	t := &Tuple{desc: desc, values: make([]common.Value, desc.NumFields()), rid: rid}
	offset := 0
	for i, f := range desc.fields {
		t.values[i] = common.AsValue(f.Type, buf[offset:])
		offset += f.Type.Size()
	}
	return t
}

// Desc returns the schema of the tuple.
func (t *Tuple) Desc() *TupleDesc {
	return t.desc
}

// NumFields returns the number of fields in the tuple.
func (t *Tuple) NumFields() int {
	return len(t.values)
}

// Value returns the value of field i.
func (t *Tuple) Value(i int) (common.Value, error) {
	if err := t.desc.checkIndex(i); err != nil {
		return common.Value{}, err
	}
	return t.values[i], nil
}

// SetValue replaces the value of field i.
func (t *Tuple) SetValue(i int, v common.Value) error {
	typ, err := t.desc.FieldType(i)
	if err != nil {
		return err
	}
	if v.Type() != typ {
		return common.NewError(common.IllegalArgumentError,
			"field %d has type %s, got a %s value", i, typ, v.Type())
	}
	t.values[i] = v
	return nil
}

// RID returns the RecordID of the tuple, or a nil RecordID if it has not been stored.
func (t *Tuple) RID() common.RecordID {
	return t.rid
}

// SetRID records where the tuple is stored.
func (t *Tuple) SetRID(rid common.RecordID) {
	t.rid = rid
}

// Copy returns a tuple with the same schema, values and RecordID that shares no state with t.
func (t *Tuple) Copy() *Tuple {
	return &Tuple{desc: t.desc, values: append([]common.Value(nil), t.values...), rid: t.rid}
}

// WriteTo serializes the tuple in its on-page format. buf must hold at least Desc().Size() bytes.
func (t *Tuple) WriteTo(buf []byte) {
	common.Assert(len(buf) >= t.desc.Size(), "tuple buffer too small")
	offset := 0
	for i, v := range t.values {
		typ := t.desc.fields[i].Type
		if v.IsNil() {
			clear(buf[offset : offset+typ.Size()])
		} else {
			v.WriteTo(buf[offset:])
		}
		offset += typ.Size()
	}
}

// Equals reports whether two tuples have equal schemas and equal values. RecordIDs are ignored.
func (t *Tuple) Equals(other *Tuple) bool {
	if !t.desc.Equals(other.desc) {
		return false
	}
	for i := range t.values {
		if t.values[i].IsNil() != other.values[i].IsNil() {
			return false
		}
		if !t.values[i].IsNil() && t.values[i].Compare(other.values[i]) != 0 {
			return false
		}
	}
	return true
}

// String renders the values tab-separated, in field order.
func (t *Tuple) String() string {
	parts := make([]string, len(t.values))
	for i, v := range t.values {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\t")
}
