package storage

import (
	"encoding/binary"
	"fmt"
	"strings"

	"mit.edu/dsg/heapdb/common"
)

// absentName is what a missing field name or alias renders as when printed or prefixed.
const absentName = "null"

// FieldDesc describes one column of a schema. An empty Name means the field is unnamed.
type FieldDesc struct {
	Type common.Type
	Name string
}

func (f FieldDesc) String() string {
	name := f.Name
	if name == "" {
		name = absentName
	}
	return fmt.Sprintf("%s(%s)", f.Type, name)
}

// TupleDesc describes the schema of a tuple: an ordered list of typed, optionally named fields.
//
// A TupleDesc is immutable once constructed. Every operation that "changes" a schema (Merge,
// WithAlias) returns a new value, so descriptors can be shared freely between operators and
// goroutines by pointer.
type TupleDesc struct {
	fields []FieldDesc
	size   int
}

func newTupleDesc(fields []FieldDesc) *TupleDesc {
	size := 0
	for _, f := range fields {
		size += f.Type.Size()
	}
	return &TupleDesc{fields: fields, size: size}
}

// NewTupleDesc creates a descriptor with len(types) fields. names may be nil, in which case every
// field is unnamed; otherwise it must have the same length as types, and individual entries may be
// empty.
func NewTupleDesc(types []common.Type, names []string) (*TupleDesc, error) {
	if len(types) == 0 {
		return nil, common.NewError(common.IllegalArgumentError, "a tuple descriptor needs at least one field")
	}
	if names != nil && len(names) != len(types) {
		return nil, common.NewError(common.IllegalArgumentError,
			"got %d field names for %d field types", len(names), len(types))
	}
	fields := make([]FieldDesc, len(types))
	for i, t := range types {
		if t != common.IntType && t != common.StringType {
			return nil, common.NewError(common.IllegalArgumentError, "field %d has unsupported type %d", i, t)
		}
		fields[i].Type = t
		if names != nil {
			fields[i].Name = names[i]
		}
	}
	return newTupleDesc(fields), nil
}

// NewUnnamedTupleDesc creates a descriptor whose fields have no names.
func NewUnnamedTupleDesc(types ...common.Type) (*TupleDesc, error) {
	return NewTupleDesc(types, nil)
}

// NumFields returns the number of fields in this TupleDesc.
func (td *TupleDesc) NumFields() int {
	return len(td.fields)
}

func (td *TupleDesc) checkIndex(i int) error {
	if i < 0 || i >= len(td.fields) {
		return common.NewError(common.IndexOutOfRangeError,
			"field index %d out of range [0, %d)", i, len(td.fields))
	}
	return nil
}

// FieldName returns the (possibly empty) name of the i-th field.
func (td *TupleDesc) FieldName(i int) (string, error) {
	if err := td.checkIndex(i); err != nil {
		return "", err
	}
	return td.fields[i].Name, nil
}

// FieldType returns the type of the i-th field.
func (td *TupleDesc) FieldType(i int) (common.Type, error) {
	if err := td.checkIndex(i); err != nil {
		return common.DefaultType, err
	}
	return td.fields[i].Type, nil
}

// FieldIndex returns the index of the first field named exactly name. Unnamed fields never match,
// so looking up "" always fails with FieldNotFoundError.
func (td *TupleDesc) FieldIndex(name string) (int, error) {
	if name != "" {
		for i, f := range td.fields {
			if f.Name == name {
				return i, nil
			}
		}
	}
	return -1, common.NewError(common.FieldNotFoundError, "no field named %q in %s", name, td)
}

// Size returns the number of bytes a tuple of this schema occupies on a page.
func (td *TupleDesc) Size() int {
	return td.size
}

// Fields returns a copy of the field descriptors.
func (td *TupleDesc) Fields() []FieldDesc {
	return append([]FieldDesc(nil), td.fields...)
}

// Types returns a copy of the field types, in order.
func (td *TupleDesc) Types() []common.Type {
	types := make([]common.Type, len(td.fields))
	for i, f := range td.fields {
		types[i] = f.Type
	}
	return types
}

// Merge returns a new descriptor with the fields of a followed by the fields of b.
func Merge(a, b *TupleDesc) *TupleDesc {
	fields := make([]FieldDesc, 0, len(a.fields)+len(b.fields))
	fields = append(fields, a.fields...)
	fields = append(fields, b.fields...)
	return newTupleDesc(fields)
}

// WithAlias returns a copy whose field names are prefixed with "alias.". A missing alias or field
// name is rendered as "null", so the result may contain names like "null.id" or "t.null".
func (td *TupleDesc) WithAlias(alias string) *TupleDesc {
	if alias == "" {
		alias = absentName
	}
	fields := make([]FieldDesc, len(td.fields))
	for i, f := range td.fields {
		name := f.Name
		if name == "" {
			name = absentName
		}
		fields[i] = FieldDesc{Type: f.Type, Name: alias + "." + name}
	}
	return newTupleDesc(fields)
}

// Equals reports whether two descriptors have the same number of fields with the same types in
// the same order. Names are not compared: an aliased schema equals its source.
func (td *TupleDesc) Equals(other *TupleDesc) bool {
	if td == other {
		return true
	}
	if td == nil || other == nil || len(td.fields) != len(other.fields) {
		return false
	}
	for i := range td.fields {
		if td.fields[i].Type != other.fields[i].Type {
			return false
		}
	}
	return true
}

// Key returns a comparable encoding of the type sequence. Two descriptors have the same Key
// exactly when Equals holds, so it can be used as a Go map key.
func (td *TupleDesc) Key() string {
	var sb strings.Builder
	sb.Grow(len(td.fields))
	for _, f := range td.fields {
		sb.WriteByte(byte(f.Type))
	}
	return sb.String()
}

// Hash returns a hash of the type sequence, consistent with Equals.
func (td *TupleDesc) Hash() uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(len(td.fields)))
	return common.Hash32(append(buf[:], td.Key()...))
}

func (td *TupleDesc) String() string {
	parts := make([]string, len(td.fields))
	for i, f := range td.fields {
		parts[i] = f.String()
	}
	return strings.Join(parts, " ")
}
