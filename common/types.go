package common

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"unicode/utf8"
)

const (
	// DefaultPageSize is the page size used when the configuration does not override it.
	DefaultPageSize int = 4096
	IntSize         int = 8
	StringLength    int = 32
)

type Type int8

const (
	// For uninitialized Values
	DefaultType Type = iota
	IntType
	StringType
)

// Size returns the fixed-width storage size of the type in bytes
func (t Type) Size() int {
	switch t {
	case IntType:
		return IntSize
	case StringType:
		return StringLength
	default:
		panic("unknown type")
	}
}

func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case StringType:
		return "string"
	}
	return "unknown"
}

// ParseType maps the textual name of a type (as written in schema files) back to a Type.
func ParseType(name string) (Type, error) {
	switch name {
	case "int":
		return IntType, nil
	case "string":
		return StringType, nil
	}
	return DefaultType, GoDBError{
		Code:      IllegalArgumentError,
		ErrString: fmt.Sprintf("unknown type %q", name),
	}
}

// FileID identifies a DbFile, and therefore the table stored in it.
type FileID uint32

const InvalidFileID FileID = 0

// PageID uniquely identifies a page within the database.
type PageID struct {
	File    FileID
	PageNum int32
}

func (p PageID) String() string {
	return fmt.Sprintf("Page(%d, %d)", p.File, p.PageNum)
}

// IsNil checks if the PageID is valid.
func (p PageID) IsNil() bool {
	return p.File == InvalidFileID
}

// RecordID identifies a specific tuple (row) in the database via its PageID and Slot index.
type RecordID struct {
	PageID
	Slot int32
}

// IsNil checks if the RecordID refers to a valid page.
func (r RecordID) IsNil() bool {
	return r.PageID.IsNil()
}

func (r RecordID) String() string {
	return fmt.Sprintf("rid(%s, %d)", r.PageID.String(), r.Slot)
}

type TransactionID uint64

const InvalidTransactionID TransactionID = 0

// Permission is the access intent declared when a page is fetched through the buffer pool.
type Permission int

const (
	ReadOnly Permission = iota
	ReadWrite
)

func (p Permission) String() string {
	if p == ReadWrite {
		return "READ_WRITE"
	}
	return "READ_ONLY"
}

// Value represents a (deserialized) data item in a tuple.
type Value struct {
	t   Type
	i   int64
	str string
}

// NewIntValue creates a new integer Value.
func NewIntValue(v int64) Value {
	return Value{t: IntType, i: v}
}

// NewStringValue creates a new string Value. Strings longer than StringLength bytes are cut back to
// the last whole UTF-8 character that fits.
func NewStringValue(v string) Value {
	if len(v) > StringLength {
		cut := StringLength
		for cut > 0 && !utf8.RuneStart(v[cut]) {
			cut--
		}
		v = v[:cut]
	}
	return Value{t: StringType, str: v}
}

// AsValue extracts a value of type t from a raw storage buffer. The result does not alias source.
func AsValue(t Type, source []byte) Value {
	Assert(len(source) >= t.Size(), "buffer too small for %s", t)
	switch t {
	case IntType:
		return NewIntValue(int64(binary.LittleEndian.Uint64(source)))
	case StringType:
		realLen := StringLength
		for i := 0; i < StringLength; i++ {
			if source[i] == 0 {
				realLen = i
				break
			}
		}
		return Value{t: StringType, str: string(source[:realLen])}
	}
	panic("unknown type")
}

// IsNil returns true if the Value is uninitialized.
func (v Value) IsNil() bool {
	return v.t == DefaultType
}

// Type returns the type of the Value.
func (v Value) Type() Type {
	return v.t
}

// IntValue returns the underlying integer.
func (v Value) IntValue() int64 {
	Assert(v.t == IntType, "type mismatch in IntValue")
	return v.i
}

// StringValue returns the underlying string.
func (v Value) StringValue() string {
	Assert(v.t == StringType, "type mismatch in StringValue")
	return v.str
}

// WriteTo serializes the Value into storage format.
func (v Value) WriteTo(data []byte) {
	Assert(len(data) >= v.t.Size(), "buffer too small")
	switch v.t {
	case IntType:
		binary.LittleEndian.PutUint64(data, uint64(v.i))
	case StringType:
		n := copy(data[:StringLength], v.str)
		clear(data[n:StringLength])
	default:
		panic("cannot serialize uninitialized value")
	}
}

// Compare compares two Values of the same type.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v Value) Compare(other Value) int {
	Assert(v.t == other.t, "type mismatch in comparison")
	switch v.t {
	case IntType:
		switch {
		case v.i < other.i:
			return -1
		case v.i > other.i:
			return 1
		}
		return 0
	case StringType:
		switch {
		case v.str < other.str:
			return -1
		case v.str > other.str:
			return 1
		}
		return 0
	}
	panic("unreachable")
}

func (v Value) String() string {
	switch v.t {
	case IntType:
		return strconv.FormatInt(v.i, 10)
	case StringType:
		return v.str
	}
	return "<nil>"
}
