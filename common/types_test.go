package common

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueSerialization(t *testing.T) {
	buf := make([]byte, StringLength)

	NewIntValue(-42).WriteTo(buf)
	assert.Equal(t, int64(-42), AsValue(IntType, buf).IntValue())

	NewStringValue("hello").WriteTo(buf)
	v := AsValue(StringType, buf)
	assert.Equal(t, "hello", v.StringValue())

	// A shorter string must not leave stale bytes of the previous one behind.
	NewStringValue("hi").WriteTo(buf)
	assert.Equal(t, "hi", AsValue(StringType, buf).StringValue())
}

func TestStringValueTruncated(t *testing.T) {
	long := "0123456789012345678901234567890123456789"
	v := NewStringValue(long)
	assert.Equal(t, long[:StringLength], v.StringValue())
}

func TestStringValueTruncatesAtRuneBoundary(t *testing.T) {
	prefix := strings.Repeat("a", StringLength-1)
	v := NewStringValue(prefix + "é")
	assert.Equal(t, prefix, v.StringValue(), "a rune that does not fit is dropped whole")
	assert.True(t, utf8.ValidString(v.StringValue()))

	buf := make([]byte, StringLength)
	v.WriteTo(buf)
	assert.Equal(t, prefix, AsValue(StringType, buf).StringValue())

	exact := strings.Repeat("é", StringLength/2)
	assert.Equal(t, exact, NewStringValue(exact+"x").StringValue())
}

func TestValueCompare(t *testing.T) {
	assert.Equal(t, -1, NewIntValue(1).Compare(NewIntValue(2)))
	assert.Equal(t, 0, NewIntValue(2).Compare(NewIntValue(2)))
	assert.Equal(t, 1, NewStringValue("b").Compare(NewStringValue("a")))
	assert.Panics(t, func() { NewIntValue(1).Compare(NewStringValue("1")) })
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("int")
	require.NoError(t, err)
	assert.Equal(t, IntType, typ)
	assert.Equal(t, 8, typ.Size())

	typ, err = ParseType("string")
	require.NoError(t, err)
	assert.Equal(t, StringLength, typ.Size())

	_, err = ParseType("float")
	assert.ErrorIs(t, err, ErrIllegalArgument)
}
