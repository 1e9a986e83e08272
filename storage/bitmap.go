package storage

import (
	"math/bits"

	"mit.edu/dsg/heapdb/common"
)

// Bitmap provides a convenient interface for manipulating bits in a byte slice.
// It does not own the underlying bytes; instead, it provides a structured view over
// an existing buffer (e.g., the header of a heap page).
//
// Bit i lives in byte i/8 at position i%8, least significant bit first.
type Bitmap struct {
	bytes   []byte
	numBits int
}

// AsBitmap creates a Bitmap view of numBits bits over data.
func AsBitmap(data []byte, numBits int) Bitmap {
	common.Assert(len(data) >= (numBits+7)/8, "bitmap buffer too small")
	return Bitmap{bytes: data[:(numBits+7)/8], numBits: numBits}
}

// Len returns the number of bits in the bitmap.
func (b Bitmap) Len() int {
	return b.numBits
}

// SetBit sets the bit at index i to the given value.
// Returns the previous value of the bit.
func (b Bitmap) SetBit(i int, on bool) (originalValue bool) {
	common.Assert(i >= 0 && i < b.numBits, "bit index %d out of bounds", i)
	mask := byte(1) << uint(i%8)
	ptr := &b.bytes[i/8]
	originalValue = *ptr&mask != 0
	if on {
		*ptr |= mask
	} else {
		*ptr &^= mask
	}
	return originalValue
}

// LoadBit returns the value of the bit at index i.
func (b Bitmap) LoadBit(i int) bool {
	common.Assert(i >= 0 && i < b.numBits, "bit index %d out of bounds", i)
	return b.bytes[i/8]&(byte(1)<<uint(i%8)) != 0
}

// FindFirstZero returns the lowest index whose bit is 0, or -1 if every bit is set.
func (b Bitmap) FindFirstZero() int {
	for byteIdx, v := range b.bytes {
		// Skip full bytes
		if v == 0xFF {
			continue
		}
		i := byteIdx*8 + bits.TrailingZeros8(^v)
		if i < b.numBits {
			return i
		}
		return -1
	}
	return -1
}

// Count returns the number of set bits.
func (b Bitmap) Count() int {
	n := 0
	for byteIdx, v := range b.bytes {
		if byteIdx == len(b.bytes)-1 && b.numBits%8 != 0 {
			// ignore padding bits past numBits
			v &= byte(1)<<uint(b.numBits%8) - 1
		}
		n += bits.OnesCount8(v)
	}
	return n
}
