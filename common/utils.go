package common

import (
	"fmt"

	"github.com/spaolacci/murmur3"
)

// Assert checks a condition and panics if it is false.
//
// Use it for invariants of the engine itself (an impossible slot index, a page image of the
// wrong length built by our own code). Conditions a caller can trigger, such as a bad field
// index or a page number past the end of the file, are returned as GoDBErrors instead.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}

// Hash32 computes the 32-bit murmur3 hash of data. The result is stable across processes and
// platforms, which makes it suitable for identities that are persisted or recomputed on restart.
func Hash32(data []byte) uint32 {
	return murmur3.Sum32(data)
}
