package common

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

type GoDBErrorCode int

const (
	// IndexOutOfRangeError indicates a field index outside [0, NumFields()).
	IndexOutOfRangeError GoDBErrorCode = iota
	// FieldNotFoundError indicates a field-name lookup with no matching field.
	FieldNotFoundError
	// NoSuchElementError is returned by Next() on an iterator that has nothing left to
	// produce, or that was never opened.
	NoSuchElementError
	// PageNotInFileError indicates a page number outside [0, NumPages()) of a file, or a
	// page that belongs to a different file.
	PageNotInFileError
	// IOError wraps a failure of the underlying storage medium (including short reads).
	IOError
	// IllegalArgumentError indicates a malformed request by the caller.
	IllegalArgumentError
	// NoSuchObjectError indicates a request for a table that does not exist in the catalog.
	NoSuchObjectError
	// DuplicateObjectError indicates an attempt to register a table whose identity is
	// already taken by a different file.
	DuplicateObjectError
	// TransactionAbortedError is returned when a transaction could not obtain a lock in
	// time and must be aborted by its owner.
	TransactionAbortedError
	// BufferPoolFullError indicates that no page could be evicted because every cached page is
	// dirty.
	BufferPoolFullError
)

func (ec GoDBErrorCode) String() string {
	switch ec {
	case IndexOutOfRangeError:
		return "IndexOutOfRangeError"
	case FieldNotFoundError:
		return "FieldNotFoundError"
	case NoSuchElementError:
		return "NoSuchElementError"
	case PageNotInFileError:
		return "PageNotInFileError"
	case IOError:
		return "IOError"
	case IllegalArgumentError:
		return "IllegalArgumentError"
	case NoSuchObjectError:
		return "NoSuchObjectError"
	case DuplicateObjectError:
		return "DuplicateObjectError"
	case TransactionAbortedError:
		return "TransactionAbortedError"
	case BufferPoolFullError:
		return "BufferPoolFullError"
	}
	return "unknown"
}

// GoDBError is the custom error type for the storage engine.
// It wraps a specific GoDBErrorCode with a detailed message, and optionally the lower-level
// error that caused it.
//
// Two GoDBErrors match under errors.Is when their codes are equal, so callers can test for
// a kind of failure with the sentinel values below:
//
//	if errors.Is(err, common.ErrNoSuchElement) { ... }
type GoDBError struct {
	Code      GoDBErrorCode
	ErrString string
	Cause     error
}

func (e GoDBError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("err: %s; msg: %s; cause: %v", e.Code.String(), e.ErrString, e.Cause)
	}
	return fmt.Sprintf("err: %s; msg: %s", e.Code.String(), e.ErrString)
}

func (e GoDBError) Unwrap() error {
	return e.Cause
}

func (e GoDBError) Is(target error) bool {
	var other GoDBError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

var (
	ErrIndexOutOfRange    = GoDBError{Code: IndexOutOfRangeError}
	ErrFieldNotFound      = GoDBError{Code: FieldNotFoundError}
	ErrNoSuchElement      = GoDBError{Code: NoSuchElementError}
	ErrPageNotInFile      = GoDBError{Code: PageNotInFileError}
	ErrIO                 = GoDBError{Code: IOError}
	ErrIllegalArgument    = GoDBError{Code: IllegalArgumentError}
	ErrNoSuchObject       = GoDBError{Code: NoSuchObjectError}
	ErrDuplicateObject    = GoDBError{Code: DuplicateObjectError}
	ErrTransactionAborted = GoDBError{Code: TransactionAbortedError}
	ErrBufferPoolFull     = GoDBError{Code: BufferPoolFullError}
)

// NewError builds a GoDBError with a formatted message.
func NewError(code GoDBErrorCode, format string, args ...any) GoDBError {
	return GoDBError{Code: code, ErrString: fmt.Sprintf(format, args...)}
}

// WrapIOError annotates an error from the OS with context and a stack trace and classifies
// it as an IOError. It returns nil if err is nil.
func WrapIOError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return GoDBError{
		Code:      IOError,
		ErrString: msg,
		Cause:     pkgerrors.Wrap(err, msg),
	}
}

// CodeOf returns the code of the first GoDBError in err's chain.
func CodeOf(err error) (GoDBErrorCode, bool) {
	var gerr GoDBError
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	return 0, false
}
