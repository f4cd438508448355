package chaindict

import (
	"context"
	"errors"
	"fmt"
)

// Storage errors, returned by Store implementations.
var (
	// ErrNotFound is returned by Store.Get when no object exists at a key.
	ErrNotFound = errors.New("chaindict: not found")
	// ErrAlreadyExists is returned by Store.PutIfAbsent when an object already exists at a key.
	ErrAlreadyExists = errors.New("chaindict: already exists")
	// ErrBackendUnavailable wraps any other storage failure.
	ErrBackendUnavailable = errors.New("chaindict: backend unavailable")
)

// File errors, the affected file is unusable.
var (
	ErrTruncatedEntry     = errors.New("chaindict: truncated entry")
	ErrMalformedEntry     = errors.New("chaindict: malformed entry")
	ErrMalformedHeader    = errors.New("chaindict: malformed header")
	ErrUnsupportedVersion = errors.New("chaindict: unsupported version")
	ErrCorruptFile        = errors.New("chaindict: corrupt file")
)

// Chain errors, the persisted chain is inconsistent.
var (
	ErrBrokenChain    = errors.New("chaindict: broken chain")
	ErrMissingDelta   = errors.New("chaindict: missing delta")
	ErrDuplicateID    = errors.New("chaindict: duplicate id")
	ErrDuplicateValue = errors.New("chaindict: duplicate value")
)

var (
	// ErrConflict is returned by Extender.Extend when another writer claimed
	// the link first. Refresh the chain and retry.
	ErrConflict = errors.New("chaindict: concurrent extension conflict")
	// ErrDeltaNotAvailable is returned by Resolver.DeltaOnly for links which
	// were written with a snapshot only.
	ErrDeltaNotAvailable = errors.New("chaindict: delta not available")
	// ErrLinkNotFound is returned when a link index is beyond the end of the chain.
	ErrLinkNotFound = errors.New("chaindict: link not found")
	// ErrTooManyEntries is returned when a chain would exceed MaxEntries.
	ErrTooManyEntries = errors.New("chaindict: too many entries")
)

var errWriterFinished = errors.New("chaindict: writer is finished")

// Class groups errors by the reaction they require.
type Class int

// Error classes.
const (
	// ClassNone is the class of a nil error.
	ClassNone Class = iota
	// ClassTransient errors can be retried.
	ClassTransient
	// ClassFile errors make a single file unusable.
	ClassFile
	// ClassChain errors make the whole chain unusable and need operator attention.
	ClassChain
	// ClassNoData marks expected outcomes which carry no data.
	ClassNoData
	// ClassOther is any other error, usually caused by invalid arguments.
	ClassOther
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassTransient:
		return "transient"
	case ClassFile:
		return "file"
	case ClassChain:
		return "chain"
	case ClassNoData:
		return "no-data"
	default:
		return "other"
	}
}

// Classify returns the class of err.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrDeltaNotAvailable):
		return ClassNoData
	case errors.Is(err, ErrBrokenChain),
		errors.Is(err, ErrMissingDelta),
		errors.Is(err, ErrDuplicateID),
		errors.Is(err, ErrDuplicateValue),
		errors.Is(err, ErrNotFound):
		return ClassChain
	case errors.Is(err, ErrCorruptFile),
		errors.Is(err, ErrMalformedHeader),
		errors.Is(err, ErrUnsupportedVersion),
		errors.Is(err, ErrTruncatedEntry),
		errors.Is(err, ErrMalformedEntry):
		return ClassFile
	case errors.Is(err, ErrBackendUnavailable),
		errors.Is(err, ErrConflict),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return ClassTransient
	default:
		return ClassOther
	}
}

// IsRetryable returns true if the operation which returned err can be retried.
func IsRetryable(err error) bool { return Classify(err) == ClassTransient }

// IsFatal returns true if err indicates unusable persisted data.
func IsFatal(err error) bool {
	c := Classify(err)
	return c == ClassFile || c == ClassChain
}

// wrapBackend annotates store errors. Sentinels known to the package are
// passed through, everything else becomes ErrBackendUnavailable.
func wrapBackend(op, key string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrBackendUnavailable),
		Classify(err) == ClassFile:
		return fmt.Errorf("chaindict: %s %s: %w", op, key, err)
	default:
		return fmt.Errorf("%w: %s %s: %w", ErrBackendUnavailable, op, key, err)
	}
}
