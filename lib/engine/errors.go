package engine

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Logical Errors
// --------------------------------------------------------------------------

var (
	// ErrUnknownKeyspace is returned for operations on a keyspace that was
	// never registered.
	ErrUnknownKeyspace = errors.New("unknown keyspace")

	// ErrReadOnly is returned for writes through a read-only handle.
	ErrReadOnly = errors.New("read-only violation")

	// ErrTxnFinished is returned for operations on a committed or aborted
	// transaction.
	ErrTxnFinished = errors.New("transaction already finished")
)

// --------------------------------------------------------------------------
// Transaction Abort
// --------------------------------------------------------------------------

// AbortError wraps the error that caused a transaction to abort.
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("transaction aborted: %v", e.Cause)
}

func (e *AbortError) Unwrap() error { return e.Cause }
