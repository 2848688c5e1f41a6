package common

import (
	"errors"

	"github.com/tessera-db/tessera/lib/codec"
	"github.com/tessera-db/tessera/lib/engine"
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// ErrorKind classifies an error for wire transport so that clients can
// reconstruct a typed error on their side.
type ErrorKind uint8

const (
	EKOther ErrorKind = iota
	// EKEncoding: a codec rejected a value or an encoded fragment.
	EKEncoding
	// EKCorruptedFrame: a frame header failed its checksum.
	EKCorruptedFrame
	// EKInconsistentLength: a frame's payload length disagreed with the
	// header.
	EKInconsistentLength
	// EKClosed: the connection closed with requests in flight.
	EKClosed
	// EKBadVersion: protocol major version mismatch.
	EKBadVersion
	// EKStorage: the backing store reported an error.
	EKStorage
	// EKUnknownKeyspace: operation on a keyspace that was never registered.
	EKUnknownKeyspace
	// EKReadOnly: write on a read-only handle.
	EKReadOnly
	// EKTxnAborted: the transaction was aborted.
	EKTxnAborted
	// EKTxnFinished: operation on a committed or aborted transaction.
	EKTxnFinished
	// EKUnknownTxn: TxnID not owned by the session.
	EKUnknownTxn
)

func (k ErrorKind) String() string {
	switch k {
	case EKEncoding:
		return "encoding error"
	case EKCorruptedFrame:
		return "corrupted frame"
	case EKInconsistentLength:
		return "inconsistent frame length"
	case EKClosed:
		return "connection closed"
	case EKBadVersion:
		return "protocol version mismatch"
	case EKStorage:
		return "storage error"
	case EKUnknownKeyspace:
		return "unknown keyspace"
	case EKReadOnly:
		return "read-only violation"
	case EKTxnAborted:
		return "transaction aborted"
	case EKTxnFinished:
		return "transaction finished"
	case EKUnknownTxn:
		return "unknown transaction"
	default:
		return "error"
	}
}

// --------------------------------------------------------------------------
// Typed Error
// --------------------------------------------------------------------------

// Error is a typed rpc error, reconstructed by clients from the ErrKind
// and Err fields of an error response.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Is matches two Errors by kind, allowing errors.Is against a prototype.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// --------------------------------------------------------------------------
// Classification
// --------------------------------------------------------------------------

// Classify maps an engine or transport error to its wire kind and message.
func Classify(err error) (ErrorKind, string) {
	if err == nil {
		return EKOther, ""
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind, typed.Msg
	}
	var abort *engine.AbortError
	switch {
	case errors.As(err, &abort):
		return EKTxnAborted, abort.Error()
	case errors.Is(err, engine.ErrUnknownKeyspace):
		return EKUnknownKeyspace, err.Error()
	case errors.Is(err, engine.ErrTxnFinished):
		return EKTxnFinished, err.Error()
	case errors.Is(err, engine.ErrReadOnly):
		return EKReadOnly, err.Error()
	}
	var cerr *codec.Error
	if errors.As(err, &cerr) {
		return EKEncoding, err.Error()
	}
	return EKOther, err.Error()
}

// ResponseError reconstructs the typed error of an error response, or nil
// for a success response.
func ResponseError(msg *Message) error {
	if msg.Err == "" && msg.ErrKind == EKOther {
		return nil
	}
	if msg.Err == "" {
		return nil
	}
	return &Error{Kind: msg.ErrKind, Msg: msg.Err}
}
