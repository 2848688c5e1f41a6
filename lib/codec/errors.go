package codec

import "fmt"

// --------------------------------------------------------------------------
// Error Type
// --------------------------------------------------------------------------

// ErrKind classifies encoding errors.
type ErrKind uint8

const (
	// ErrKUnsatisfiedConstraint signals a value outside the codec's domain
	// (e.g. a negative value passed to PositiveInt64).
	ErrKUnsatisfiedConstraint ErrKind = iota
	// ErrKIncompleteFragment signals that the input ended in the middle of
	// an encoded value.
	ErrKIncompleteFragment
	// ErrKBadEncoding signals input bytes that no value encodes to.
	ErrKBadEncoding
	// ErrKUnknownTag signals a choice tag outside the declared range.
	ErrKUnknownTag
)

func (k ErrKind) String() string {
	switch k {
	case ErrKUnsatisfiedConstraint:
		return "UnsatisfiedConstraint"
	case ErrKIncompleteFragment:
		return "IncompleteFragment"
	case ErrKBadEncoding:
		return "BadEncoding"
	case ErrKUnknownTag:
		return "UnknownTag"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by all codecs in this package.
type Error struct {
	Kind ErrKind // Error classification
	Msg  string  // Human-readable detail
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("CodecError (%s): %s", e.Kind, e.Msg)
}

// Is reports whether target is a *Error with the same kind. This makes
// errors.Is(err, &Error{Kind: k}) usable for classification.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// --------------------------------------------------------------------------
// Error Constructors
// --------------------------------------------------------------------------

// errConstraint creates an UnsatisfiedConstraint error.
func errConstraint(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrKUnsatisfiedConstraint, Msg: fmt.Sprintf(format, args...)}
}

// errIncomplete creates an IncompleteFragment error for the given codec kind.
func errIncomplete(kind string) *Error {
	return &Error{Kind: ErrKIncompleteFragment, Msg: kind}
}

// errBadEncoding creates a BadEncoding error for the given codec kind.
func errBadEncoding(kind string) *Error {
	return &Error{Kind: ErrKBadEncoding, Msg: kind}
}

// errUnknownTag creates an UnknownTag error.
func errUnknownTag(tag int) *Error {
	return &Error{Kind: ErrKUnknownTag, Msg: fmt.Sprintf("tag %d", tag)}
}
