package codec

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// Codec describes an order-preserving binary encoding for values of type T.
//
// Encodings must be self-delimiting: Decode consumes exactly the bytes
// written by Encode and returns the remainder, so that codecs can be
// concatenated into tuple encodings.
//
// All implementations must satisfy, under bytewise comparison of encodings:
//
//   - v < w  ⟺  Encode(v) < Encode(w)  (in the codec's defined order)
//   - Min() ≤ v ≤ Max() for every representable v
//   - Succ and Pred saturate: Succ(Max()) = Max(), Pred(Min()) = Min()
type Codec[T any] interface {
	// Encode appends the encoding of v to dst and returns the extended
	// slice. A *Error with kind UnsatisfiedConstraint is returned if v is
	// outside the codec's domain.
	Encode(dst []byte, v T) ([]byte, error)

	// Decode reads one encoded value from the front of b and returns the
	// value and the unconsumed remainder.
	Decode(b []byte) (T, []byte, error)

	// Min returns the smallest representable value.
	Min() T

	// Max returns the largest representable value.
	Max() T

	// Succ returns the successor of v in the codec's order, saturating
	// at Max.
	Succ(v T) T

	// Pred returns the predecessor of v in the codec's order, saturating
	// at Min.
	Pred(v T) T

	// Pretty renders v for diagnostics.
	Pretty(v T) string
}

// EncodeToBytes is a convenience wrapper that encodes v into a fresh slice.
func EncodeToBytes[T any](c Codec[T], v T) ([]byte, error) {
	return c.Encode(nil, v)
}

// DecodeFull decodes one value from b and fails with a BadEncoding error
// if any input bytes remain.
func DecodeFull[T any](c Codec[T], b []byte) (T, error) {
	v, rest, err := c.Decode(b)
	if err != nil {
		return v, err
	}
	if len(rest) != 0 {
		return v, errBadEncoding("trailing bytes after value")
	}
	return v, nil
}
