// Package codec implements order-preserving binary encodings for typed
// values and tuples.
//
// Every codec guarantees that the byte-lexicographic order of its encodings
// matches the defined order of the values it encodes:
//
//	v < w  ⟺  Encode(v) < Encode(w)   (bytewise comparison)
//
// This property is what allows composite database keys to be stored in a
// flat, ordered key/value store and scanned with plain range iterators:
// concatenating the encodings of a tuple's components yields an encoding
// that sorts tuples component by component, as long as every component
// encoding is self-delimiting.
//
// The package provides primitive codecs (Byte, Bool, PositiveInt64,
// PositiveInt64Complement, SelfDelimitedString, Stringz), tuple codecs of
// arity 2 to 5, tagged-union codecs (Choice2..Choice5) and a Custom wrapper
// that re-labels an underlying codec with an external representation.
//
// Tuple codecs additionally support prefix-range operations (MinAt, MaxAt,
// LowerAt, UpperAt) used to derive scan bounds from a tuple prefix.
package codec
