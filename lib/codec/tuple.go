package codec

import (
	"bytes"
	"fmt"
)

// --------------------------------------------------------------------------
// Tuple Value Types
// --------------------------------------------------------------------------

// Pair is the value type of Tuple2 codecs.
type Pair[A, B any] struct {
	A A
	B B
}

// Triple is the value type of Tuple3 codecs.
type Triple[A, B, C any] struct {
	A A
	B B
	C C
}

// Quad is the value type of Tuple4 codecs.
type Quad[A, B, C, D any] struct {
	A A
	B B
	C C
	D D
}

// Quint is the value type of Tuple5 codecs.
type Quint[A, B, C, D, E any] struct {
	A A
	B B
	C C
	D D
	E E
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// sameEncoding reports whether v and w have identical encodings under c.
// Used to detect saturation of Succ/Pred without requiring comparable
// component types.
func sameEncoding[T any](c Codec[T], v, w T) bool {
	ev, errV := c.Encode(nil, v)
	ew, errW := c.Encode(nil, w)
	if errV != nil || errW != nil {
		return false
	}
	return bytes.Equal(ev, ew)
}

// checkArity validates a prefix length k against the tuple arity n.
func checkArity(k, n int) error {
	if k < 0 || k > n {
		return errConstraint("prefix length %d out of range for %d-tuple", k, n)
	}
	return nil
}

// --------------------------------------------------------------------------
// Tuple2
// --------------------------------------------------------------------------

// Tuple2Codec encodes a pair as the concatenation of its component
// encodings. Order preservation follows from every component encoding
// being self-delimiting.
type Tuple2Codec[A, B any] struct {
	First  Codec[A]
	Second Codec[B]
}

// Tuple2 builds a pair codec from two component codecs.
func Tuple2[A, B any](a Codec[A], b Codec[B]) Tuple2Codec[A, B] {
	return Tuple2Codec[A, B]{First: a, Second: b}
}

func (c Tuple2Codec[A, B]) Encode(dst []byte, v Pair[A, B]) ([]byte, error) {
	dst, err := c.First.Encode(dst, v.A)
	if err != nil {
		return dst, err
	}
	return c.Second.Encode(dst, v.B)
}

func (c Tuple2Codec[A, B]) Decode(b []byte) (Pair[A, B], []byte, error) {
	var v Pair[A, B]
	var err error
	if v.A, b, err = c.First.Decode(b); err != nil {
		return v, nil, err
	}
	if v.B, b, err = c.Second.Decode(b); err != nil {
		return v, nil, err
	}
	return v, b, nil
}

func (c Tuple2Codec[A, B]) Min() Pair[A, B] {
	return Pair[A, B]{A: c.First.Min(), B: c.Second.Min()}
}

func (c Tuple2Codec[A, B]) Max() Pair[A, B] {
	return Pair[A, B]{A: c.First.Max(), B: c.Second.Max()}
}

// Succ advances the tuple with right-to-left carry: the last component is
// advanced; if it was already saturated the carry moves left.
func (c Tuple2Codec[A, B]) Succ(v Pair[A, B]) Pair[A, B] {
	next := c.Second.Succ(v.B)
	if !sameEncoding[B](c.Second, next, v.B) {
		v.B = next
		return v
	}
	v.A = c.First.Succ(v.A)
	return v
}

// Pred is the right-to-left carrying counterpart of Succ.
func (c Tuple2Codec[A, B]) Pred(v Pair[A, B]) Pair[A, B] {
	prev := c.Second.Pred(v.B)
	if !sameEncoding[B](c.Second, prev, v.B) {
		v.B = prev
		return v
	}
	v.A = c.First.Pred(v.A)
	return v
}

func (c Tuple2Codec[A, B]) Pretty(v Pair[A, B]) string {
	return fmt.Sprintf("(%s, %s)", c.First.Pretty(v.A), c.Second.Pretty(v.B))
}

// MinAt keeps the first k components of v and replaces the remaining ones
// with their codecs' Min. Used to form the inclusive lower bound of a
// prefix range.
func (c Tuple2Codec[A, B]) MinAt(v Pair[A, B], k int) (Pair[A, B], error) {
	if err := checkArity(k, 2); err != nil {
		return v, err
	}
	if k < 2 {
		v.B = c.Second.Min()
	}
	if k < 1 {
		v.A = c.First.Min()
	}
	return v, nil
}

// MaxAt keeps the first k components of v and replaces the remaining ones
// with their codecs' Max. Used to form the upper bound of a prefix range.
func (c Tuple2Codec[A, B]) MaxAt(v Pair[A, B], k int) (Pair[A, B], error) {
	if err := checkArity(k, 2); err != nil {
		return v, err
	}
	if k < 2 {
		v.B = c.Second.Max()
	}
	if k < 1 {
		v.A = c.First.Max()
	}
	return v, nil
}

// LowerAt replaces component k (1-based) with its predecessor, forming an
// exclusive lower bound at that position.
func (c Tuple2Codec[A, B]) LowerAt(v Pair[A, B], k int) (Pair[A, B], error) {
	switch k {
	case 1:
		v.A = c.First.Pred(v.A)
	case 2:
		v.B = c.Second.Pred(v.B)
	default:
		return v, errConstraint("position %d out of range for 2-tuple", k)
	}
	return v, nil
}

// UpperAt replaces component k (1-based) with its successor, forming an
// exclusive upper bound at that position.
func (c Tuple2Codec[A, B]) UpperAt(v Pair[A, B], k int) (Pair[A, B], error) {
	switch k {
	case 1:
		v.A = c.First.Succ(v.A)
	case 2:
		v.B = c.Second.Succ(v.B)
	default:
		return v, errConstraint("position %d out of range for 2-tuple", k)
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Tuple3
// --------------------------------------------------------------------------

// Tuple3Codec encodes a triple as the concatenation of its component
// encodings.
type Tuple3Codec[A, B, C any] struct {
	First  Codec[A]
	Second Codec[B]
	Third  Codec[C]
}

// Tuple3 builds a triple codec from three component codecs.
func Tuple3[A, B, C any](a Codec[A], b Codec[B], cc Codec[C]) Tuple3Codec[A, B, C] {
	return Tuple3Codec[A, B, C]{First: a, Second: b, Third: cc}
}

func (c Tuple3Codec[A, B, C]) Encode(dst []byte, v Triple[A, B, C]) ([]byte, error) {
	dst, err := c.First.Encode(dst, v.A)
	if err != nil {
		return dst, err
	}
	if dst, err = c.Second.Encode(dst, v.B); err != nil {
		return dst, err
	}
	return c.Third.Encode(dst, v.C)
}

func (c Tuple3Codec[A, B, C]) Decode(b []byte) (Triple[A, B, C], []byte, error) {
	var v Triple[A, B, C]
	var err error
	if v.A, b, err = c.First.Decode(b); err != nil {
		return v, nil, err
	}
	if v.B, b, err = c.Second.Decode(b); err != nil {
		return v, nil, err
	}
	if v.C, b, err = c.Third.Decode(b); err != nil {
		return v, nil, err
	}
	return v, b, nil
}

func (c Tuple3Codec[A, B, C]) Min() Triple[A, B, C] {
	return Triple[A, B, C]{A: c.First.Min(), B: c.Second.Min(), C: c.Third.Min()}
}

func (c Tuple3Codec[A, B, C]) Max() Triple[A, B, C] {
	return Triple[A, B, C]{A: c.First.Max(), B: c.Second.Max(), C: c.Third.Max()}
}

func (c Tuple3Codec[A, B, C]) Succ(v Triple[A, B, C]) Triple[A, B, C] {
	if next := c.Third.Succ(v.C); !sameEncoding[C](c.Third, next, v.C) {
		v.C = next
		return v
	}
	if next := c.Second.Succ(v.B); !sameEncoding[B](c.Second, next, v.B) {
		v.B = next
		return v
	}
	v.A = c.First.Succ(v.A)
	return v
}

func (c Tuple3Codec[A, B, C]) Pred(v Triple[A, B, C]) Triple[A, B, C] {
	if prev := c.Third.Pred(v.C); !sameEncoding[C](c.Third, prev, v.C) {
		v.C = prev
		return v
	}
	if prev := c.Second.Pred(v.B); !sameEncoding[B](c.Second, prev, v.B) {
		v.B = prev
		return v
	}
	v.A = c.First.Pred(v.A)
	return v
}

func (c Tuple3Codec[A, B, C]) Pretty(v Triple[A, B, C]) string {
	return fmt.Sprintf("(%s, %s, %s)",
		c.First.Pretty(v.A), c.Second.Pretty(v.B), c.Third.Pretty(v.C))
}

func (c Tuple3Codec[A, B, C]) MinAt(v Triple[A, B, C], k int) (Triple[A, B, C], error) {
	if err := checkArity(k, 3); err != nil {
		return v, err
	}
	if k < 3 {
		v.C = c.Third.Min()
	}
	if k < 2 {
		v.B = c.Second.Min()
	}
	if k < 1 {
		v.A = c.First.Min()
	}
	return v, nil
}

func (c Tuple3Codec[A, B, C]) MaxAt(v Triple[A, B, C], k int) (Triple[A, B, C], error) {
	if err := checkArity(k, 3); err != nil {
		return v, err
	}
	if k < 3 {
		v.C = c.Third.Max()
	}
	if k < 2 {
		v.B = c.Second.Max()
	}
	if k < 1 {
		v.A = c.First.Max()
	}
	return v, nil
}

func (c Tuple3Codec[A, B, C]) LowerAt(v Triple[A, B, C], k int) (Triple[A, B, C], error) {
	switch k {
	case 1:
		v.A = c.First.Pred(v.A)
	case 2:
		v.B = c.Second.Pred(v.B)
	case 3:
		v.C = c.Third.Pred(v.C)
	default:
		return v, errConstraint("position %d out of range for 3-tuple", k)
	}
	return v, nil
}

func (c Tuple3Codec[A, B, C]) UpperAt(v Triple[A, B, C], k int) (Triple[A, B, C], error) {
	switch k {
	case 1:
		v.A = c.First.Succ(v.A)
	case 2:
		v.B = c.Second.Succ(v.B)
	case 3:
		v.C = c.Third.Succ(v.C)
	default:
		return v, errConstraint("position %d out of range for 3-tuple", k)
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Tuple4
// --------------------------------------------------------------------------

// Tuple4Codec encodes a 4-tuple as the concatenation of its component
// encodings.
type Tuple4Codec[A, B, C, D any] struct {
	First  Codec[A]
	Second Codec[B]
	Third  Codec[C]
	Fourth Codec[D]
}

// Tuple4 builds a 4-tuple codec from four component codecs.
func Tuple4[A, B, C, D any](a Codec[A], b Codec[B], cc Codec[C], d Codec[D]) Tuple4Codec[A, B, C, D] {
	return Tuple4Codec[A, B, C, D]{First: a, Second: b, Third: cc, Fourth: d}
}

func (c Tuple4Codec[A, B, C, D]) Encode(dst []byte, v Quad[A, B, C, D]) ([]byte, error) {
	dst, err := c.First.Encode(dst, v.A)
	if err != nil {
		return dst, err
	}
	if dst, err = c.Second.Encode(dst, v.B); err != nil {
		return dst, err
	}
	if dst, err = c.Third.Encode(dst, v.C); err != nil {
		return dst, err
	}
	return c.Fourth.Encode(dst, v.D)
}

func (c Tuple4Codec[A, B, C, D]) Decode(b []byte) (Quad[A, B, C, D], []byte, error) {
	var v Quad[A, B, C, D]
	var err error
	if v.A, b, err = c.First.Decode(b); err != nil {
		return v, nil, err
	}
	if v.B, b, err = c.Second.Decode(b); err != nil {
		return v, nil, err
	}
	if v.C, b, err = c.Third.Decode(b); err != nil {
		return v, nil, err
	}
	if v.D, b, err = c.Fourth.Decode(b); err != nil {
		return v, nil, err
	}
	return v, b, nil
}

func (c Tuple4Codec[A, B, C, D]) Min() Quad[A, B, C, D] {
	return Quad[A, B, C, D]{A: c.First.Min(), B: c.Second.Min(), C: c.Third.Min(), D: c.Fourth.Min()}
}

func (c Tuple4Codec[A, B, C, D]) Max() Quad[A, B, C, D] {
	return Quad[A, B, C, D]{A: c.First.Max(), B: c.Second.Max(), C: c.Third.Max(), D: c.Fourth.Max()}
}

func (c Tuple4Codec[A, B, C, D]) Succ(v Quad[A, B, C, D]) Quad[A, B, C, D] {
	if next := c.Fourth.Succ(v.D); !sameEncoding[D](c.Fourth, next, v.D) {
		v.D = next
		return v
	}
	if next := c.Third.Succ(v.C); !sameEncoding[C](c.Third, next, v.C) {
		v.C = next
		return v
	}
	if next := c.Second.Succ(v.B); !sameEncoding[B](c.Second, next, v.B) {
		v.B = next
		return v
	}
	v.A = c.First.Succ(v.A)
	return v
}

func (c Tuple4Codec[A, B, C, D]) Pred(v Quad[A, B, C, D]) Quad[A, B, C, D] {
	if prev := c.Fourth.Pred(v.D); !sameEncoding[D](c.Fourth, prev, v.D) {
		v.D = prev
		return v
	}
	if prev := c.Third.Pred(v.C); !sameEncoding[C](c.Third, prev, v.C) {
		v.C = prev
		return v
	}
	if prev := c.Second.Pred(v.B); !sameEncoding[B](c.Second, prev, v.B) {
		v.B = prev
		return v
	}
	v.A = c.First.Pred(v.A)
	return v
}

func (c Tuple4Codec[A, B, C, D]) Pretty(v Quad[A, B, C, D]) string {
	return fmt.Sprintf("(%s, %s, %s, %s)",
		c.First.Pretty(v.A), c.Second.Pretty(v.B), c.Third.Pretty(v.C), c.Fourth.Pretty(v.D))
}

func (c Tuple4Codec[A, B, C, D]) MinAt(v Quad[A, B, C, D], k int) (Quad[A, B, C, D], error) {
	if err := checkArity(k, 4); err != nil {
		return v, err
	}
	if k < 4 {
		v.D = c.Fourth.Min()
	}
	if k < 3 {
		v.C = c.Third.Min()
	}
	if k < 2 {
		v.B = c.Second.Min()
	}
	if k < 1 {
		v.A = c.First.Min()
	}
	return v, nil
}

func (c Tuple4Codec[A, B, C, D]) MaxAt(v Quad[A, B, C, D], k int) (Quad[A, B, C, D], error) {
	if err := checkArity(k, 4); err != nil {
		return v, err
	}
	if k < 4 {
		v.D = c.Fourth.Max()
	}
	if k < 3 {
		v.C = c.Third.Max()
	}
	if k < 2 {
		v.B = c.Second.Max()
	}
	if k < 1 {
		v.A = c.First.Max()
	}
	return v, nil
}

func (c Tuple4Codec[A, B, C, D]) LowerAt(v Quad[A, B, C, D], k int) (Quad[A, B, C, D], error) {
	switch k {
	case 1:
		v.A = c.First.Pred(v.A)
	case 2:
		v.B = c.Second.Pred(v.B)
	case 3:
		v.C = c.Third.Pred(v.C)
	case 4:
		v.D = c.Fourth.Pred(v.D)
	default:
		return v, errConstraint("position %d out of range for 4-tuple", k)
	}
	return v, nil
}

func (c Tuple4Codec[A, B, C, D]) UpperAt(v Quad[A, B, C, D], k int) (Quad[A, B, C, D], error) {
	switch k {
	case 1:
		v.A = c.First.Succ(v.A)
	case 2:
		v.B = c.Second.Succ(v.B)
	case 3:
		v.C = c.Third.Succ(v.C)
	case 4:
		v.D = c.Fourth.Succ(v.D)
	default:
		return v, errConstraint("position %d out of range for 4-tuple", k)
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Tuple5
// --------------------------------------------------------------------------

// Tuple5Codec encodes a 5-tuple as the concatenation of its component
// encodings.
type Tuple5Codec[A, B, C, D, E any] struct {
	First  Codec[A]
	Second Codec[B]
	Third  Codec[C]
	Fourth Codec[D]
	Fifth  Codec[E]
}

// Tuple5 builds a 5-tuple codec from five component codecs.
func Tuple5[A, B, C, D, E any](a Codec[A], b Codec[B], cc Codec[C], d Codec[D], e Codec[E]) Tuple5Codec[A, B, C, D, E] {
	return Tuple5Codec[A, B, C, D, E]{First: a, Second: b, Third: cc, Fourth: d, Fifth: e}
}

func (c Tuple5Codec[A, B, C, D, E]) Encode(dst []byte, v Quint[A, B, C, D, E]) ([]byte, error) {
	dst, err := c.First.Encode(dst, v.A)
	if err != nil {
		return dst, err
	}
	if dst, err = c.Second.Encode(dst, v.B); err != nil {
		return dst, err
	}
	if dst, err = c.Third.Encode(dst, v.C); err != nil {
		return dst, err
	}
	if dst, err = c.Fourth.Encode(dst, v.D); err != nil {
		return dst, err
	}
	return c.Fifth.Encode(dst, v.E)
}

func (c Tuple5Codec[A, B, C, D, E]) Decode(b []byte) (Quint[A, B, C, D, E], []byte, error) {
	var v Quint[A, B, C, D, E]
	var err error
	if v.A, b, err = c.First.Decode(b); err != nil {
		return v, nil, err
	}
	if v.B, b, err = c.Second.Decode(b); err != nil {
		return v, nil, err
	}
	if v.C, b, err = c.Third.Decode(b); err != nil {
		return v, nil, err
	}
	if v.D, b, err = c.Fourth.Decode(b); err != nil {
		return v, nil, err
	}
	if v.E, b, err = c.Fifth.Decode(b); err != nil {
		return v, nil, err
	}
	return v, b, nil
}

func (c Tuple5Codec[A, B, C, D, E]) Min() Quint[A, B, C, D, E] {
	return Quint[A, B, C, D, E]{
		A: c.First.Min(), B: c.Second.Min(), C: c.Third.Min(), D: c.Fourth.Min(), E: c.Fifth.Min(),
	}
}

func (c Tuple5Codec[A, B, C, D, E]) Max() Quint[A, B, C, D, E] {
	return Quint[A, B, C, D, E]{
		A: c.First.Max(), B: c.Second.Max(), C: c.Third.Max(), D: c.Fourth.Max(), E: c.Fifth.Max(),
	}
}

func (c Tuple5Codec[A, B, C, D, E]) Succ(v Quint[A, B, C, D, E]) Quint[A, B, C, D, E] {
	if next := c.Fifth.Succ(v.E); !sameEncoding[E](c.Fifth, next, v.E) {
		v.E = next
		return v
	}
	if next := c.Fourth.Succ(v.D); !sameEncoding[D](c.Fourth, next, v.D) {
		v.D = next
		return v
	}
	if next := c.Third.Succ(v.C); !sameEncoding[C](c.Third, next, v.C) {
		v.C = next
		return v
	}
	if next := c.Second.Succ(v.B); !sameEncoding[B](c.Second, next, v.B) {
		v.B = next
		return v
	}
	v.A = c.First.Succ(v.A)
	return v
}

func (c Tuple5Codec[A, B, C, D, E]) Pred(v Quint[A, B, C, D, E]) Quint[A, B, C, D, E] {
	if prev := c.Fifth.Pred(v.E); !sameEncoding[E](c.Fifth, prev, v.E) {
		v.E = prev
		return v
	}
	if prev := c.Fourth.Pred(v.D); !sameEncoding[D](c.Fourth, prev, v.D) {
		v.D = prev
		return v
	}
	if prev := c.Third.Pred(v.C); !sameEncoding[C](c.Third, prev, v.C) {
		v.C = prev
		return v
	}
	if prev := c.Second.Pred(v.B); !sameEncoding[B](c.Second, prev, v.B) {
		v.B = prev
		return v
	}
	v.A = c.First.Pred(v.A)
	return v
}

func (c Tuple5Codec[A, B, C, D, E]) Pretty(v Quint[A, B, C, D, E]) string {
	return fmt.Sprintf("(%s, %s, %s, %s, %s)",
		c.First.Pretty(v.A), c.Second.Pretty(v.B), c.Third.Pretty(v.C),
		c.Fourth.Pretty(v.D), c.Fifth.Pretty(v.E))
}

func (c Tuple5Codec[A, B, C, D, E]) MinAt(v Quint[A, B, C, D, E], k int) (Quint[A, B, C, D, E], error) {
	if err := checkArity(k, 5); err != nil {
		return v, err
	}
	if k < 5 {
		v.E = c.Fifth.Min()
	}
	if k < 4 {
		v.D = c.Fourth.Min()
	}
	if k < 3 {
		v.C = c.Third.Min()
	}
	if k < 2 {
		v.B = c.Second.Min()
	}
	if k < 1 {
		v.A = c.First.Min()
	}
	return v, nil
}

func (c Tuple5Codec[A, B, C, D, E]) MaxAt(v Quint[A, B, C, D, E], k int) (Quint[A, B, C, D, E], error) {
	if err := checkArity(k, 5); err != nil {
		return v, err
	}
	if k < 5 {
		v.E = c.Fifth.Max()
	}
	if k < 4 {
		v.D = c.Fourth.Max()
	}
	if k < 3 {
		v.C = c.Third.Max()
	}
	if k < 2 {
		v.B = c.Second.Max()
	}
	if k < 1 {
		v.A = c.First.Max()
	}
	return v, nil
}

func (c Tuple5Codec[A, B, C, D, E]) LowerAt(v Quint[A, B, C, D, E], k int) (Quint[A, B, C, D, E], error) {
	switch k {
	case 1:
		v.A = c.First.Pred(v.A)
	case 2:
		v.B = c.Second.Pred(v.B)
	case 3:
		v.C = c.Third.Pred(v.C)
	case 4:
		v.D = c.Fourth.Pred(v.D)
	case 5:
		v.E = c.Fifth.Pred(v.E)
	default:
		return v, errConstraint("position %d out of range for 5-tuple", k)
	}
	return v, nil
}

func (c Tuple5Codec[A, B, C, D, E]) UpperAt(v Quint[A, B, C, D, E], k int) (Quint[A, B, C, D, E], error) {
	switch k {
	case 1:
		v.A = c.First.Succ(v.A)
	case 2:
		v.B = c.Second.Succ(v.B)
	case 3:
		v.C = c.Third.Succ(v.C)
	case 4:
		v.D = c.Fourth.Succ(v.D)
	case 5:
		v.E = c.Fifth.Succ(v.E)
	default:
		return v, errConstraint("position %d out of range for 5-tuple", k)
	}
	return v, nil
}
