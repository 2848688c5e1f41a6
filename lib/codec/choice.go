package codec

import "fmt"

// --------------------------------------------------------------------------
// Custom Codec
// --------------------------------------------------------------------------

// CustomCodec re-labels an underlying codec with an external representation.
// Values are converted to the internal type before encoding and back after
// decoding; ordering is inherited from the underlying codec.
type CustomCodec[T, U any] struct {
	under      Codec[U]
	toInternal func(T) U
	ofInternal func(U) T
	pretty     func(T) string
}

// Custom builds a codec for T on top of an existing codec for U.
func Custom[T, U any](under Codec[U], toInternal func(T) U, ofInternal func(U) T, pretty func(T) string) CustomCodec[T, U] {
	return CustomCodec[T, U]{under: under, toInternal: toInternal, ofInternal: ofInternal, pretty: pretty}
}

func (c CustomCodec[T, U]) Encode(dst []byte, v T) ([]byte, error) {
	return c.under.Encode(dst, c.toInternal(v))
}

func (c CustomCodec[T, U]) Decode(b []byte) (T, []byte, error) {
	u, rest, err := c.under.Decode(b)
	if err != nil {
		var zero T
		return zero, nil, err
	}
	return c.ofInternal(u), rest, nil
}

func (c CustomCodec[T, U]) Min() T { return c.ofInternal(c.under.Min()) }
func (c CustomCodec[T, U]) Max() T { return c.ofInternal(c.under.Max()) }

func (c CustomCodec[T, U]) Succ(v T) T { return c.ofInternal(c.under.Succ(c.toInternal(v))) }
func (c CustomCodec[T, U]) Pred(v T) T { return c.ofInternal(c.under.Pred(c.toInternal(v))) }

func (c CustomCodec[T, U]) Pretty(v T) string {
	if c.pretty != nil {
		return c.pretty(v)
	}
	return c.under.Pretty(c.toInternal(v))
}

// --------------------------------------------------------------------------
// Choice Codecs
// --------------------------------------------------------------------------

// ChoiceValue is the value type of choice codecs: a variant tag plus the
// value of the selected variant. Tags are ordered, so choices sort first by
// tag and then by the variant's own order.
type ChoiceValue struct {
	Tag   int
	Value interface{}
}

// variantCodec is the type-erased form of a Codec[T] used inside a choice.
type variantCodec struct {
	encode func(dst []byte, v interface{}) ([]byte, error)
	decode func(b []byte) (interface{}, []byte, error)
	min    func() interface{}
	max    func() interface{}
	succ   func(v interface{}) (interface{}, bool) // bool: not saturated
	pred   func(v interface{}) (interface{}, bool)
	pretty func(v interface{}) string
}

// eraseVariant wraps a typed codec for storage in a ChoiceCodec.
func eraseVariant[T any](c Codec[T]) variantCodec {
	return variantCodec{
		encode: func(dst []byte, v interface{}) ([]byte, error) {
			t, ok := v.(T)
			if !ok {
				return dst, errConstraint("choice variant value has type %T", v)
			}
			return c.Encode(dst, t)
		},
		decode: func(b []byte) (interface{}, []byte, error) {
			v, rest, err := c.Decode(b)
			if err != nil {
				return nil, nil, err
			}
			return v, rest, nil
		},
		min: func() interface{} { return c.Min() },
		max: func() interface{} { return c.Max() },
		succ: func(v interface{}) (interface{}, bool) {
			t := v.(T)
			next := c.Succ(t)
			return next, !sameEncoding[T](c, next, t)
		},
		pred: func(v interface{}) (interface{}, bool) {
			t := v.(T)
			prev := c.Pred(t)
			return prev, !sameEncoding[T](c, prev, t)
		},
		pretty: func(v interface{}) string { return c.Pretty(v.(T)) },
	}
}

// ChoiceCodec encodes a tagged union as a one-byte tag followed by the
// selected variant's encoding. Use the Choice2..Choice5 constructors.
type ChoiceCodec struct {
	variants []variantCodec
}

// Choice2 builds a two-variant choice codec.
func Choice2[A, B any](a Codec[A], b Codec[B]) ChoiceCodec {
	return ChoiceCodec{variants: []variantCodec{eraseVariant(a), eraseVariant(b)}}
}

// Choice3 builds a three-variant choice codec.
func Choice3[A, B, C any](a Codec[A], b Codec[B], c Codec[C]) ChoiceCodec {
	return ChoiceCodec{variants: []variantCodec{eraseVariant(a), eraseVariant(b), eraseVariant(c)}}
}

// Choice4 builds a four-variant choice codec.
func Choice4[A, B, C, D any](a Codec[A], b Codec[B], c Codec[C], d Codec[D]) ChoiceCodec {
	return ChoiceCodec{variants: []variantCodec{
		eraseVariant(a), eraseVariant(b), eraseVariant(c), eraseVariant(d),
	}}
}

// Choice5 builds a five-variant choice codec.
func Choice5[A, B, C, D, E any](a Codec[A], b Codec[B], c Codec[C], d Codec[D], e Codec[E]) ChoiceCodec {
	return ChoiceCodec{variants: []variantCodec{
		eraseVariant(a), eraseVariant(b), eraseVariant(c), eraseVariant(d), eraseVariant(e),
	}}
}

func (c ChoiceCodec) Encode(dst []byte, v ChoiceValue) ([]byte, error) {
	if v.Tag < 0 || v.Tag >= len(c.variants) {
		return dst, errUnknownTag(v.Tag)
	}
	dst = append(dst, byte(v.Tag))
	return c.variants[v.Tag].encode(dst, v.Value)
}

func (c ChoiceCodec) Decode(b []byte) (ChoiceValue, []byte, error) {
	if len(b) < 1 {
		return ChoiceValue{}, nil, errIncomplete("choice")
	}
	tag := int(b[0])
	if tag >= len(c.variants) {
		return ChoiceValue{}, nil, errUnknownTag(tag)
	}
	v, rest, err := c.variants[tag].decode(b[1:])
	if err != nil {
		return ChoiceValue{}, nil, err
	}
	return ChoiceValue{Tag: tag, Value: v}, rest, nil
}

func (c ChoiceCodec) Min() ChoiceValue {
	return ChoiceValue{Tag: 0, Value: c.variants[0].min()}
}

func (c ChoiceCodec) Max() ChoiceValue {
	last := len(c.variants) - 1
	return ChoiceValue{Tag: last, Value: c.variants[last].max()}
}

// Succ advances within the current variant; when the variant saturates the
// successor is the minimum of the next variant.
func (c ChoiceCodec) Succ(v ChoiceValue) ChoiceValue {
	if v.Tag < 0 || v.Tag >= len(c.variants) {
		return v
	}
	if next, moved := c.variants[v.Tag].succ(v.Value); moved {
		return ChoiceValue{Tag: v.Tag, Value: next}
	}
	if v.Tag+1 < len(c.variants) {
		return ChoiceValue{Tag: v.Tag + 1, Value: c.variants[v.Tag+1].min()}
	}
	return v
}

// Pred is the counterpart of Succ, falling back to the previous variant's
// maximum.
func (c ChoiceCodec) Pred(v ChoiceValue) ChoiceValue {
	if v.Tag < 0 || v.Tag >= len(c.variants) {
		return v
	}
	if prev, moved := c.variants[v.Tag].pred(v.Value); moved {
		return ChoiceValue{Tag: v.Tag, Value: prev}
	}
	if v.Tag > 0 {
		return ChoiceValue{Tag: v.Tag - 1, Value: c.variants[v.Tag-1].max()}
	}
	return v
}

func (c ChoiceCodec) Pretty(v ChoiceValue) string {
	if v.Tag < 0 || v.Tag >= len(c.variants) {
		return fmt.Sprintf("<invalid tag %d>", v.Tag)
	}
	return fmt.Sprintf("#%d %s", v.Tag, c.variants[v.Tag].pretty(v.Value))
}
