package codec

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

// checkLaws verifies the codec laws for a set of sample values that must be
// given in the codec's defined order (ascending).
func checkLaws[T any](t *testing.T, name string, c Codec[T], ordered []T) {
	t.Helper()

	encode := func(v T) []byte {
		enc, err := c.Encode(nil, v)
		if err != nil {
			t.Fatalf("%s: encode %s: %v", name, c.Pretty(v), err)
		}
		return enc
	}

	// Law 1: round trip
	for _, v := range ordered {
		enc := encode(v)
		got, rest, err := c.Decode(enc)
		if err != nil {
			t.Fatalf("%s: decode of %s failed: %v", name, c.Pretty(v), err)
		}
		if len(rest) != 0 {
			t.Errorf("%s: decode of %s left %d bytes", name, c.Pretty(v), len(rest))
		}
		if !bytes.Equal(encode(got), enc) {
			t.Errorf("%s: round trip changed %s to %s", name, c.Pretty(v), c.Pretty(got))
		}
	}

	// Law 2: order preservation over all ordered pairs
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			lo, hi := encode(ordered[i]), encode(ordered[j])
			if bytes.Compare(lo, hi) >= 0 {
				t.Errorf("%s: enc(%s) !< enc(%s)", name, c.Pretty(ordered[i]), c.Pretty(ordered[j]))
			}
		}
	}

	// Law 3: min/max bound every sample
	minEnc, maxEnc := encode(c.Min()), encode(c.Max())
	for _, v := range ordered {
		enc := encode(v)
		if bytes.Compare(minEnc, enc) > 0 {
			t.Errorf("%s: min above %s", name, c.Pretty(v))
		}
		if bytes.Compare(enc, maxEnc) > 0 {
			t.Errorf("%s: max below %s", name, c.Pretty(v))
		}
	}

	// Law 4: pred(succ(x)) = x unless x = max
	for _, v := range ordered {
		enc := encode(v)
		if bytes.Equal(enc, maxEnc) {
			continue
		}
		if back := encode(c.Pred(c.Succ(v))); !bytes.Equal(back, enc) {
			t.Errorf("%s: pred(succ(%s)) != %s", name, c.Pretty(v), c.Pretty(v))
		}
	}

	// Law 5: saturation
	if !bytes.Equal(encode(c.Succ(c.Max())), maxEnc) {
		t.Errorf("%s: succ(max) != max", name)
	}
	if !bytes.Equal(encode(c.Pred(c.Min())), minEnc) {
		t.Errorf("%s: pred(min) != min", name)
	}
}

func TestByteCodecLaws(t *testing.T) {
	checkLaws[byte](t, "byte", Byte, []byte{0, 1, 2, 0x7f, 0x80, 0xfe, 0xff})
}

func TestBoolCodecLaws(t *testing.T) {
	checkLaws[bool](t, "bool", Bool, []bool{false, true})
}

func TestPositiveInt64CodecLaws(t *testing.T) {
	checkLaws[int64](t, "PositiveInt64", PositiveInt64,
		[]int64{0, 1, 255, 256, 1 << 32, math.MaxInt64 - 1, math.MaxInt64})
}

func TestPositiveInt64ComplementCodecLaws(t *testing.T) {
	// Ordered in the codec's defined (descending numeric) order.
	checkLaws[int64](t, "PositiveInt64Complement", PositiveInt64Complement,
		[]int64{math.MaxInt64, math.MaxInt64 - 1, 1 << 32, 256, 255, 1, 0})
}

func TestSelfDelimitedStringCodecLaws(t *testing.T) {
	checkLaws[string](t, "SelfDelimitedString", SelfDelimitedString,
		[]string{"", "\x00", "\x00\x00", "\x00a", "a", "a\x00", "a\x00b", "ab", "b", "ba"})
}

func TestStringzCodecLaws(t *testing.T) {
	checkLaws[string](t, "Stringz", Stringz,
		[]string{"", "a", "ab", "b", "ba", "z"})
}

func TestPositiveInt64RejectsNegative(t *testing.T) {
	for _, c := range []Codec[int64]{PositiveInt64, PositiveInt64Complement} {
		if _, err := c.Encode(nil, -1); err == nil {
			t.Errorf("%T: expected error for negative value", c)
		} else if !errors.Is(err, &Error{Kind: ErrKUnsatisfiedConstraint}) {
			t.Errorf("%T: expected UnsatisfiedConstraint, got %v", c, err)
		}
	}
}

func TestStringzRejectsNUL(t *testing.T) {
	if _, err := Stringz.Encode(nil, "a\x00b"); err == nil {
		t.Error("Stringz accepted embedded NUL")
	}
	enc, err := StringzUnsafe.Encode(nil, "a\x00b")
	if err != nil {
		t.Fatalf("StringzUnsafe failed: %v", err)
	}
	got, _, err := StringzUnsafe.Decode(enc)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	// The unchecked encoding truncates at the embedded NUL.
	if got != "a" {
		t.Errorf("expected truncated decode %q, got %q", "a", got)
	}
}

func TestSelfDelimitedEscaping(t *testing.T) {
	tests := []struct {
		raw  string
		want []byte
	}{
		{"", []byte{0x00, 0x00}},
		{"\x00", []byte{0x00, 0xFF, 0x00, 0x00}},
		{"ab", []byte{'a', 'b', 0x00, 0x00}},
		{"a\x00b", []byte{'a', 0x00, 0xFF, 'b', 0x00, 0x00}},
	}
	for _, tc := range tests {
		got := AppendSelfDelimited(nil, []byte(tc.raw))
		if !bytes.Equal(got, tc.want) {
			t.Errorf("encode %q: got % x, want % x", tc.raw, got, tc.want)
		}
		if n := SelfDelimitedLen([]byte(tc.raw)); n != len(tc.want) {
			t.Errorf("SelfDelimitedLen(%q) = %d, want %d", tc.raw, n, len(tc.want))
		}
		val, rest, err := ConsumeSelfDelimited(nil, got)
		if err != nil {
			t.Fatalf("decode %q: %v", tc.raw, err)
		}
		if string(val) != tc.raw || len(rest) != 0 {
			t.Errorf("decode %q: got %q (rest %d)", tc.raw, val, len(rest))
		}
	}
}

func TestSelfDelimitedBadInput(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		kind ErrKind
	}{
		{"empty", nil, ErrKIncompleteFragment},
		{"no terminator", []byte{'a', 'b'}, ErrKIncompleteFragment},
		{"dangling escape", []byte{'a', 0x00}, ErrKIncompleteFragment},
		{"bad escape", []byte{'a', 0x00, 0x01}, ErrKBadEncoding},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ConsumeSelfDelimited(nil, tc.in)
			if !errors.Is(err, &Error{Kind: tc.kind}) {
				t.Errorf("got %v, want kind %s", err, tc.kind)
			}
		})
	}
}

func TestDecodeFull(t *testing.T) {
	enc, _ := PositiveInt64.Encode(nil, 7)
	if v, err := DecodeFull[int64](PositiveInt64, enc); err != nil || v != 7 {
		t.Errorf("DecodeFull: got (%d, %v)", v, err)
	}
	if _, err := DecodeFull[int64](PositiveInt64, append(enc, 0x00)); err == nil {
		t.Error("DecodeFull accepted trailing bytes")
	}
	if _, err := DecodeFull[int64](PositiveInt64, enc[:4]); !errors.Is(err, &Error{Kind: ErrKIncompleteFragment}) {
		t.Errorf("expected IncompleteFragment, got %v", err)
	}
}
