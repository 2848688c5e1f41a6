package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// --------------------------------------------------------------------------
// Byte Codec
// --------------------------------------------------------------------------

// ByteCodec encodes a single byte as itself (natural order).
type ByteCodec struct{}

// Byte is the shared instance of ByteCodec.
var Byte = ByteCodec{}

func (ByteCodec) Encode(dst []byte, v byte) ([]byte, error) { return append(dst, v), nil }

func (ByteCodec) Decode(b []byte) (byte, []byte, error) {
	if len(b) < 1 {
		return 0, nil, errIncomplete("byte")
	}
	return b[0], b[1:], nil
}

func (ByteCodec) Min() byte { return 0 }
func (ByteCodec) Max() byte { return math.MaxUint8 }

func (ByteCodec) Succ(v byte) byte {
	if v == math.MaxUint8 {
		return v
	}
	return v + 1
}

func (ByteCodec) Pred(v byte) byte {
	if v == 0 {
		return v
	}
	return v - 1
}

func (ByteCodec) Pretty(v byte) string { return fmt.Sprintf("0x%02x", v) }

// --------------------------------------------------------------------------
// Bool Codec
// --------------------------------------------------------------------------

// BoolCodec encodes false as 0x00 and true as 0x01 (false < true).
type BoolCodec struct{}

// Bool is the shared instance of BoolCodec.
var Bool = BoolCodec{}

func (BoolCodec) Encode(dst []byte, v bool) ([]byte, error) {
	if v {
		return append(dst, 1), nil
	}
	return append(dst, 0), nil
}

func (BoolCodec) Decode(b []byte) (bool, []byte, error) {
	if len(b) < 1 {
		return false, nil, errIncomplete("bool")
	}
	switch b[0] {
	case 0:
		return false, b[1:], nil
	case 1:
		return true, b[1:], nil
	default:
		return false, nil, errBadEncoding("bool")
	}
}

func (BoolCodec) Min() bool           { return false }
func (BoolCodec) Max() bool           { return true }
func (BoolCodec) Succ(v bool) bool    { return true }
func (BoolCodec) Pred(v bool) bool    { return false }
func (BoolCodec) Pretty(v bool) string { return fmt.Sprintf("%v", v) }

// --------------------------------------------------------------------------
// PositiveInt64 Codec
// --------------------------------------------------------------------------

// PositiveInt64Codec encodes non-negative int64 values as 8 bytes big-endian,
// which preserves their numeric order. Negative values are rejected.
type PositiveInt64Codec struct{}

// PositiveInt64 is the shared instance of PositiveInt64Codec.
var PositiveInt64 = PositiveInt64Codec{}

func (PositiveInt64Codec) Encode(dst []byte, v int64) ([]byte, error) {
	if v < 0 {
		return dst, errConstraint("PositiveInt64: negative value %d", v)
	}
	return binary.BigEndian.AppendUint64(dst, uint64(v)), nil
}

func (PositiveInt64Codec) Decode(b []byte) (int64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, errIncomplete("PositiveInt64")
	}
	u := binary.BigEndian.Uint64(b[:8])
	if u > math.MaxInt64 {
		return 0, nil, errBadEncoding("PositiveInt64")
	}
	return int64(u), b[8:], nil
}

func (PositiveInt64Codec) Min() int64 { return 0 }
func (PositiveInt64Codec) Max() int64 { return math.MaxInt64 }

func (PositiveInt64Codec) Succ(v int64) int64 {
	if v == math.MaxInt64 {
		return v
	}
	return v + 1
}

func (PositiveInt64Codec) Pred(v int64) int64 {
	if v == 0 {
		return v
	}
	return v - 1
}

func (PositiveInt64Codec) Pretty(v int64) string { return fmt.Sprintf("%d", v) }

// --------------------------------------------------------------------------
// PositiveInt64Complement Codec
// --------------------------------------------------------------------------

// PositiveInt64ComplementCodec encodes a non-negative int64 as the big-endian
// bytes of MaxInt64 − v, which reverses the numeric order of the encodings.
// The codec's defined order is therefore the descending numeric order:
// Min() is MaxInt64 and Max() is 0.
type PositiveInt64ComplementCodec struct{}

// PositiveInt64Complement is the shared instance of PositiveInt64ComplementCodec.
var PositiveInt64Complement = PositiveInt64ComplementCodec{}

func (PositiveInt64ComplementCodec) Encode(dst []byte, v int64) ([]byte, error) {
	if v < 0 {
		return dst, errConstraint("PositiveInt64Complement: negative value %d", v)
	}
	return binary.BigEndian.AppendUint64(dst, uint64(math.MaxInt64-v)), nil
}

func (PositiveInt64ComplementCodec) Decode(b []byte) (int64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, errIncomplete("PositiveInt64Complement")
	}
	u := binary.BigEndian.Uint64(b[:8])
	if u > math.MaxInt64 {
		return 0, nil, errBadEncoding("PositiveInt64Complement")
	}
	return math.MaxInt64 - int64(u), b[8:], nil
}

func (PositiveInt64ComplementCodec) Min() int64 { return math.MaxInt64 }
func (PositiveInt64ComplementCodec) Max() int64 { return 0 }

// Succ moves towards Max, i.e. numerically down.
func (PositiveInt64ComplementCodec) Succ(v int64) int64 {
	if v == 0 {
		return v
	}
	return v - 1
}

// Pred moves towards Min, i.e. numerically up.
func (PositiveInt64ComplementCodec) Pred(v int64) int64 {
	if v == math.MaxInt64 {
		return v
	}
	return v + 1
}

func (PositiveInt64ComplementCodec) Pretty(v int64) string { return fmt.Sprintf("%d", v) }

// --------------------------------------------------------------------------
// Self-Delimited String Codec
// --------------------------------------------------------------------------

// Self-delimited encoding: every 0x00 byte of the value is escaped as
// 0x00 0xFF, and the encoding is terminated by 0x00 0x00. This keeps the
// encoding self-terminating while preserving lexicographic order, because
// "" (terminator only) sorts below "\x00" (escape) which sorts below any
// value starting with a byte > 0.

// AppendSelfDelimited appends the self-delimited encoding of raw to dst.
// It never fails: every byte string is representable.
func AppendSelfDelimited(dst, raw []byte) []byte {
	for _, c := range raw {
		if c == 0x00 {
			dst = append(dst, 0x00, 0xFF)
		} else {
			dst = append(dst, c)
		}
	}
	return append(dst, 0x00, 0x00)
}

// AppendDecodedSelfDelimited reads one self-delimited value from the front
// of b, appending the decoded bytes to scratch. It returns the grown scratch
// buffer and the unconsumed remainder of b; the decoded value occupies
// scratch beyond its original length.
func AppendDecodedSelfDelimited(scratch, b []byte) (grown, rest []byte, err error) {
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c != 0x00 {
			scratch = append(scratch, c)
			continue
		}
		if i+1 >= len(b) {
			return scratch, nil, errIncomplete("SelfDelimitedString")
		}
		switch b[i+1] {
		case 0x00:
			return scratch, b[i+2:], nil
		case 0xFF:
			scratch = append(scratch, 0x00)
			i++
		default:
			return scratch, nil, errBadEncoding("SelfDelimitedString")
		}
	}
	return scratch, nil, errIncomplete("SelfDelimitedString")
}

// ConsumeSelfDelimited reads one self-delimited value from the front of b
// and returns it together with the unconsumed remainder of b.
func ConsumeSelfDelimited(scratch, b []byte) (val, rest []byte, err error) {
	start := len(scratch)
	grown, rest, err := AppendDecodedSelfDelimited(scratch, b)
	if err != nil {
		return nil, nil, err
	}
	return grown[start:], rest, nil
}

// SelfDelimitedLen returns the encoded length of raw, terminator included.
func SelfDelimitedLen(raw []byte) int {
	n := len(raw) + 2
	for _, c := range raw {
		if c == 0x00 {
			n++
		}
	}
	return n
}

// SelfDelimitedStringCodec encodes arbitrary strings with the self-delimited
// escaping above. Min is "" and Max is a saturation sentinel (strings have no
// true maximum); Pred is an approximation except for values ending in 0x00.
type SelfDelimitedStringCodec struct{}

// SelfDelimitedString is the shared instance of SelfDelimitedStringCodec.
var SelfDelimitedString = SelfDelimitedStringCodec{}

func (SelfDelimitedStringCodec) Encode(dst []byte, v string) ([]byte, error) {
	return AppendSelfDelimited(dst, []byte(v)), nil
}

func (SelfDelimitedStringCodec) Decode(b []byte) (string, []byte, error) {
	val, rest, err := ConsumeSelfDelimited(nil, b)
	if err != nil {
		return "", nil, err
	}
	return string(val), rest, nil
}

func (SelfDelimitedStringCodec) Min() string { return "" }

// Max returns a saturation sentinel above any realistic key.
func (SelfDelimitedStringCodec) Max() string { return strings.Repeat("\xff", 256) }

// Succ returns the immediate successor: v followed by a NUL byte.
func (c SelfDelimitedStringCodec) Succ(v string) string {
	if v == c.Max() {
		return v
	}
	return v + "\x00"
}

// Pred returns the immediate predecessor when v ends in a NUL byte (drop
// it); otherwise it decrements the last byte, which is the closest
// representable approximation.
func (SelfDelimitedStringCodec) Pred(v string) string {
	if v == "" {
		return v
	}
	last := v[len(v)-1]
	if last == 0x00 {
		return v[:len(v)-1]
	}
	return v[:len(v)-1] + string([]byte{last - 1})
}

func (SelfDelimitedStringCodec) Pretty(v string) string { return fmt.Sprintf("%q", v) }

// --------------------------------------------------------------------------
// Stringz Codec
// --------------------------------------------------------------------------

// StringzCodec encodes a string as its raw bytes followed by a NUL
// terminator. Encoding fails if the value itself contains NUL; see
// StringzUnsafe for the unchecked variant.
type StringzCodec struct {
	// unsafe skips the NUL check on encode.
	unsafe bool
}

// Stringz is the checked NUL-terminated string codec.
var Stringz = StringzCodec{}

// StringzUnsafe omits the NUL check; encoding a value containing NUL
// produces an encoding that decodes to a prefix of the original.
var StringzUnsafe = StringzCodec{unsafe: true}

func (c StringzCodec) Encode(dst []byte, v string) ([]byte, error) {
	if !c.unsafe && strings.IndexByte(v, 0x00) >= 0 {
		return dst, errConstraint("Stringz: value contains NUL")
	}
	dst = append(dst, v...)
	return append(dst, 0x00), nil
}

func (StringzCodec) Decode(b []byte) (string, []byte, error) {
	for i, c := range b {
		if c == 0x00 {
			return string(b[:i]), b[i+1:], nil
		}
	}
	return "", nil, errIncomplete("Stringz")
}

func (StringzCodec) Min() string { return "" }

// Max returns a saturation sentinel above any realistic key.
func (StringzCodec) Max() string { return strings.Repeat("\xff", 256) }

// Succ returns the smallest representable string above v. Appending NUL is
// not representable here, so the successor appends 0x01.
func (c StringzCodec) Succ(v string) string {
	if v == c.Max() {
		return v
	}
	return v + "\x01"
}

func (StringzCodec) Pred(v string) string {
	if v == "" {
		return v
	}
	last := v[len(v)-1]
	if last == 0x01 {
		return v[:len(v)-1]
	}
	return v[:len(v)-1] + string([]byte{last - 1})
}

func (StringzCodec) Pretty(v string) string { return fmt.Sprintf("%q", v) }
