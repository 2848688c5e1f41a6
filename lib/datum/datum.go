package datum

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tessera-db/tessera/lib/codec"
)

// --------------------------------------------------------------------------
// Key Space Layout Constants
// --------------------------------------------------------------------------

const (
	// MetaTag is the single-byte prefix of keyspace metadata records. It
	// sorts below DatumTag, keeping metadata disjoint from every datum key.
	MetaTag byte = 0x00

	// DatumTag is the single-byte prefix of all datum keys.
	DatumTag byte = 0x01

	// EndOfDBKeyspaceID is a reserved keyspace id whose prefix sorts above
	// every real datum key. RegisterKeyspace never allocates it.
	EndOfDBKeyspaceID uint32 = math.MaxUint32

	// FirstKeyspaceID is the id assigned to the first registered keyspace.
	FirstKeyspaceID uint32 = 1
)

// EndOfDBKey returns the sentinel key that bounds all datum iterators from
// above.
func EndOfDBKey() []byte {
	return []byte{DatumTag, 0xFF, 0xFF, 0xFF, 0xFF}
}

// --------------------------------------------------------------------------
// Timestamps
// --------------------------------------------------------------------------

// AppendTimestamp appends the order-complemented encoding of a timestamp in
// microseconds since the Unix epoch. Newer timestamps sort first.
func AppendTimestamp(dst []byte, tsMicros int64) []byte {
	return binary.BigEndian.AppendUint64(dst, math.MaxUint64-uint64(tsMicros))
}

// DecodeTimestamp reverses AppendTimestamp.
func DecodeTimestamp(b []byte) (int64, error) {
	if len(b) < 8 {
		return 0, fmt.Errorf("datum: truncated timestamp (%d bytes)", len(b))
	}
	return int64(math.MaxUint64 - binary.BigEndian.Uint64(b[:8])), nil
}

// --------------------------------------------------------------------------
// Key Encoding
// --------------------------------------------------------------------------

// AppendKey appends the full datum key for (ksID, table, key, column,
// tsMicros) to dst.
func AppendKey(dst []byte, ksID uint32, table, key, column []byte, tsMicros int64) []byte {
	dst = append(dst, DatumTag)
	dst = binary.BigEndian.AppendUint32(dst, ksID)
	dst = codec.AppendSelfDelimited(dst, table)
	dst = codec.AppendSelfDelimited(dst, key)
	dst = codec.AppendSelfDelimited(dst, column)
	return AppendTimestamp(dst, tsMicros)
}

// KeyspacePrefix returns the prefix shared by every datum of a keyspace.
func KeyspacePrefix(dst []byte, ksID uint32) []byte {
	dst = append(dst, DatumTag)
	return binary.BigEndian.AppendUint32(dst, ksID)
}

// KeyspaceEnd returns the exclusive upper bound of a keyspace's datum range.
func KeyspaceEnd(dst []byte, ksID uint32) []byte {
	dst = append(dst, DatumTag)
	return binary.BigEndian.AppendUint32(dst, ksID+1)
}

// TablePrefix returns the prefix shared by every datum of (ksID, table).
func TablePrefix(dst []byte, ksID uint32, table []byte) []byte {
	dst = KeyspacePrefix(dst, ksID)
	return codec.AppendSelfDelimited(dst, table)
}

// TableSuccessor returns the smallest key lexicographically greater than
// every datum of (ksID, table): the table's encoding with its terminator
// bumped from 0x00 0x00 to 0x00 0x01. Used to seek table by table.
func TableSuccessor(dst []byte, ksID uint32, table []byte) []byte {
	dst = TablePrefix(dst, ksID, table)
	dst[len(dst)-1] = 0x01
	return dst
}

// KeySuccessor returns the smallest key lexicographically greater than
// every datum of (ksID, table, key); the row-key terminator is bumped the
// same way as in TableSuccessor. Used by scans to skip a row's remaining
// columns in one seek.
func KeySuccessor(dst []byte, ksID uint32, table, key []byte) []byte {
	dst = KeyPrefix(dst, ksID, table, key)
	dst[len(dst)-1] = 0x01
	return dst
}

// KeyPrefix returns the prefix shared by every column of (ksID, table, key).
func KeyPrefix(dst []byte, ksID uint32, table, key []byte) []byte {
	dst = TablePrefix(dst, ksID, table)
	return codec.AppendSelfDelimited(dst, key)
}

// ColumnPrefix returns the prefix shared by every timestamped version of
// (ksID, table, key, column).
func ColumnPrefix(dst []byte, ksID uint32, table, key, column []byte) []byte {
	dst = KeyPrefix(dst, ksID, table, key)
	return codec.AppendSelfDelimited(dst, column)
}

// --------------------------------------------------------------------------
// Key Decoding
// --------------------------------------------------------------------------

// Key is a decoded datum key. Table, Row and Column alias the scratch
// buffer passed to Decode; callers keeping them beyond the next Decode must
// copy.
type Key struct {
	KeyspaceID uint32
	Table      []byte
	Row        []byte
	Column     []byte
	TsMicros   int64
}

// Decode parses a full datum key. Decoded byte components are appended to
// scratch; the returned slice is the grown scratch buffer for reuse.
func (k *Key) Decode(b, scratch []byte) ([]byte, error) {
	if len(b) < 5 || b[0] != DatumTag {
		return scratch, fmt.Errorf("datum: not a datum key")
	}
	k.KeyspaceID = binary.BigEndian.Uint32(b[1:5])
	rest := b[5:]

	var err error

	mark := len(scratch)
	if scratch, rest, err = codec.AppendDecodedSelfDelimited(scratch, rest); err != nil {
		return scratch, err
	}
	k.Table = scratch[mark:]

	mark = len(scratch)
	if scratch, rest, err = codec.AppendDecodedSelfDelimited(scratch, rest); err != nil {
		return scratch, err
	}
	k.Row = scratch[mark:]

	mark = len(scratch)
	if scratch, rest, err = codec.AppendDecodedSelfDelimited(scratch, rest); err != nil {
		return scratch, err
	}
	k.Column = scratch[mark:]

	k.TsMicros, err = DecodeTimestamp(rest)
	return scratch, err
}

// --------------------------------------------------------------------------
// Keyspace Metadata Keys
// --------------------------------------------------------------------------

// MetaKey returns the metadata record key for a keyspace name.
func MetaKey(name string) []byte {
	k := make([]byte, 0, len(name)+1)
	k = append(k, MetaTag)
	return append(k, name...)
}

// MetaRangeEnd returns the exclusive upper bound of the metadata region.
func MetaRangeEnd() []byte {
	return []byte{DatumTag}
}

// MetaName recovers the keyspace name from a metadata record key.
func MetaName(key []byte) (string, error) {
	if len(key) < 1 || key[0] != MetaTag {
		return "", fmt.Errorf("datum: not a metadata key")
	}
	return string(key[1:]), nil
}
