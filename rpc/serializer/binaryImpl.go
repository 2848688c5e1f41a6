package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/tessera-db/tessera/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional field groups are present
const (
	hasKeyspace    uint16 = 1 << 0
	hasTable       uint16 = 1 << 1
	hasTxnID       uint16 = 1 << 2
	hasKey         uint16 = 1 << 3
	hasKeys        uint16 = 1 << 4
	hasKeyRange    uint16 = 1 << 5
	hasColumns     uint16 = 1 << 6
	hasColumnNames uint16 = 1 << 7
	hasColRange    uint16 = 1 << 8
	hasLimits      uint16 = 1 << 9
	hasCursor      uint16 = 1 << 10
	hasChunk       uint16 = 1 << 11
	hasResponse    uint16 = 1 << 12
	hasErr         uint16 = 1 << 13
	hasMeta        uint16 = 1 << 14
)

// nilMarker encodes a nil byte slice where nil and empty are distinct.
const nilMarker = ^uint32(0)

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Header: message type + two flag bytes, patched once the flags are
	// known.
	buf := make([]byte, 3, 64)
	buf[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Keyspace != "" {
		flags |= hasKeyspace
		buf = appendBlob(buf, []byte(msg.Keyspace))
	}
	if msg.Table != nil {
		flags |= hasTable
		buf = appendBlob(buf, msg.Table)
	}
	if msg.TxnID != 0 {
		flags |= hasTxnID
		buf = binary.BigEndian.AppendUint64(buf, msg.TxnID)
	}
	if msg.Key != nil {
		flags |= hasKey
		buf = appendBlob(buf, msg.Key)
	}
	if msg.Discrete || len(msg.Keys) > 0 {
		flags |= hasKeys
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Keys)))
		for _, k := range msg.Keys {
			buf = appendBlob(buf, k)
		}
	}
	if msg.KeyFirst != nil || msg.KeyUpTo != nil {
		flags |= hasKeyRange
		buf = appendOptBlob(buf, msg.KeyFirst)
		buf = appendOptBlob(buf, msg.KeyUpTo)
	}
	if len(msg.Columns) > 0 {
		flags |= hasColumns
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Columns)))
		for _, c := range msg.Columns {
			buf = appendColumn(buf, c)
		}
	}
	if len(msg.ColumnNames) > 0 {
		flags |= hasColumnNames
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.ColumnNames)))
		for _, n := range msg.ColumnNames {
			buf = appendBlob(buf, n)
		}
	}
	if msg.ColKind != common.ColAll || msg.ColFirst != nil || msg.ColUpTo != nil || msg.Reverse {
		flags |= hasColRange
		buf = append(buf, msg.ColKind, boolByte(msg.Reverse))
		buf = appendOptBlob(buf, msg.ColFirst)
		buf = appendOptBlob(buf, msg.ColUpTo)
	}
	if msg.MaxKeys != 0 || msg.MaxColumns != 0 || msg.DecodeTs || msg.Isolation != 0 {
		flags |= hasLimits
		buf = binary.BigEndian.AppendUint32(buf, msg.MaxKeys)
		buf = binary.BigEndian.AppendUint32(buf, msg.MaxColumns)
		buf = append(buf, boolByte(msg.DecodeTs), msg.Isolation)
	}
	if msg.Cursor != nil {
		flags |= hasCursor
		buf = appendBlob(buf, msg.Cursor)
	}
	if msg.Chunk != nil {
		flags |= hasChunk
		buf = appendBlob(buf, msg.Chunk)
	}
	if msg.Ok || msg.LastKey != nil || len(msg.Rows) > 0 || len(msg.Values) > 0 ||
		msg.Count != 0 || len(msg.Names) > 0 {
		flags |= hasResponse
		buf = append(buf, boolByte(msg.Ok))
		buf = appendOptBlob(buf, msg.LastKey)
		buf = binary.BigEndian.AppendUint64(buf, msg.Count)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Rows)))
		for _, row := range msg.Rows {
			buf = appendBlob(buf, row.Key)
			buf = appendOptBlob(buf, row.LastColumn)
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(row.Columns)))
			for _, c := range row.Columns {
				buf = appendColumn(buf, c)
			}
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Values)))
		for _, v := range msg.Values {
			buf = appendOptBlob(buf, v)
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Names)))
		for _, n := range msg.Names {
			buf = appendBlob(buf, []byte(n))
		}
	}
	if msg.Err != "" || msg.ErrKind != 0 {
		flags |= hasErr
		buf = append(buf, byte(msg.ErrKind))
		buf = appendBlob(buf, []byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		buf = appendBlob(buf, msg.Meta)
	}

	binary.BigEndian.PutUint16(buf[1:3], flags)
	return buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < 3 {
		return fmt.Errorf("data too short for message header")
	}
	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := &blobReader{data: data, pos: 3}

	if flags&hasKeyspace != 0 {
		msg.Keyspace = string(r.blob())
	}
	if flags&hasTable != 0 {
		msg.Table = copyBlob(r.blob())
	}
	if flags&hasTxnID != 0 {
		msg.TxnID = r.u64()
	}
	if flags&hasKey != 0 {
		msg.Key = copyBlob(r.blob())
	}
	if flags&hasKeys != 0 {
		msg.Discrete = true
		n := r.u32()
		msg.Keys = make([][]byte, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Keys = append(msg.Keys, copyBlob(r.blob()))
		}
	}
	if flags&hasKeyRange != 0 {
		msg.KeyFirst = copyBlob(r.optBlob())
		msg.KeyUpTo = copyBlob(r.optBlob())
	}
	if flags&hasColumns != 0 {
		n := r.u32()
		msg.Columns = make([]common.ColumnData, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Columns = append(msg.Columns, r.column())
		}
	}
	if flags&hasColumnNames != 0 {
		n := r.u32()
		msg.ColumnNames = make([][]byte, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.ColumnNames = append(msg.ColumnNames, copyBlob(r.blob()))
		}
	}
	if flags&hasColRange != 0 {
		msg.ColKind = r.byte()
		msg.Reverse = r.byte() != 0
		msg.ColFirst = copyBlob(r.optBlob())
		msg.ColUpTo = copyBlob(r.optBlob())
	}
	if flags&hasLimits != 0 {
		msg.MaxKeys = r.u32()
		msg.MaxColumns = r.u32()
		msg.DecodeTs = r.byte() != 0
		msg.Isolation = r.byte()
	}
	if flags&hasCursor != 0 {
		msg.Cursor = copyBlob(r.blob())
	}
	if flags&hasChunk != 0 {
		msg.Chunk = copyBlob(r.blob())
	}
	if flags&hasResponse != 0 {
		msg.Ok = r.byte() != 0
		msg.LastKey = copyBlob(r.optBlob())
		msg.Count = r.u64()
		n := r.u32()
		msg.Rows = make([]common.RowData, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			row := common.RowData{
				Key:        copyBlob(r.blob()),
				LastColumn: copyBlob(r.optBlob()),
			}
			if m := r.u32(); m > 0 {
				row.Columns = make([]common.ColumnData, 0, m)
				for j := uint32(0); j < m && r.err == nil; j++ {
					row.Columns = append(row.Columns, r.column())
				}
			}
			msg.Rows = append(msg.Rows, row)
		}
		n = r.u32()
		msg.Values = make([][]byte, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Values = append(msg.Values, copyBlob(r.optBlob()))
		}
		n = r.u32()
		msg.Names = make([]string, 0, n)
		for i := uint32(0); i < n && r.err == nil; i++ {
			msg.Names = append(msg.Names, string(r.blob()))
		}
		if len(msg.Rows) == 0 {
			msg.Rows = nil
		}
		if len(msg.Values) == 0 {
			msg.Values = nil
		}
		if len(msg.Names) == 0 {
			msg.Names = nil
		}
	}
	if flags&hasErr != 0 {
		msg.ErrKind = common.ErrorKind(r.byte())
		msg.Err = string(r.blob())
	}
	if flags&hasMeta != 0 {
		msg.Meta = copyBlob(r.blob())
	}
	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// appendBlob appends a length-prefixed byte field.
func appendBlob(dst, b []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// appendOptBlob appends a length-prefixed byte field where nil and empty
// are distinct: nil is encoded with the nilMarker length.
func appendOptBlob(dst, b []byte) []byte {
	if b == nil {
		return binary.BigEndian.AppendUint32(dst, nilMarker)
	}
	return appendBlob(dst, b)
}

func appendColumn(dst []byte, c common.ColumnData) []byte {
	dst = appendBlob(dst, c.Name)
	dst = appendOptBlob(dst, c.Value)
	return binary.BigEndian.AppendUint64(dst, uint64(c.Timestamp))
}

// copyBlob detaches a decoded field from the input buffer, keeping the
// nil / empty distinction.
func copyBlob(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// blobReader consumes the serialized fields with a sticky error.
type blobReader struct {
	data []byte
	pos  int
	err  error
}

func (r *blobReader) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("data too short for %s", what)
	}
}

func (r *blobReader) byte() byte {
	if r.err != nil {
		return 0
	}
	if r.pos+1 > len(r.data) {
		r.fail("byte field")
		return 0
	}
	b := r.data[r.pos]
	r.pos++
	return b
}

func (r *blobReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	if r.pos+4 > len(r.data) {
		r.fail("uint32 field")
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *blobReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	if r.pos+8 > len(r.data) {
		r.fail("uint64 field")
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

// blob reads a length-prefixed field; the result aliases the input.
func (r *blobReader) blob() []byte {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	if r.pos+int(n) > len(r.data) {
		r.fail("blob data")
		return nil
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b
}

// optBlob reads a field written by appendOptBlob.
func (r *blobReader) optBlob() []byte {
	n := r.u32()
	if r.err != nil {
		return nil
	}
	if n == nilMarker {
		return nil
	}
	if r.pos+int(n) > len(r.data) {
		r.fail("blob data")
		return nil
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b
}

func (r *blobReader) column() common.ColumnData {
	return common.ColumnData{
		Name:      copyBlob(r.blob()),
		Value:     copyBlob(r.optBlob()),
		Timestamp: int64(r.u64()),
	}
}
