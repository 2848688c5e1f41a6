package replication

import (
	"encoding/binary"
	"fmt"

	"github.com/tessera-db/tessera/lib/storage"
)

// --------------------------------------------------------------------------
// Update Payload Codec
// --------------------------------------------------------------------------

// Update payloads carry one committed batch:
//
//	u32 keyspaceID ∥ u32 nOps ∥ ops
//
// and each op is
//
//	u8 flags ∥ u32 keyLen ∥ key [∥ u32 endKeyLen ∥ endKey] [∥ u32 valLen ∥ value]
//
// endKey is present only for range deletions, value only for puts.
// All integers are little endian.
const (
	opFlagDelete   = 1 << 0
	opFlagRangeDel = 1 << 1
)

// EncodeUpdate appends the serialized form of one committed batch to dst.
func EncodeUpdate(dst []byte, ksID uint32, ops []storage.BatchOp) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, ksID)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(ops)))
	for _, op := range ops {
		var flags byte
		if op.Delete {
			flags |= opFlagDelete
		}
		if op.EndKey != nil {
			flags |= opFlagRangeDel
		}
		dst = append(dst, flags)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(op.Key)))
		dst = append(dst, op.Key...)
		if op.EndKey != nil {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(len(op.EndKey)))
			dst = append(dst, op.EndKey...)
		}
		if !op.Delete {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(len(op.Value)))
			dst = append(dst, op.Value...)
		}
	}
	return dst
}

// DecodeUpdate parses an update payload back into the keyspace id and the
// batch operations. The returned slices alias payload.
func DecodeUpdate(payload []byte) (uint32, []storage.BatchOp, error) {
	d := updateDecoder{data: payload}

	ksID := d.uint32()
	n := d.uint32()
	if d.err != nil {
		return 0, nil, d.err
	}

	// The declared count is wire data. Each op occupies at least 5 payload
	// bytes, which bounds the capacity hint.
	capHint := int(n)
	if limit := len(payload) / 5; capHint > limit {
		capHint = limit
	}
	ops := make([]storage.BatchOp, 0, capHint)
	for i := uint32(0); i < n; i++ {
		flags := d.byte()
		op := storage.BatchOp{
			Key:    d.bytes(),
			Delete: flags&opFlagDelete != 0,
		}
		if flags&opFlagRangeDel != 0 {
			op.EndKey = d.bytes()
		}
		if flags&opFlagDelete == 0 {
			op.Value = d.bytes()
		}
		if d.err != nil {
			return 0, nil, d.err
		}
		ops = append(ops, op)
	}
	if d.pos != len(d.data) {
		return 0, nil, fmt.Errorf("replication: %d trailing bytes in update", len(d.data)-d.pos)
	}
	return ksID, ops, nil
}

type updateDecoder struct {
	data []byte
	pos  int
	err  error
}

func (d *updateDecoder) fail() {
	if d.err == nil {
		d.err = fmt.Errorf("replication: truncated update at offset %d", d.pos)
	}
}

func (d *updateDecoder) byte() byte {
	if d.err != nil || d.pos+1 > len(d.data) {
		d.fail()
		return 0
	}
	b := d.data[d.pos]
	d.pos++
	return b
}

func (d *updateDecoder) uint32() uint32 {
	if d.err != nil || d.pos+4 > len(d.data) {
		d.fail()
		return 0
	}
	v := binary.LittleEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v
}

func (d *updateDecoder) bytes() []byte {
	n := int(d.uint32())
	if d.err != nil || d.pos+n > len(d.data) {
		d.fail()
		return nil
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b
}
