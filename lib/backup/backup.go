package backup

import (
	"encoding/binary"
	"fmt"
)

// MaxChunk is the target size of one dump chunk. A single record larger
// than this still produces a (oversized) chunk so that dumps always make
// progress.
const MaxChunk = 65536

// --------------------------------------------------------------------------
// Cursor
// --------------------------------------------------------------------------

// Cursor marks a resume position inside a dump: the tables still to be
// dumped and, within the first of them, the next (key, column) to emit.
// Clients treat the encoded form as opaque.
type Cursor struct {
	RemainingTables [][]byte
	Key             []byte
	Column          []byte
}

// Encode appends the cursor's binary form to dst.
func (c *Cursor) Encode(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(c.RemainingTables)))
	for _, tbl := range c.RemainingTables {
		dst = appendBytes(dst, tbl)
	}
	dst = appendBytes(dst, c.Key)
	return appendBytes(dst, c.Column)
}

// DecodeCursor parses an encoded cursor.
func DecodeCursor(b []byte) (*Cursor, error) {
	n, b, err := consumeUint32(b)
	if err != nil {
		return nil, err
	}
	c := &Cursor{}
	for i := uint32(0); i < n; i++ {
		var tbl []byte
		if tbl, b, err = consumeBytes(b); err != nil {
			return nil, err
		}
		c.RemainingTables = append(c.RemainingTables, tbl)
	}
	if c.Key, b, err = consumeBytes(b); err != nil {
		return nil, err
	}
	if c.Column, b, err = consumeBytes(b); err != nil {
		return nil, err
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("backup: %d trailing cursor bytes", len(b))
	}
	if len(c.Key) == 0 {
		c.Key = nil
	}
	if len(c.Column) == 0 {
		c.Column = nil
	}
	return c, nil
}

// --------------------------------------------------------------------------
// Chunk Writer
// --------------------------------------------------------------------------

// ChunkWriter assembles one chunk. Records are grouped into per-table
// sections; the section header is written lazily when the table's first
// record arrives, so switching to a table that contributes nothing costs
// nothing.
type ChunkWriter struct {
	buf      []byte
	limit    int
	table    []byte // pending section, nil once its header is written
	countOff int    // offset of the open section's record count
	count    uint32
}

// NewChunkWriter returns a writer targeting the given chunk size.
func NewChunkWriter(limit int) *ChunkWriter {
	return &ChunkWriter{limit: limit, countOff: -1}
}

// BeginTable switches the writer to a new table section.
func (w *ChunkWriter) BeginTable(table []byte) {
	w.flushCount()
	w.table = table
}

// Append writes one record. It returns false, leaving the writer
// untouched, when the record does not fit in the remaining budget and the
// chunk is non-empty.
func (w *ChunkWriter) Append(key, column []byte, tsMicros int64, value []byte) bool {
	need := 4 + len(key) + 4 + len(column) + 8 + 4 + len(value)
	if w.table != nil {
		need += 4 + len(w.table) + 4
	}
	if len(w.buf) > 0 && len(w.buf)+need > w.limit {
		return false
	}
	if w.table != nil {
		w.buf = appendBytes(w.buf, w.table)
		w.countOff = len(w.buf)
		w.buf = binary.LittleEndian.AppendUint32(w.buf, 0)
		w.count = 0
		w.table = nil
	}
	w.buf = appendBytes(w.buf, key)
	w.buf = appendBytes(w.buf, column)
	w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(tsMicros))
	w.buf = appendBytes(w.buf, value)
	w.count++
	return true
}

// Len returns the current chunk size in bytes.
func (w *ChunkWriter) Len() int { return len(w.buf) }

// Bytes finalizes and returns the chunk.
func (w *ChunkWriter) Bytes() []byte {
	w.flushCount()
	return w.buf
}

func (w *ChunkWriter) flushCount() {
	if w.countOff >= 0 {
		binary.LittleEndian.PutUint32(w.buf[w.countOff:], w.count)
		w.countOff = -1
	}
}

// --------------------------------------------------------------------------
// Chunk Reader
// --------------------------------------------------------------------------

// Record is one dumped datum.
type Record struct {
	Table    []byte
	Key      []byte
	Column   []byte
	TsMicros int64
	Value    []byte
}

// ChunkReader iterates the records of one chunk. Returned slices alias the
// chunk buffer.
type ChunkReader struct {
	rest    []byte
	table   []byte
	pending uint32
	err     error
	rec     Record
}

// NewChunkReader wraps an encoded chunk.
func NewChunkReader(chunk []byte) *ChunkReader {
	return &ChunkReader{rest: chunk}
}

// Next advances to the next record. It returns false at end of chunk or on
// a malformed chunk; Err distinguishes the two.
func (r *ChunkReader) Next() bool {
	if r.err != nil {
		return false
	}
	for r.pending == 0 {
		if len(r.rest) == 0 {
			return false
		}
		if r.table, r.rest, r.err = consumeBytes(r.rest); r.err != nil {
			return false
		}
		if r.pending, r.rest, r.err = consumeUint32(r.rest); r.err != nil {
			return false
		}
	}
	r.pending--
	r.rec.Table = r.table
	if r.rec.Key, r.rest, r.err = consumeBytes(r.rest); r.err != nil {
		return false
	}
	if r.rec.Column, r.rest, r.err = consumeBytes(r.rest); r.err != nil {
		return false
	}
	if len(r.rest) < 8 {
		r.err = fmt.Errorf("backup: truncated record timestamp")
		return false
	}
	r.rec.TsMicros = int64(binary.LittleEndian.Uint64(r.rest))
	r.rest = r.rest[8:]
	if r.rec.Value, r.rest, r.err = consumeBytes(r.rest); r.err != nil {
		return false
	}
	return true
}

// Record returns the record Next positioned on.
func (r *ChunkReader) Record() Record { return r.rec }

// Err returns the first decoding error encountered.
func (r *ChunkReader) Err() error { return r.err }

// --------------------------------------------------------------------------
// Length-Prefixed Fields
// --------------------------------------------------------------------------

func appendBytes(dst, b []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

func consumeUint32(b []byte) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, fmt.Errorf("backup: truncated length field")
	}
	return binary.LittleEndian.Uint32(b), b[4:], nil
}

func consumeBytes(b []byte) ([]byte, []byte, error) {
	n, rest, err := consumeUint32(b)
	if err != nil {
		return nil, nil, err
	}
	if uint32(len(rest)) < n {
		return nil, nil, fmt.Errorf("backup: field length %d exceeds remaining %d bytes", n, len(rest))
	}
	return rest[:n], rest[n:], nil
}
