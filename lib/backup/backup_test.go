package backup

import (
	"bytes"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	testCases := []struct {
		name   string
		cursor Cursor
	}{
		{
			name:   "Fresh dump",
			cursor: Cursor{RemainingTables: [][]byte{[]byte("aa"), []byte("bb")}},
		},
		{
			name: "Mid table",
			cursor: Cursor{
				RemainingTables: [][]byte{[]byte("t")},
				Key:             []byte("k42"),
				Column:          []byte("c"),
			},
		},
		{
			name:   "Empty",
			cursor: Cursor{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.cursor.Encode(nil)
			got, err := DecodeCursor(encoded)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got.RemainingTables) != len(tc.cursor.RemainingTables) {
				t.Fatalf("tables = %d, want %d", len(got.RemainingTables), len(tc.cursor.RemainingTables))
			}
			for i, tbl := range tc.cursor.RemainingTables {
				if !bytes.Equal(got.RemainingTables[i], tbl) {
					t.Errorf("table %d = %q, want %q", i, got.RemainingTables[i], tbl)
				}
			}
			if !bytes.Equal(got.Key, tc.cursor.Key) {
				t.Errorf("key = %q, want %q", got.Key, tc.cursor.Key)
			}
			if !bytes.Equal(got.Column, tc.cursor.Column) {
				t.Errorf("column = %q, want %q", got.Column, tc.cursor.Column)
			}
		})
	}
}

func TestDecodeCursorRejectsTrailingBytes(t *testing.T) {
	encoded := (&Cursor{Key: []byte("k")}).Encode(nil)
	encoded = append(encoded, 0xff)
	if _, err := DecodeCursor(encoded); err == nil {
		t.Fatalf("trailing bytes accepted")
	}
}

func TestDecodeCursorRejectsTruncation(t *testing.T) {
	encoded := (&Cursor{
		RemainingTables: [][]byte{[]byte("table")},
		Key:             []byte("key"),
	}).Encode(nil)
	for n := 0; n < len(encoded); n++ {
		if _, err := DecodeCursor(encoded[:n]); err == nil {
			t.Fatalf("truncation to %d bytes accepted", n)
		}
	}
}

func TestChunkWriterRespectsLimit(t *testing.T) {
	w := NewChunkWriter(256)
	w.BeginTable([]byte("t"))

	value := make([]byte, 64)
	appended := 0
	for w.Append([]byte("key"), []byte("col"), 1, value) {
		appended++
		if appended > 100 {
			t.Fatalf("writer never reported a full chunk")
		}
	}
	if appended == 0 {
		t.Fatalf("no record fit into the chunk")
	}
	if w.Len() > 256 {
		t.Fatalf("chunk size %d exceeds limit", w.Len())
	}
}

func TestChunkWriterOversizeFirstRecord(t *testing.T) {
	// A record larger than the limit still goes into an empty chunk so a
	// dump never stalls.
	w := NewChunkWriter(128)
	w.BeginTable([]byte("t"))
	if !w.Append([]byte("k"), []byte("c"), 1, make([]byte, 4096)) {
		t.Fatalf("oversized record rejected from an empty chunk")
	}
	if w.Len() <= 128 {
		t.Fatalf("chunk unexpectedly small: %d", w.Len())
	}
	// The next record must be rejected.
	if w.Append([]byte("k2"), []byte("c"), 1, []byte("v")) {
		t.Fatalf("record appended past the limit")
	}
}

func TestChunkRoundTrip(t *testing.T) {
	type rec struct {
		table, key, column string
		ts                 int64
		value              string
	}
	want := []rec{
		{"aa", "k1", "c1", 100, "v1"},
		{"aa", "k1", "c2", 200, ""},
		{"aa", "k2", "c1", 300, "v3"},
		{"bb", "k1", "c1", -1, "v4"},
	}

	w := NewChunkWriter(MaxChunk)
	var lastTable string
	for _, r := range want {
		if r.table != lastTable {
			w.BeginTable([]byte(r.table))
			lastTable = r.table
		}
		if !w.Append([]byte(r.key), []byte(r.column), r.ts, []byte(r.value)) {
			t.Fatalf("append %v failed", r)
		}
	}

	reader := NewChunkReader(w.Bytes())
	var got []rec
	for reader.Next() {
		r := reader.Record()
		got = append(got, rec{
			table:  string(r.Table),
			key:    string(r.Key),
			column: string(r.Column),
			ts:     r.TsMicros,
			value:  string(r.Value),
		})
	}
	if err := reader.Err(); err != nil {
		t.Fatalf("reader error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("read %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestChunkReaderEmptySection(t *testing.T) {
	// BeginTable without a following Append leaves no section behind.
	w := NewChunkWriter(MaxChunk)
	w.BeginTable([]byte("empty"))
	w.BeginTable([]byte("t"))
	w.Append([]byte("k"), []byte("c"), 1, []byte("v"))

	reader := NewChunkReader(w.Bytes())
	count := 0
	for reader.Next() {
		if string(reader.Record().Table) != "t" {
			t.Fatalf("record from table %q, want t", reader.Record().Table)
		}
		count++
	}
	if err := reader.Err(); err != nil {
		t.Fatalf("reader error: %v", err)
	}
	if count != 1 {
		t.Fatalf("read %d records, want 1", count)
	}
}

func TestChunkReaderMalformed(t *testing.T) {
	w := NewChunkWriter(MaxChunk)
	w.BeginTable([]byte("t"))
	w.Append([]byte("key"), []byte("col"), 1, []byte("value"))
	chunk := w.Bytes()

	// Any truncation mid-chunk surfaces as an error, not silent EOF.
	reader := NewChunkReader(chunk[:len(chunk)-3])
	for reader.Next() {
	}
	if reader.Err() == nil {
		t.Fatalf("truncated chunk read without error")
	}
}
