package datum

import (
	"bytes"
	"testing"
)

func TestKeyRoundTrip(t *testing.T) {
	tests := []struct {
		ksID               uint32
		table, row, column string
		ts                 int64
	}{
		{1, "t", "alice", "name", 1234567},
		{1, "", "", "", 0},
		{42, "ta\x00ble", "k\x00", "c\x00\x00ol", 1 << 50},
		{EndOfDBKeyspaceID - 1, "zz", "key", "col", 999},
	}
	var scratch []byte
	for _, tc := range tests {
		enc := AppendKey(nil, tc.ksID, []byte(tc.table), []byte(tc.row), []byte(tc.column), tc.ts)

		var k Key
		var err error
		scratch, err = k.Decode(enc, scratch[:0])
		if err != nil {
			t.Fatalf("decode (%d, %q, %q, %q, %d): %v", tc.ksID, tc.table, tc.row, tc.column, tc.ts, err)
		}
		if k.KeyspaceID != tc.ksID || string(k.Table) != tc.table ||
			string(k.Row) != tc.row || string(k.Column) != tc.column || k.TsMicros != tc.ts {
			t.Errorf("round trip: got (%d, %q, %q, %q, %d)",
				k.KeyspaceID, k.Table, k.Row, k.Column, k.TsMicros)
		}
	}
}

func TestNewestTimestampSortsFirst(t *testing.T) {
	newer := AppendKey(nil, 1, []byte("t"), []byte("k"), []byte("c"), 2000)
	older := AppendKey(nil, 1, []byte("t"), []byte("k"), []byte("c"), 1000)
	if bytes.Compare(newer, older) >= 0 {
		t.Error("newer version must sort before older version")
	}
}

func TestComponentOrdering(t *testing.T) {
	// Key order must follow (ksID, table, key, column) component by
	// component.
	keys := [][]byte{
		AppendKey(nil, 1, []byte("a"), []byte("k"), []byte("c"), 0),
		AppendKey(nil, 1, []byte("a"), []byte("k"), []byte("d"), 0),
		AppendKey(nil, 1, []byte("a"), []byte("l"), []byte("a"), 0),
		AppendKey(nil, 1, []byte("ab"), []byte("a"), []byte("a"), 0),
		AppendKey(nil, 1, []byte("b"), []byte("a"), []byte("a"), 0),
		AppendKey(nil, 2, []byte("a"), []byte("a"), []byte("a"), 0),
	}
	for i := 1; i < len(keys); i++ {
		if bytes.Compare(keys[i-1], keys[i]) >= 0 {
			t.Errorf("key %d does not sort below key %d", i-1, i)
		}
	}
}

func TestTableSuccessor(t *testing.T) {
	ks := uint32(3)
	succ := TableSuccessor(nil, ks, []byte("t"))

	// Above every datum of the table, including keys and columns that sort
	// high within it.
	high := AppendKey(nil, ks, []byte("t"), bytes.Repeat([]byte{0xFE}, 8), bytes.Repeat([]byte{0xFE}, 8), 0)
	if bytes.Compare(succ, high) <= 0 {
		t.Error("successor not above the table's datums")
	}

	// Below the next table, including one that extends the name.
	for _, next := range []string{"t\x00", "ta", "u"} {
		p := TablePrefix(nil, ks, []byte(next))
		if bytes.Compare(succ, p) >= 0 {
			t.Errorf("successor not below table %q", next)
		}
	}
}

func TestRegionOrdering(t *testing.T) {
	meta := MetaKey("zzz-keyspace")
	first := AppendKey(nil, FirstKeyspaceID, nil, nil, nil, 0)
	end := EndOfDBKey()

	if bytes.Compare(meta, MetaRangeEnd()) >= 0 {
		t.Error("metadata key not below metadata range end")
	}
	if bytes.Compare(MetaRangeEnd(), first) > 0 {
		t.Error("metadata region overlaps datum region")
	}
	if bytes.Compare(first, end) >= 0 {
		t.Error("datum key not below end-of-db sentinel")
	}
	high := AppendKey(nil, EndOfDBKeyspaceID-1, []byte{0xFE}, []byte{0xFE}, []byte{0xFE}, 0)
	if bytes.Compare(high, end) >= 0 {
		t.Error("high datum key not below end-of-db sentinel")
	}

	name, err := MetaName(meta)
	if err != nil || name != "zzz-keyspace" {
		t.Errorf("MetaName: got (%q, %v)", name, err)
	}
}

func TestKeyspacePrefixBounds(t *testing.T) {
	k := AppendKey(nil, 7, []byte("t"), []byte("k"), []byte("c"), 12)
	lo := KeyspacePrefix(nil, 7)
	hi := KeyspaceEnd(nil, 7)
	if !bytes.HasPrefix(k, lo) {
		t.Error("datum key misses keyspace prefix")
	}
	if bytes.Compare(k, hi) >= 0 {
		t.Error("datum key not below keyspace end")
	}
}
