package engine

import (
	"bytes"
	"fmt"
	"testing"
)

// seedGrid commits rows k0..k(n-1) each with columns c0..c(m-1), value
// "<key>/<col>".
func seedGrid(t *testing.T, ks *Keyspace, table string, n, m int) {
	t.Helper()
	txn := ks.Begin(ReadCommitted)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("k%02d", i)
		cols := make([]Column, m)
		for j := 0; j < m; j++ {
			name := fmt.Sprintf("c%02d", j)
			cols[j] = Column{
				Name:     []byte(name),
				Value:    []byte(key + "/" + name),
				TsMicros: AutoTimestamp,
			}
		}
		if err := txn.PutColumns([]byte(table), []byte(key), cols); err != nil {
			t.Fatalf("seed put: %v", err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("seed commit: %v", err)
	}
}

func sliceKeys(s Slice) []string {
	out := make([]string, len(s.Keys))
	for i, kd := range s.Keys {
		out[i] = string(kd.Key)
	}
	return out
}

func colNames(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = string(c.Name)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSliceAllKeysAllColumns(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 4, 3)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	slice, err := txn.GetSlice([]byte("t"), AllKeys(), AllColumns(), 0, 0, true)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	want := []string{"k00", "k01", "k02", "k03"}
	if got := sliceKeys(slice); !equalStrings(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	if string(slice.LastKey) != "k03" {
		t.Errorf("LastKey = %q, want k03", slice.LastKey)
	}
	for _, kd := range slice.Keys {
		if got := colNames(kd.Columns); !equalStrings(got, []string{"c00", "c01", "c02"}) {
			t.Fatalf("row %s columns = %v", kd.Key, got)
		}
		for _, c := range kd.Columns {
			wantValue := string(kd.Key) + "/" + string(c.Name)
			if string(c.Value) != wantValue {
				t.Errorf("row %s col %s = %q, want %q", kd.Key, c.Name, c.Value, wantValue)
			}
			if c.TsMicros <= 0 {
				t.Errorf("row %s col %s missing timestamp", kd.Key, c.Name)
			}
		}
	}
}

func TestSliceDecodeTsDisabled(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 1, 1)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	slice, err := txn.GetSlice([]byte("t"), AllKeys(), AllColumns(), 0, 0, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if ts := slice.Keys[0].Columns[0].TsMicros; ts != 0 {
		t.Fatalf("timestamp = %d, want 0 with decodeTs disabled", ts)
	}
}

func TestSliceContinuousKeyRange(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 6, 1)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	// [k01, k04) is half open.
	slice, err := txn.GetSlice([]byte("t"),
		ContinuousKeys([]byte("k01"), []byte("k04")), AllColumns(), 0, 0, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	want := []string{"k01", "k02", "k03"}
	if got := sliceKeys(slice); !equalStrings(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
}

func TestSliceDiscreteKeys(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 4, 2)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	// Requested order is preserved and missing keys are skipped.
	slice, err := txn.GetSlice([]byte("t"),
		DiscreteKeys([]byte("k03"), []byte("nope"), []byte("k00")),
		AllColumns(), 0, 0, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	want := []string{"k03", "k00"}
	if got := sliceKeys(slice); !equalStrings(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
}

func TestSliceColumnList(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 2, 4)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	slice, err := txn.GetSlice([]byte("t"), AllKeys(),
		ColumnList([]byte("c01"), []byte("c03"), []byte("missing")), 0, 0, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	for _, kd := range slice.Keys {
		if got := colNames(kd.Columns); !equalStrings(got, []string{"c01", "c03"}) {
			t.Fatalf("row %s columns = %v, want [c01 c03]", kd.Key, got)
		}
	}
}

func TestSliceContinuousColumnsReverse(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 1, 5)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	slice, err := txn.GetSlice([]byte("t"), AllKeys(),
		ContinuousColumns([]byte("c01"), []byte("c04"), true), 0, 0, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if len(slice.Keys) != 1 {
		t.Fatalf("got %d rows, want 1", len(slice.Keys))
	}
	want := []string{"c03", "c02", "c01"}
	if got := colNames(slice.Keys[0].Columns); !equalStrings(got, want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
}

func TestSlicePaging(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 7, 2)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	var all []string
	first := []byte(nil)
	for page := 0; page < 10; page++ {
		slice, err := txn.GetSlice([]byte("t"),
			ContinuousKeys(first, nil), AllColumns(), 3, 0, false)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if len(slice.Keys) == 0 {
			break
		}
		all = append(all, sliceKeys(slice)...)
		if len(slice.Keys) < 3 {
			break
		}
		// Resume just past the last key of the page.
		first = append(append([]byte{}, slice.LastKey...), 0)
	}

	want := []string{"k00", "k01", "k02", "k03", "k04", "k05", "k06"}
	if !equalStrings(all, want) {
		t.Fatalf("paged keys = %v, want %v", all, want)
	}
}

func TestSliceMaxColumns(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 1, 6)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	slice, err := txn.GetSlice([]byte("t"), AllKeys(), AllColumns(), 0, 2, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	row := slice.Keys[0]
	if got := colNames(row.Columns); !equalStrings(got, []string{"c00", "c01"}) {
		t.Fatalf("columns = %v, want [c00 c01]", got)
	}
	if string(row.LastColumn) != "c01" {
		t.Errorf("LastColumn = %q, want c01", row.LastColumn)
	}
}

func TestSliceMergesOverlay(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 3, 1)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	// Pending writes: a brand new row, an overwrite, and a deleted row.
	if err := txn.PutColumns([]byte("t"), []byte("k00x"), []Column{col("c00", "added")}); err != nil {
		t.Fatalf("put new: %v", err)
	}
	if err := txn.PutColumns([]byte("t"), []byte("k01"), []Column{col("c00", "shadow")}); err != nil {
		t.Fatalf("put overwrite: %v", err)
	}
	if err := txn.DeleteKey([]byte("t"), []byte("k02")); err != nil {
		t.Fatalf("delete: %v", err)
	}

	slice, err := txn.GetSlice([]byte("t"), AllKeys(), AllColumns(), 0, 0, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	want := []string{"k00", "k00x", "k01"}
	if got := sliceKeys(slice); !equalStrings(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for _, kd := range slice.Keys {
		if bytes.Equal(kd.Key, []byte("k01")) {
			if string(kd.Columns[0].Value) != "shadow" {
				t.Fatalf("overlay write lost: %q", kd.Columns[0].Value)
			}
		}
	}
}

func TestSliceSkipsDeletedKeyAfterExternalWrite(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "t", "k1", col("a", "1"))
	mustPut(t, ks, "t", "k2", col("a", "2"))

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)
	if err := txn.DeleteKey([]byte("t"), []byte("k1")); err != nil {
		t.Fatalf("delete key: %v", err)
	}

	// A column committed elsewhere after the delete must not resurrect the
	// key inside this transaction.
	mustPut(t, ks, "t", "k1", col("b", "3"))

	slice, err := txn.GetSlice([]byte("t"), AllKeys(), AllColumns(), 0, 0, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if got := sliceKeys(slice); !equalStrings(got, []string{"k2"}) {
		t.Fatalf("keys = %v, want [k2]", got)
	}
	n, err := txn.CountKeys([]byte("t"), AllKeys())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestCountKeys(t *testing.T) {
	_, ks := newTestKeyspace(t)
	seedGrid(t, ks, "t", 3, 2)

	txn := ks.Begin(ReadCommitted)
	n, err := txn.CountKeys([]byte("t"), AllKeys())
	if err != nil || n != 3 {
		t.Fatalf("count = %d err=%v, want 3", n, err)
	}
	if err := txn.DeleteKey([]byte("t"), []byte("k01")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	n, err = txn.CountKeys([]byte("t"), AllKeys())
	if err != nil || n != 2 {
		t.Fatalf("count after delete = %d err=%v, want 2", n, err)
	}
	txn.Abort(nil)
}

func TestListTables(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "bb", "k", col("c", "v"))
	mustPut(t, ks, "aa", "k", col("c", "v"))

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	// Uncommitted tables are part of the listing too.
	if err := txn.PutColumns([]byte("cc"), []byte("k"), []Column{col("c", "v")}); err != nil {
		t.Fatalf("put: %v", err)
	}

	tables, err := txn.ListTables()
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	got := make([]string, len(tables))
	for i, tbl := range tables {
		got[i] = string(tbl)
	}
	if !equalStrings(got, []string{"aa", "bb", "cc"}) {
		t.Fatalf("tables = %v, want [aa bb cc]", got)
	}
}

func TestGetSliceValues(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "t", "alice", col("name", "A"), col("age", "30"))
	mustPut(t, ks, "t", "bob", col("name", "B"))

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	last, rows, err := txn.GetSliceValues([]byte("t"), AllKeys(),
		[][]byte{[]byte("name"), []byte("age")}, 0)
	if err != nil {
		t.Fatalf("slice values: %v", err)
	}
	if string(last) != "bob" {
		t.Errorf("last key = %q, want bob", last)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if string(rows[0].Values[0]) != "A" || string(rows[0].Values[1]) != "30" {
		t.Errorf("alice values = %q", rows[0].Values)
	}
	if string(rows[1].Values[0]) != "B" {
		t.Errorf("bob name = %q, want B", rows[1].Values[0])
	}
	if rows[1].Values[1] != nil {
		t.Errorf("bob age = %q, want nil", rows[1].Values[1])
	}
}

func TestSliceEmptyTable(t *testing.T) {
	_, ks := newTestKeyspace(t)

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	slice, err := txn.GetSlice([]byte("nothing"), AllKeys(), AllColumns(), 0, 0, false)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if len(slice.Keys) != 0 {
		t.Fatalf("got %d keys from empty table", len(slice.Keys))
	}
	if slice.LastKey != nil {
		t.Errorf("LastKey = %q, want nil", slice.LastKey)
	}
}
