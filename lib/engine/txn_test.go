package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/tessera-db/tessera/lib/storage"
)

// newTestKeyspace opens a fresh store with one registered keyspace.
func newTestKeyspace(t *testing.T) (*Engine, *Keyspace) {
	t.Helper()
	store, err := storage.Open(storage.Options{Dir: t.TempDir(), DisableSync: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng, err := New(store)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ks, err := eng.RegisterKeyspace("test")
	if err != nil {
		t.Fatalf("register keyspace: %v", err)
	}
	return eng, ks
}

// mustPut writes and commits one row in its own transaction.
func mustPut(t *testing.T, ks *Keyspace, table, key string, cols ...Column) {
	t.Helper()
	txn := ks.Begin(ReadCommitted)
	if err := txn.PutColumns([]byte(table), []byte(key), cols); err != nil {
		t.Fatalf("put %s/%s: %v", table, key, err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit %s/%s: %v", table, key, err)
	}
}

func col(name, value string) Column {
	return Column{Name: []byte(name), Value: []byte(value), TsMicros: AutoTimestamp}
}

func TestPutCommitVisibility(t *testing.T) {
	_, ks := newTestKeyspace(t)

	cols := []Column{col("name", "A"), col("age", "30")}

	txn := ks.Begin(ReadCommitted)
	if err := txn.PutColumns([]byte("t"), []byte("alice"), cols); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Uncommitted writes are visible to the writing transaction.
	c, ok, err := txn.GetColumn([]byte("t"), []byte("alice"), []byte("name"))
	if err != nil || !ok {
		t.Fatalf("own write not visible: ok=%v err=%v", ok, err)
	}
	if string(c.Value) != "A" {
		t.Fatalf("own write value = %q, want A", c.Value)
	}

	// But not to others before commit.
	other := ks.Begin(ReadCommitted)
	if _, ok, _ := other.GetColumn([]byte("t"), []byte("alice"), []byte("name")); ok {
		t.Fatalf("uncommitted write visible to other transaction")
	}
	other.Abort(nil)

	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// After commit every column is visible with its commit timestamp.
	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)
	for _, want := range cols {
		c, ok, err := reader.GetColumn([]byte("t"), []byte("alice"), want.Name)
		if err != nil || !ok {
			t.Fatalf("column %s: ok=%v err=%v", want.Name, ok, err)
		}
		if string(c.Value) != string(want.Value) {
			t.Errorf("column %s = %q, want %q", want.Name, c.Value, want.Value)
		}
		if c.TsMicros <= 0 {
			t.Errorf("column %s has no commit timestamp", want.Name)
		}
	}
}

func TestGetColumnValuesProjection(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "t", "alice", col("name", "A"), col("age", "30"))

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	values, err := txn.GetColumnValues([]byte("t"), []byte("alice"),
		[][]byte{[]byte("name"), []byte("missing")})
	if err != nil {
		t.Fatalf("get values: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("got %d values, want 2", len(values))
	}
	if string(values[0]) != "A" {
		t.Errorf("values[0] = %q, want A", values[0])
	}
	if values[1] != nil {
		t.Errorf("values[1] = %q, want nil", values[1])
	}
}

func TestDeleteKey(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "t", "k", col("a", "1"), col("b", "2"))

	txn := ks.Begin(ReadCommitted)
	if err := txn.DeleteKey([]byte("t"), []byte("k")); err != nil {
		t.Fatalf("delete key: %v", err)
	}
	// The delete is visible inside the transaction already.
	if ok, _ := txn.ExistsKey([]byte("t"), []byte("k")); ok {
		t.Fatalf("key still exists inside deleting transaction")
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)
	if ok, err := reader.ExistsKey([]byte("t"), []byte("k")); err != nil || ok {
		t.Fatalf("exists after delete_key = %v, err=%v, want false", ok, err)
	}
}

func TestDeleteColumns(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "t", "k", col("a", "1"), col("b", "2"))

	txn := ks.Begin(ReadCommitted)
	if err := txn.DeleteColumns([]byte("t"), []byte("k"), [][]byte{[]byte("a")}); err != nil {
		t.Fatalf("delete columns: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)
	if _, ok, _ := reader.GetColumn([]byte("t"), []byte("k"), []byte("a")); ok {
		t.Errorf("deleted column still visible")
	}
	if _, ok, _ := reader.GetColumn([]byte("t"), []byte("k"), []byte("b")); !ok {
		t.Errorf("surviving column lost")
	}
}

func TestPutCancelsPendingTombstone(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "t", "k", col("a", "old"))

	txn := ks.Begin(ReadCommitted)
	if err := txn.DeleteColumns([]byte("t"), []byte("k"), [][]byte{[]byte("a")}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := txn.PutColumns([]byte("t"), []byte("k"), []Column{col("a", "new")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	c, ok, err := txn.GetColumn([]byte("t"), []byte("k"), []byte("a"))
	if err != nil || !ok {
		t.Fatalf("column invisible after re-put: ok=%v err=%v", ok, err)
	}
	if string(c.Value) != "new" {
		t.Fatalf("value = %q, want new", c.Value)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)
	c, ok, _ = reader.GetColumn([]byte("t"), []byte("k"), []byte("a"))
	if !ok || string(c.Value) != "new" {
		t.Fatalf("committed value = %q ok=%v, want new", c.Value, ok)
	}
}

func TestNestedOverwrite(t *testing.T) {
	_, ks := newTestKeyspace(t)

	outer := ks.Begin(ReadCommitted)
	if err := outer.PutColumns([]byte("t"), []byte("k1"), []Column{col("c", "1")}); err != nil {
		t.Fatalf("outer put: %v", err)
	}

	inner := outer.Nest()
	if err := inner.PutColumns([]byte("t"), []byte("k1"), []Column{col("c", "2")}); err != nil {
		t.Fatalf("inner put: %v", err)
	}
	if err := inner.Commit(); err != nil {
		t.Fatalf("inner commit: %v", err)
	}
	if err := outer.Commit(); err != nil {
		t.Fatalf("outer commit: %v", err)
	}

	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)
	c, ok, err := reader.GetColumn([]byte("t"), []byte("k1"), []byte("c"))
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(c.Value) != "2" {
		t.Fatalf("value = %q, want 2", c.Value)
	}
}

func TestNestedAbortPoisonsTree(t *testing.T) {
	_, ks := newTestKeyspace(t)

	cause := errors.New("validation failed")
	outer := ks.Begin(ReadCommitted)
	outer.PutColumns([]byte("t"), []byte("k"), []Column{col("c", "1")})

	inner := outer.Nest()
	inner.Abort(cause)

	err := outer.Commit()
	var abort *AbortError
	if !errors.As(err, &abort) {
		t.Fatalf("outer commit after nested abort = %v, want AbortError", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("abort cause lost: %v", err)
	}

	// Nothing was written.
	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)
	if ok, _ := reader.ExistsKey([]byte("t"), []byte("k")); ok {
		t.Fatalf("aborted write reached the store")
	}
}

func TestWithHelper(t *testing.T) {
	_, ks := newTestKeyspace(t)

	err := ks.With(ReadCommitted, func(txn *Txn) error {
		return txn.PutColumns([]byte("t"), []byte("k"), []Column{col("c", "v")})
	})
	if err != nil {
		t.Fatalf("with: %v", err)
	}

	failure := errors.New("nope")
	err = ks.With(ReadCommitted, func(txn *Txn) error {
		txn.PutColumns([]byte("t"), []byte("k2"), []Column{col("c", "v")})
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("with error = %v, want %v", err, failure)
	}

	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)
	if ok, _ := reader.ExistsKey([]byte("t"), []byte("k")); !ok {
		t.Errorf("committed with-write missing")
	}
	if ok, _ := reader.ExistsKey([]byte("t"), []byte("k2")); ok {
		t.Errorf("aborted with-write present")
	}
}

func TestRepeatableReadStability(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "t", "k", col("c", "before"))

	txn := ks.Begin(RepeatableRead)
	defer txn.Abort(nil)

	first, err := txn.GetSlice([]byte("t"), AllKeys(), AllColumns(), 0, 0, false)
	if err != nil {
		t.Fatalf("first slice: %v", err)
	}

	// An external session commits a change and a new row.
	mustPut(t, ks, "t", "k", col("c", "after"))
	mustPut(t, ks, "t", "k2", col("c", "new"))

	second, err := txn.GetSlice([]byte("t"), AllKeys(), AllColumns(), 0, 0, false)
	if err != nil {
		t.Fatalf("second slice: %v", err)
	}

	if len(first.Keys) != 1 || len(second.Keys) != 1 {
		t.Fatalf("slices have %d and %d keys, want 1 and 1", len(first.Keys), len(second.Keys))
	}
	for _, slice := range []Slice{first, second} {
		if string(slice.Keys[0].Columns[0].Value) != "before" {
			t.Fatalf("snapshot read = %q, want before", slice.Keys[0].Columns[0].Value)
		}
	}

	// Point reads go through the same snapshot.
	c, ok, err := txn.GetColumn([]byte("t"), []byte("k"), []byte("c"))
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(c.Value) != "before" {
		t.Fatalf("snapshot point read = %q, want before", c.Value)
	}
}

func TestReadCommittedFreshness(t *testing.T) {
	_, ks := newTestKeyspace(t)
	mustPut(t, ks, "t", "k", col("c", "v1"))

	txn := ks.Begin(ReadCommitted)
	defer txn.Abort(nil)

	c, _, _ := txn.GetColumn([]byte("t"), []byte("k"), []byte("c"))
	if string(c.Value) != "v1" {
		t.Fatalf("initial read = %q, want v1", c.Value)
	}

	mustPut(t, ks, "t", "k", col("c", "v2"))

	c, _, _ = txn.GetColumn([]byte("t"), []byte("k"), []byte("c"))
	if string(c.Value) != "v2" {
		t.Fatalf("read after external commit = %q, want v2", c.Value)
	}
}

func TestExplicitTimestamp(t *testing.T) {
	_, ks := newTestKeyspace(t)

	txn := ks.Begin(ReadCommitted)
	err := txn.PutColumns([]byte("t"), []byte("k"), []Column{
		{Name: []byte("c"), Value: []byte("v"), TsMicros: 42},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)
	c, ok, err := reader.GetColumn([]byte("t"), []byte("k"), []byte("c"))
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if c.TsMicros != 42 {
		t.Fatalf("timestamp = %d, want 42", c.TsMicros)
	}
}

func TestNewerVersionWins(t *testing.T) {
	_, ks := newTestKeyspace(t)

	// Two committed versions of the same column; reads must see the newer.
	mustPut(t, ks, "t", "k", Column{Name: []byte("c"), Value: []byte("old"), TsMicros: 100})
	mustPut(t, ks, "t", "k", Column{Name: []byte("c"), Value: []byte("new"), TsMicros: 200})

	reader := ks.Begin(ReadCommitted)
	defer reader.Abort(nil)

	c, ok, err := reader.GetColumn([]byte("t"), []byte("k"), []byte("c"))
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(c.Value) != "new" || c.TsMicros != 200 {
		t.Fatalf("got (%q, %d), want (new, 200)", c.Value, c.TsMicros)
	}

	// Row scans also surface only the newest version.
	cols, err := reader.GetColumns([]byte("t"), []byte("k"), 0)
	if err != nil {
		t.Fatalf("get columns: %v", err)
	}
	if len(cols) != 1 {
		t.Fatalf("got %d columns, want 1", len(cols))
	}
}

func TestFinishedTxnRejectsOperations(t *testing.T) {
	_, ks := newTestKeyspace(t)

	txn := ks.Begin(ReadCommitted)
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := txn.PutColumns([]byte("t"), []byte("k"), []Column{col("c", "v")}); !errors.Is(err, ErrTxnFinished) {
		t.Errorf("put on finished txn = %v, want ErrTxnFinished", err)
	}
	if _, _, err := txn.GetColumn([]byte("t"), []byte("k"), []byte("c")); !errors.Is(err, ErrTxnFinished) {
		t.Errorf("get on finished txn = %v, want ErrTxnFinished", err)
	}
	if err := txn.Commit(); !errors.Is(err, ErrTxnFinished) {
		t.Errorf("double commit = %v, want ErrTxnFinished", err)
	}
}

func TestEmptyCommitIsNoop(t *testing.T) {
	_, ks := newTestKeyspace(t)

	notified := make(chan struct{}, 1)
	eng := ks.eng
	eng.SetCommitObserver(func(uint32, []storage.BatchOp) {
		notified <- struct{}{}
	})
	defer eng.SetCommitObserver(nil)

	txn := ks.Begin(ReadCommitted)
	if err := txn.Commit(); err != nil {
		t.Fatalf("empty commit: %v", err)
	}
	select {
	case <-notified:
		t.Fatalf("empty commit notified the observer")
	default:
	}
}

func TestAwaitCommit(t *testing.T) {
	_, ks := newTestKeyspace(t)

	ch := ks.AwaitCommit()
	select {
	case <-ch:
		t.Fatalf("await fired before any commit")
	default:
	}

	mustPut(t, ks, "t", "k", col("c", "v"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatalf("await did not fire after commit")
	}
}
