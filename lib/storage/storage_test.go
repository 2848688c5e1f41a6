package storage

import (
	"bytes"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Options{Dir: t.TempDir(), DisableSync: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCommit(t *testing.T, store *Store, fill func(b *Batch) error) {
	t.Helper()
	b := store.NewBatch()
	if err := fill(b); err != nil {
		b.Close()
		t.Fatalf("fill batch: %v", err)
	}
	if err := b.Commit(true); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func mustGet(t *testing.T, view ReadView, key string) ([]byte, bool) {
	t.Helper()
	value, closer, ok, err := view.Get([]byte(key))
	if err != nil {
		t.Fatalf("get %q: %v", key, err)
	}
	if !ok {
		return nil, false
	}
	out := append([]byte(nil), value...)
	closer.Close()
	return out, true
}

func TestBatchPutGet(t *testing.T) {
	store := newTestStore(t)

	mustCommit(t, store, func(b *Batch) error {
		if err := b.Put([]byte("a"), []byte("1")); err != nil {
			return err
		}
		return b.Put([]byte("b"), []byte("2"))
	})

	if v, ok := mustGet(t, store, "a"); !ok || string(v) != "1" {
		t.Fatalf("a = %q ok=%v, want 1", v, ok)
	}
	if _, ok := mustGet(t, store, "missing"); ok {
		t.Fatalf("missing key found")
	}
}

func TestBatchDeleteRange(t *testing.T) {
	store := newTestStore(t)

	mustCommit(t, store, func(b *Batch) error {
		for _, k := range []string{"k1", "k2", "k3", "l1"} {
			if err := b.Put([]byte(k), []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	mustCommit(t, store, func(b *Batch) error {
		return b.DeleteRange([]byte("k1"), []byte("k3"))
	})

	for k, want := range map[string]bool{"k1": false, "k2": false, "k3": true, "l1": true} {
		if _, ok := mustGet(t, store, k); ok != want {
			t.Errorf("%s present=%v, want %v", k, ok, want)
		}
	}
}

func TestBatchRecordsOps(t *testing.T) {
	store := newTestStore(t)

	b := store.NewBatch()
	b.Put([]byte("k"), []byte("v"))
	b.Delete([]byte("d"))
	b.DeleteRange([]byte("r1"), []byte("r2"))

	ops := b.Ops()
	if b.Len() != 3 || len(ops) != 3 {
		t.Fatalf("recorded %d ops, want 3", len(ops))
	}
	if ops[0].Delete || string(ops[0].Value) != "v" {
		t.Errorf("op 0 = %+v, want put", ops[0])
	}
	if !ops[1].Delete || ops[1].EndKey != nil {
		t.Errorf("op 1 = %+v, want point delete", ops[1])
	}
	if !ops[2].Delete || string(ops[2].EndKey) != "r2" {
		t.Errorf("op 2 = %+v, want range delete", ops[2])
	}
	b.Close()
}

func TestSnapshotIsolation(t *testing.T) {
	store := newTestStore(t)

	mustCommit(t, store, func(b *Batch) error {
		return b.Put([]byte("k"), []byte("before"))
	})

	snap := store.NewSnapshot()
	defer snap.Close()

	mustCommit(t, store, func(b *Batch) error {
		if err := b.Put([]byte("k"), []byte("after")); err != nil {
			return err
		}
		return b.Put([]byte("new"), []byte("x"))
	})

	if v, _ := mustGet(t, snap, "k"); string(v) != "before" {
		t.Errorf("snapshot k = %q, want before", v)
	}
	if _, ok := mustGet(t, snap, "new"); ok {
		t.Errorf("snapshot sees a post-snapshot write")
	}
	if v, _ := mustGet(t, store, "k"); string(v) != "after" {
		t.Errorf("live k = %q, want after", v)
	}
}

func TestIteratorBoundsAndReuse(t *testing.T) {
	store := newTestStore(t)

	mustCommit(t, store, func(b *Batch) error {
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := b.Put([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	})

	it, err := store.NewIter([]byte("b"), []byte("d"))
	if err != nil {
		t.Fatalf("new iter: %v", err)
	}
	defer it.Close()

	var got []string
	for ok := it.First(); ok; ok = it.Next() {
		got = append(got, string(it.Key()))
	}
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("keys = %v, want [b c]", got)
	}

	// Rebinding the bounds recycles the iterator.
	it.SetBounds([]byte("a"), []byte("b"))
	if !it.First() || string(it.Key()) != "a" {
		t.Fatalf("rebound iterator did not land on a")
	}
	if it.Next() {
		t.Fatalf("rebound iterator walked past its upper bound")
	}
}

func TestIterPrefix(t *testing.T) {
	store := newTestStore(t)

	mustCommit(t, store, func(b *Batch) error {
		for _, k := range []string{"p/1", "p/2", "q/1"} {
			if err := b.Put([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	})

	var got []string
	err := IterPrefix(store, []byte("p/"), func(key, _ []byte) bool {
		got = append(got, string(key))
		return true
	})
	if err != nil {
		t.Fatalf("iter prefix: %v", err)
	}
	if len(got) != 2 || got[0] != "p/1" || got[1] != "p/2" {
		t.Fatalf("keys = %v, want [p/1 p/2]", got)
	}

	// Early stop after the first entry.
	count := 0
	IterPrefix(store, []byte("p/"), func(_, _ []byte) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("visited %d entries after early stop, want 1", count)
	}
}

func TestPrefixEnd(t *testing.T) {
	testCases := []struct {
		prefix []byte
		want   []byte
	}{
		{[]byte("abc"), []byte("abd")},
		{[]byte{0x01, 0xff}, []byte{0x02}},
		{[]byte{0xff, 0xff}, nil},
		{[]byte{}, nil},
	}
	for _, tc := range testCases {
		if got := PrefixEnd(tc.prefix); !bytes.Equal(got, tc.want) {
			t.Errorf("PrefixEnd(%x) = %x, want %x", tc.prefix, got, tc.want)
		}
	}
}
