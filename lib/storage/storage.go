package storage

import (
	"fmt"
	"io"
	"sync"

	"github.com/cockroachdb/pebble"
)

// --------------------------------------------------------------------------
// Interface Definitions
// --------------------------------------------------------------------------

// ReadView is a point of observation into the store: either the live
// database (reads see every committed write) or a snapshot (reads see the
// state at snapshot time). Both support point gets and bounded iterators.
type ReadView interface {
	// Get returns the value stored under key. The bool reports presence;
	// the closer must be closed once the value has been consumed.
	Get(key []byte) (value []byte, closer io.Closer, ok bool, err error)

	// NewIter returns an iterator over [lower, upper).
	NewIter(lower, upper []byte) (*Iterator, error)
}

// BatchOp is a single operation recorded in a write batch, exposed so that
// commit observers (replication) can inspect what was applied. EndKey is
// set only for range deletions, which cover [Key, EndKey).
type BatchOp struct {
	Key    []byte
	EndKey []byte
	Value  []byte
	Delete bool
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Options configures Open.
type Options struct {
	// Dir is the database directory.
	Dir string
	// DisableSync turns fsync off for commits; crash durability is lost.
	DisableSync bool
}

// Store wraps a Pebble database.
type Store struct {
	db          *pebble.DB
	commitMu    sync.Mutex
	disableSync bool
}

// Open opens (creating if necessary) the store at opts.Dir.
func Open(opts Options) (*Store, error) {
	db, err := pebble.Open(opts.Dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", opts.Dir, err)
	}
	return &Store{db: db, disableSync: opts.DisableSync}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get reads a single key from the live database.
func (s *Store) Get(key []byte) ([]byte, io.Closer, bool, error) {
	return get(s.db, key)
}

// NewIter returns a live iterator over [lower, upper).
func (s *Store) NewIter(lower, upper []byte) (*Iterator, error) {
	return newIter(s.db, lower, upper)
}

// NewSnapshot returns a point-in-time read view. The caller must Close it.
func (s *Store) NewSnapshot() *Snapshot {
	return &Snapshot{snap: s.db.NewSnapshot()}
}

// ApproximateSize estimates the on-disk size of the key range
// [start, end).
func (s *Store) ApproximateSize(start, end []byte) (uint64, error) {
	return s.db.EstimateDiskUsage(start, end)
}

// Checkpoint writes a consistent on-disk copy of the store into dir. The
// directory must not exist yet. Used by the data-plane file server to hand
// out dump snapshots.
func (s *Store) Checkpoint(dir string) error {
	if err := s.db.Checkpoint(dir); err != nil {
		return fmt.Errorf("storage: checkpoint %s: %w", dir, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Batch
// --------------------------------------------------------------------------

// Batch is an atomic write batch. Operations are buffered in memory and
// applied in one shot by Commit.
type Batch struct {
	store *Store
	batch *pebble.Batch
	ops   []BatchOp
}

// NewBatch allocates an empty batch.
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s, batch: s.db.NewBatch()}
}

// Put records a key/value write.
func (b *Batch) Put(key, value []byte) error {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	if err := b.batch.Set(k, v, nil); err != nil {
		return fmt.Errorf("storage: batch set: %w", err)
	}
	b.ops = append(b.ops, BatchOp{Key: k, Value: v})
	return nil
}

// Delete records a key deletion.
func (b *Batch) Delete(key []byte) error {
	k := append([]byte(nil), key...)
	if err := b.batch.Delete(k, nil); err != nil {
		return fmt.Errorf("storage: batch delete: %w", err)
	}
	b.ops = append(b.ops, BatchOp{Key: k, Delete: true})
	return nil
}

// DeleteRange records the deletion of every key in [start, end).
func (b *Batch) DeleteRange(start, end []byte) error {
	s := append([]byte(nil), start...)
	e := append([]byte(nil), end...)
	if err := b.batch.DeleteRange(s, e, nil); err != nil {
		return fmt.Errorf("storage: batch delete range: %w", err)
	}
	b.ops = append(b.ops, BatchOp{Key: s, EndKey: e, Delete: true})
	return nil
}

// Len returns the number of recorded operations.
func (b *Batch) Len() int { return len(b.ops) }

// Ops returns the recorded operations in application order.
func (b *Batch) Ops() []BatchOp { return b.ops }

// Commit applies the batch atomically. When sync is true the write is
// fsynced before Commit returns. Commits on one store are serialized.
func (b *Batch) Commit(sync bool) error {
	b.store.commitMu.Lock()
	defer b.store.commitMu.Unlock()

	opt := pebble.Sync
	if !sync || b.store.disableSync {
		opt = pebble.NoSync
	}
	if err := b.batch.Commit(opt); err != nil {
		return fmt.Errorf("storage: batch commit: %w", err)
	}
	return nil
}

// Close releases the batch without applying it.
func (b *Batch) Close() error {
	return b.batch.Close()
}

// --------------------------------------------------------------------------
// Snapshot
// --------------------------------------------------------------------------

// Snapshot is a point-in-time ReadView. It pins resources in the store and
// must be closed when the owning transaction completes.
type Snapshot struct {
	snap *pebble.Snapshot
}

func (s *Snapshot) Get(key []byte) ([]byte, io.Closer, bool, error) {
	return get(s.snap, key)
}

func (s *Snapshot) NewIter(lower, upper []byte) (*Iterator, error) {
	return newIter(s.snap, lower, upper)
}

// Close releases the snapshot.
func (s *Snapshot) Close() error {
	return s.snap.Close()
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

// reader is the subset of pebble.Reader both *pebble.DB and
// *pebble.Snapshot satisfy.
type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func get(r reader, key []byte) ([]byte, io.Closer, bool, error) {
	value, closer, err := r.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("storage: get: %w", err)
	}
	return value, closer, true, nil
}

func newIter(r reader, lower, upper []byte) (*Iterator, error) {
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("storage: new iterator: %w", err)
	}
	return &Iterator{it: it}, nil
}

// Iterator walks a bounded key range in ascending order.
type Iterator struct {
	it *pebble.Iterator
}

// First positions the iterator at the start of its range.
func (i *Iterator) First() bool { return i.it.First() }

// SeekGE positions the iterator at the first key ≥ key.
func (i *Iterator) SeekGE(key []byte) bool { return i.it.SeekGE(key) }

// Valid reports whether the iterator points at an entry.
func (i *Iterator) Valid() bool { return i.it.Valid() }

// Next advances the iterator.
func (i *Iterator) Next() bool { return i.it.Next() }

// Key returns the current key. The slice is only valid until the next
// positioning call.
func (i *Iterator) Key() []byte { return i.it.Key() }

// Value returns the current value. Same lifetime as Key.
func (i *Iterator) Value() []byte { return i.it.Value() }

// SetBounds narrows the iterator to [lower, upper) and invalidates its
// position. Used when recycling pooled iterators.
func (i *Iterator) SetBounds(lower, upper []byte) { i.it.SetBounds(lower, upper) }

// Error returns the first error encountered while iterating.
func (i *Iterator) Error() error { return i.it.Error() }

// Close releases the iterator.
func (i *Iterator) Close() error { return i.it.Close() }

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// IterPrefix invokes fn for every (key, value) whose key starts with
// prefix, in ascending order. Iteration stops early when fn returns false.
func IterPrefix(view ReadView, prefix []byte, fn func(key, value []byte) bool) error {
	it, err := view.NewIter(prefix, PrefixEnd(prefix))
	if err != nil {
		return err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		if !fn(it.Key(), it.Value()) {
			break
		}
	}
	return it.Error()
}

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil if no such bound exists.
func PrefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xFF {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
