package engine

import (
	"bytes"
	"time"

	"github.com/tidwall/btree"

	"github.com/tessera-db/tessera/lib/datum"
	"github.com/tessera-db/tessera/lib/storage"
)

// DefaultIterPoolSize bounds the per-transaction iterator pool used by
// repeatable-read transactions.
const DefaultIterPoolSize = 1000

// --------------------------------------------------------------------------
// Overlay Structures
// --------------------------------------------------------------------------

// colLess orders overlay columns by name.
func colLess(a, b Column) bool { return bytes.Compare(a.Name, b.Name) < 0 }

// strLess orders overlay keys.
func strLess(a, b string) bool { return a < b }

// txnState is the shared state of a transaction and all transactions
// nested inside it. The five overlays shadow the backing store until the
// outermost commit flushes them in a single atomic batch.
type txnState struct {
	ks  *Keyspace
	iso Isolation

	// addedKeys: table → ordered set of row keys introduced by this txn.
	addedKeys map[string]*btree.BTreeG[string]
	// deletedKeys: table → set of row keys fully deleted by this txn.
	deletedKeys map[string]map[string]struct{}
	// added: table → row → pending column writes, ordered by name.
	added map[string]map[string]*btree.BTreeG[Column]
	// deleted: table → row → set of column tombstones.
	deleted map[string]map[string]map[string]struct{}

	view storage.ReadView
	snap *storage.Snapshot // non-nil for repeatable-read
	pool *iterPool         // non-nil for repeatable-read

	// batch collects records appended by LoadChunk. Commit flushes it
	// together with the overlays; the records never enter the overlays and
	// stay invisible to the transaction's own reads.
	batch *storage.Batch

	depth    int
	finished bool
	aborted  error // first abort cause, also set by nested aborts
}

// Txn is a handle on a transaction. Nested handles share the state of
// their parent; only the outermost handle's Commit writes to the store.
type Txn struct {
	st   *txnState
	root bool
}

// --------------------------------------------------------------------------
// Begin / Nest / With
// --------------------------------------------------------------------------

// Begin starts a transaction on the keyspace with the given isolation
// level.
func (ks *Keyspace) Begin(iso Isolation) *Txn {
	st := &txnState{
		ks:          ks,
		iso:         iso,
		addedKeys:   make(map[string]*btree.BTreeG[string]),
		deletedKeys: make(map[string]map[string]struct{}),
		added:       make(map[string]map[string]*btree.BTreeG[Column]),
		deleted:     make(map[string]map[string]map[string]struct{}),
	}
	if iso == RepeatableRead {
		st.snap = ks.eng.store.NewSnapshot()
		st.view = st.snap
		st.pool = newIterPool(st.snap, DefaultIterPoolSize)
	} else {
		st.view = ks.eng.store
	}
	return &Txn{st: st, root: true}
}

// Nest returns a child transaction sharing all overlays with t. The child
// observes and extends the parent's uncommitted writes; completing the
// child leaves everything in the parent, and only the outermost Commit
// flushes.
func (t *Txn) Nest() *Txn {
	t.st.depth++
	return &Txn{st: t.st}
}

// With runs fn inside a nested transaction: an error return (or an abort
// inside fn) aborts the whole transaction tree.
func (t *Txn) With(fn func(*Txn) error) error {
	child := t.Nest()
	if err := fn(child); err != nil {
		return child.Abort(err)
	}
	return child.Commit()
}

// With runs fn in a fresh transaction and commits it on success.
func (ks *Keyspace) With(iso Isolation, fn func(*Txn) error) error {
	txn := ks.Begin(iso)
	if err := fn(txn); err != nil {
		return txn.Abort(err)
	}
	return txn.Commit()
}

// Keyspace returns the keyspace the transaction runs on.
func (t *Txn) Keyspace() *Keyspace { return t.st.ks }

// Isolation returns the transaction's isolation level.
func (t *Txn) Isolation() Isolation { return t.st.iso }

// --------------------------------------------------------------------------
// Row-Level Writes
// --------------------------------------------------------------------------

// PutColumns records pending writes of cols to (table, key). The writes are
// visible to this transaction immediately and to others after commit.
func (t *Txn) PutColumns(table, key []byte, cols []Column) error {
	if t.st.finished {
		return ErrTxnFinished
	}
	st := t.st
	tbl, row := string(table), string(key)

	// The key is (re)introduced: track it and clear a prior full delete.
	ak, ok := st.addedKeys[tbl]
	if !ok {
		ak = btree.NewBTreeG[string](strLess)
		st.addedKeys[tbl] = ak
	}
	ak.Set(row)
	delete(st.deletedKeys[tbl], row)

	rows, ok := st.added[tbl]
	if !ok {
		rows = make(map[string]*btree.BTreeG[Column])
		st.added[tbl] = rows
	}
	pending, ok := rows[row]
	if !ok {
		pending = btree.NewBTreeG[Column](colLess)
		rows[row] = pending
	}

	tombs := st.deleted[tbl][row]
	for _, col := range cols {
		// A put cancels a pending tombstone for the same column.
		if tombs != nil {
			delete(tombs, string(col.Name))
		}
		pending.Set(Column{
			Name:     append([]byte(nil), col.Name...),
			Value:    append([]byte(nil), col.Value...),
			TsMicros: col.TsMicros,
		})
	}
	return nil
}

// DeleteColumns records pending tombstones for the named columns of
// (table, key).
func (t *Txn) DeleteColumns(table, key []byte, names [][]byte) error {
	if t.st.finished {
		return ErrTxnFinished
	}
	st := t.st
	tbl, row := string(table), string(key)

	if pending, ok := st.added[tbl][row]; ok {
		for _, name := range names {
			pending.Delete(Column{Name: name})
		}
		if pending.Len() == 0 {
			delete(st.added[tbl], row)
			if ak, ok := st.addedKeys[tbl]; ok {
				ak.Delete(row)
			}
		}
	}

	rows, ok := st.deleted[tbl]
	if !ok {
		rows = make(map[string]map[string]struct{})
		st.deleted[tbl] = rows
	}
	tombs, ok := rows[row]
	if !ok {
		tombs = make(map[string]struct{})
		rows[row] = tombs
	}
	for _, name := range names {
		tombs[string(name)] = struct{}{}
	}
	return nil
}

// DeleteKey deletes every live column of (table, key) and marks the key as
// fully deleted.
func (t *Txn) DeleteKey(table, key []byte) error {
	if t.st.finished {
		return ErrTxnFinished
	}
	cols, err := t.GetColumns(table, key, 0)
	if err != nil {
		return err
	}
	names := make([][]byte, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	if err := t.DeleteColumns(table, key, names); err != nil {
		return err
	}

	st := t.st
	tbl := string(table)
	dk, ok := st.deletedKeys[tbl]
	if !ok {
		dk = make(map[string]struct{})
		st.deletedKeys[tbl] = dk
	}
	dk[string(key)] = struct{}{}
	if ak, ok := st.addedKeys[tbl]; ok {
		ak.Delete(string(key))
	}
	return nil
}

// --------------------------------------------------------------------------
// Commit / Abort
// --------------------------------------------------------------------------

// Commit completes the transaction. For a nested handle this only hands
// control back to the parent; for the outermost handle it flushes every
// overlay to the store in one atomic, synced batch.
func (t *Txn) Commit() error {
	st := t.st
	if st.finished {
		return ErrTxnFinished
	}
	if !t.root {
		// Overlays are shared with the parent, so completion is implicit.
		st.depth--
		return nil
	}
	if st.aborted != nil {
		err := &AbortError{Cause: st.aborted}
		st.release()
		return err
	}

	batch := st.batch
	st.batch = nil
	if batch == nil {
		batch = st.ks.eng.store.NewBatch()
	}
	commitTs := time.Now().UnixMicro()

	// Column tombstones first: a physical delete covering every stored
	// version of the column.
	for tbl, rows := range st.deleted {
		for row, tombs := range rows {
			for col := range tombs {
				start := datum.ColumnPrefix(nil, st.ks.id, []byte(tbl), []byte(row), []byte(col))
				if err := batch.DeleteRange(start, storage.PrefixEnd(start)); err != nil {
					batch.Close()
					st.release()
					return &AbortError{Cause: err}
				}
			}
		}
	}

	// Pending writes at the commit timestamp; caller-supplied column
	// timestamps are honored when present.
	for tbl, rows := range st.added {
		for row, pending := range rows {
			var failed error
			pending.Scan(func(col Column) bool {
				ts := col.TsMicros
				if ts == AutoTimestamp {
					ts = commitTs
				}
				key := datum.AppendKey(nil, st.ks.id, []byte(tbl), []byte(row), col.Name, ts)
				if err := batch.Put(key, col.Value); err != nil {
					failed = err
					return false
				}
				return true
			})
			if failed != nil {
				batch.Close()
				st.release()
				return &AbortError{Cause: failed}
			}
		}
	}

	if batch.Len() == 0 {
		batch.Close()
		st.release()
		return nil
	}

	if err := batch.Commit(true); err != nil {
		st.release()
		return &AbortError{Cause: err}
	}

	ops := batch.Ops()
	st.release()
	st.ks.eng.notifyCommit(st.ks.id, ops)
	return nil
}

// Abort discards the transaction's overlays and returns cause (wrapped).
// Aborting a nested handle poisons the whole transaction tree.
func (t *Txn) Abort(cause error) error {
	st := t.st
	if st.finished {
		return ErrTxnFinished
	}
	if st.aborted == nil {
		st.aborted = cause
	}
	if t.root {
		st.release()
	} else {
		st.depth--
	}
	if cause == nil {
		cause = st.aborted
	}
	return &AbortError{Cause: cause}
}

// release drops overlays and snapshot resources. Idempotent.
func (st *txnState) release() {
	if st.finished {
		return
	}
	st.finished = true
	st.added = nil
	st.deleted = nil
	st.addedKeys = nil
	st.deletedKeys = nil
	if st.batch != nil {
		st.batch.Close()
		st.batch = nil
	}
	if st.pool != nil {
		st.pool.closeAll()
		st.pool = nil
	}
	if st.snap != nil {
		st.snap.Close()
		st.snap = nil
	}
}

// --------------------------------------------------------------------------
// Iterator Acquisition
// --------------------------------------------------------------------------

// acquireIter returns an iterator over [lower, upper) reading through the
// transaction's view, plus its release function. Repeatable-read
// transactions draw from the bounded snapshot iterator pool; acquisition
// blocks while the pool is exhausted.
func (t *Txn) acquireIter(lower, upper []byte) (*storage.Iterator, func(), error) {
	if t.st.pool != nil {
		return t.st.pool.acquire(lower, upper)
	}
	it, err := t.st.view.NewIter(lower, upper)
	if err != nil {
		return nil, nil, err
	}
	return it, func() { it.Close() }, nil
}

// iterPool recycles snapshot iterators for repeatable-read transactions so
// repeated scans do not pay iterator construction per call.
type iterPool struct {
	view storage.ReadView
	sem  chan struct{}
	free chan *storage.Iterator
}

func newIterPool(view storage.ReadView, size int) *iterPool {
	return &iterPool{
		view: view,
		sem:  make(chan struct{}, size),
		free: make(chan *storage.Iterator, size),
	}
}

func (p *iterPool) acquire(lower, upper []byte) (*storage.Iterator, func(), error) {
	p.sem <- struct{}{}
	var it *storage.Iterator
	select {
	case it = <-p.free:
		it.SetBounds(lower, upper)
	default:
		var err error
		it, err = p.view.NewIter(lower, upper)
		if err != nil {
			<-p.sem
			return nil, nil, err
		}
	}
	release := func() {
		select {
		case p.free <- it:
		default:
			it.Close()
		}
		<-p.sem
	}
	return it, release, nil
}

func (p *iterPool) closeAll() {
	for {
		select {
		case it := <-p.free:
			it.Close()
		default:
			return
		}
	}
}
