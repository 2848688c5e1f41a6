package engine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tessera-db/tessera/lib/datum"
	"github.com/tessera-db/tessera/lib/storage"
)

// --------------------------------------------------------------------------
// Engine
// --------------------------------------------------------------------------

// CommitObserver is invoked after every successful outermost commit with
// the keyspace id and the operations that were applied. Used by the
// replication producer.
type CommitObserver func(ksID uint32, ops []storage.BatchOp)

// Engine owns the backing store and the keyspace registry.
type Engine struct {
	store *storage.Store

	// keyspace registry: lock-free reads, registerMu only around
	// allocation of new ids.
	byName     *xsync.MapOf[string, uint32]
	registerMu sync.Mutex
	nextID     uint32

	observerMu sync.RWMutex
	observer   CommitObserver

	watchers *xsync.MapOf[uint32, *watchList]
}

// New creates an engine on top of an open store and loads the persisted
// keyspace registry.
func New(store *storage.Store) (*Engine, error) {
	e := &Engine{
		store:    store,
		byName:   xsync.NewMapOf[string, uint32](),
		nextID:   datum.FirstKeyspaceID,
		watchers: xsync.NewMapOf[uint32, *watchList](),
	}
	if err := e.loadKeyspaces(); err != nil {
		return nil, err
	}
	return e, nil
}

// Store exposes the backing store (used by the data-plane file server).
func (e *Engine) Store() *storage.Store { return e.store }

// SetCommitObserver installs the commit observer. Passing nil removes it.
func (e *Engine) SetCommitObserver(obs CommitObserver) {
	e.observerMu.Lock()
	e.observer = obs
	e.observerMu.Unlock()
}

func (e *Engine) notifyCommit(ksID uint32, ops []storage.BatchOp) {
	e.observerMu.RLock()
	obs := e.observer
	e.observerMu.RUnlock()
	if obs != nil && len(ops) > 0 {
		obs(ksID, ops)
	}
	e.wakeWatchers(ksID)
}

// --------------------------------------------------------------------------
// Keyspace Registry
// --------------------------------------------------------------------------

// ksMeta is the persisted metadata record of one keyspace.
type ksMeta struct {
	Name string `msgpack:"name"`
	ID   uint32 `msgpack:"id"`
}

// loadKeyspaces replays the metadata region into the in-memory registry.
func (e *Engine) loadKeyspaces() error {
	it, err := e.store.NewIter([]byte{datum.MetaTag}, datum.MetaRangeEnd())
	if err != nil {
		return err
	}
	defer it.Close()

	for ok := it.First(); ok; ok = it.Next() {
		var meta ksMeta
		if err := msgpack.Unmarshal(it.Value(), &meta); err != nil {
			return fmt.Errorf("engine: corrupt keyspace record %q: %w", it.Key(), err)
		}
		e.byName.Store(meta.Name, meta.ID)
		if meta.ID >= e.nextID {
			e.nextID = meta.ID + 1
		}
	}
	return it.Error()
}

// Keyspace is a handle on a registered keyspace.
type Keyspace struct {
	eng  *Engine
	name string
	id   uint32
}

// Name returns the keyspace name.
func (ks *Keyspace) Name() string { return ks.name }

// ID returns the keyspace's dense integer id.
func (ks *Keyspace) ID() uint32 { return ks.id }

// RegisterKeyspace returns the keyspace named name, registering it with a
// freshly allocated id if it does not exist yet. Ids are dense, start at
// datum.FirstKeyspaceID and are stable for the life of the database.
func (e *Engine) RegisterKeyspace(name string) (*Keyspace, error) {
	if id, ok := e.byName.Load(name); ok {
		return &Keyspace{eng: e, name: name, id: id}, nil
	}

	e.registerMu.Lock()
	defer e.registerMu.Unlock()

	// Re-check under the lock.
	if id, ok := e.byName.Load(name); ok {
		return &Keyspace{eng: e, name: name, id: id}, nil
	}

	id := e.nextID
	if id >= datum.EndOfDBKeyspaceID {
		return nil, fmt.Errorf("engine: keyspace id space exhausted")
	}

	value, err := msgpack.Marshal(&ksMeta{Name: name, ID: id})
	if err != nil {
		return nil, fmt.Errorf("engine: marshal keyspace record: %w", err)
	}

	batch := e.store.NewBatch()
	if err := batch.Put(datum.MetaKey(name), value); err != nil {
		batch.Close()
		return nil, err
	}
	if err := batch.Commit(true); err != nil {
		return nil, err
	}

	e.nextID = id + 1
	e.byName.Store(name, id)
	return &Keyspace{eng: e, name: name, id: id}, nil
}

// GetKeyspace returns the handle of an already-registered keyspace, or
// ErrUnknownKeyspace.
func (e *Engine) GetKeyspace(name string) (*Keyspace, error) {
	id, ok := e.byName.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyspace, name)
	}
	return &Keyspace{eng: e, name: name, id: id}, nil
}

// ListKeyspaces returns the registered keyspace names in ascending order.
func (e *Engine) ListKeyspaces() []string {
	var names []string
	e.byName.Range(func(name string, _ uint32) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// ApproximateSize estimates the on-disk size of one keyspace.
func (ks *Keyspace) ApproximateSize() (uint64, error) {
	return ks.eng.store.ApproximateSize(
		datum.KeyspacePrefix(nil, ks.id), datum.KeyspaceEnd(nil, ks.id))
}

// --------------------------------------------------------------------------
// Commit Watchers
// --------------------------------------------------------------------------

// watchList tracks sessions waiting for the next commit on a keyspace.
// Await is an optimistic signal: it reports that some commit happened, with
// no automatic retry of the waiter's work.
type watchList struct {
	mu      sync.Mutex
	waiters []chan struct{}
}

// AwaitCommit returns a channel that is closed after the next successful
// commit on the keyspace.
func (ks *Keyspace) AwaitCommit() <-chan struct{} {
	wl, _ := ks.eng.watchers.LoadOrCompute(ks.id, func() *watchList {
		return &watchList{}
	})
	ch := make(chan struct{})
	wl.mu.Lock()
	wl.waiters = append(wl.waiters, ch)
	wl.mu.Unlock()
	return ch
}

func (e *Engine) wakeWatchers(ksID uint32) {
	wl, ok := e.watchers.Load(ksID)
	if !ok {
		return
	}
	wl.mu.Lock()
	waiters := wl.waiters
	wl.waiters = nil
	wl.mu.Unlock()
	for _, ch := range waiters {
		close(ch)
	}
}
