package dataplane

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tessera-db/tessera/lib/storage"
)

// --------------------------------------------------------------------------
// Dump Registry
// --------------------------------------------------------------------------

// DumpRegistry manages on-disk dump snapshots of the store. Each dump is a
// checkpoint directory whose files are served over GetFile; consumers
// bootstrap from a dump and then follow GetUpdates.
type DumpRegistry struct {
	store *storage.Store
	dir   string

	mu     sync.Mutex
	dumps  map[uint64]string
	nextID uint64
}

func NewDumpRegistry(store *storage.Store, dir string) *DumpRegistry {
	return &DumpRegistry{
		store: store,
		dir:   dir,
		dumps: make(map[uint64]string),
	}
}

// Create takes a new checkpoint of the store and registers it.
func (r *DumpRegistry) Create() (uint64, error) {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.mu.Unlock()

	dir := filepath.Join(r.dir, fmt.Sprintf("dump-%06d", id))
	if err := r.store.Checkpoint(dir); err != nil {
		return 0, err
	}

	r.mu.Lock()
	r.dumps[id] = dir
	r.mu.Unlock()
	return id, nil
}

// Remove deletes a dump and its files.
func (r *DumpRegistry) Remove(id uint64) error {
	r.mu.Lock()
	dir, ok := r.dumps[id]
	delete(r.dumps, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("dataplane: unknown dump %d", id)
	}
	return os.RemoveAll(dir)
}

// lookup returns the directory of a dump.
func (r *DumpRegistry) lookup(id uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	dir, ok := r.dumps[id]
	return dir, ok
}

// Files lists the file names of a dump in ascending order.
func (r *DumpRegistry) Files(id uint64) ([]string, error) {
	dir, ok := r.lookup(id)
	if !ok {
		return nil, fmt.Errorf("dataplane: unknown dump %d", id)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// open opens one file of a dump. Name must be a bare file name; anything
// that resolves outside the dump directory is rejected.
func (r *DumpRegistry) open(id uint64, name string) (*os.File, error) {
	dir, ok := r.lookup(id)
	if !ok {
		return nil, errUnknownDump
	}
	if name != filepath.Base(name) || name == "." || name == ".." {
		return nil, errUnknownFile
	}
	f, err := os.Open(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return nil, errUnknownFile
	}
	return f, err
}

var (
	errUnknownDump = fmt.Errorf("dataplane: unknown dump")
	errUnknownFile = fmt.Errorf("dataplane: unknown file")
)
