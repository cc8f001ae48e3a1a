package cache

import (
	"sync"
	"sync/atomic"

	"github.com/akquise-tool/internal/record"
)

// Store publishes the current snapshot. Readers load it atomically and
// query a consistent view without locking; refreshers and the dataset
// creation path serialize their writes through the store's mutex, so a
// published snapshot is never partially built.
type Store struct {
	mu      sync.Mutex
	current atomic.Value
}

// NewStore returns a store holding an empty snapshot, so lookups are valid
// before the first refresh.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(NewSnapshot(nil, nil))
	return s
}

// Snapshot returns the currently published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load().(*Snapshot)
}

// Replace publishes a freshly built snapshot.
func (s *Store) Replace(sn *Snapshot) {
	s.mu.Lock()
	s.current.Store(sn)
	s.mu.Unlock()
}

// AppendDataset publishes a copy of the current snapshot with the dataset
// added, so a creation is visible to lock checks immediately instead of
// after the next refresh.
func (s *Store) AppendDataset(d record.Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(s.Snapshot().withDataset(d))
}
