package containerdiscovery

import "sync"

// Snapshot is the shared, reader-writer-locked view of all known
// containers. The watcher replaces it wholesale every poll tick; discovery
// instances take a read copy. A concurrent Discover call always observes
// either the previous version or the new one, never a partial update.
type Snapshot struct {
	mu         sync.RWMutex
	containers []Container
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Replace atomically swaps the snapshot contents.
func (s *Snapshot) Replace(containers []Container) {
	s.mu.Lock()
	s.containers = containers
	s.mu.Unlock()
}

// All returns a copy of the current container set.
func (s *Snapshot) All() []Container {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Container, len(s.containers))
	copy(out, s.containers)
	return out
}
