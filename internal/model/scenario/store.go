package scenario

// Store exposes scenario retrieval for HTTP handlers.
type Store interface {
	List() []string
	Contains(label string) bool
}

// MemoryStore implements Store with a fixed in-memory slice.
type MemoryStore struct {
	items []string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied labels.
func NewMemoryStore(items []string) *MemoryStore {
	return &MemoryStore{items: append([]string(nil), items...)}
}

// List returns a copy of the scenario labels.
func (s *MemoryStore) List() []string {
	return append([]string(nil), s.items...)
}

// Contains reports whether label is one of the known scenarios.
func (s *MemoryStore) Contains(label string) bool {
	for _, item := range s.items {
		if item == label {
			return true
		}
	}
	return false
}
