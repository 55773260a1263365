package dedupe

import "sync"

// Set remembers a bounded number of recently added ids. Once full, the
// oldest id is forgotten first.
type Set struct {
	mu       sync.Mutex
	items    map[string]struct{}
	order    []string
	capacity int
}

// NewSet creates a set holding at most capacity ids.
func NewSet(capacity int) *Set {
	if capacity <= 0 {
		capacity = 1
	}
	return &Set{
		items:    make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
		capacity: capacity,
	}
}

// Contains reports whether id is still remembered.
func (s *Set) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[id]
	return ok
}

// Add records id. It returns false when id was already present.
func (s *Set) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; ok {
		return false
	}
	s.items[id] = struct{}{}
	s.order = append(s.order, id)

	for len(s.items) > s.capacity {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}
	return true
}

// Len returns the number of remembered ids.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
