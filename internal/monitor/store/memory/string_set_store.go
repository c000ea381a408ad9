package memory

import (
	"context"
	"sync"
)

// StringSetStore keeps string sets in process memory. It is used in dev mode
// and in tests.
type StringSetStore struct {
	mu     sync.RWMutex
	data   map[string][]string
	writes map[string]int
}

func NewStringSetStore() *StringSetStore {
	return &StringSetStore{
		data:   make(map[string][]string),
		writes: make(map[string]int),
	}
}

func (s *StringSetStore) GetStringSet(_ context.Context, key string, def []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members, ok := s.data[key]
	if !ok {
		return def, nil
	}
	out := make([]string, len(members))
	copy(out, members)
	return out, nil
}

func (s *StringSetStore) PutStringSet(_ context.Context, key string, members []string) error {
	cp := make([]string, len(members))
	copy(cp, members)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = cp
	s.writes[key]++
	return nil
}

// Writes returns how many times key has been written.  Test-only helper.
func (s *StringSetStore) Writes(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[key]
}
