package memory

import (
	"context"
	"sync"
	"time"

	"github.com/PravinPK/places-monitor/internal/monitor/store"
)

// TransitionEventStore is an in-memory append-only log of dispatched
// transitions.
type TransitionEventStore struct {
	mu     sync.Mutex
	events []store.TransitionRecord
}

func NewTransitionEventStore() *TransitionEventStore {
	return &TransitionEventStore{}
}

func (s *TransitionEventStore) RecordTransition(_ context.Context, rec store.TransitionRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

func (s *TransitionEventStore) RecentTransitions(_ context.Context, limit int) ([]store.TransitionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.events)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]store.TransitionRecord, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *TransitionEventStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.RecordedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return deleted, nil
}

// Events returns a copy of all recorded transitions, oldest first.  Test-only
// helper.
func (s *TransitionEventStore) Events() []store.TransitionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.TransitionRecord, len(s.events))
	copy(out, s.events)
	return out
}
