package store

import (
	"context"
	"time"

	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// TransitionRecord captures one transition dispatched downstream.
type TransitionRecord struct {
	RegionID   string
	Kind       types.TransitionKind
	RecordedAt time.Time
}

// TransitionEventStore persists dispatched transitions as an append-only log.
type TransitionEventStore interface {
	RecordTransition(ctx context.Context, rec TransitionRecord) error
	// RecentTransitions returns up to limit records, newest first.
	RecentTransitions(ctx context.Context, limit int) ([]TransitionRecord, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
