package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/store"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// TransitionRecorder is the downstream end of every dispatched transition.
// It logs the transition and appends it to the transition log.
type TransitionRecorder struct {
	events store.TransitionEventStore
	log    *zap.Logger
	now    func() time.Time
}

func NewTransitionRecorder(es store.TransitionEventStore, log *zap.Logger) *TransitionRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransitionRecorder{events: es, log: log.Named("transitions"), now: time.Now}
}

// DispatchTransition records one transition. A failed write is logged and
// otherwise ignored so a broken log never holds back dispatch.
func (r *TransitionRecorder) DispatchTransition(ctx context.Context, region types.Region, kind types.TransitionKind) {
	rec := store.TransitionRecord{
		RegionID:   region.ID,
		Kind:       kind,
		RecordedAt: r.now().UTC(),
	}

	r.log.Info("transition dispatched", zap.String("id", region.ID), zap.Stringer("kind", kind))

	if r.events == nil {
		return
	}
	if err := r.events.RecordTransition(ctx, rec); err != nil {
		r.log.Warn("failed to record transition", zap.String("id", region.ID), zap.Error(err))
	}
}

// RecentTransitions returns up to limit transitions, newest first.
func (r *TransitionRecorder) RecentTransitions(ctx context.Context, limit int) ([]store.TransitionRecord, error) {
	if r.events == nil {
		return []store.TransitionRecord{}, nil
	}
	return r.events.RecentTransitions(ctx, limit)
}
