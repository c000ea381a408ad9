package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/store"
)

// TransitionPruner periodically deletes transition log rows older than a
// configurable retention period. It runs as a background goroutine and is
// stopped via its context or the Stop method.
//
// A retention of 0 disables pruning entirely.
type TransitionPruner struct {
	store     store.TransitionEventStore
	retention time.Duration
	interval  time.Duration
	log       *zap.Logger
	loop      *ticker
}

// PrunerConfig holds the parameters for NewTransitionPruner.
type PrunerConfig struct {
	// RetentionDays is how many days of transitions to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

func NewTransitionPruner(s store.TransitionEventStore, cfg PrunerConfig, log *zap.Logger) *TransitionPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := &TransitionPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		log:       log.Named("pruner"),
	}
	p.loop = newTicker(p.interval, p.Prune)
	return p
}

// Start runs an immediate prune, then repeats on the configured interval
// until ctx is cancelled or Stop is called.
func (p *TransitionPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.log.Info("transition pruner disabled (retention=0)")
		return
	}
	p.loop.start(ctx)
	p.log.Info("transition pruner started",
		zap.Int("retention_days", int(p.retention.Hours()/24)),
		zap.Duration("interval", p.interval),
	)
}

// Stop signals the pruner to exit and waits for it. Safe to call more than
// once or without Start.
func (p *TransitionPruner) Stop() {
	p.loop.stop()
}

// Prune deletes rows older than the retention period once.
func (p *TransitionPruner) Prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Warn("transition prune failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.log.Info("transition prune", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
