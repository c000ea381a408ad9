package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// POICatalog is the writable side of the POI catalog.
type POICatalog interface {
	Set(pois []types.POI)
}

// POIRefresher periodically fetches the POIs worth monitoring, stores them
// in the catalog and reconciles the monitored fences against them.
type POIRefresher struct {
	source     POISource
	catalog    POICatalog
	reconciler *FenceReconciler
	interval   time.Duration
	log        *zap.Logger
	loop       *ticker
}

// NewPOIRefresher builds a refresher. A non-positive interval defaults to
// 15 minutes.
func NewPOIRefresher(src POISource, cat POICatalog, r *FenceReconciler, interval time.Duration, log *zap.Logger) *POIRefresher {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &POIRefresher{
		source:     src,
		catalog:    cat,
		reconciler: r,
		interval:   interval,
		log:        log.Named("refresher"),
	}
	p.loop = newTicker(interval, p.Refresh)
	return p
}

// Start refreshes once right away and then on every interval.
func (p *POIRefresher) Start(ctx context.Context) {
	p.loop.start(ctx)
	p.log.Info("poi refresher started", zap.Duration("interval", p.interval))
}

func (p *POIRefresher) Stop() {
	p.loop.stop()
}

// Refresh runs one fetch-and-reconcile cycle. On a fetch error the catalog
// and the monitored fences are left as they are.
func (p *POIRefresher) Refresh(ctx context.Context) {
	pois, err := p.source.FetchPOIs(ctx)
	if err != nil {
		p.log.Warn("poi refresh failed", zap.Error(err))
		return
	}
	p.log.Debug("pois fetched", zap.Int("count", len(pois)))

	if p.catalog != nil {
		p.catalog.Set(pois)
	}
	p.reconciler.Reconcile(ctx, pois)
}
