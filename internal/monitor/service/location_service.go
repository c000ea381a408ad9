package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/geo"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// POILister exposes the current POI catalog.
type POILister interface {
	All() []types.POI
}

// LocationService turns a device location into enter transitions for the
// POIs the device has newly entered.
type LocationService struct {
	pois    POILister
	tracker *MembershipTracker
	sink    TransitionSink
	limit   int
	log     *zap.Logger
}

// NewLocationService builds a LocationService. limit caps how many of the
// closest POIs are considered; limit <= 0 considers them all.
func NewLocationService(pois POILister, tracker *MembershipTracker, sink TransitionSink, limit int, log *zap.Logger) *LocationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &LocationService{pois: pois, tracker: tracker, sink: sink, limit: limit, log: log.Named("nearby")}
}

// Process recomputes the entered fences for loc and dispatches one enter
// transition per newly entered POI. The newly entered POIs are returned in
// distance order.
func (s *LocationService) Process(ctx context.Context, loc types.Location) ([]types.POI, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	nearby := geo.Nearby(loc, s.pois.All(), s.limit)
	newly := s.tracker.FindNewlyEntered(ctx, nearby)

	for _, p := range newly {
		s.log.Info("device entered poi", zap.String("id", p.Identifier), zap.String("name", p.Name))
		if s.sink != nil {
			s.sink.DispatchTransition(ctx, types.Region{ID: p.Identifier}, types.TransitionEnter)
		}
	}
	return newly, nil
}

// HandleLocation lets the service receive updates from a LocationManager.
func (s *LocationService) HandleLocation(ctx context.Context, loc types.Location) {
	if _, err := s.Process(ctx, loc); err != nil {
		s.log.Warn("dropping location update", zap.Error(err))
	}
}
