// Package simulated is an in-process stand-in for the device's location and
// geofencing services. It keeps registered regions and the last device
// location in memory and turns location changes into transition events.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/geo"
	"github.com/PravinPK/places-monitor/internal/monitor/service"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

var (
	ErrPermissionDenied = errors.New("simulated: fine location permission not granted")
	ErrInvalidTarget    = errors.New("simulated: invalid callback target")
)

// TransitionHandler receives transition events for registered regions.
type TransitionHandler interface {
	OnTransitionNotification(ctx context.Context, ev *types.TransitionEvent)
}

type Config struct {
	Logger            *zap.Logger
	PermissionGranted bool
	Handler           TransitionHandler
}

type registration struct {
	region   types.CircularRegion
	targetID string
	inside   bool
}

// Platform implements the permission oracle, the geofencing client and the
// location provider the monitor services depend on.
type Platform struct {
	log     *zap.Logger
	handler TransitionHandler

	geofenceTarget types.CallbackTarget
	locationTarget types.CallbackTarget

	mu            sync.Mutex
	granted       bool
	regions       map[string]*registration
	location      *types.Location
	updatesActive bool
	settingsErr   error
	failNext      error
}

func New(cfg Config) *Platform {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Platform{
		log:            log.Named("platform"),
		handler:        cfg.Handler,
		geofenceTarget: types.CallbackTarget{ID: uuid.NewString(), Action: types.ActionGeofenceUpdate},
		locationTarget: types.CallbackTarget{ID: uuid.NewString(), Action: types.ActionLocationUpdate},
		granted:        cfg.PermissionGranted,
		regions:        make(map[string]*registration),
	}
}

// ── Permission ───────────────────────────────────────────────────────────────

func (p *Platform) HasFineLocationPermission() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

func (p *Platform) SetPermission(granted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = granted
}

// ── Client and target sources ────────────────────────────────────────────────

func (p *Platform) GeofencingClient() (service.GeofencingClient, error) { return p, nil }

func (p *Platform) LocationClient() (service.LocationProvider, error) { return p, nil }

// GeofenceTargets hands out the target geofence transitions are sent to.
func (p *Platform) GeofenceTargets() service.CallbackTargetSource {
	return targetSource{target: p.geofenceTarget}
}

// LocationTargets hands out the target location updates are sent to.
func (p *Platform) LocationTargets() service.CallbackTargetSource {
	return targetSource{target: p.locationTarget}
}

type targetSource struct{ target types.CallbackTarget }

func (s targetSource) CallbackTarget() (types.CallbackTarget, error) { return s.target, nil }

// ── Failure injection ────────────────────────────────────────────────────────

// FailNextCompletion makes the next add, remove or remove-all complete with
// err instead of succeeding.
func (p *Platform) FailNextCompletion(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// SetSettingsError makes CheckSettings return err. nil restores success.
func (p *Platform) SetSettingsError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settingsErr = err
}

// takeFailureLocked must be called with p.mu held.
func (p *Platform) takeFailureLocked() error {
	err := p.failNext
	p.failNext = nil
	return err
}

// ── Geofencing ───────────────────────────────────────────────────────────────

func (p *Platform) AddRegions(ctx context.Context, req types.GeofencingRequest, target types.CallbackTarget, done service.Completion) error {
	if err := p.checkTarget(target, types.ActionGeofenceUpdate); err != nil {
		return err
	}

	p.mu.Lock()
	if !p.granted {
		p.mu.Unlock()
		return ErrPermissionDenied
	}
	if err := p.takeFailureLocked(); err != nil {
		p.mu.Unlock()
		done(err)
		return nil
	}

	var triggered []types.Region
	for _, reg := range req.Regions {
		inside := p.location != nil && regionContains(reg, *p.location)
		p.regions[reg.RequestID] = &registration{region: reg, targetID: target.ID, inside: inside}
		if inside && req.InitialTrigger&types.TransitionEnter != 0 {
			triggered = append(triggered, types.Region{ID: reg.RequestID})
		}
	}
	p.mu.Unlock()

	p.log.Debug("regions added", zap.Strings("ids", req.RequestIDs()))
	done(nil)
	p.deliver(ctx, triggered, types.TransitionEnter)
	return nil
}

func (p *Platform) RemoveRegions(_ context.Context, ids []string, target types.CallbackTarget, done service.Completion) error {
	if err := p.checkTarget(target, types.ActionGeofenceUpdate); err != nil {
		return err
	}

	p.mu.Lock()
	if err := p.takeFailureLocked(); err != nil {
		p.mu.Unlock()
		done(err)
		return nil
	}
	for _, id := range ids {
		delete(p.regions, id)
	}
	p.mu.Unlock()

	p.log.Debug("regions removed", zap.Strings("ids", ids))
	done(nil)
	return nil
}

func (p *Platform) RemoveAllRegions(_ context.Context, target types.CallbackTarget, done service.Completion) error {
	if err := p.checkTarget(target, types.ActionGeofenceUpdate); err != nil {
		return err
	}

	p.mu.Lock()
	if err := p.takeFailureLocked(); err != nil {
		p.mu.Unlock()
		done(err)
		return nil
	}
	removed := 0
	for id, r := range p.regions {
		if r.targetID == target.ID {
			delete(p.regions, id)
			removed++
		}
	}
	p.mu.Unlock()

	p.log.Debug("all regions removed", zap.Int("count", removed))
	done(nil)
	return nil
}

// Regions returns the registered region ids in lexical order.
func (p *Platform) Regions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.regions))
	for id := range p.regions {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// ── Location ─────────────────────────────────────────────────────────────────

func (p *Platform) CheckSettings(context.Context, types.LocationRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settingsErr
}

func (p *Platform) RequestUpdates(_ context.Context, req types.LocationRequest, target types.CallbackTarget) error {
	if err := p.checkTarget(target, types.ActionLocationUpdate); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return ErrPermissionDenied
	}
	p.updatesActive = true
	p.log.Debug("location updates requested", zap.Duration("interval", req.Interval))
	return nil
}

func (p *Platform) RemoveUpdates(_ context.Context, target types.CallbackTarget, done service.Completion) error {
	if err := p.checkTarget(target, types.ActionLocationUpdate); err != nil {
		return err
	}
	p.mu.Lock()
	p.updatesActive = false
	p.mu.Unlock()
	done(nil)
	return nil
}

func (p *Platform) LastLocation(context.Context) (types.Location, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.location == nil {
		return types.Location{}, false, nil
	}
	return *p.location, true, nil
}

func (p *Platform) UpdatesActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updatesActive
}

// SetLocation moves the device to loc. Every registered region whose
// containment changed produces a transition; all enters are delivered in
// one event, followed by one event carrying all exits.
func (p *Platform) SetLocation(ctx context.Context, loc types.Location) error {
	if err := loc.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	p.location = &loc
	var entered, exited []types.Region
	for id, r := range p.regions {
		inside := regionContains(r.region, loc)
		switch {
		case inside && !r.inside:
			entered = append(entered, types.Region{ID: id})
		case !inside && r.inside:
			exited = append(exited, types.Region{ID: id})
		}
		r.inside = inside
	}
	p.mu.Unlock()

	byID := func(a, b types.Region) int { return strings.Compare(a.ID, b.ID) }
	slices.SortFunc(entered, byID)
	slices.SortFunc(exited, byID)

	p.deliver(ctx, entered, types.TransitionEnter)
	p.deliver(ctx, exited, types.TransitionExit)
	return nil
}

func (p *Platform) deliver(ctx context.Context, regions []types.Region, kind types.TransitionKind) {
	if len(regions) == 0 || p.handler == nil {
		return
	}
	p.handler.OnTransitionNotification(ctx, &types.TransitionEvent{
		Regions: regions,
		Kind:    kind,
		Action:  p.geofenceTarget.Action,
	})
}

func (p *Platform) checkTarget(target types.CallbackTarget, action string) error {
	if target.ID == "" || target.Action != action {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, target.Action)
	}
	return nil
}

func regionContains(r types.CircularRegion, loc types.Location) bool {
	return geo.Distance(loc.Latitude, loc.Longitude, r.Latitude, r.Longitude) <= r.RadiusMeters
}
