package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// LocationState tells whether location updates have been requested.
type LocationState int

const (
	LocationIdle LocationState = iota
	LocationActive
)

func (s LocationState) String() string {
	switch s {
	case LocationActive:
		return "active"
	default:
		return "idle"
	}
}

// DefaultLocationRequest is used when LocationManagerDeps.Request is zero.
var DefaultLocationRequest = types.LocationRequest{
	Interval:             time.Hour,
	FastestInterval:      30 * time.Minute,
	SmallestDisplacement: 1000,
	Priority:             types.PriorityHighAccuracy,
}

// LocationManagerDeps holds the collaborators for NewLocationManager.
// Requester is optional.
type LocationManagerDeps struct {
	Logger      *zap.Logger
	Permissions PermissionOracle
	Requester   PermissionRequester
	Clients     LocationClientSource
	Targets     CallbackTargetSource
	Handler     LocationHandler
	Request     types.LocationRequest
}

// LocationManager starts and stops platform location updates and forwards
// the last known location to its handler while updates are active.
type LocationManager struct {
	log       *zap.Logger
	perms     PermissionOracle
	requester PermissionRequester
	clients   LocationClientSource
	targets   CallbackTargetSource
	handler   LocationHandler
	request   types.LocationRequest

	mu    sync.Mutex
	state LocationState
}

func NewLocationManager(deps LocationManagerDeps) *LocationManager {
	m := &LocationManager{
		log:       deps.Logger,
		perms:     deps.Permissions,
		requester: deps.Requester,
		clients:   deps.Clients,
		targets:   deps.Targets,
		handler:   deps.Handler,
		request:   deps.Request,
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.Named("location")
	if m.request == (types.LocationRequest{}) {
		m.request = DefaultLocationRequest
	}
	return m
}

func (m *LocationManager) State() LocationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *LocationManager) setState(s LocationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// StartMonitoring requests location updates. Without permission it asks
// the requester, if any, and returns; the caller starts again once the
// permission is granted.
func (m *LocationManager) StartMonitoring(ctx context.Context) {
	if m.perms == nil || !m.perms.HasFineLocationPermission() {
		m.requestPermission(ctx)
		return
	}

	client, target, err := m.platform()
	if err != nil {
		m.log.Warn("unable to start monitoring location", zap.Error(err))
		return
	}

	if err := client.CheckSettings(ctx, m.request); err != nil {
		m.setState(LocationIdle)
		m.logSettingsFailure(err)
		return
	}

	m.setState(LocationActive)
	m.log.Debug("location settings satisfied, requesting updates",
		zap.Duration("interval", m.request.Interval),
		zap.Duration("fastest_interval", m.request.FastestInterval),
		zap.Float64("smallest_displacement_m", m.request.SmallestDisplacement),
	)
	if err := client.RequestUpdates(ctx, m.request, target); err != nil {
		m.setState(LocationIdle)
		m.log.Warn("platform rejected location updates", zap.Error(err))
	}
}

// StopMonitoring removes location updates. The manager goes idle once the
// platform answers, whatever the outcome.
func (m *LocationManager) StopMonitoring(ctx context.Context) {
	client, target, err := m.platform()
	if err != nil {
		m.log.Warn("unable to stop monitoring location", zap.Error(err))
		return
	}

	if err := client.RemoveUpdates(ctx, target, func(err error) {
		m.setState(LocationIdle)
		if err != nil {
			m.log.Debug("removing location updates failed", zap.Error(err))
			return
		}
		m.log.Debug("stopped location updates")
	}); err != nil {
		m.log.Warn("platform rejected location update removal", zap.Error(err))
	}
}

// UpdateLocation hands the last known location to the handler. It does
// nothing unless monitoring is active.
func (m *LocationManager) UpdateLocation(ctx context.Context) {
	if m.State() != LocationActive {
		m.log.Debug("location updates are stopped or never started")
		return
	}
	if m.clients == nil {
		m.log.Warn("unable to update location", zap.Error(ErrClientUnavailable))
		return
	}
	client, err := m.clients.LocationClient()
	if err != nil || client == nil {
		m.log.Warn("unable to update location", zap.Error(errors.Join(ErrClientUnavailable, err)))
		return
	}

	loc, ok, err := client.LastLocation(ctx)
	if err != nil {
		m.log.Debug("failed to get location", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	m.log.Debug("new location obtained",
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude),
	)
	if m.handler != nil {
		m.handler.HandleLocation(ctx, loc)
	}
}

func (m *LocationManager) requestPermission(ctx context.Context) {
	if m.requester == nil {
		m.log.Warn("fine location permission not granted and no way to request it")
		return
	}
	if m.requester.ShouldShowRationale() {
		m.log.Debug("permission not granted to provide location")
		return
	}
	m.log.Debug("requesting permission to monitor fine location")
	m.requester.RequestFineLocationPermission(ctx)
}

func (m *LocationManager) platform() (LocationProvider, types.CallbackTarget, error) {
	if m.clients == nil {
		return nil, types.CallbackTarget{}, ErrClientUnavailable
	}
	client, err := m.clients.LocationClient()
	if err != nil || client == nil {
		return nil, types.CallbackTarget{}, errors.Join(ErrClientUnavailable, err)
	}
	if m.targets == nil {
		return nil, types.CallbackTarget{}, ErrTargetUnavailable
	}
	target, err := m.targets.CallbackTarget()
	if err != nil {
		return nil, types.CallbackTarget{}, errors.Join(ErrTargetUnavailable, err)
	}
	return client, target, nil
}

func (m *LocationManager) logSettingsFailure(err error) {
	var se *types.SettingsError
	if !errors.As(err, &se) {
		m.log.Error("failed to check location settings", zap.Error(err))
		return
	}
	switch se.Status {
	case types.SettingsResolutionRequired:
		m.log.Debug("failed to start location updates", zap.Stringer("status", se.Status))
	default:
		m.log.Error("failed to start location updates", zap.Stringer("status", se.Status))
	}
}
