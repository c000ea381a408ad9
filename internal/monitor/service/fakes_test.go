package service_test

import (
	"context"
	"errors"
	"sync"

	"github.com/PravinPK/places-monitor/internal/monitor/service"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

var errPlatform = errors.New("platform failure")

// ── Permission / client / target sources ─────────────────────────────────────

type fakePermissions struct{ granted bool }

func (f fakePermissions) HasFineLocationPermission() bool { return f.granted }

type fakeClients struct {
	client service.GeofencingClient
	err    error
}

func (f fakeClients) GeofencingClient() (service.GeofencingClient, error) {
	return f.client, f.err
}

type fakeTargets struct {
	target types.CallbackTarget
	err    error
}

func (f fakeTargets) CallbackTarget() (types.CallbackTarget, error) { return f.target, f.err }

var testTarget = types.CallbackTarget{ID: "target-1", Action: types.ActionGeofenceUpdate}

// ── Geofencing client ────────────────────────────────────────────────────────

// geofenceCall is one request submitted to fakeGeofencing. done is held so
// tests decide when, and how, the platform answers.
type geofenceCall struct {
	op     string
	req    types.GeofencingRequest
	ids    []string
	target types.CallbackTarget
	done   service.Completion
}

type fakeGeofencing struct {
	mu     sync.Mutex
	calls  []*geofenceCall
	reject error
}

func (f *fakeGeofencing) record(c *geofenceCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject != nil {
		return f.reject
	}
	f.calls = append(f.calls, c)
	return nil
}

func (f *fakeGeofencing) AddRegions(_ context.Context, req types.GeofencingRequest, target types.CallbackTarget, done service.Completion) error {
	return f.record(&geofenceCall{op: "add", req: req, ids: req.RequestIDs(), target: target, done: done})
}

func (f *fakeGeofencing) RemoveRegions(_ context.Context, ids []string, target types.CallbackTarget, done service.Completion) error {
	return f.record(&geofenceCall{op: "remove", ids: ids, target: target, done: done})
}

func (f *fakeGeofencing) RemoveAllRegions(_ context.Context, target types.CallbackTarget, done service.Completion) error {
	return f.record(&geofenceCall{op: "remove_all", target: target, done: done})
}

func (f *fakeGeofencing) Calls() []*geofenceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*geofenceCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// callsOf returns the recorded calls for op, in submission order.
func (f *fakeGeofencing) callsOf(op string) []*geofenceCall {
	var out []*geofenceCall
	for _, c := range f.Calls() {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

// ── Storage ──────────────────────────────────────────────────────────────────

// failingStore fails every read and write.
type failingStore struct{}

func (failingStore) GetStringSet(context.Context, string, []string) ([]string, error) {
	return nil, errors.New("disk gone")
}

func (failingStore) PutStringSet(context.Context, string, []string) error {
	return errors.New("disk gone")
}

// ── Sink ─────────────────────────────────────────────────────────────────────

type dispatched struct {
	id   string
	kind types.TransitionKind
}

type recordingSink struct {
	mu     sync.Mutex
	events []dispatched
}

func (s *recordingSink) DispatchTransition(_ context.Context, region types.Region, kind types.TransitionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, dispatched{id: region.ID, kind: kind})
}

func (s *recordingSink) Events() []dispatched {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dispatched, len(s.events))
	copy(out, s.events)
	return out
}

// ── POIs ─────────────────────────────────────────────────────────────────────

func poi(id string) types.POI {
	return types.POI{Identifier: id, Name: "poi " + id, Latitude: 37.33, Longitude: -121.89, RadiusMeters: 100}
}

func pois(ids ...string) []types.POI {
	out := make([]types.POI, 0, len(ids))
	for _, id := range ids {
		out = append(out, poi(id))
	}
	return out
}

func nearbyPOI(id string, inside bool) types.POI {
	p := poi(id)
	p.ContainsDevice = inside
	return p
}

// ── Location provider ────────────────────────────────────────────────────────

type fakeLocationProvider struct {
	mu          sync.Mutex
	settingsErr error
	requestErr  error
	removeErr   error
	last        *types.Location
	lastErr     error

	requests []types.LocationRequest
	removes  []service.Completion
}

func (f *fakeLocationProvider) CheckSettings(context.Context, types.LocationRequest) error {
	return f.settingsErr
}

func (f *fakeLocationProvider) RequestUpdates(_ context.Context, req types.LocationRequest, _ types.CallbackTarget) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return f.requestErr
	}
	f.requests = append(f.requests, req)
	return nil
}

func (f *fakeLocationProvider) RemoveUpdates(_ context.Context, _ types.CallbackTarget, done service.Completion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removes = append(f.removes, done)
	return nil
}

func (f *fakeLocationProvider) LastLocation(context.Context) (types.Location, bool, error) {
	if f.lastErr != nil {
		return types.Location{}, false, f.lastErr
	}
	if f.last == nil {
		return types.Location{}, false, nil
	}
	return *f.last, true, nil
}

type fakeLocationClients struct {
	client service.LocationProvider
	err    error
}

func (f fakeLocationClients) LocationClient() (service.LocationProvider, error) {
	return f.client, f.err
}

type fakeRequester struct {
	rationale bool
	requested int
}

func (f *fakeRequester) ShouldShowRationale() bool { return f.rationale }

func (f *fakeRequester) RequestFineLocationPermission(context.Context) { f.requested++ }

type recordingHandler struct {
	locations []types.Location
}

func (h *recordingHandler) HandleLocation(_ context.Context, loc types.Location) {
	h.locations = append(h.locations, loc)
}

// staticPOIs satisfies POILister, POICatalog and POISource.
type staticPOIs struct {
	mu   sync.Mutex
	pois []types.POI
	err  error
	sets int
}

func (s *staticPOIs) All() []types.POI {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pois
}

func (s *staticPOIs) Set(pois []types.POI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pois = pois
	s.sets++
}

func (s *staticPOIs) FetchPOIs(context.Context) ([]types.POI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pois, s.err
}

func (s *staticPOIs) Sets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}
