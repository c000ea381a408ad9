package service

import (
	"context"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/store"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// MembershipTrackerDeps holds the collaborators for NewMembershipTracker.
// Action defaults to types.ActionGeofenceUpdate.
type MembershipTrackerDeps struct {
	Logger *zap.Logger
	Prefs  store.StringSetStore
	Sink   TransitionSink
	Action string
}

// MembershipTracker records which fences the device is inside.
//
// Enter notifications for a fence already entered are suppressed. Exit
// notifications always reach the sink, even for a fence that was not
// recorded as entered.
type MembershipTracker struct {
	log    *zap.Logger
	prefs  store.StringSetStore
	sink   TransitionSink
	action string

	mu      sync.Mutex
	entered mapset.Set[string]
}

func NewMembershipTracker(deps MembershipTrackerDeps) *MembershipTracker {
	t := &MembershipTracker{
		log:     deps.Logger,
		prefs:   deps.Prefs,
		sink:    deps.Sink,
		action:  deps.Action,
		entered: mapset.NewThreadUnsafeSet[string](),
	}
	if t.log == nil {
		t.log = zap.NewNop()
	}
	t.log = t.log.Named("membership")
	if t.action == "" {
		t.action = types.ActionGeofenceUpdate
	}
	return t
}

// FindNewlyEntered replaces the entered set with the POIs in nearby that
// contain the device and returns those that were not entered before, in
// input order. The entered set is persisted on every call.
func (t *MembershipTracker) FindNewlyEntered(ctx context.Context, nearby []types.POI) []types.POI {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := mapset.NewThreadUnsafeSet[string]()
	var newly []types.POI
	for _, p := range nearby {
		if !p.ContainsDevice || next.Contains(p.Identifier) {
			continue
		}
		next.Add(p.Identifier)
		if !t.entered.Contains(p.Identifier) {
			newly = append(newly, p)
		}
	}

	t.entered = next
	t.log.Debug("entered fences recomputed",
		zap.Int("nearby", len(nearby)),
		zap.Int("entered", next.Cardinality()),
		zap.Int("newly_entered", len(newly)),
	)
	t.saveLocked(ctx)
	return newly
}

// OnTransitionNotification applies a platform transition event. Nil or
// errored events, events for another action and events with an unknown
// kind are dropped.
func (t *MembershipTracker) OnTransitionNotification(ctx context.Context, ev *types.TransitionEvent) {
	switch {
	case ev == nil:
		t.log.Warn("dropping nil transition event")
		return
	case ev.HasError:
		t.log.Warn("dropping errored transition event", zap.Int("error_code", ev.ErrorCode))
		return
	case ev.Action != t.action:
		t.log.Warn("dropping transition event for unexpected action", zap.String("action", ev.Action))
		return
	case ev.Kind != types.TransitionEnter && ev.Kind != types.TransitionExit:
		t.log.Warn("dropping transition event with unsupported kind", zap.Stringer("kind", ev.Kind))
		return
	}

	for _, region := range ev.Regions {
		if t.apply(ctx, region.ID, ev.Kind) {
			t.dispatch(ctx, region, ev.Kind)
		}
	}
}

// apply updates the entered set for one region and reports whether the
// transition should be dispatched.
func (t *MembershipTracker) apply(ctx context.Context, id string, kind types.TransitionKind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch kind {
	case types.TransitionEnter:
		if t.entered.Contains(id) {
			t.log.Debug("suppressing duplicate enter", zap.String("id", id))
			return false
		}
		t.entered.Add(id)
		t.saveLocked(ctx)
		return true
	default:
		if t.entered.Contains(id) {
			t.entered.Remove(id)
			t.saveLocked(ctx)
		}
		return true
	}
}

func (t *MembershipTracker) dispatch(ctx context.Context, region types.Region, kind types.TransitionKind) {
	t.log.Info("fence transition", zap.String("id", region.ID), zap.Stringer("kind", kind))
	if t.sink == nil {
		return
	}
	t.sink.DispatchTransition(ctx, region, kind)
}

// Load replaces the in-memory entered set with the persisted one.
func (t *MembershipTracker) Load(ctx context.Context) {
	ids, ok := loadSet(ctx, t.log, t.prefs, store.KeyEnteredFences)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entered = mapset.NewThreadUnsafeSet(ids...)
}

func (t *MembershipTracker) Save(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.saveLocked(ctx)
}

// EnteredFences returns the entered fence ids in lexical order.
func (t *MembershipTracker) EnteredFences() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return sortedMembers(t.entered)
}

func (t *MembershipTracker) saveLocked(ctx context.Context) {
	saveSet(ctx, t.log, t.prefs, store.KeyEnteredFences, sortedMembers(t.entered))
}
