package service

import (
	"context"
	"errors"
	"slices"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/store"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

const tracerName = "github.com/PravinPK/places-monitor/internal/monitor/service"

var (
	ErrPermissionDenied  = errors.New("fine location permission not granted")
	ErrClientUnavailable = errors.New("platform client unavailable")
	ErrTargetUnavailable = errors.New("callback target unavailable")
)

// FenceReconcilerDeps holds the collaborators for NewFenceReconciler.
// Prefs may be nil; the reconciler then keeps its set in memory only.
type FenceReconcilerDeps struct {
	Logger      *zap.Logger
	Permissions PermissionOracle
	Clients     GeofencingClientSource
	Targets     CallbackTargetSource
	Prefs       store.StringSetStore
	Tracer      trace.Tracer
}

// FenceReconciler keeps the set of fences registered with the platform in
// step with the POIs worth monitoring.
//
// The monitored set only changes when the platform confirms an add or a
// remove. Each confirmation applies its own delta to the set as it is at
// that moment and persists the result.
type FenceReconciler struct {
	log     *zap.Logger
	perms   PermissionOracle
	clients GeofencingClientSource
	targets CallbackTargetSource
	prefs   store.StringSetStore
	tracer  trace.Tracer

	mu        sync.Mutex
	monitored mapset.Set[string]
}

func NewFenceReconciler(deps FenceReconcilerDeps) *FenceReconciler {
	r := &FenceReconciler{
		log:       deps.Logger,
		perms:     deps.Permissions,
		clients:   deps.Clients,
		targets:   deps.Targets,
		prefs:     deps.Prefs,
		tracer:    deps.Tracer,
		monitored: mapset.NewThreadUnsafeSet[string](),
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	r.log = r.log.Named("fences")
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	return r
}

// Reconcile registers the POIs in desired that are not monitored yet and
// unregisters monitored fences missing from desired. A nil or empty desired
// list stops monitoring every fence. Failures are logged, never returned.
func (r *FenceReconciler) Reconcile(ctx context.Context, desired []types.POI) {
	ctx, span := r.tracer.Start(ctx, "FenceReconciler.Reconcile",
		trace.WithAttributes(attribute.Int("fences.desired", len(desired))))
	defer span.End()

	if r.perms == nil || !r.perms.HasFineLocationPermission() {
		r.abort(span, "reconcile", ErrPermissionDenied)
		return
	}
	client, target, err := r.platform()
	if err != nil {
		r.abort(span, "reconcile", err)
		return
	}

	toAdd, toRemove := r.delta(desired)
	span.SetAttributes(
		attribute.Int("fences.add", len(toAdd)),
		attribute.Int("fences.remove", len(toRemove)),
	)
	if len(toAdd) == 0 && len(toRemove) == 0 {
		r.log.Debug("monitored fences already up to date")
		return
	}

	// Completions may fire long after the caller's context is gone.
	doneCtx := context.WithoutCancel(ctx)

	if len(toAdd) > 0 {
		req := types.GeofencingRequest{
			Regions:        make([]types.CircularRegion, 0, len(toAdd)),
			InitialTrigger: types.TransitionEnter,
		}
		for _, p := range toAdd {
			req.Regions = append(req.Regions, p.Region())
		}
		ids := req.RequestIDs()

		if err := client.AddRegions(ctx, req, target, func(err error) {
			r.completeAdd(doneCtx, ids, err)
		}); err != nil {
			span.RecordError(err)
			r.log.Warn("platform rejected fence add", zap.Strings("ids", ids), zap.Error(err))
		}
	}

	if len(toRemove) > 0 {
		ids := toRemove
		if err := client.RemoveRegions(ctx, ids, target, func(err error) {
			r.completeRemove(doneCtx, ids, err)
		}); err != nil {
			span.RecordError(err)
			r.log.Warn("platform rejected fence removal", zap.Strings("ids", ids), zap.Error(err))
		}
	}
}

// StopAll asks the platform to drop every fence registered for the
// callback target. The monitored set is emptied once the platform confirms.
func (r *FenceReconciler) StopAll(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "FenceReconciler.StopAll")
	defer span.End()

	client, target, err := r.platform()
	if err != nil {
		r.abort(span, "stop all", err)
		return
	}

	doneCtx := context.WithoutCancel(ctx)
	if err := client.RemoveAllRegions(ctx, target, func(err error) {
		r.completeRemoveAll(doneCtx, err)
	}); err != nil {
		span.RecordError(err)
		r.log.Warn("platform rejected remove all", zap.Error(err))
	}
}

// Load replaces the in-memory monitored set with the persisted one. When
// storage is unavailable the in-memory set is left as is.
func (r *FenceReconciler) Load(ctx context.Context) {
	ids, ok := loadSet(ctx, r.log, r.prefs, store.KeyMonitoringFences)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitored = mapset.NewThreadUnsafeSet(ids...)
}

// Save writes the in-memory monitored set to storage.
func (r *FenceReconciler) Save(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveLocked(ctx)
}

// MonitoredFences returns the monitored fence ids in lexical order.
func (r *FenceReconciler) MonitoredFences() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedMembers(r.monitored)
}

// delta computes what to add and remove against the set as it is now.
// toAdd keeps desired order; a repeated identifier is added once.
func (r *FenceReconciler) delta(desired []types.POI) (toAdd []types.POI, toRemove []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desiredIDs := mapset.NewThreadUnsafeSetWithSize[string](len(desired))
	for _, p := range desired {
		if desiredIDs.Contains(p.Identifier) {
			continue
		}
		desiredIDs.Add(p.Identifier)
		if !r.monitored.Contains(p.Identifier) {
			toAdd = append(toAdd, p)
		}
	}

	return toAdd, sortedMembers(r.monitored.Difference(desiredIDs))
}

func (r *FenceReconciler) completeAdd(ctx context.Context, ids []string, err error) {
	_, span := r.tracer.Start(ctx, "FenceReconciler.addComplete",
		trace.WithAttributes(attribute.StringSlice("fences.ids", ids)))
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add failed")
		r.log.Warn("failed to add fences", zap.Strings("ids", ids), zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitored.Append(ids...)
	r.log.Info("fences added", zap.Strings("ids", ids), zap.Int("monitored", r.monitored.Cardinality()))
	r.saveLocked(ctx)
}

func (r *FenceReconciler) completeRemove(ctx context.Context, ids []string, err error) {
	_, span := r.tracer.Start(ctx, "FenceReconciler.removeComplete",
		trace.WithAttributes(attribute.StringSlice("fences.ids", ids)))
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove failed")
		r.log.Warn("failed to remove fences", zap.Strings("ids", ids), zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitored.RemoveAll(ids...)
	r.log.Info("fences removed", zap.Strings("ids", ids), zap.Int("monitored", r.monitored.Cardinality()))
	r.saveLocked(ctx)
}

func (r *FenceReconciler) completeRemoveAll(ctx context.Context, err error) {
	_, span := r.tracer.Start(ctx, "FenceReconciler.removeAllComplete")
	defer span.End()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "remove all failed")
		r.log.Warn("failed to stop monitoring fences", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.monitored.Clear()
	r.log.Info("stopped monitoring all fences")
	r.saveLocked(ctx)
}

// platform resolves the geofencing client and callback target.
func (r *FenceReconciler) platform() (GeofencingClient, types.CallbackTarget, error) {
	if r.clients == nil {
		return nil, types.CallbackTarget{}, ErrClientUnavailable
	}
	client, err := r.clients.GeofencingClient()
	if err != nil || client == nil {
		return nil, types.CallbackTarget{}, errors.Join(ErrClientUnavailable, err)
	}
	if r.targets == nil {
		return nil, types.CallbackTarget{}, ErrTargetUnavailable
	}
	target, err := r.targets.CallbackTarget()
	if err != nil {
		return nil, types.CallbackTarget{}, errors.Join(ErrTargetUnavailable, err)
	}
	return client, target, nil
}

func (r *FenceReconciler) abort(span trace.Span, op string, err error) {
	span.SetStatus(codes.Error, err.Error())
	r.log.Warn("unable to "+op+" fences", zap.Error(err))
}

// saveLocked must be called with r.mu held.
func (r *FenceReconciler) saveLocked(ctx context.Context) {
	saveSet(ctx, r.log, r.prefs, store.KeyMonitoringFences, sortedMembers(r.monitored))
}

// loadSet reads key from prefs. ok is false when nothing could be read.
func loadSet(ctx context.Context, log *zap.Logger, prefs store.StringSetStore, key string) ([]string, bool) {
	if prefs == nil {
		log.Warn("storage unavailable, keeping in-memory set", zap.String("key", key))
		return nil, false
	}
	ids, err := prefs.GetStringSet(ctx, key, nil)
	if err != nil {
		log.Warn("failed to load set", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	log.Debug("set loaded", zap.String("key", key), zap.Int("size", len(ids)))
	return ids, true
}

func saveSet(ctx context.Context, log *zap.Logger, prefs store.StringSetStore, key string, ids []string) {
	if prefs == nil {
		log.Warn("storage unavailable, set not persisted", zap.String("key", key))
		return
	}
	if err := prefs.PutStringSet(ctx, key, ids); err != nil {
		log.Warn("failed to persist set", zap.String("key", key), zap.Error(err))
	}
}

func sortedMembers(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}
