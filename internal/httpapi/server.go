package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/PravinPK/places-monitor/internal/monitor/service"
	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

const defaultTransitionLimit = 50

// Catalog is the POI catalog the API reads and replaces.
type Catalog interface {
	Set(pois []types.POI)
	All() []types.POI
}

// Device moves the simulated device. Nil when no simulator is wired.
type Device interface {
	SetLocation(ctx context.Context, loc types.Location) error
}

type Dependencies struct {
	Logger     *zap.Logger
	Addr       string
	Catalog    Catalog
	Reconciler *service.FenceReconciler
	Tracker    *service.MembershipTracker
	Locations  *service.LocationManager
	Recorder   *service.TransitionRecorder
	Device     Device
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux

	catalog    Catalog
	reconciler *service.FenceReconciler
	tracker    *service.MembershipTracker
	locations  *service.LocationManager
	recorder   *service.TransitionRecorder
	device     Device
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	s := &Server{
		logger:     logger,
		mux:        mux,
		catalog:    d.Catalog,
		reconciler: d.Reconciler,
		tracker:    d.Tracker,
		locations:  d.Locations,
		recorder:   d.Recorder,
		device:     d.Device,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/pois", s.handleListPOIs)
	mux.HandleFunc("PUT /v1/pois", s.handlePutPOIs)
	mux.HandleFunc("GET /v1/fences", s.handleGetFences)
	mux.HandleFunc("DELETE /v1/fences", s.handleStopFences)
	mux.HandleFunc("POST /v1/location", s.handleLocation)
	mux.HandleFunc("POST /v1/transitions", s.handleTransition)
	mux.HandleFunc("GET /v1/transitions", s.handleListTransitions)
	mux.HandleFunc("POST /v1/monitoring/start", s.handleStartMonitoring)
	mux.HandleFunc("POST /v1/monitoring/stop", s.handleStopMonitoring)

	handler := loggingMiddleware(logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ── Requests ─────────────────────────────────────────────────────────────────

type putPOIsRequest struct {
	POIs []types.POI `mapstructure:"pois"`
}

type locationRequest struct {
	Latitude  *float64 `mapstructure:"latitude"`
	Longitude *float64 `mapstructure:"longitude"`
	Accuracy  float64  `mapstructure:"accuracy"`
}

type transitionRequest struct {
	Kind      string   `mapstructure:"kind"`
	IDs       []string `mapstructure:"ids"`
	HasError  bool     `mapstructure:"has_error"`
	ErrorCode int      `mapstructure:"error_code"`
	Action    string   `mapstructure:"action"`
}

// ── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleListPOIs(w http.ResponseWriter, r *http.Request) {
	pois := s.catalog.All()
	list := make([]any, 0, len(pois))
	for _, p := range pois {
		list = append(list, poiToMap(p))
	}
	respond(w, r, http.StatusOK, map[string]any{"pois": list})
}

func (s *Server) handlePutPOIs(w http.ResponseWriter, r *http.Request) {
	var req putPOIsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}
	if err := types.ValidatePOIs(req.POIs); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_poi", err.Error())
		return
	}
	for i := range req.POIs {
		req.POIs[i].ContainsDevice = false
	}

	s.catalog.Set(req.POIs)
	s.reconciler.Reconcile(r.Context(), req.POIs)

	respond(w, r, http.StatusAccepted, map[string]any{"accepted": len(req.POIs)})
}

func (s *Server) handleGetFences(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, map[string]any{
		"monitored": stringList(s.reconciler.MonitoredFences()),
		"entered":   stringList(s.tracker.EnteredFences()),
	})
}

func (s *Server) handleStopFences(w http.ResponseWriter, r *http.Request) {
	s.reconciler.StopAll(r.Context())
	respond(w, r, http.StatusAccepted, map[string]any{
		"monitored": stringList(s.reconciler.MonitoredFences()),
	})
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		respondError(w, r, http.StatusBadRequest, "invalid_location", "latitude and longitude are required")
		return
	}
	loc := types.Location{
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Accuracy:  req.Accuracy,
		Time:      time.Now().UTC(),
	}
	if err := loc.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_location", err.Error())
		return
	}

	if s.device != nil {
		if err := s.device.SetLocation(r.Context(), loc); err != nil {
			if errors.Is(err, types.ErrInvalidLocation) {
				respondError(w, r, http.StatusBadRequest, "invalid_location", err.Error())
				return
			}
			s.logger.Error("set location failed", zap.Error(err))
			respondError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}
	}
	s.locations.UpdateLocation(r.Context())

	respond(w, r, http.StatusAccepted, map[string]any{
		"location_state": s.locations.State().String(),
		"entered":        stringList(s.tracker.EnteredFences()),
	})
}

func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}
	kind, err := types.ParseTransitionKind(req.Kind)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid_transition", err.Error())
		return
	}
	if req.Action == "" {
		req.Action = types.ActionGeofenceUpdate
	}

	ev := &types.TransitionEvent{
		Kind:      kind,
		HasError:  req.HasError,
		ErrorCode: req.ErrorCode,
		Action:    req.Action,
	}
	for _, id := range req.IDs {
		ev.Regions = append(ev.Regions, types.Region{ID: id})
	}
	s.tracker.OnTransitionNotification(r.Context(), ev)

	respond(w, r, http.StatusAccepted, map[string]any{
		"entered": stringList(s.tracker.EnteredFences()),
	})
}

func (s *Server) handleListTransitions(w http.ResponseWriter, r *http.Request) {
	limit := defaultTransitionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.recorder.RecentTransitions(r.Context(), limit)
	if err != nil {
		s.logger.Error("list transitions failed", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}

	list := make([]any, 0, len(recs))
	for _, rec := range recs {
		list = append(list, map[string]any{
			"id":          rec.RegionID,
			"kind":        rec.Kind.String(),
			"recorded_at": rec.RecordedAt.Format(time.RFC3339Nano),
		})
	}
	respond(w, r, http.StatusOK, map[string]any{"transitions": list})
}

func (s *Server) handleStartMonitoring(w http.ResponseWriter, r *http.Request) {
	s.locations.StartMonitoring(r.Context())
	respond(w, r, http.StatusAccepted, map[string]any{"location_state": s.locations.State().String()})
}

func (s *Server) handleStopMonitoring(w http.ResponseWriter, r *http.Request) {
	s.locations.StopMonitoring(r.Context())
	respond(w, r, http.StatusAccepted, map[string]any{"location_state": s.locations.State().String()})
}

func poiToMap(p types.POI) map[string]any {
	return map[string]any{
		"id":        p.Identifier,
		"name":      p.Name,
		"latitude":  p.Latitude,
		"longitude": p.Longitude,
		"radius_m":  p.RadiusMeters,
	}
}
