package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/PravinPK/places-monitor/internal/httpapi"
	"github.com/PravinPK/places-monitor/internal/monitor/catalog"
	"github.com/PravinPK/places-monitor/internal/monitor/platform/simulated"
	"github.com/PravinPK/places-monitor/internal/monitor/service"
	"github.com/PravinPK/places-monitor/internal/monitor/store/memory"
)

// newTestServer wires up the full dependency graph using in-memory stores
// and the simulated platform, and returns an httptest.Server whose URL can
// be hit with a plain http.Client.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	prefs := memory.NewStringSetStore()
	recorder := service.NewTransitionRecorder(memory.NewTransitionEventStore(), nil)
	cat := catalog.New()

	tracker := service.NewMembershipTracker(service.MembershipTrackerDeps{Prefs: prefs, Sink: recorder})
	platform := simulated.New(simulated.Config{PermissionGranted: true, Handler: tracker})
	reconciler := service.NewFenceReconciler(service.FenceReconcilerDeps{
		Permissions: platform,
		Clients:     platform,
		Targets:     platform.GeofenceTargets(),
		Prefs:       prefs,
	})
	nearby := service.NewLocationService(cat, tracker, recorder, 0, nil)
	locations := service.NewLocationManager(service.LocationManagerDeps{
		Permissions: platform,
		Clients:     platform,
		Targets:     platform.LocationTargets(),
		Handler:     nearby,
	})

	srv := httpapi.NewServer(httpapi.Dependencies{
		Addr:       ":0",
		Catalog:    cat,
		Reconciler: reconciler,
		Tracker:    tracker,
		Locations:  locations,
		Recorder:   recorder,
		Device:     platform,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

const twoPOIs = `{"pois":[
	{"id":"office","name":"Office","latitude":0,"longitude":0,"radius_m":200},
	{"id":"cafe","latitude":0.01,"longitude":0,"radius_m":200}
]}`

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, out
}

func ids(t *testing.T, v any) []string {
	t.Helper()
	list, ok := v.([]any)
	if !ok {
		t.Fatalf("expected a list, got %T", v)
	}
	out := make([]string, 0, len(list))
	for _, x := range list {
		out = append(out, x.(string))
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ── Health ───────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, http.MethodGet, ts.URL+"/healthz", "")
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["ok"] != true {
		t.Errorf("expected ok=true, got %v", body["ok"])
	}
}

// ── POIs and fences ──────────────────────────────────────────────────────────

func TestPutPOIs_ReconcilesFences(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, http.MethodPut, ts.URL+"/v1/pois", twoPOIs)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}
	if body["accepted"] != float64(2) {
		t.Errorf("expected accepted=2, got %v", body["accepted"])
	}

	_, fences := do(t, http.MethodGet, ts.URL+"/v1/fences", "")
	if got := ids(t, fences["monitored"]); !equalIDs(got, []string{"cafe", "office"}) {
		t.Errorf("expected monitored [cafe office], got %v", got)
	}

	_, listed := do(t, http.MethodGet, ts.URL+"/v1/pois", "")
	if n := len(listed["pois"].([]any)); n != 2 {
		t.Errorf("expected 2 pois in catalog, got %d", n)
	}

	// Replacing the catalog removes what is no longer wanted.
	do(t, http.MethodPut, ts.URL+"/v1/pois", `{"pois":[{"id":"cafe","latitude":0.01,"longitude":0,"radius_m":200}]}`)
	_, fences = do(t, http.MethodGet, ts.URL+"/v1/fences", "")
	if got := ids(t, fences["monitored"]); !equalIDs(got, []string{"cafe"}) {
		t.Errorf("expected monitored [cafe], got %v", got)
	}
}

func TestPutPOIs_Invalid_400(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{name: "not json", body: `not json at all`, code: "bad_body"},
		{name: "unknown field", body: `{"places":[]}`, code: "bad_body"},
		{name: "zero radius", body: `{"pois":[{"id":"a","latitude":1,"longitude":1}]}`, code: "invalid_poi"},
		{name: "duplicate id", body: `{"pois":[{"id":"a","latitude":1,"longitude":1,"radius_m":5},{"id":"a","latitude":1,"longitude":1,"radius_m":5}]}`, code: "invalid_poi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, http.MethodPut, ts.URL+"/v1/pois", tt.body)
			if status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
			if body["error"] != tt.code {
				t.Errorf("expected error=%s, got %v", tt.code, body["error"])
			}
		})
	}
}

func TestDeleteFences_StopsAll(t *testing.T) {
	ts := newTestServer(t)
	do(t, http.MethodPut, ts.URL+"/v1/pois", twoPOIs)

	status, body := do(t, http.MethodDelete, ts.URL+"/v1/fences", "")
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}
	if got := ids(t, body["monitored"]); len(got) != 0 {
		t.Errorf("expected no monitored fences, got %v", got)
	}
}

// ── Location ─────────────────────────────────────────────────────────────────

func TestLocation_EntersAndExits(t *testing.T) {
	ts := newTestServer(t)
	do(t, http.MethodPut, ts.URL+"/v1/pois", twoPOIs)

	status, body := do(t, http.MethodPost, ts.URL+"/v1/location", `{"latitude":0,"longitude":0}`)
	if status != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", status)
	}
	if got := ids(t, body["entered"]); !equalIDs(got, []string{"office"}) {
		t.Errorf("expected entered [office], got %v", got)
	}
	if body["location_state"] != "idle" {
		t.Errorf("expected idle location state, got %v", body["location_state"])
	}

	_, body = do(t, http.MethodPost, ts.URL+"/v1/location", `{"latitude":0.01,"longitude":0}`)
	if got := ids(t, body["entered"]); !equalIDs(got, []string{"cafe"}) {
		t.Errorf("expected entered [cafe], got %v", got)
	}

	_, log := do(t, http.MethodGet, ts.URL+"/v1/transitions", "")
	transitions := log["transitions"].([]any)
	if len(transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %d", len(transitions))
	}
	newest := transitions[0].(map[string]any)
	if newest["id"] != "office" || newest["kind"] != "exit" {
		t.Errorf("expected newest exit:office, got %v", newest)
	}
}

func TestLocation_Invalid_400(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`{"latitude":91,"longitude":0}`, `{"longitude":0}`, `{}`} {
		status, resp := do(t, http.MethodPost, ts.URL+"/v1/location", body)
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, status)
		}
		if resp["error"] != "invalid_location" {
			t.Errorf("%s: expected invalid_location, got %v", body, resp["error"])
		}
	}
}

func TestMonitoring_StartAndStop(t *testing.T) {
	ts := newTestServer(t)
	do(t, http.MethodPut, ts.URL+"/v1/pois", twoPOIs)

	_, body := do(t, http.MethodPost, ts.URL+"/v1/monitoring/start", "")
	if body["location_state"] != "active" {
		t.Fatalf("expected active, got %v", body["location_state"])
	}

	// Active monitoring runs the nearby batch path as well.
	_, body = do(t, http.MethodPost, ts.URL+"/v1/location", `{"latitude":0,"longitude":0}`)
	if got := ids(t, body["entered"]); !equalIDs(got, []string{"office"}) {
		t.Errorf("expected entered [office], got %v", got)
	}

	_, body = do(t, http.MethodPost, ts.URL+"/v1/monitoring/stop", "")
	if body["location_state"] != "idle" {
		t.Errorf("expected idle, got %v", body["location_state"])
	}
}

// ── Transitions ──────────────────────────────────────────────────────────────

func TestTransitions_EnterDedupAndExit(t *testing.T) {
	ts := newTestServer(t)

	do(t, http.MethodPost, ts.URL+"/v1/transitions", `{"kind":"enter","ids":["id1"]}`)
	do(t, http.MethodPost, ts.URL+"/v1/transitions", `{"kind":"enter","ids":["id1"]}`)
	_, body := do(t, http.MethodPost, ts.URL+"/v1/transitions", `{"kind":"exit","ids":["id1","id2"]}`)

	if got := ids(t, body["entered"]); len(got) != 0 {
		t.Errorf("expected nothing entered, got %v", got)
	}

	_, log := do(t, http.MethodGet, ts.URL+"/v1/transitions?limit=10", "")
	if n := len(log["transitions"].([]any)); n != 3 {
		t.Errorf("expected enter:id1 exit:id1 exit:id2, got %d transitions", n)
	}
}

func TestTransitions_ErroredOrForeignIgnored(t *testing.T) {
	ts := newTestServer(t)

	do(t, http.MethodPost, ts.URL+"/v1/transitions", `{"kind":"enter","ids":["id1"],"has_error":true,"error_code":1000}`)
	_, body := do(t, http.MethodPost, ts.URL+"/v1/transitions", `{"kind":"enter","ids":["id1"],"action":"other.ACTION"}`)

	if got := ids(t, body["entered"]); len(got) != 0 {
		t.Errorf("expected nothing entered, got %v", got)
	}
}

func TestTransitions_Invalid_400(t *testing.T) {
	ts := newTestServer(t)

	status, body := do(t, http.MethodPost, ts.URL+"/v1/transitions", `{"kind":"dwell","ids":["id1"]}`)
	if status != http.StatusBadRequest || body["error"] != "invalid_transition" {
		t.Errorf("expected 400 invalid_transition, got %d %v", status, body["error"])
	}

	status, body = do(t, http.MethodGet, ts.URL+"/v1/transitions?limit=-1", "")
	if status != http.StatusBadRequest || body["error"] != "invalid_limit" {
		t.Errorf("expected 400 invalid_limit, got %d %v", status, body["error"])
	}
}

// ── Protobuf ─────────────────────────────────────────────────────────────────

func TestPutPOIs_Protobuf(t *testing.T) {
	ts := newTestServer(t)

	reqBody, err := structpb.NewStruct(map[string]any{
		"pois": []any{
			map[string]any{"id": "office", "latitude": 0.0, "longitude": 0.0, "radius_m": 200.0},
		},
	})
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	data, err := proto.Marshal(reqBody)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/pois", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/x-protobuf")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Fatalf("expected protobuf response, got %q", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out structpb.Struct
	if err := proto.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := out.GetFields()["accepted"].GetNumberValue(); got != 1 {
		t.Errorf("expected accepted=1, got %v", got)
	}
}

func TestGetFences_AcceptProtobuf(t *testing.T) {
	ts := newTestServer(t)
	do(t, http.MethodPut, ts.URL+"/v1/pois", twoPOIs)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/fences", nil)
	req.Header.Set("Accept", "application/x-protobuf")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out structpb.Struct
	if err := proto.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n := len(out.GetFields()["monitored"].GetListValue().GetValues()); n != 2 {
		t.Errorf("expected 2 monitored fences, got %d", n)
	}
}
