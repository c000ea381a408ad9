package types

import (
	"fmt"
	"strings"
	"time"
)

// ActionGeofenceUpdate is the action carried by transition notifications
// addressed to this monitor's callback target.
const ActionGeofenceUpdate = "places.monitor.ACTION_GEOFENCE_UPDATE"

// ActionLocationUpdate is the action carried by location updates.
const ActionLocationUpdate = "places.monitor.ACTION_LOCATION_UPDATE"

// NeverExpire marks a region that stays registered until removed.
const NeverExpire time.Duration = -1

// TransitionKind is a bit mask so a region can watch several kinds at once.
type TransitionKind int

const (
	TransitionEnter TransitionKind = 1 << iota
	TransitionExit
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionEnter:
		return "enter"
	case TransitionExit:
		return "exit"
	case TransitionEnter | TransitionExit:
		return "enter|exit"
	default:
		return fmt.Sprintf("transition(%d)", int(k))
	}
}

// ParseTransitionKind accepts "enter" or "exit" in any case.
func ParseTransitionKind(s string) (TransitionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enter":
		return TransitionEnter, nil
	case "exit":
		return TransitionExit, nil
	default:
		return 0, fmt.Errorf("unknown transition %q", s)
	}
}

// CircularRegion is the platform-side representation of a monitored POI.
type CircularRegion struct {
	RequestID    string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	Transitions  TransitionKind
	Expiration   time.Duration
}

// GeofencingRequest is one batched add submitted to the geofencing client.
type GeofencingRequest struct {
	Regions        []CircularRegion
	InitialTrigger TransitionKind
}

// RequestIDs returns the identifiers of the regions in request order.
func (r GeofencingRequest) RequestIDs() []string {
	out := make([]string, 0, len(r.Regions))
	for _, reg := range r.Regions {
		out = append(out, reg.RequestID)
	}
	return out
}

// Region identifies a fence that triggered a transition.
type Region struct {
	ID string `json:"id" mapstructure:"id"`
}

// TransitionEvent is a notification delivered by the platform geofencing
// service. Action must match ActionGeofenceUpdate for the event to be
// processed.
type TransitionEvent struct {
	Regions   []Region       `json:"regions"`
	Kind      TransitionKind `json:"-"`
	HasError  bool           `json:"has_error,omitempty"`
	ErrorCode int            `json:"error_code,omitempty"`
	Action    string         `json:"action"`
}

// CallbackTarget is the stable destination the platform delivers
// notifications to.
type CallbackTarget struct {
	ID     string
	Action string
}
