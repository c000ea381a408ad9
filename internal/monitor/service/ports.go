package service

import (
	"context"

	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// Completion receives the platform's asynchronous answer to a submitted
// request. A nil error means the platform confirmed the change.
type Completion func(err error)

// PermissionOracle reports whether fine location access is granted.
type PermissionOracle interface {
	HasFineLocationPermission() bool
}

// PermissionRequester is implemented by hosts that can prompt the user.
type PermissionRequester interface {
	ShouldShowRationale() bool
	RequestFineLocationPermission(ctx context.Context)
}

// GeofencingClient registers and unregisters regions with the platform.
// A non-nil return means the platform rejected the call synchronously and
// done will not be invoked.
// Production: the OS geofencing service
// Testing: platform/simulated or a fake
type GeofencingClient interface {
	AddRegions(ctx context.Context, req types.GeofencingRequest, target types.CallbackTarget, done Completion) error
	RemoveRegions(ctx context.Context, ids []string, target types.CallbackTarget, done Completion) error
	RemoveAllRegions(ctx context.Context, target types.CallbackTarget, done Completion) error
}

type GeofencingClientSource interface {
	GeofencingClient() (GeofencingClient, error)
}

// CallbackTargetSource hands out the stable target the platform delivers
// transition notifications to.
type CallbackTargetSource interface {
	CallbackTarget() (types.CallbackTarget, error)
}

// TransitionSink receives every confirmed, non-suppressed transition.
type TransitionSink interface {
	DispatchTransition(ctx context.Context, region types.Region, kind types.TransitionKind)
}

// LocationProvider is the platform's fused location service.
type LocationProvider interface {
	// CheckSettings returns a *types.SettingsError when the device settings
	// cannot satisfy req.
	CheckSettings(ctx context.Context, req types.LocationRequest) error
	RequestUpdates(ctx context.Context, req types.LocationRequest, target types.CallbackTarget) error
	RemoveUpdates(ctx context.Context, target types.CallbackTarget, done Completion) error
	// LastLocation reports ok=false when no fix is available yet.
	LastLocation(ctx context.Context) (loc types.Location, ok bool, err error)
}

type LocationClientSource interface {
	LocationClient() (LocationProvider, error)
}

// LocationHandler consumes fresh device locations.
type LocationHandler interface {
	HandleLocation(ctx context.Context, loc types.Location)
}

// POISource fetches the current list of POIs worth monitoring.
type POISource interface {
	FetchPOIs(ctx context.Context) ([]types.POI, error)
}
