package types

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrInvalidPOI = errors.New("invalid poi")

// POI is a point of interest that can be monitored as a circular geofence.
// ContainsDevice is only meaningful on POIs returned by a nearby lookup.
type POI struct {
	Identifier     string  `json:"id" yaml:"id" mapstructure:"id"`
	Name           string  `json:"name,omitempty" yaml:"name" mapstructure:"name"`
	Latitude       float64 `json:"latitude" yaml:"latitude" mapstructure:"latitude"`
	Longitude      float64 `json:"longitude" yaml:"longitude" mapstructure:"longitude"`
	RadiusMeters   float64 `json:"radius_m" yaml:"radius_m" mapstructure:"radius_m"`
	ContainsDevice bool    `json:"contains_device,omitempty" yaml:"-" mapstructure:"contains_device"`
}

// Validate reports whether p can be registered as a geofence.
func (p POI) Validate() error {
	if strings.TrimSpace(p.Identifier) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPOI)
	}
	if !ValidCoordinates(p.Latitude, p.Longitude) {
		return fmt.Errorf("%w: %s: coordinates out of range", ErrInvalidPOI, p.Identifier)
	}
	if !(p.RadiusMeters > 0) || math.IsInf(p.RadiusMeters, 0) {
		return fmt.Errorf("%w: %s: radius must be positive", ErrInvalidPOI, p.Identifier)
	}
	return nil
}

// Region converts p into the circular region registered with the platform.
// Regions watch both entry and exit and never expire.
func (p POI) Region() CircularRegion {
	return CircularRegion{
		RequestID:    p.Identifier,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		RadiusMeters: p.RadiusMeters,
		Transitions:  TransitionEnter | TransitionExit,
		Expiration:   NeverExpire,
	}
}

// ValidatePOIs checks every POI and rejects duplicate identifiers.
func ValidatePOIs(pois []POI) error {
	seen := make(map[string]struct{}, len(pois))
	for _, p := range pois {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, dup := seen[p.Identifier]; dup {
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidPOI, p.Identifier)
		}
		seen[p.Identifier] = struct{}{}
	}
	return nil
}

func ValidCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
