package types

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidLocation = errors.New("invalid location")

type Location struct {
	Latitude  float64   `json:"latitude" mapstructure:"latitude"`
	Longitude float64   `json:"longitude" mapstructure:"longitude"`
	Accuracy  float64   `json:"accuracy,omitempty" mapstructure:"accuracy"`
	Time      time.Time `json:"time,omitempty" mapstructure:"-"`
}

func (l Location) Validate() error {
	if !ValidCoordinates(l.Latitude, l.Longitude) {
		return fmt.Errorf("%w: (%f, %f) out of range", ErrInvalidLocation, l.Latitude, l.Longitude)
	}
	if l.Accuracy < 0 {
		return fmt.Errorf("%w: negative accuracy", ErrInvalidLocation)
	}
	return nil
}

type LocationPriority int

const (
	PriorityHighAccuracy LocationPriority = iota
	PriorityBalancedPower
)

// LocationRequest describes how often the platform should deliver location
// updates.
type LocationRequest struct {
	Interval             time.Duration
	FastestInterval      time.Duration
	SmallestDisplacement float64
	Priority             LocationPriority
}

// SettingsStatus mirrors the platform's location-settings status codes.
type SettingsStatus int

const (
	SettingsResolutionRequired SettingsStatus = iota + 1
	SettingsChangeUnavailable
)

func (s SettingsStatus) String() string {
	switch s {
	case SettingsResolutionRequired:
		return "RESOLUTION_REQUIRED"
	case SettingsChangeUnavailable:
		return "SETTINGS_CHANGE_UNAVAILABLE"
	default:
		return fmt.Sprintf("STATUS_%d", int(s))
	}
}

// SettingsError is returned when the device's location settings cannot
// satisfy a LocationRequest.
type SettingsError struct {
	Status SettingsStatus
}

func (e *SettingsError) Error() string {
	return "location settings not satisfied: " + e.Status.String()
}
