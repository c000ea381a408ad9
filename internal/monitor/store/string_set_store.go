package store

import (
	"context"
	"errors"
)

// Keys under which the monitor persists its two fence sets.
const (
	KeyMonitoringFences = "monitoringFences"
	KeyEnteredFences    = "userWithinGeofences"
)

// ErrUnavailable is returned when the backing storage cannot be reached.
var ErrUnavailable = errors.New("storage unavailable")

// StringSetStore is a small key-value store of named string sets.
//
// GetStringSet returns def when nothing has been stored under key. An empty
// set that was stored explicitly is returned as an empty, non-nil slice.
// PutStringSet replaces the whole set stored under key.
type StringSetStore interface {
	GetStringSet(ctx context.Context, key string, def []string) ([]string, error)
	PutStringSet(ctx context.Context, key string, members []string) error
}
