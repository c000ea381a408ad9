package catalog

import (
	"sync"

	"github.com/PravinPK/places-monitor/internal/monitor/types"
)

// Catalog holds the latest list of POIs worth monitoring.
type Catalog struct {
	mu   sync.RWMutex
	pois []types.POI
}

func New() *Catalog {
	return &Catalog{}
}

// Set replaces the whole catalog.
func (c *Catalog) Set(pois []types.POI) {
	cp := make([]types.POI, len(pois))
	copy(cp, pois)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pois = cp
}

// All returns a copy of the catalog in the order it was set.
func (c *Catalog) All() []types.POI {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.POI, len(c.pois))
	copy(out, c.pois)
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pois)
}
