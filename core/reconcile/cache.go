package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// locationSnapshot is one cached copy of the location catalog.
type locationSnapshot struct {
	locations []Location
	built     time.Time
}

func (s *locationSnapshot) expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		return true
	}
	return now.Sub(s.built) > ttl
}

// LocationCache caches the location catalog for a TTL.
// Concurrent loads after expiry are collapsed into one remote call.
type LocationCache struct {
	source LocationSource
	ttl    time.Duration
	now    func() time.Time

	mu       sync.RWMutex
	snapshot *locationSnapshot
	sf       singleflight.Group
}

// NewLocationCache creates a cache over source. A zero TTL disables caching.
func NewLocationCache(source LocationSource, ttl time.Duration) *LocationCache {
	return &LocationCache{source: source, ttl: ttl, now: time.Now}
}

// Locations returns the cached catalog, loading it if it is missing or expired.
func (c *LocationCache) Locations(ctx context.Context) ([]Location, error) {
	// Fast path
	c.mu.RLock()
	snap := c.snapshot
	c.mu.RUnlock()
	if snap != nil && !snap.expired(c.ttl, c.now()) {
		return snap.locations, nil
	}

	result, err, _ := c.sf.Do("locations", func() (interface{}, error) {
		c.mu.RLock()
		snap := c.snapshot
		c.mu.RUnlock()
		if snap != nil && !snap.expired(c.ttl, c.now()) {
			return snap.locations, nil
		}

		locations, err := c.source.ListLocations(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.snapshot = &locationSnapshot{locations: locations, built: c.now()}
		c.mu.Unlock()
		return locations, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Location), nil
}

// ErrUnknownLocation is returned by Find when no location matches.
var ErrUnknownLocation = errors.New("unknown location")

// Find resolves a location by id or case-insensitive name.
func (c *LocationCache) Find(ctx context.Context, label string) (*Location, error) {
	locations, err := c.Locations(ctx)
	if err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	for _, loc := range locations {
		if matchLocation(loc, label) {
			l := loc
			return &l, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownLocation, label)
}

// Invalidate drops the cached catalog.
func (c *LocationCache) Invalidate() {
	c.mu.Lock()
	c.snapshot = nil
	c.mu.Unlock()
}
