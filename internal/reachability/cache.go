// Package reachability answers "is the server reachable?" without letting the
// rest of the application block on slow network calls. A single shared [Cache]
// collapses bursts of checks into at most one probe, and a [Watcher] turns the
// offline→online transition into an event the sync engine can subscribe to.
package reachability

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Prober performs a single network health check against the server.
// Implemented by [remote.Client].
type Prober interface {
	HealthCheck(ctx context.Context) error
}

// Cache wraps a Prober with a TTL cache and a minimum-interval rate limiter.
// All consumers share one Cache so UI-triggered bursts cost one probe.
//
// Reachability is a boolean, never an error: a failed probe (timeout, DNS
// failure, non-2xx) simply means "unreachable".
type Cache struct {
	probe Prober
	ttl   time.Duration
	floor time.Duration
	log   *slog.Logger

	now func() time.Time // injectable clock for tests

	// mu is a monitor around the whole check-and-probe sequence, which is
	// what guarantees at most one in-flight probe: concurrent callers on a
	// miss queue behind the prober and then hit the refreshed cache.
	mu        sync.Mutex
	last      bool
	haveLast  bool // a probe has completed at least once
	valid     bool // last is within TTL semantics (cleared by Invalidate)
	checkedAt time.Time
}

// NewCache creates a Cache. ttl is how long a probe result is trusted; floor
// is the minimum interval between probes once the TTL has lapsed, and must be
// shorter than ttl (config validation enforces this).
func NewCache(probe Prober, ttl, floor time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		probe: probe,
		ttl:   ttl,
		floor: floor,
		log:   logger,
		now:   time.Now,
	}
}

// Check reports whether the server is reachable, probing at most once per
// rate-limit window. The caller blocks for at most one probe round trip, and
// only on a cache miss.
func (c *Cache) Check(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	age := now.Sub(c.checkedAt)

	if c.haveLast {
		if c.valid && age < c.ttl {
			return c.last
		}
		// Past the TTL (or invalidated) but inside the rate-limit floor:
		// reuse the stale result rather than probing. Stale-but-bounded.
		if age < c.floor {
			return c.last
		}
	}

	result := c.probe.HealthCheck(ctx) == nil
	if result != c.last || !c.haveLast {
		c.log.Info("reachability changed", "reachable", result)
	}
	c.last = result
	c.haveLast = true
	c.valid = true
	c.checkedAt = now
	return result
}

// Invalidate marks the cached result as expired without forgetting it. The
// next Check probes again unless it lands inside the rate-limit floor, in
// which case the stale value is still served.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// Last returns the most recent result and when it was obtained, without
// triggering a probe. Before the first probe it returns (false, zero time).
func (c *Cache) Last() (reachable bool, checkedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.checkedAt
}
