package reachability

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// mockProber scripts health-check outcomes and counts invocations.
type mockProber struct {
	mu      sync.Mutex
	results []error
	calls   atomic.Int64
	block   chan struct{} // if non-nil, HealthCheck waits on it
}

func (m *mockProber) HealthCheck(_ context.Context) error {
	n := m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	i := int(n) - 1
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return m.results[i]
}

var errDown = errors.New("connection refused")

// newTestCache returns a cache with a manually advanced clock.
func newTestCache(p Prober, ttl, floor time.Duration) (*Cache, *time.Time) {
	c := NewCache(p, ttl, floor, slog.Default())
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCheck_WithinTTLUsesCache(t *testing.T) {
	p := &mockProber{results: []error{nil}}
	c, now := newTestCache(p, 30*time.Second, 5*time.Second)
	ctx := context.Background()

	base := *now
	if !c.Check(ctx) {
		t.Fatal("first check should probe and report reachable")
	}

	// Every check inside the TTL reuses the cached value.
	for _, dt := range []time.Duration{time.Second, 10 * time.Second, 29 * time.Second} {
		*now = base.Add(dt)
		if !c.Check(ctx) {
			t.Errorf("check at +%v should be cached true", dt)
		}
	}

	if got := p.calls.Load(); got != 1 {
		t.Errorf("probe calls = %d, want 1", got)
	}
}

func TestCheck_PastTTLProbesAgain(t *testing.T) {
	p := &mockProber{results: []error{errDown, nil}}
	c, now := newTestCache(p, 30*time.Second, 5*time.Second)
	ctx := context.Background()

	// t=0: probe fails → unreachable.
	if c.Check(ctx) {
		t.Fatal("first check should report unreachable")
	}

	// t=2s: inside the cache window, no probe, still false.
	*now = now.Add(2 * time.Second)
	if c.Check(ctx) {
		t.Error("check at +2s should be cached false")
	}
	if got := p.calls.Load(); got != 1 {
		t.Fatalf("probe calls = %d, want 1 before TTL expiry", got)
	}

	// t=31s: TTL lapsed → a new probe is issued, now succeeding.
	*now = now.Add(29 * time.Second)
	if !c.Check(ctx) {
		t.Error("check at +31s should probe and report reachable")
	}
	if got := p.calls.Load(); got != 2 {
		t.Errorf("probe calls = %d, want 2", got)
	}
}

func TestCheck_RateLimitFloorServesStaleAfterInvalidate(t *testing.T) {
	p := &mockProber{results: []error{nil}}
	c, now := newTestCache(p, 30*time.Second, 5*time.Second)
	ctx := context.Background()

	c.Check(ctx)

	// Invalidate expires the cached value but the probe was 2s ago — inside
	// the floor the stale value is served rather than probing again.
	*now = now.Add(2 * time.Second)
	c.Invalidate()
	if !c.Check(ctx) {
		t.Error("check inside rate-limit floor should serve the stale value")
	}
	if got := p.calls.Load(); got != 1 {
		t.Errorf("probe calls = %d, want 1 (floor suppresses probe)", got)
	}

	// Past the floor the invalidation takes effect and a probe fires.
	*now = now.Add(4 * time.Second)
	c.Check(ctx)
	if got := p.calls.Load(); got != 2 {
		t.Errorf("probe calls = %d, want 2 after floor lapse", got)
	}
}

func TestCheck_ProbeFailureIsFalseNotError(t *testing.T) {
	p := &mockProber{results: []error{errDown}}
	c, _ := newTestCache(p, 30*time.Second, 5*time.Second)

	if c.Check(context.Background()) {
		t.Error("failed probe must report unreachable")
	}
}

func TestCheck_ConcurrentCallersShareOneProbe(t *testing.T) {
	p := &mockProber{results: []error{nil}, block: make(chan struct{})}
	c := NewCache(p, 30*time.Second, 5*time.Second, slog.Default())
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	results := make([]bool, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Check(ctx)
		}()
	}

	// Let the goroutines pile up on the monitor, then release the probe.
	time.Sleep(20 * time.Millisecond)
	close(p.block)
	wg.Wait()

	if got := p.calls.Load(); got != 1 {
		t.Errorf("probe calls = %d, want exactly 1 for %d concurrent checks", got, n)
	}
	for i, r := range results {
		if !r {
			t.Errorf("caller %d observed unreachable, want reachable", i)
		}
	}
}

func TestLast_BeforeFirstProbe(t *testing.T) {
	c, _ := newTestCache(&mockProber{results: []error{nil}}, 30*time.Second, 5*time.Second)
	reachable, checkedAt := c.Last()
	if reachable || !checkedAt.IsZero() {
		t.Errorf("Last before probe = (%v, %v), want (false, zero)", reachable, checkedAt)
	}
}
