package reachability

import (
	"context"
	"log/slog"
	"time"
)

// Event is emitted by the Watcher when reachability flips.
type Event struct {
	// Online is the new reachability state.
	Online bool

	// At is when the flip was observed.
	At time.Time
}

// Watcher polls the shared Cache and publishes an [Event] whenever the
// observed reachability changes. The sync engine subscribes to trigger an
// immediate drain when connectivity returns instead of waiting for the next
// poll tick.
type Watcher struct {
	cache    *Cache
	interval time.Duration
	log      *slog.Logger
	events   chan Event
}

// NewWatcher creates a Watcher polling the cache at the given interval.
func NewWatcher(cache *Cache, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		cache:    cache,
		interval: interval,
		log:      logger,
		events:   make(chan Event, 1),
	}
}

// Events returns the channel flips are published on. The channel is buffered;
// if a subscriber is slow, intermediate flips are dropped in favour of the
// newest one.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run polls until ctx is cancelled. The first check establishes a baseline
// and is not published as a flip.
func (w *Watcher) Run(ctx context.Context) error {
	lastKnown := w.cache.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			current := w.cache.Check(ctx)
			if current == lastKnown {
				continue
			}
			lastKnown = current
			w.publish(Event{Online: current, At: time.Now()})
		}
	}
}

// publish sends without blocking, replacing a stale undelivered event.
func (w *Watcher) publish(ev Event) {
	for {
		select {
		case w.events <- ev:
			w.log.Debug("reachability event published", "online", ev.Online)
			return
		default:
			select {
			case <-w.events: // drop the stale event
			default:
			}
		}
	}
}
