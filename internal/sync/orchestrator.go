package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const (
	otelScope         = "linkrelay/sync"
	spanSync          = "sync.pass"
	metricSynced      = "linkrelay.sync.bookmarks.synced"
	metricFailed      = "linkrelay.sync.bookmarks.failed"
	metricUnreachable = "linkrelay.sync.unreachable"
	metricSkipped     = "linkrelay.sync.passes.skipped"
)

// ErrServerUnreachable is returned by RunSync when the reachability check
// fails; no partial progress is attempted while offline.
var ErrServerUnreachable = errors.New("server not reachable")

// ErrSyncInProgress is returned to a caller whose RunSync lost the
// single-flight race. The running pass's progress is observable through
// [Orchestrator.Session]; starting a second pass would double-process the
// queue.
var ErrSyncInProgress = errors.New("sync already in progress")

// Stats tracks the outcome of a single sync pass.
type Stats struct {
	Synced int
	Failed int
}

// Orchestrator drains the offline queue against the remote server, one
// record at a time. It is safe for concurrent use; concurrent RunSync calls
// are serialized by a single-flight guard.
type Orchestrator struct {
	remote RemoteAPI
	store  LocalStore
	reach  Reachability
	log    *slog.Logger

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer         trace.Tracer
	cntSynced      metric.Int64Counter
	cntFailed      metric.Int64Counter
	cntUnreachable metric.Int64Counter
	cntSkipped     metric.Int64Counter

	mu        sync.Mutex
	session   Session
	observers []Observer
	inFlight  bool
}

// NewOrchestrator creates an Orchestrator wired to the given collaborators.
func NewOrchestrator(remote RemoteAPI, store LocalStore, reach Reachability, logger *slog.Logger) *Orchestrator {
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Orchestrator{
		remote: remote,
		store:  store,
		reach:  reach,
		log:    logger,

		tracer:         otel.Tracer(otelScope),
		cntSynced:      mustCounter(metricSynced, "Number of bookmarks mirrored to the server"),
		cntFailed:      mustCounter(metricFailed, "Number of bookmarks that failed to mirror"),
		cntUnreachable: mustCounter(metricUnreachable, "Number of sync passes aborted because the server was unreachable"),
		cntSkipped:     mustCounter(metricSkipped, "Number of sync passes skipped by the single-flight guard"),
	}
}

// Session returns a snapshot of the current sync session.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Subscribe registers an observer invoked after every session transition.
// Observers run on the transitioning goroutine and must not block.
func (o *Orchestrator) Subscribe(fn Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// setSession replaces the session and notifies observers.
func (o *Orchestrator) setSession(s Session) {
	o.mu.Lock()
	o.session = s
	observers := append([]Observer(nil), o.observers...)
	o.mu.Unlock()

	for _, fn := range observers {
		fn(s)
	}
}

// RunSync performs one reconciliation pass: reachability gate, queue
// snapshot, sequential drain with per-record failure isolation. A record
// that fails stays queued for the next pass; one bad record never blocks
// the rest of the queue.
func (o *Orchestrator) RunSync(ctx context.Context) (Stats, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		o.cntSkipped.Add(ctx, 1)
		o.log.Debug("sync pass already in flight, skipping")
		return Stats{}, ErrSyncInProgress
	}
	o.inFlight = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	ctx, span := o.tracer.Start(ctx, spanSync)
	defer span.End()

	stats, err := o.pass(ctx)

	if stats.Synced > 0 {
		o.cntSynced.Add(ctx, int64(stats.Synced))
	}
	if stats.Failed > 0 {
		o.cntFailed.Add(ctx, int64(stats.Failed))
	}
	span.SetAttributes(
		attribute.Int("sync.synced", stats.Synced),
		attribute.Int("sync.failed", stats.Failed),
	)
	if err != nil {
		span.RecordError(err)
	}
	return stats, err
}

// pass runs the actual drain. Caller holds the single-flight slot.
func (o *Orchestrator) pass(ctx context.Context) (Stats, error) {
	var stats Stats

	if !o.reach.Check(ctx) {
		o.cntUnreachable.Add(ctx, 1)
		pending, countErr := o.store.PendingCount(ctx)
		if countErr != nil {
			o.log.Error("counting pending bookmarks", "error", countErr)
		}
		o.setSession(Session{State: StateError, Pending: pending, Message: ErrServerUnreachable.Error()})
		return stats, ErrServerUnreachable
	}

	pending, err := o.store.ListPending(ctx)
	if err != nil {
		o.setSession(Session{State: StateError, Message: "local storage failure"})
		return stats, fmt.Errorf("listing pending bookmarks: %w", err)
	}

	if len(pending) == 0 {
		o.setSession(Session{State: StateSuccess})
		return stats, nil
	}

	o.setSession(Session{State: StateSyncing, Pending: len(pending), Status: fmt.Sprintf("0 of %d", len(pending))})

	var firstErr error
	for _, b := range pending {
		if _, createErr := o.remote.CreateBookmark(ctx, b.URL, b.Title, b.Tags); createErr != nil {
			o.log.Error("mirroring bookmark failed",
				"url", b.URL,
				"attempts", b.SyncAttempts+1,
				"error", createErr,
			)
			stats.Failed++
			if firstErr == nil {
				firstErr = createErr
			}
			if attemptErr := o.store.RecordAttempt(ctx, b.ID); attemptErr != nil {
				o.log.Error("recording failed attempt", "url", b.URL, "error", attemptErr)
			}
			continue
		}

		if delErr := o.store.DeleteBookmark(ctx, b.ID); delErr != nil {
			// Mirrored but not dequeued: the next pass will re-send it.
			o.log.Error("removing mirrored bookmark from queue", "url", b.URL, "error", delErr)
			if firstErr == nil {
				firstErr = delErr
			}
		}
		stats.Synced++
		o.setSession(Session{
			State:   StateSyncing,
			Pending: len(pending),
			Synced:  stats.Synced,
			Failed:  stats.Failed,
			Status:  fmt.Sprintf("%d of %d", stats.Synced, len(pending)),
		})
	}

	o.log.Info("sync pass complete", "synced", stats.Synced, "failed", stats.Failed)

	if stats.Failed == 0 {
		o.setSession(Session{State: StateSuccess, Synced: stats.Synced})
	} else {
		o.setSession(Session{
			State:   StateError,
			Pending: stats.Failed,
			Synced:  stats.Synced,
			Failed:  stats.Failed,
			Message: fmt.Sprintf("synced %d, %d failed", stats.Synced, stats.Failed),
		})
	}
	return stats, firstErr
}

// Settle decays a terminal session state back to Pending (if work remains)
// or Idle. The engine calls it after the display window; calling it while a
// pass is running is a no-op.
func (o *Orchestrator) Settle(ctx context.Context) {
	o.mu.Lock()
	state := o.session.State
	busy := o.inFlight
	o.mu.Unlock()

	if busy || (state != StateSuccess && state != StateError) {
		return
	}

	pending, err := o.store.PendingCount(ctx)
	if err != nil {
		o.log.Error("counting pending bookmarks", "error", err)
		return
	}
	if pending > 0 {
		o.setSession(Session{State: StatePending, Pending: pending})
	} else {
		o.setSession(Session{State: StateIdle})
	}
}
