// Package undo implements optimistic, cancellable destructive operations.
// A delete is registered with [Tracker.BeginDelete], which starts a fixed
// undo window; the real delete runs only if the window elapses without a
// [Tracker.Cancel]. If the committed delete fails, the item is restored.
package undo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// commitTimeout bounds the committed delete call so a dead server cannot
// hold the tracker's goroutine forever.
const commitTimeout = 10 * time.Second

// Outcome is the terminal state of a tracked delete.
type Outcome int

const (
	// OutcomeCancelled means the user undid the delete inside the window.
	OutcomeCancelled Outcome = iota
	// OutcomeCommitted means the window elapsed and the delete succeeded.
	OutcomeCommitted
	// OutcomeFailed means the committed delete failed and the item was restored.
	OutcomeFailed
)

// String returns the human-readable outcome label.
func (o Outcome) String() string {
	switch o {
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeCommitted:
		return "committed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes how a tracked delete ended. Err is set for OutcomeFailed.
type Result struct {
	TrackingID string
	ItemID     string
	Outcome    Outcome
	Err        error
}

// DeleteFunc performs the real delete once the undo window elapses.
type DeleteFunc func(ctx context.Context, itemID string) error

// RestoreFunc rolls back the optimistic removal when the committed delete
// fails: the UI puts the item back in its visible list.
type RestoreFunc func(itemID string)

// Tracker manages pending deletes. Each tracked item has an independent
// timer; simultaneous pending deletes do not interfere.
type Tracker struct {
	window   time.Duration
	deleteFn DeleteFunc
	restore  RestoreFunc
	log      *slog.Logger

	mu       sync.Mutex
	pending  map[string]*pendingDelete
	onResult func(Result)
}

type pendingDelete struct {
	itemID    string
	startedAt time.Time
	timer     *time.Timer
}

// NewTracker creates a Tracker committing deletes through deleteFn after
// window. restore may be nil if the caller has no optimistic UI to roll back.
func NewTracker(window time.Duration, deleteFn DeleteFunc, restore RestoreFunc, logger *slog.Logger) *Tracker {
	return &Tracker{
		window:   window,
		deleteFn: deleteFn,
		restore:  restore,
		log:      logger,
		pending:  make(map[string]*pendingDelete),
	}
}

// OnResult registers a callback invoked once per tracked delete with its
// terminal outcome. Must be set before the first BeginDelete.
func (t *Tracker) OnResult(fn func(Result)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResult = fn
}

// BeginDelete registers itemID as pending deletion and returns a tracking ID
// for [Tracker.Cancel]. The caller may remove the item from its visible list
// immediately — the domain record is untouched until the window elapses.
func (t *Tracker) BeginDelete(itemID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	trackingID := uuid.NewString()
	pd := &pendingDelete{itemID: itemID, startedAt: time.Now()}
	pd.timer = time.AfterFunc(t.window, func() { t.commit(trackingID) })
	t.pending[trackingID] = pd

	t.log.Debug("delete pending", "tracking_id", trackingID, "item", itemID, "window", t.window)
	return trackingID
}

// Cancel suppresses a pending delete. It reports whether the cancellation won
// the race: false means the tracking ID is unknown or the commit already
// started, in which case the delete can no longer be stopped.
func (t *Tracker) Cancel(trackingID string) bool {
	t.mu.Lock()
	pd, ok := t.pending[trackingID]
	if !ok || !pd.timer.Stop() {
		t.mu.Unlock()
		return false
	}
	delete(t.pending, trackingID)
	notify := t.onResult
	t.mu.Unlock()

	t.log.Info("delete cancelled", "tracking_id", trackingID, "item", pd.itemID)
	if notify != nil {
		notify(Result{TrackingID: trackingID, ItemID: pd.itemID, Outcome: OutcomeCancelled})
	}
	return true
}

// Active reports whether the tracked delete is still inside its undo window.
func (t *Tracker) Active(trackingID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[trackingID]
	return ok
}

// Progress returns the elapsed fraction of the undo window in [0, 1],
// recomputed from wall time. Unknown or completed IDs report 1. The value is
// advisory — it drives a countdown affordance, nothing more.
func (t *Tracker) Progress(trackingID string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	pd, ok := t.pending[trackingID]
	if !ok {
		return 1
	}
	frac := float64(time.Since(pd.startedAt)) / float64(t.window)
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}

// Close cancels all outstanding timers without committing or notifying.
// Pending deletes are abandoned; the domain records stay untouched.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, pd := range t.pending {
		pd.timer.Stop()
		delete(t.pending, id)
	}
}

// commit is the timer-fired path: if the delete is still pending, perform it
// for real. On failure the optimistic removal is rolled back via restore.
func (t *Tracker) commit(trackingID string) {
	t.mu.Lock()
	pd, ok := t.pending[trackingID]
	if !ok {
		// Lost the race against Cancel or Close.
		t.mu.Unlock()
		return
	}
	delete(t.pending, trackingID)
	notify := t.onResult
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	if err := t.deleteFn(ctx, pd.itemID); err != nil {
		t.log.Error("committed delete failed, restoring item", "item", pd.itemID, "error", err)
		if t.restore != nil {
			t.restore(pd.itemID)
		}
		if notify != nil {
			notify(Result{TrackingID: trackingID, ItemID: pd.itemID, Outcome: OutcomeFailed, Err: err})
		}
		return
	}

	t.log.Info("delete committed", "item", pd.itemID)
	if notify != nil {
		notify(Result{TrackingID: trackingID, ItemID: pd.itemID, Outcome: OutcomeCommitted})
	}
}
