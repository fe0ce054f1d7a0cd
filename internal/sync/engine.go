package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/linkrelay/linkrelay/internal/reachability"
)

// displayWindow is how long a terminal Success or Error state stays visible
// before the session settles back to Pending or Idle.
const displayWindow = 2 * time.Second

// EventSource delivers reachability transitions to the engine. It is
// satisfied by [reachability.Watcher].
type EventSource interface {
	Events() <-chan reachability.Event
}

// Engine drives the orchestrator: it runs a pass on a fixed poll interval,
// immediately when the server comes back online, and on demand via
// TriggerSync.
type Engine struct {
	orch     *Orchestrator
	events   EventSource
	interval time.Duration
	log      *slog.Logger
	trigger  chan struct{}
}

// NewEngine creates an Engine. events may be nil, in which case the engine
// relies on the poll interval alone.
func NewEngine(orch *Orchestrator, events EventSource, interval time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		orch:     orch,
		events:   events,
		interval: interval,
		log:      logger,
		trigger:  make(chan struct{}, 1),
	}
}

// TriggerSync requests an immediate pass. It never blocks; if a trigger is
// already queued the request coalesces into it.
func (e *Engine) TriggerSync() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run blocks until ctx is cancelled, running sync passes on the poll
// interval, on connectivity recovery, and on manual triggers.
func (e *Engine) Run(ctx context.Context) error {
	var events <-chan reachability.Event
	if e.events != nil {
		events = e.events.Events()
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.log.Info("sync engine started", "interval", e.interval)

	e.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("sync engine stopping")
			return ctx.Err()
		case <-ticker.C:
			e.runPass(ctx)
		case ev := <-events:
			if ev.Online {
				e.log.Info("server reachable again, syncing")
				e.runPass(ctx)
			}
		case <-e.trigger:
			e.runPass(ctx)
		}
	}
}

func (e *Engine) runPass(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	_, err := e.orch.RunSync(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		return
	case errors.Is(err, ErrServerUnreachable):
		e.log.Debug("sync pass skipped, server unreachable")
	default:
		e.log.Error("sync pass failed", "error", err)
	}

	// Let the terminal state linger for readability, then settle.
	time.AfterFunc(displayWindow, func() {
		e.orch.Settle(context.Background())
	})
}
