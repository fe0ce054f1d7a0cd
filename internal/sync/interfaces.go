// Package sync implements the offline-first reconciliation engine for
// linkrelay. It drains the local bookmark queue against the remote server
// once connectivity is confirmed, exposes a small session state machine for
// UI observation, and keeps the label cache warm.
//
// The package contains two main components:
//
//   - [Orchestrator] runs a single reconciliation pass with a single-flight
//     re-entrancy guard.
//   - [Engine] runs the polling loop and reacts to connectivity-restored
//     events.
package sync

import (
	"context"

	"github.com/linkrelay/linkrelay/internal/model"
)

// RemoteAPI provides the server operations the engine depends on.
// Implemented by [remote.Client].
type RemoteAPI interface {
	CreateBookmark(ctx context.Context, url, title string, labels []string) (id string, err error)
	ListLabels(ctx context.Context) ([]model.Label, error)
}

// LocalStore provides access to the offline queue and label cache.
// Implemented by [store.Store].
type LocalStore interface {
	ListPending(ctx context.Context) ([]*model.Bookmark, error)
	DeleteBookmark(ctx context.Context, id int64) error
	PendingCount(ctx context.Context) (int, error)
	RecordAttempt(ctx context.Context, id int64) error
	UpsertLabels(ctx context.Context, labels []model.Label) (int, error)
}

// Reachability reports whether the server is currently reachable.
// Implemented by [reachability.Cache].
type Reachability interface {
	Check(ctx context.Context) bool
}
