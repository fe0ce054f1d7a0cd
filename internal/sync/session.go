package sync

import "fmt"

// State is the observable phase of a sync session.
type State int

const (
	// StateIdle means the queue is empty and nothing is running.
	StateIdle State = iota
	// StatePending means queued bookmarks are waiting for a sync pass.
	StatePending
	// StateSyncing means a pass is draining the queue right now.
	StateSyncing
	// StateSuccess means the last pass mirrored everything it attempted.
	StateSuccess
	// StateError means the last pass could not run or left failures behind.
	StateError
)

// String returns the human-readable state label.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSyncing:
		return "syncing"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is a snapshot of the sync state machine. It is the single channel
// through which sync outcomes, including failures, become user-visible.
type Session struct {
	// State is the current phase.
	State State

	// Pending counts bookmarks still awaiting sync.
	Pending int

	// Synced and Failed count this pass's outcomes. Valid while Syncing
	// and in the terminal states.
	Synced int
	Failed int

	// Status is the running progress text while Syncing, e.g. "3 of 5".
	Status string

	// Message carries the failure summary in StateError.
	Message string
}

// Observer receives a session snapshot after every transition.
type Observer func(Session)
