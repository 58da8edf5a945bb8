package review

import (
	"github.com/obiyadev/revtree/internal/mcts"
)

// SessionEvent is the sealed interface for events that drive the session
// FSM. All event types must implement the unexported isSessionEvent()
// method.
type SessionEvent interface {
	// isSessionEvent seals the interface to prevent external
	// implementations.
	isSessionEvent()
}

// Ensure all event types implement SessionEvent.
func (RequestReceivedEvent) isSessionEvent()  {}
func (SeedCompletedEvent) isSessionEvent()    {}
func (BackpropObservedEvent) isSessionEvent() {}
func (FailureEvent) isSessionEvent()          {}

// RequestReceivedEvent is fed when a review request arrives for this
// session.
type RequestReceivedEvent struct {
	Request *ReviewRequested
}

// SeedCompletedEvent is fed once the change set has been loaded and the
// initial evaluation produced the root reasoning state.
type SeedCompletedEvent struct {
	// Search is the freshly seeded search state.
	Search *mcts.SearchState

	// Score is the initial evaluation's quality score.
	Score float64

	// Summary is the initial evaluation's summary, already installed as
	// the root state.
	Summary string
}

// BackpropObservedEvent is fed when a backpropagation.completed event for
// this session arrives, closing one iteration.
type BackpropObservedEvent struct {
	// Search is the search state after backpropagation.
	Search *mcts.SearchState
}

// FailureEvent is fed when any stage of the session fails. The FSM converts
// it into a best-effort completion where possible.
type FailureEvent struct {
	// Stage names the pipeline stage that failed.
	Stage string

	// Err is the underlying failure.
	Err error
}
