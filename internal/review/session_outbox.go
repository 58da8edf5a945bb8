package review

import (
	"github.com/obiyadev/revtree/internal/mcts"
)

// SessionOutboxEvent is the sealed interface for side effects requested by
// the session FSM. The service dispatches them after each transition; the
// FSM itself stays pure.
type SessionOutboxEvent interface {
	// isSessionOutboxEvent seals the interface to prevent external
	// implementations.
	isSessionOutboxEvent()
}

// Ensure all outbox event types implement SessionOutboxEvent.
func (PersistSessionState) isSessionOutboxEvent()  {}
func (SeedSession) isSessionOutboxEvent()          {}
func (EmitIterationStarted) isSessionOutboxEvent() {}
func (EmitCompleted) isSessionOutboxEvent()        {}
func (EmitError) isSessionOutboxEvent()            {}

// PersistSessionState requests database persistence of the session's FSM
// state.
type PersistSessionState struct {
	NewState string
}

// SeedSession requests loading the change set and producing the initial
// evaluation. The service feeds the result back as a SeedCompletedEvent or a
// FailureEvent.
type SeedSession struct {
	Request *ReviewRequested
}

// EmitIterationStarted requests publishing the next iteration.started event
// with the given snapshot.
type EmitIterationStarted struct {
	Search *mcts.SearchState
}

// EmitCompleted requests assembling and publishing the terminal report built
// from the given snapshot.
type EmitCompleted struct {
	// Search is the snapshot to report on.
	Search *mcts.SearchState

	// Reasoning explains how the conclusion was reached, including any
	// degradation along the way.
	Reasoning string
}

// EmitError requests publishing the terminal hard-failure event. Reserved
// for sessions that failed before any search state existed or whose report
// could not be published.
type EmitError struct {
	Message string
}
