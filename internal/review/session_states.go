package review

import (
	"context"
	"fmt"

	"github.com/obiyadev/revtree/internal/mcts"
)

// CompletionThreshold is the initial evaluation score above which a session
// finalizes without searching: the change is already judged good enough that
// iterating would not change the conclusion.
const CompletionThreshold = 0.9

// SessionState is the sealed interface for all session states. Each state
// handles incoming events and returns state transitions with optional outbox
// events for side effects.
type SessionState interface {
	// ProcessEvent handles an incoming event and returns the next state
	// along with any outbox events to emit.
	ProcessEvent(ctx context.Context, event SessionEvent,
		env *SessionEnvironment) (*SessionTransition, error)

	// IsTerminal returns true if this is a terminal state.
	IsTerminal() bool

	// String returns a human-readable name for the state.
	String() string

	// isSessionState seals the interface.
	isSessionState()
}

// SessionTransition represents the result of processing an event.
type SessionTransition struct {
	NextState    SessionState
	OutboxEvents []SessionOutboxEvent
}

// SessionEnvironment provides context for state transitions.
type SessionEnvironment struct {
	SessionID         string
	Repository        string
	Branch            string
	Requirements      string
	OutputDestination string
}

// Compile-time verification that all concrete states implement SessionState.
var (
	_ SessionState = (*StateIdle)(nil)
	_ SessionState = (*StateSeeded)(nil)
	_ SessionState = (*StateIterationRunning)(nil)
	_ SessionState = (*StateFinalized)(nil)
)

// =============================================================================
// StateIdle: Initial state before a review request has been accepted.
// =============================================================================

// StateIdle is the initial state of a session FSM.
type StateIdle struct{}

// ProcessEvent handles events in the Idle state.
func (s *StateIdle) ProcessEvent(_ context.Context, event SessionEvent,
	env *SessionEnvironment,
) (*SessionTransition, error) {
	switch e := event.(type) {
	case RequestReceivedEvent:
		return &SessionTransition{
			NextState: &StateSeeded{Request: e.Request},
			OutboxEvents: []SessionOutboxEvent{
				PersistSessionState{NewState: "seeded"},
				SeedSession{Request: e.Request},
			},
		}, nil

	case FailureEvent:
		// Nothing has been built yet, so there is no best-effort
		// report to fall back to.
		return &SessionTransition{
			NextState: &StateFinalized{},
			OutboxEvents: []SessionOutboxEvent{
				PersistSessionState{NewState: "finalized"},
				EmitError{
					Message: fmt.Sprintf(
						"session %s failed during "+
							"%s: %v",
						env.SessionID, e.Stage, e.Err,
					),
				},
			},
		}, nil

	default:
		return nil, fmt.Errorf(
			"unexpected event %T in state Idle", event,
		)
	}
}

func (s *StateIdle) IsTerminal() bool { return false }
func (s *StateIdle) String() string   { return "idle" }
func (s *StateIdle) isSessionState()  {}

// =============================================================================
// StateSeeded: Change set loading and initial evaluation in flight.
// =============================================================================

// StateSeeded indicates the session is waiting for the change set to be
// loaded and evaluated into a root reasoning state.
type StateSeeded struct {
	Request *ReviewRequested
}

// ProcessEvent handles events in the Seeded state.
func (s *StateSeeded) ProcessEvent(_ context.Context, event SessionEvent,
	env *SessionEnvironment,
) (*SessionTransition, error) {
	switch e := event.(type) {
	case SeedCompletedEvent:
		// A change set that already scores above the completion
		// threshold, or a request for zero iterations, finalizes
		// immediately with the root as the answer.
		if e.Score >= CompletionThreshold ||
			e.Search.MaxIterations == 0 {

			return &SessionTransition{
				NextState: &StateFinalized{},
				OutboxEvents: []SessionOutboxEvent{
					PersistSessionState{
						NewState: "finalized",
					},
					EmitCompleted{
						Search: e.Search,
						Reasoning: fmt.Sprintf(
							"Initial evaluation "+
								"scored %.2f; no "+
								"search iterations "+
								"were needed.",
							e.Score,
						),
					},
				},
			}, nil
		}

		return &SessionTransition{
			NextState: &StateIterationRunning{Search: e.Search},
			OutboxEvents: []SessionOutboxEvent{
				PersistSessionState{NewState: "iterating"},
				EmitIterationStarted{Search: e.Search},
			},
		}, nil

	case FailureEvent:
		return &SessionTransition{
			NextState: &StateFinalized{},
			OutboxEvents: []SessionOutboxEvent{
				PersistSessionState{NewState: "finalized"},
				EmitError{
					Message: fmt.Sprintf(
						"session %s failed during "+
							"%s: %v",
						env.SessionID, e.Stage, e.Err,
					),
				},
			},
		}, nil

	default:
		return nil, fmt.Errorf(
			"unexpected event %T in state Seeded", event,
		)
	}
}

func (s *StateSeeded) IsTerminal() bool { return false }
func (s *StateSeeded) String() string   { return "seeded" }
func (s *StateSeeded) isSessionState()  {}

// =============================================================================
// StateIterationRunning: The search loop is in flight.
// =============================================================================

// StateIterationRunning indicates search iterations are cycling through the
// pipeline. It holds the last observed snapshot so a mid-flight failure can
// still be finalized best-effort.
type StateIterationRunning struct {
	Search *mcts.SearchState
}

// ProcessEvent handles events in the IterationRunning state.
func (s *StateIterationRunning) ProcessEvent(_ context.Context,
	event SessionEvent, env *SessionEnvironment,
) (*SessionTransition, error) {
	switch e := event.(type) {
	case BackpropObservedEvent:
		// One iteration is complete. Count it, then either loop or
		// finalize.
		search := e.Search.Clone()
		search.CurrentIteration++

		if search.CurrentIteration >= search.MaxIterations {
			return &SessionTransition{
				NextState: &StateFinalized{},
				OutboxEvents: []SessionOutboxEvent{
					PersistSessionState{
						NewState: "finalized",
					},
					EmitCompleted{
						Search: search,
						Reasoning: fmt.Sprintf(
							"Selected after %d "+
								"search iterations "+
								"across %d "+
								"reasoning states.",
							search.CurrentIteration,
							len(search.Nodes),
						),
					},
				},
			}, nil
		}

		return &SessionTransition{
			NextState: &StateIterationRunning{Search: search},
			OutboxEvents: []SessionOutboxEvent{
				EmitIterationStarted{Search: search},
			},
		}, nil

	case FailureEvent:
		// The search broke mid-flight, but a snapshot exists. The
		// session still ends with a completion event built from the
		// best answer so far.
		return &SessionTransition{
			NextState: &StateFinalized{},
			OutboxEvents: []SessionOutboxEvent{
				PersistSessionState{NewState: "finalized"},
				EmitCompleted{
					Search: s.Search,
					Reasoning: fmt.Sprintf(
						"Search stopped early after "+
							"a failure during %s "+
							"(%v); reporting the "+
							"best-supported state "+
							"found so far.",
						e.Stage, e.Err,
					),
				},
			},
		}, nil

	default:
		return nil, fmt.Errorf(
			"unexpected event %T in state IterationRunning", event,
		)
	}
}

func (s *StateIterationRunning) IsTerminal() bool { return false }
func (s *StateIterationRunning) String() string   { return "iterating" }
func (s *StateIterationRunning) isSessionState()  {}

// =============================================================================
// StateFinalized: Terminal.
// =============================================================================

// StateFinalized indicates the session has emitted its terminal event.
type StateFinalized struct{}

// ProcessEvent returns an error since Finalized is a terminal state.
func (s *StateFinalized) ProcessEvent(_ context.Context,
	event SessionEvent, _ *SessionEnvironment,
) (*SessionTransition, error) {
	return nil, fmt.Errorf(
		"session is in terminal state Finalized, cannot process %T",
		event,
	)
}

func (s *StateFinalized) IsTerminal() bool { return true }
func (s *StateFinalized) String() string   { return "finalized" }
func (s *StateFinalized) isSessionState()  {}

// StateFromString reconstructs a SessionState from its string
// representation. Used when listing persisted sessions.
func StateFromString(s string) SessionState {
	switch s {
	case "idle":
		return &StateIdle{}
	case "seeded":
		return &StateSeeded{}
	case "iterating":
		return &StateIterationRunning{}
	case "finalized":
		return &StateFinalized{}
	default:
		return &StateIdle{}
	}
}
