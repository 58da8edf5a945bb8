package review

import (
	"context"
	"fmt"
)

// SessionFSM manages one review session's state transitions using the
// ProcessEvent pattern. The FSM itself is pure: side effects are returned as
// outbox events for the service to dispatch.
type SessionFSM struct {
	state SessionState
	env   *SessionEnvironment
}

// NewSessionFSM creates a session FSM in the Idle state.
func NewSessionFSM(env *SessionEnvironment) *SessionFSM {
	return &SessionFSM{
		state: &StateIdle{},
		env:   env,
	}
}

// ProcessEvent processes an event and returns the outbox events the service
// should dispatch.
func (f *SessionFSM) ProcessEvent(ctx context.Context,
	event SessionEvent,
) ([]SessionOutboxEvent, error) {
	transition, err := f.state.ProcessEvent(ctx, event, f.env)
	if err != nil {
		return nil, fmt.Errorf("process event %T: %w", event, err)
	}

	f.state = transition.NextState

	return transition.OutboxEvents, nil
}

// CurrentState returns a string representation of the current state.
func (f *SessionFSM) CurrentState() string {
	return f.state.String()
}

// State returns the current SessionState.
func (f *SessionFSM) State() SessionState {
	return f.state
}

// IsTerminal returns true if the session has reached a terminal state.
func (f *SessionFSM) IsTerminal() bool {
	return f.state.IsTerminal()
}

// Environment returns the FSM's environment.
func (f *SessionFSM) Environment() *SessionEnvironment {
	return f.env
}
