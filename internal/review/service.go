package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	fn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/obiyadev/revtree/internal/bus"
	"github.com/obiyadev/revtree/internal/changeset"
	"github.com/obiyadev/revtree/internal/mcts"
	"github.com/obiyadev/revtree/internal/oracle"
	"github.com/obiyadev/revtree/internal/report"
	"github.com/obiyadev/revtree/internal/store"
)

// ErrInvalidRequest is returned when a review request fails basic shape
// checks.
var ErrInvalidRequest = errors.New("invalid review request")

// logRequirementsLen is how much of the requirements text to include in log
// lines.
const logRequirementsLen = 20

// Config wires the service's collaborators together.
type Config struct {
	// Bus carries all pipeline events.
	Bus *bus.Bus

	// Loader produces the change set a session is seeded with.
	Loader changeset.Loader

	// Oracle supplies evaluations, expansions, and path scores. Wrap it
	// with oracle.WithFallback so model outages degrade instead of
	// failing sessions.
	Oracle oracle.Oracle

	// Sink publishes finished reports.
	Sink report.Sink

	// Store persists sessions and reports. None disables persistence.
	Store fn.Option[*store.Store]
}

// Service orchestrates review sessions. It owns one FSM per session and
// implements every pipeline phase as a bus subscription, so the iteration
// loop exists only as a cycle of events: each handler consumes a full search
// snapshot, clones it, runs one phase, and publishes the next event.
type Service struct {
	cfg *Config

	mu       sync.RWMutex
	sessions map[string]*SessionFSM
}

// NewService creates a review service from the given config.
func NewService(cfg *Config) *Service {
	return &Service{
		cfg:      cfg,
		sessions: make(map[string]*SessionFSM),
	}
}

// Start registers the service's phase handlers on the bus.
func (s *Service) Start() error {
	subs := []struct {
		topic   string
		handler bus.Handler
	}{
		{TopicReviewRequested, s.handleReviewRequested},
		{TopicIterationStarted, s.handleIterationStarted},
		{TopicNodeSelected, s.handleNodeSelected},
		{TopicNodeExpanded, s.handleNodeExpanded},
		{TopicSimulationCompleted, s.handleSimulationCompleted},
		{TopicBackpropCompleted, s.handleBackpropCompleted},
	}
	for _, sub := range subs {
		err := s.cfg.Bus.Subscribe(sub.topic, "review", sub.handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.topic, err)
		}
	}

	return nil
}

// SessionState returns the FSM state string for a session, or false if the
// session is unknown.
func (s *Service) SessionState(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fsm, ok := s.sessions[sessionID]
	if !ok {
		return "", false
	}

	return fsm.CurrentState(), true
}

// ActiveSessionCount returns the number of sessions not yet finalized.
func (s *Service) ActiveSessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, fsm := range s.sessions {
		if !fsm.IsTerminal() {
			count++
		}
	}

	return count
}

// validateRequest checks the fields without which a session cannot run: a
// repository to load and requirements to review against.
func validateRequest(req *ReviewRequested) error {
	switch {
	case req.SessionID == "":
		return fmt.Errorf("%w: empty session id", ErrInvalidRequest)
	case req.RepoRef == "":
		return fmt.Errorf("%w: empty repository reference",
			ErrInvalidRequest)
	case req.Requirements == "":
		return fmt.Errorf("%w: empty requirements",
			ErrInvalidRequest)
	default:
		return nil
	}
}

// handleReviewRequested creates the session FSM and kicks off seeding.
func (s *Service) handleReviewRequested(ctx context.Context,
	ev bus.Event) error {

	req, ok := ev.(ReviewRequested)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", ev,
			TopicReviewRequested)
	}

	// A free-form prompt doubles as the requirements when none were given
	// separately.
	if req.Requirements == "" {
		req.Requirements = req.Prompt
	}

	log.InfoS(ctx, "Review requested",
		"session_id", req.SessionID,
		"repo", req.RepoRef,
		"branch", req.Branch,
		"max_iterations", req.MaxIterations,
		"requirements", truncate(req.Requirements, logRequirementsLen))

	fsm := NewSessionFSM(&SessionEnvironment{
		SessionID:         req.SessionID,
		Repository:        req.RepoRef,
		Branch:            req.Branch,
		Requirements:      req.Requirements,
		OutputDestination: req.OutputDestination,
	})

	s.mu.Lock()
	if _, exists := s.sessions[req.SessionID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: duplicate session id %s",
			ErrInvalidRequest, req.SessionID)
	}
	s.sessions[req.SessionID] = fsm
	s.mu.Unlock()

	s.cfg.Store.WhenSome(func(st *store.Store) {
		err := st.CreateSession(ctx, &store.Session{
			ID:                  req.SessionID,
			Repository:          req.RepoRef,
			Branch:              req.Branch,
			Requirements:        req.Requirements,
			State:               fsm.CurrentState(),
			MaxIterations:       req.MaxIterations,
			ExplorationConstant: req.ExplorationConstant,
			MaxDepth:            req.MaxDepth,
			OutputDestination:   req.OutputDestination,
		})
		if err != nil {
			log.ErrorS(ctx, "Failed to persist session", err,
				"session_id", req.SessionID)
		}
	})

	var fsmEvent SessionEvent = RequestReceivedEvent{Request: &req}
	if err := validateRequest(&req); err != nil {
		fsmEvent = FailureEvent{Stage: "validation", Err: err}
	}

	s.advance(ctx, fsm, fsmEvent)

	return nil
}

// handleIterationStarted runs the selection phase: descend from the root and
// mark the chosen node as current.
func (s *Service) handleIterationStarted(ctx context.Context,
	ev bus.Event) error {

	pe, ok := ev.(IterationStarted)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", ev,
			TopicIterationStarted)
	}

	if err := pe.Search.Validate(); err != nil {
		s.failSession(ctx, pe.SessionID, "selection", err)
		return nil
	}

	search := pe.Search.Clone()

	selected, err := mcts.Select(
		ctx, search, search.RootID, search.ExplorationConstant,
		search.MaxDepth,
	)
	if err != nil {
		s.failSession(ctx, pe.SessionID, "selection", err)
		return nil
	}
	search.CurrentNodeID = selected.ID

	log.InfoS(ctx, "Node selected",
		"session_id", pe.SessionID,
		"iteration", search.CurrentIteration,
		"node_id", selected.ID,
		"visits", selected.Visits)

	next := NodeSelected{
		PhaseEvent:     pe.withSearch(search),
		SelectedNodeID: selected.ID,
	}
	s.publishOrFail(ctx, pe.SessionID, "selection", next)

	return nil
}

// handleNodeSelected runs the expansion phase: grow the tree under the
// selected node.
func (s *Service) handleNodeSelected(ctx context.Context,
	ev bus.Event) error {

	pe, ok := ev.(NodeSelected)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", ev,
			TopicNodeSelected)
	}

	if err := pe.Search.Validate(); err != nil {
		s.failSession(ctx, pe.SessionID, "expansion", err)
		return nil
	}

	search := pe.Search.Clone()

	newIDs, err := mcts.Expand(
		ctx, search, pe.SelectedNodeID, s.cfg.Oracle,
	)
	if err != nil {
		s.failSession(ctx, pe.SessionID, "expansion", err)
		return nil
	}

	log.InfoS(ctx, "Node expanded",
		"session_id", pe.SessionID,
		"node_id", pe.SelectedNodeID,
		"num_children", len(newIDs))

	next := NodeExpanded{
		PhaseEvent:      pe.withSearch(search),
		SelectedNodeID:  pe.SelectedNodeID,
		ExpandedNodeIDs: newIDs,
	}
	s.publishOrFail(ctx, pe.SessionID, "expansion", next)

	return nil
}

// handleNodeExpanded runs the rollout phase: sample one fresh candidate and
// score it.
func (s *Service) handleNodeExpanded(ctx context.Context,
	ev bus.Event) error {

	pe, ok := ev.(NodeExpanded)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", ev,
			TopicNodeExpanded)
	}

	if err := pe.Search.Validate(); err != nil {
		s.failSession(ctx, pe.SessionID, "simulation", err)
		return nil
	}

	search := pe.Search.Clone()

	result, err := mcts.Simulate(
		ctx, search, pe.ExpandedNodeIDs, s.cfg.Oracle, nil,
	)
	if err != nil {
		s.failSession(ctx, pe.SessionID, "simulation", err)
		return nil
	}

	log.InfoS(ctx, "Simulation completed",
		"session_id", pe.SessionID,
		"node_id", result.NodeID,
		"value", result.Value)

	next := SimulationCompleted{
		PhaseEvent: pe.withSearch(search),
		Result:     result,
	}
	s.publishOrFail(ctx, pe.SessionID, "simulation", next)

	return nil
}

// handleSimulationCompleted runs the backpropagation phase: fold the rollout
// into every node on the path to the root.
func (s *Service) handleSimulationCompleted(ctx context.Context,
	ev bus.Event) error {

	pe, ok := ev.(SimulationCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", ev,
			TopicSimulationCompleted)
	}

	if err := pe.Search.Validate(); err != nil {
		s.failSession(ctx, pe.SessionID, "backpropagation", err)
		return nil
	}

	search := pe.Search.Clone()

	if err := mcts.Backprop(ctx, search, pe.Result); err != nil {
		s.failSession(ctx, pe.SessionID, "backpropagation", err)
		return nil
	}

	next := BackpropCompleted{
		PhaseEvent: pe.withSearch(search),
		Result:     pe.Result,
	}
	s.publishOrFail(ctx, pe.SessionID, "backpropagation", next)

	return nil
}

// handleBackpropCompleted closes the loop: the controller counts the
// iteration and either re-emits iteration.started or finalizes.
func (s *Service) handleBackpropCompleted(ctx context.Context,
	ev bus.Event) error {

	pe, ok := ev.(BackpropCompleted)
	if !ok {
		return fmt.Errorf("unexpected payload %T on %s", ev,
			TopicBackpropCompleted)
	}

	s.mu.RLock()
	fsm, ok := s.sessions[pe.SessionID]
	s.mu.RUnlock()
	if !ok {
		log.WarnS(ctx, "Backpropagation for unknown session", nil,
			"session_id", pe.SessionID)
		return nil
	}

	s.advance(ctx, fsm, BackpropObservedEvent{Search: pe.Search})

	return nil
}

// advance feeds one event into a session FSM and dispatches the resulting
// outbox events.
func (s *Service) advance(ctx context.Context, fsm *SessionFSM,
	event SessionEvent) {

	outbox, err := fsm.ProcessEvent(ctx, event)
	if err != nil {
		log.ErrorS(ctx, "Session FSM rejected event", err,
			"session_id", fsm.Environment().SessionID,
			"state", fsm.CurrentState())
		return
	}

	s.processOutbox(ctx, fsm, outbox)
}

// processOutbox dispatches the side effects requested by an FSM transition.
func (s *Service) processOutbox(ctx context.Context, fsm *SessionFSM,
	outbox []SessionOutboxEvent) {

	env := fsm.Environment()

	for _, o := range outbox {
		switch e := o.(type) {
		case PersistSessionState:
			s.persistState(ctx, env.SessionID, e.NewState)

		case SeedSession:
			s.seedSession(ctx, fsm, e.Request)

		case EmitIterationStarted:
			next := IterationStarted{PhaseEvent: PhaseEvent{
				SessionID:    env.SessionID,
				Search:       e.Search,
				Requirements: env.Requirements,
				Repository:   env.Repository,
				Branch:       env.Branch,
			}}
			if err := s.cfg.Bus.Publish(ctx, next); err != nil {
				// The loop cannot continue; finalize with
				// what the FSM holds.
				s.advance(ctx, fsm, FailureEvent{
					Stage: "emit",
					Err:   err,
				})
			}

		case EmitCompleted:
			s.emitCompleted(ctx, env, e)

		case EmitError:
			s.emitError(ctx, env, e.Message)
		}
	}
}

// seedSession loads the change set, produces the initial evaluation, and
// feeds the result back into the FSM.
func (s *Service) seedSession(ctx context.Context, fsm *SessionFSM,
	req *ReviewRequested) {

	cs, err := s.cfg.Loader.Load(ctx, &changeset.Request{
		RepoPath:    req.RepoRef,
		Branch:      req.Branch,
		StartCommit: req.ReviewStartCommit,
		EndCommit:   req.ReviewEndCommit,
	})
	if err != nil {
		s.advance(ctx, fsm, FailureEvent{Stage: "load", Err: err})
		return
	}

	eval, err := s.cfg.Oracle.EvaluateChange(ctx, cs, req.Requirements)
	if err != nil {
		s.advance(ctx, fsm, FailureEvent{Stage: "seed", Err: err})
		return
	}

	log.InfoS(ctx, "Session seeded",
		"session_id", req.SessionID,
		"score", eval.Score,
		"num_files", len(cs.Files),
		"num_issues", len(eval.Issues))

	search := mcts.NewSearchState(
		eval.Summary, req.MaxIterations, req.ExplorationConstant,
		req.MaxDepth,
	)
	search.OutputDestination = req.OutputDestination

	s.advance(ctx, fsm, SeedCompletedEvent{
		Search:  search,
		Score:   eval.Score,
		Summary: eval.Summary,
	})
}

// emitCompleted assembles the terminal report, publishes it to the sink and
// the bus, and persists it. Only a failure to publish even this terminal
// event escalates to review.error.
func (s *Service) emitCompleted(ctx context.Context,
	env *SessionEnvironment, e EmitCompleted) {

	rep := report.Build(env.SessionID, e.Search, e.Reasoning)
	rep.Repository = env.Repository
	rep.Branch = env.Branch
	rep.Requirements = env.Requirements

	if err := s.cfg.Sink.Publish(ctx, rep); err != nil {
		log.ErrorS(ctx, "Failed to publish report to sink", err,
			"session_id", env.SessionID)
		s.emitError(ctx, env, fmt.Sprintf(
			"failed to publish report: %v", err,
		))
		return
	}

	s.cfg.Store.WhenSome(func(st *store.Store) {
		if err := st.SaveReport(ctx, rep); err != nil {
			log.ErrorS(ctx, "Failed to persist report", err,
				"session_id", env.SessionID)
		}
	})

	done := ReasoningCompleted{
		SessionID: env.SessionID,
		Report:    rep,
	}
	if err := s.cfg.Bus.Publish(ctx, done); err != nil {
		s.emitError(ctx, env, fmt.Sprintf(
			"failed to emit completion: %v", err,
		))
		return
	}

	log.InfoS(ctx, "Review session completed",
		"session_id", env.SessionID,
		"selected_node", rep.SelectedNodeID,
		"total_visits", rep.Stats.TotalVisits)
}

// emitError publishes the terminal hard-failure event. This is the end of
// the line; a publish failure here can only be logged.
func (s *Service) emitError(ctx context.Context, env *SessionEnvironment,
	message string) {

	ev := ReviewError{
		Message:           message,
		Timestamp:         time.Now().UTC(),
		Repository:        env.Repository,
		OutputDestination: env.OutputDestination,
		Requirements:      env.Requirements,
	}
	if err := s.cfg.Bus.Publish(ctx, ev); err != nil {
		log.CriticalS(ctx, "Failed to emit review error", err,
			"session_id", env.SessionID,
			"message", message)
	}
}

// failSession converts a phase failure into an FSM event so the session
// still reaches a terminal state.
func (s *Service) failSession(ctx context.Context, sessionID, stage string,
	err error) {

	log.WarnS(ctx, "Phase failed, finalizing best-effort", err,
		"session_id", sessionID,
		"stage", stage)

	s.mu.RLock()
	fsm, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		log.ErrorS(ctx, "Failure for unknown session", err,
			"session_id", sessionID,
			"stage", stage)
		return
	}

	s.advance(ctx, fsm, FailureEvent{Stage: stage, Err: err})
}

// publishOrFail publishes a phase's outbound event, converting a publish
// failure into a session failure so the loop never stalls silently.
func (s *Service) publishOrFail(ctx context.Context, sessionID,
	stage string, ev bus.Event) {

	if err := s.cfg.Bus.Publish(ctx, ev); err != nil {
		s.failSession(ctx, sessionID, stage, err)
	}
}

// persistState updates the stored FSM state, logging failures rather than
// interrupting the session.
func (s *Service) persistState(ctx context.Context, sessionID,
	state string) {

	s.cfg.Store.WhenSome(func(st *store.Store) {
		err := st.UpdateSessionState(ctx, sessionID, state)
		if err != nil {
			log.ErrorS(ctx, "Failed to persist session state", err,
				"session_id", sessionID,
				"state", state)
		}
	})
}

// withSearch returns a copy of the phase payload carrying the given
// snapshot.
func (p PhaseEvent) withSearch(search *mcts.SearchState) PhaseEvent {
	p.Search = search
	return p
}

// truncate shortens s to at most n bytes for log lines.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
