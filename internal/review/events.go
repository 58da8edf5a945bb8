package review

import (
	"time"

	"github.com/obiyadev/revtree/internal/bus"
	"github.com/obiyadev/revtree/internal/mcts"
	"github.com/obiyadev/revtree/internal/report"
)

// Topics carrying the review pipeline. One full iteration is the cycle
// iteration.started → node.selected → node.expanded → simulation.completed →
// backpropagation.completed, after which the controller either re-emits
// iteration.started or finalizes.
const (
	// TopicReviewRequested starts a new review session.
	TopicReviewRequested = "review.requested"

	// TopicIterationStarted begins one search iteration.
	TopicIterationStarted = "mcts.iteration.started"

	// TopicNodeSelected carries the selection phase's output.
	TopicNodeSelected = "mcts.node.selected"

	// TopicNodeExpanded carries the expansion phase's output.
	TopicNodeExpanded = "mcts.node.expanded"

	// TopicSimulationCompleted carries the rollout phase's output.
	TopicSimulationCompleted = "mcts.simulation.completed"

	// TopicBackpropCompleted carries the backpropagation phase's output,
	// observed by the controller.
	TopicBackpropCompleted = "mcts.backpropagation.completed"

	// TopicReasoningCompleted is the terminal success topic. Every
	// session ends with exactly one event here, best-effort included.
	TopicReasoningCompleted = "code-review.reasoning.completed"

	// TopicReviewError is the terminal hard-failure topic, reserved for
	// the case where even a best-effort report could not be published.
	TopicReviewError = "review.error"
)

// ReviewRequested asks the controller to start a review session.
type ReviewRequested struct {
	// SessionID identifies the session. Assigned by the caller.
	SessionID string `json:"sessionId"`

	// Prompt is a free-form review instruction. Used as the requirements
	// when Requirements is empty.
	Prompt string `json:"prompt"`

	// RepoRef is the local path of the repository under review.
	RepoRef string `json:"repoRef"`

	// Branch, if set, is checked out before loading the change set.
	Branch string `json:"branch,omitempty"`

	// MaxIterations bounds the search. Zero finalizes immediately.
	MaxIterations uint32 `json:"maxIterations"`

	// ExplorationConstant weights the UCB1 exploration bonus.
	ExplorationConstant float64 `json:"explorationConstant"`

	// MaxDepth bounds the selection descent.
	MaxDepth uint32 `json:"maxDepth"`

	// ReviewStartCommit and ReviewEndCommit bound the commit range.
	ReviewStartCommit string `json:"reviewStartCommit,omitempty"`
	ReviewEndCommit   string `json:"reviewEndCommit,omitempty"`

	// Requirements are what the change set is reviewed against.
	Requirements string `json:"requirements"`

	// OutputDestination is where the final report should be written.
	OutputDestination string `json:"outputDestination,omitempty"`
}

// Topic implements bus.Event.
func (ReviewRequested) Topic() string { return TopicReviewRequested }

// PhaseEvent is the shared payload of every in-flight pipeline event: the
// complete search snapshot plus the session context. Phases receive it by
// value and clone the snapshot before mutating, so no two stages ever share
// state.
type PhaseEvent struct {
	// SessionID identifies the session.
	SessionID string `json:"sessionId"`

	// Search is the full search state snapshot.
	Search *mcts.SearchState `json:"search"`

	// Requirements, Repository, and Branch travel with every event so
	// any stage can assemble a best-effort report on its own.
	Requirements string `json:"requirements"`
	Repository   string `json:"repository"`
	Branch       string `json:"branch,omitempty"`
}

// IterationStarted begins one search iteration.
type IterationStarted struct {
	PhaseEvent
}

// Topic implements bus.Event.
func (IterationStarted) Topic() string { return TopicIterationStarted }

// NodeSelected reports the node chosen by the selection descent.
type NodeSelected struct {
	PhaseEvent

	// SelectedNodeID is the node to expand.
	SelectedNodeID string `json:"selectedNodeId"`
}

// Topic implements bus.Event.
func (NodeSelected) Topic() string { return TopicNodeSelected }

// NodeExpanded reports the children created by the expansion phase.
type NodeExpanded struct {
	PhaseEvent

	// SelectedNodeID is the node that was expanded.
	SelectedNodeID string `json:"selectedNodeId"`

	// ExpandedNodeIDs are the newly created children, in candidate
	// order.
	ExpandedNodeIDs []string `json:"expandedNodeIds"`
}

// Topic implements bus.Event.
func (NodeExpanded) Topic() string { return TopicNodeExpanded }

// SimulationCompleted reports the sampled rollout's outcome.
type SimulationCompleted struct {
	PhaseEvent

	// Result is the scored rollout.
	Result *mcts.SimulationResult `json:"simulationResult"`
}

// Topic implements bus.Event.
func (SimulationCompleted) Topic() string { return TopicSimulationCompleted }

// BackpropCompleted reports that statistics were propagated to the root. The
// controller observes it and decides whether to loop or finalize.
type BackpropCompleted struct {
	PhaseEvent

	// Result is the rollout that was just applied.
	Result *mcts.SimulationResult `json:"simulationResult"`
}

// Topic implements bus.Event.
func (BackpropCompleted) Topic() string { return TopicBackpropCompleted }

// ReasoningCompleted is the terminal success event carrying the assembled
// report.
type ReasoningCompleted struct {
	// SessionID identifies the session.
	SessionID string `json:"sessionId"`

	// Report is the final answer.
	Report *report.Report `json:"report"`
}

// Topic implements bus.Event.
func (ReasoningCompleted) Topic() string { return TopicReasoningCompleted }

// ReviewError is the terminal hard-failure event, emitted only when even the
// best-effort report could not be published.
type ReviewError struct {
	// Message describes the failure.
	Message string `json:"message"`

	// Timestamp is when the failure was observed.
	Timestamp time.Time `json:"timestamp"`

	// Repository, OutputDestination, and Requirements identify the
	// session that failed.
	Repository        string `json:"repository"`
	OutputDestination string `json:"outputDestination,omitempty"`
	Requirements      string `json:"requirements"`
}

// Topic implements bus.Event.
func (ReviewError) Topic() string { return TopicReviewError }

// Compile-time verification that all pipeline events implement bus.Event.
var (
	_ bus.Event = (*ReviewRequested)(nil)
	_ bus.Event = (*IterationStarted)(nil)
	_ bus.Event = (*NodeSelected)(nil)
	_ bus.Event = (*NodeExpanded)(nil)
	_ bus.Event = (*SimulationCompleted)(nil)
	_ bus.Event = (*BackpropCompleted)(nil)
	_ bus.Event = (*ReasoningCompleted)(nil)
	_ bus.Event = (*ReviewError)(nil)
)
