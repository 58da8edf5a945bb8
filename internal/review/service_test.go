package review

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/obiyadev/revtree/internal/bus"
	"github.com/obiyadev/revtree/internal/changeset"
	"github.com/obiyadev/revtree/internal/mcts"
	"github.com/obiyadev/revtree/internal/oracle"
	"github.com/obiyadev/revtree/internal/report"
	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

// stubLoader returns a canned change set without touching git.
type stubLoader struct{}

func (l *stubLoader) Load(_ context.Context,
	_ *changeset.Request) (*changeset.ChangeSet, error) {

	return &changeset.ChangeSet{
		Files:    []string{"main.go", "server.go"},
		Messages: []string{"add request routing", "fix shutdown leak"},
		Diff:     "diff --git a/main.go b/main.go\n",
	}, nil
}

// stubOracle returns deterministic evaluations, expansions, and scores.
type stubOracle struct {
	evalScore  float64
	candidates []string
	pathValue  float64
}

func (o *stubOracle) EvaluateChange(_ context.Context,
	_ *changeset.ChangeSet, _ string) (*oracle.Evaluation, error) {

	return &oracle.Evaluation{
		Score:   o.evalScore,
		Summary: "stub assessment of the change",
	}, nil
}

func (o *stubOracle) Expand(_ context.Context,
	_ string) (*mcts.Expansion, error) {

	return &mcts.Expansion{
		Rationale:  "stub expansion",
		Candidates: o.candidates,
	}, nil
}

func (o *stubOracle) ScorePath(_ context.Context, _,
	_ string) (*mcts.PathScore, error) {

	return &mcts.PathScore{
		Value:       o.pathValue,
		Explanation: "stub score",
	}, nil
}

// recordingSink captures every report it is asked to publish.
type recordingSink struct {
	mu      sync.Mutex
	reports []*report.Report
}

func (s *recordingSink) Publish(_ context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)

	return nil
}

func (s *recordingSink) last() *report.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		return nil
	}

	return s.reports[len(s.reports)-1]
}

// pipelineHarness wires a service onto a real bus with stub collaborators
// and test subscriptions on the terminal topics.
type pipelineHarness struct {
	bus  *bus.Bus
	svc  *Service
	sink *recordingSink

	iterations atomic.Uint32
	completed  chan ReasoningCompleted
	failed     chan ReviewError
}

func newPipelineHarness(t *testing.T, o oracle.Oracle) *pipelineHarness {
	t.Helper()

	h := &pipelineHarness{
		bus:       bus.New(nil),
		sink:      &recordingSink{},
		completed: make(chan ReasoningCompleted, 1),
		failed:    make(chan ReviewError, 1),
	}
	h.svc = NewService(&Config{
		Bus:    h.bus,
		Loader: &stubLoader{},
		Oracle: o,
		Sink:   h.sink,
	})
	require.NoError(t, h.svc.Start())

	err := h.bus.Subscribe(
		TopicIterationStarted, "test",
		func(_ context.Context, _ bus.Event) error {
			h.iterations.Add(1)
			return nil
		},
	)
	require.NoError(t, err)

	err = h.bus.Subscribe(
		TopicReasoningCompleted, "test",
		func(_ context.Context, ev bus.Event) error {
			h.completed <- ev.(ReasoningCompleted)
			return nil
		},
	)
	require.NoError(t, err)

	err = h.bus.Subscribe(
		TopicReviewError, "test",
		func(_ context.Context, ev bus.Event) error {
			h.failed <- ev.(ReviewError)
			return nil
		},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(
			context.Background(), testTimeout,
		)
		defer cancel()
		require.NoError(t, h.bus.Stop(ctx))
	})

	return h
}

func (h *pipelineHarness) request(sessionID string,
	maxIterations uint32) ReviewRequested {

	return ReviewRequested{
		SessionID:           sessionID,
		RepoRef:             "/tmp/repo",
		Branch:              "main",
		MaxIterations:       maxIterations,
		ExplorationConstant: 1.414,
		MaxDepth:            10,
		Requirements:        "review the change for correctness",
	}
}

func (h *pipelineHarness) awaitCompletion(t *testing.T) ReasoningCompleted {
	t.Helper()

	select {
	case done := <-h.completed:
		return done
	case ev := <-h.failed:
		t.Fatalf("session failed instead of completing: %s",
			ev.Message)
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for completion event")
	}

	panic("unreachable")
}

// TestServiceRunsFullSearch drives a session through the full pipeline and
// checks that exactly maxIterations select/expand/simulate/backprop cycles
// ran before the terminal event.
func TestServiceRunsFullSearch(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &stubOracle{
		evalScore: 0.4,
		candidates: []string{
			"inspect request routing",
			"inspect shutdown path",
			"inspect error propagation",
		},
		pathValue: 0.7,
	})

	ctx := context.Background()
	require.NoError(t, h.bus.Publish(ctx, h.request("sess-full", 2)))

	done := h.awaitCompletion(t)
	require.Equal(t, "sess-full", done.SessionID)
	require.NotNil(t, done.Report)

	// Iteration 1 grows three children under the root and backprops one
	// sampled child (root +1, child +1). Iteration 2 descends into an
	// unvisited child, expands it, and backprops a grandchild path
	// (+3 visits). With the seeded root visit that totals 6 over 7 nodes.
	require.Equal(t, uint64(6), done.Report.Stats.TotalVisits)
	require.Len(t, done.Report.AllNodes, 7)
	require.Equal(t, "/tmp/repo", done.Report.Repository)

	state, ok := h.svc.SessionState("sess-full")
	require.True(t, ok)
	require.Equal(t, "finalized", state)
	require.Zero(t, h.svc.ActiveSessionCount())

	// Both iterations must have been announced on the bus before the
	// terminal event went out.
	require.Eventually(t, func() bool {
		return h.iterations.Load() == 2
	}, testTimeout, 10*time.Millisecond)

	require.NotNil(t, h.sink.last())
	require.Equal(t, done.Report.SelectedNodeID,
		h.sink.last().SelectedNodeID)
}

// TestServiceHighScoreSkipsSearch tests that an initial evaluation above the
// completion threshold finalizes without a single iteration.
func TestServiceHighScoreSkipsSearch(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &stubOracle{
		evalScore:  0.95,
		candidates: []string{"unused"},
		pathValue:  0.5,
	})

	ctx := context.Background()
	require.NoError(t, h.bus.Publish(ctx, h.request("sess-high", 100)))

	done := h.awaitCompletion(t)
	require.NotNil(t, done.Report)
	require.Zero(t, h.iterations.Load())

	// With no iterations the report must fall back to the root.
	require.Len(t, done.Report.AllNodes, 1)
	require.Contains(t, done.Report.Reasoning, "no search iterations")
}

// TestServiceZeroIterations tests the maxIterations=0 boundary: the session
// completes from the seeded root without starting the loop.
func TestServiceZeroIterations(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &stubOracle{
		evalScore:  0.3,
		candidates: []string{"unused"},
		pathValue:  0.5,
	})

	ctx := context.Background()
	require.NoError(t, h.bus.Publish(ctx, h.request("sess-zero", 0)))

	done := h.awaitCompletion(t)
	require.NotNil(t, done.Report)
	require.Zero(t, h.iterations.Load())
	require.Len(t, done.Report.AllNodes, 1)
}

// TestServiceNeverStallsOnEmptyExpansion tests that an oracle proposing no
// candidates still lets every iteration complete: the rollout falls back to
// the selected node and the session reaches its terminal event.
func TestServiceNeverStallsOnEmptyExpansion(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &stubOracle{
		evalScore:  0.4,
		candidates: nil,
		pathValue:  0.6,
	})

	ctx := context.Background()
	require.NoError(t, h.bus.Publish(ctx, h.request("sess-empty", 3)))

	done := h.awaitCompletion(t)
	require.NotNil(t, done.Report)

	// No expansion ever happened, so the tree is still just the root.
	require.Len(t, done.Report.AllNodes, 1)
	require.Eventually(t, func() bool {
		return h.iterations.Load() == 3
	}, testTimeout, 10*time.Millisecond)
}

// TestServiceInvalidRequestEmitsError tests that a request missing its
// requirements terminates with review.error rather than silence.
func TestServiceInvalidRequestEmitsError(t *testing.T) {
	t.Parallel()

	h := newPipelineHarness(t, &stubOracle{evalScore: 0.4})

	req := h.request("sess-bad", 5)
	req.Requirements = ""

	ctx := context.Background()
	require.NoError(t, h.bus.Publish(ctx, req))

	select {
	case ev := <-h.failed:
		require.Contains(t, ev.Message, "empty requirements")
		require.Equal(t, "/tmp/repo", ev.Repository)
	case <-h.completed:
		t.Fatal("invalid request must not complete")
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for error event")
	}

	state, ok := h.svc.SessionState("sess-bad")
	require.True(t, ok)
	require.Equal(t, "finalized", state)
}
