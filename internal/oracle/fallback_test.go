package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obiyadev/revtree/internal/changeset"
	"github.com/obiyadev/revtree/internal/mcts"
)

var errOffline = errors.New("model offline")

// failingOracle errors on every call.
type failingOracle struct{}

func (failingOracle) EvaluateChange(context.Context, *changeset.ChangeSet,
	string) (*Evaluation, error) {

	return nil, errOffline
}

func (failingOracle) Expand(context.Context,
	string) (*mcts.Expansion, error) {

	return nil, errOffline
}

func (failingOracle) ScorePath(context.Context, string,
	string) (*mcts.PathScore, error) {

	return nil, errOffline
}

// emptyExpander answers expansion calls with zero candidates.
type emptyExpander struct {
	failingOracle
}

func (emptyExpander) Expand(context.Context,
	string) (*mcts.Expansion, error) {

	return &mcts.Expansion{Rationale: "nothing to add"}, nil
}

// TestFallbackEvaluateChange asserts a failed evaluation degrades to the
// neutral score rather than erroring.
func TestFallbackEvaluateChange(t *testing.T) {
	t.Parallel()

	policy := WithFallback(failingOracle{})

	eval, err := policy.EvaluateChange(
		context.Background(), &changeset.ChangeSet{Diff: "diff"},
		"reqs",
	)
	require.NoError(t, err)
	require.Equal(t, DefaultNeutralScore, eval.Score)
	require.NotEmpty(t, eval.Summary)
}

// TestFallbackExpand asserts both the error and the zero-candidate cases
// substitute the fixed candidate set.
func TestFallbackExpand(t *testing.T) {
	t.Parallel()

	for name, wrapped := range map[string]Oracle{
		"error": failingOracle{},
		"empty": emptyExpander{},
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			policy := WithFallback(wrapped)

			expansion, err := policy.Expand(
				context.Background(), "some state",
			)
			require.NoError(t, err)
			require.Equal(t,
				DefaultFallbackCandidates,
				expansion.Candidates,
			)
		})
	}
}

// TestFallbackScorePath asserts a failed score degrades to the neutral
// value.
func TestFallbackScorePath(t *testing.T) {
	t.Parallel()

	policy := WithFallback(failingOracle{})

	score, err := policy.ScorePath(context.Background(), "root", "cand")
	require.NoError(t, err)
	require.Equal(t, DefaultNeutralScore, score.Value)
}

// TestFallbackPassThrough asserts healthy answers flow through untouched.
func TestFallbackPassThrough(t *testing.T) {
	t.Parallel()

	policy := WithFallback(healthyOracle{})

	expansion, err := policy.Expand(context.Background(), "state")
	require.NoError(t, err)
	require.Equal(t, []string{"real candidate"}, expansion.Candidates)

	score, err := policy.ScorePath(context.Background(), "root", "cand")
	require.NoError(t, err)
	require.Equal(t, 0.8, score.Value)
}

// healthyOracle returns fixed, successful answers.
type healthyOracle struct{}

func (healthyOracle) EvaluateChange(context.Context, *changeset.ChangeSet,
	string) (*Evaluation, error) {

	return &Evaluation{Score: 0.4, Summary: "fine"}, nil
}

func (healthyOracle) Expand(context.Context,
	string) (*mcts.Expansion, error) {

	return &mcts.Expansion{
		Rationale:  "one angle",
		Candidates: []string{"real candidate"},
	}, nil
}

func (healthyOracle) ScorePath(context.Context, string,
	string) (*mcts.PathScore, error) {

	return &mcts.PathScore{Value: 0.8, Explanation: "solid"}, nil
}
