package oracle

import (
	"context"
	"slices"

	"github.com/obiyadev/revtree/internal/changeset"
	"github.com/obiyadev/revtree/internal/mcts"
)

// DefaultFallbackCandidates are the generic review angles substituted when
// the model cannot propose continuations.
var DefaultFallbackCandidates = []string{
	"Analyze code structure",
	"Review error handling",
	"Consider performance implications",
}

// DefaultNeutralScore is the score substituted when the model cannot judge a
// candidate. It deliberately neither rewards nor punishes the branch.
const DefaultNeutralScore = 0.5

// FallbackPolicy wraps an Oracle and converts its failures into fixed,
// search-preserving answers. It is the single place degraded behavior is
// defined, so a model outage shows up as warnings here rather than as an
// aborted review.
type FallbackPolicy struct {
	// Candidates replaces a failed or empty expansion.
	Candidates []string

	// NeutralScore replaces a failed path score.
	NeutralScore float64

	// FallbackSummary seeds the root state when even the initial change
	// evaluation fails.
	FallbackSummary string

	wrapped Oracle
}

// WithFallback wraps the given oracle in the default degrade policy.
func WithFallback(wrapped Oracle) *FallbackPolicy {
	return &FallbackPolicy{
		Candidates:   slices.Clone(DefaultFallbackCandidates),
		NeutralScore: DefaultNeutralScore,
		FallbackSummary: "The change set could not be evaluated " +
			"automatically; review it manually.",
		wrapped: wrapped,
	}
}

// EvaluateChange implements Oracle. A failed evaluation degrades to a
// neutral score with an apologetic summary instead of failing the session.
func (f *FallbackPolicy) EvaluateChange(ctx context.Context,
	cs *changeset.ChangeSet, requirements string) (*Evaluation, error) {

	eval, err := f.wrapped.EvaluateChange(ctx, cs, requirements)
	if err != nil {
		log.WarnS(ctx, "Change evaluation failed, using neutral "+
			"fallback", err)

		return &Evaluation{
			Score:   f.NeutralScore,
			Summary: f.FallbackSummary,
		}, nil
	}

	return eval, nil
}

// Expand implements Oracle. A failed or empty expansion degrades to the
// fixed candidate set so the tree keeps growing.
func (f *FallbackPolicy) Expand(ctx context.Context,
	state string) (*mcts.Expansion, error) {

	expansion, err := f.wrapped.Expand(ctx, state)
	switch {
	case err != nil:
		log.WarnS(ctx, "Expansion failed, using fallback candidates",
			err)

	case len(expansion.Candidates) == 0:
		log.WarnS(ctx, "Expansion returned no candidates, using "+
			"fallback candidates", nil)

	default:
		return expansion, nil
	}

	return &mcts.Expansion{
		Rationale:  "Generic review angles substituted after a failed expansion.",
		Candidates: slices.Clone(f.Candidates),
	}, nil
}

// ScorePath implements Oracle. A failed score degrades to the neutral score.
func (f *FallbackPolicy) ScorePath(ctx context.Context, rootState,
	candidateState string) (*mcts.PathScore, error) {

	score, err := f.wrapped.ScorePath(ctx, rootState, candidateState)
	if err != nil {
		log.WarnS(ctx, "Path scoring failed, using neutral score",
			err)

		return &mcts.PathScore{
			Value:       f.NeutralScore,
			Explanation: "Score unavailable, substituted neutral value.",
		}, nil
	}

	return score, nil
}

// A compile time check to ensure FallbackPolicy implements Oracle.
var _ Oracle = (*FallbackPolicy)(nil)
