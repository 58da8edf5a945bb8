// Package oracle supplies the judgment calls the search engine outsources:
// evaluating a change set, proposing continuations of a reasoning state, and
// scoring a candidate continuation. The production implementation talks to an
// OpenAI-compatible chat API; a fallback wrapper keeps the search alive when
// the model is unavailable or returns garbage.
package oracle

import (
	"context"

	"github.com/obiyadev/revtree/internal/changeset"
	"github.com/obiyadev/revtree/internal/mcts"
)

// Issue is a single review finding, structured as a Toulmin argument so the
// report can show how well each claim is supported.
type Issue struct {
	// Claim is the finding itself.
	Claim string `json:"claim"`

	// Grounds is the evidence in the diff supporting the claim.
	Grounds string `json:"grounds"`

	// Warrant connects the grounds to the claim.
	Warrant string `json:"warrant"`

	// Backing supports the warrant.
	Backing string `json:"backing"`

	// Qualifier states how strongly the claim holds.
	Qualifier string `json:"qualifier"`
}

// Evaluation is the oracle's assessment of a whole change set. It seeds the
// root reasoning state of a search session.
type Evaluation struct {
	// Score is the overall quality score in [0, 1].
	Score float64 `json:"score"`

	// Issues are the individual findings.
	Issues []Issue `json:"issues"`

	// Summary describes the change set and its overall quality.
	Summary string `json:"summary"`

	// IssueSummary condenses the findings into one paragraph.
	IssueSummary string `json:"issueSummary"`
}

// Oracle is the full judgment interface the review pipeline consumes. Its
// Expand and ScorePath methods satisfy the search engine's mcts.Oracle;
// EvaluateChange is used once per session to seed the root.
type Oracle interface {
	mcts.Oracle

	// EvaluateChange assesses a change set against the stated review
	// requirements. The returned score must be in [0, 1].
	EvaluateChange(ctx context.Context, cs *changeset.ChangeSet,
		requirements string) (*Evaluation, error)
}

// clamp01 forces a model-reported score into the contract range.
func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
