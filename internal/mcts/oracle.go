package mcts

import "context"

// Expansion is the oracle's answer to "where can this line of reasoning go
// next": a rationale plus an ordered list of candidate follow-up states.
type Expansion struct {
	// Rationale explains why these candidates were proposed.
	Rationale string `json:"rationale"`

	// Candidates are the proposed next reasoning states, in preference
	// order.
	Candidates []string `json:"candidates"`
}

// PathScore is the oracle's judgment of one candidate continuation relative
// to the root reasoning state.
type PathScore struct {
	// Value is the quality score in [0, 1].
	Value float64 `json:"value"`

	// Explanation is the oracle's reasoning for the score.
	Explanation string `json:"explanation"`
}

// Oracle supplies the two judgment calls the search cannot make on its own:
// proposing candidate continuations of a reasoning state, and scoring a
// candidate against the root state. Implementations must keep scores in
// [0, 1]; the search relies on that range but does not re-clamp.
type Oracle interface {
	// Expand proposes candidate continuations of the given reasoning
	// state.
	Expand(ctx context.Context, state string) (*Expansion, error)

	// ScorePath scores how promising candidateState is as a continuation
	// of rootState.
	ScorePath(ctx context.Context, rootState,
		candidateState string) (*PathScore, error)
}
