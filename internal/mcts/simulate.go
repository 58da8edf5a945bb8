package mcts

import (
	"context"
	"math/rand/v2"
)

// SimulationResult carries one sampled rollout's outcome to the
// backpropagation phase.
type SimulationResult struct {
	// NodeID is the node whose reasoning state was scored.
	NodeID string `json:"nodeId"`

	// Value is the oracle's score in [0, 1].
	Value float64 `json:"value"`

	// Explanation is the oracle's reasoning for the score.
	Explanation string `json:"explanation"`
}

// Simulate performs one bounded-cost rollout: it samples exactly one id from
// candidateIDs uniformly at random, asks the oracle to score that candidate's
// reasoning state against the root state, and tags the result with the
// sampled id. With no candidates it degrades to scoring the root against
// itself so the pipeline always gets a result to backpropagate. A nil rng
// uses the shared global source.
func Simulate(ctx context.Context, state *SearchState,
	candidateIDs []string, oracle Oracle,
	rng *rand.Rand) (*SimulationResult, error) {

	root, err := state.Get(state.RootID)
	if err != nil {
		return nil, err
	}

	target := root
	if len(candidateIDs) > 0 {
		var idx int
		if rng != nil {
			idx = rng.IntN(len(candidateIDs))
		} else {
			idx = rand.IntN(len(candidateIDs))
		}

		target, err = state.Get(candidateIDs[idx])
		if err != nil {
			return nil, err
		}
	} else {
		log.WarnS(ctx, "No candidates to simulate, scoring root", nil,
			"root_id", root.ID)
	}

	score, err := oracle.ScorePath(ctx, root.State, target.State)
	if err != nil {
		return nil, err
	}

	log.DebugS(ctx, "Simulation completed",
		"node_id", target.ID,
		"value", score.Value)

	return &SimulationResult{
		NodeID:      target.ID,
		Value:       score.Value,
		Explanation: score.Explanation,
	}, nil
}
