package mcts

import (
	"context"
)

// Backprop applies a simulation's outcome to every node on the path from the
// simulated node up to the root: each gains one visit and the simulation's
// value. The path is resolved before any counter is touched, so a missing
// node leaves the state untouched rather than half updated.
func Backprop(ctx context.Context, state *SearchState,
	result *SimulationResult) error {

	path, err := state.PathToRoot(result.NodeID)
	if err != nil {
		return err
	}

	for _, id := range path {
		node := state.Nodes[id]
		node.Visits++
		node.Value += result.Value
	}

	log.DebugS(ctx, "Backpropagation completed",
		"node_id", result.NodeID,
		"value", result.Value,
		"path_len", len(path))

	return nil
}
