package mcts

import (
	"context"
	"fmt"
)

// Expand asks the oracle for candidate continuations of nodeID's reasoning
// state and inserts one child per candidate. The state is mutated in place;
// callers own the snapshot they pass in. Returns the ids of the new children
// in candidate order. Zero candidates from the oracle yields an empty slice,
// not an error; the caller decides whether to substitute fallbacks.
func Expand(ctx context.Context, state *SearchState, nodeID string,
	oracle Oracle) ([]string, error) {

	node, err := state.Get(nodeID)
	if err != nil {
		return nil, err
	}
	if node.State == "" {
		return nil, fmt.Errorf("%w: node %s has empty reasoning "+
			"state", ErrInvalidState, nodeID)
	}

	expansion, err := oracle.Expand(ctx, node.State)
	if err != nil {
		return nil, err
	}

	newIDs := make([]string, 0, len(expansion.Candidates))
	for _, candidate := range expansion.Candidates {
		id, err := state.Insert(nodeID, candidate)
		if err != nil {
			return nil, err
		}
		newIDs = append(newIDs, id)
	}

	log.DebugS(ctx, "Node expanded",
		"node_id", nodeID,
		"num_children", len(newIDs))

	return newIDs, nil
}
