package mcts

import (
	fn "github.com/lightningnetwork/lnd/fn/v2"
)

// BestReportNode scans all nodes and returns the one with the highest mean
// reward among nodes with at least one visit, the root included. Ties keep
// the earliest-created node. If no node has been visited, the current node
// is returned as a best-effort answer. The scan never mutates the state, so
// repeated calls over an unchanged tree return the same node.
func BestReportNode(state *SearchState) *Node {
	var (
		best     = fn.None[*Node]()
		bestMean float64
	)
	for _, id := range state.NodeOrder {
		node, ok := state.Nodes[id]
		if !ok || node.Visits == 0 {
			continue
		}

		mean := node.MeanValue()
		if best.IsNone() || mean > bestMean {
			best = fn.Some(node)
			bestMean = mean
		}
	}

	return best.UnwrapOr(state.Nodes[state.CurrentNodeID])
}
