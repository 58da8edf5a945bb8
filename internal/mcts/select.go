package mcts

import (
	"context"
	"math"
)

// ucb1 computes the UCB1 score for a child node. Both visit counts are
// clamped to at least 1, which keeps the formula finite for freshly created
// nodes without a separate zero-visit branch.
func ucb1(parentVisits, childVisits uint32, childMean,
	explorationConstant float64) float64 {

	pv := math.Max(float64(parentVisits), 1)
	cv := math.Max(float64(childVisits), 1)

	return childMean + explorationConstant*math.Sqrt(math.Log(pv)/cv)
}

// Select descends the tree from startID, at each level preferring an
// unvisited child, otherwise the child with the strictly highest UCB1 score.
// Ties keep the first child in list order. The descent stops at a childless
// node or once maxDepth levels have been walked, and returns the node it
// stopped at.
func Select(ctx context.Context, state *SearchState, startID string,
	explorationConstant float64, maxDepth uint32) (*Node, error) {

	current, err := state.Get(startID)
	if err != nil {
		return nil, err
	}

	for depth := uint32(0); depth < maxDepth; depth++ {
		if len(current.Children) == 0 {
			break
		}

		next, err := pickChild(state, current, explorationConstant)
		if err != nil {
			return nil, err
		}

		log.TraceS(ctx, "Selection descended",
			"from", current.ID,
			"to", next.ID,
			"depth", depth+1)

		current = next
	}

	log.DebugS(ctx, "Selection finished",
		"node_id", current.ID,
		"visits", current.Visits)

	return current, nil
}

// pickChild chooses which child of parent to descend into. An unvisited
// child always wins over any computed score; the first one in children-list
// order is taken.
func pickChild(state *SearchState, parent *Node,
	explorationConstant float64) (*Node, error) {

	var (
		best      *Node
		bestScore float64
	)
	for _, childID := range parent.Children {
		child, err := state.Get(childID)
		if err != nil {
			return nil, err
		}

		if child.Visits == 0 {
			return child, nil
		}

		score := ucb1(
			parent.Visits, child.Visits, child.MeanValue(),
			explorationConstant,
		)

		// Strict comparison keeps the first child on ties.
		if best == nil || score > bestScore {
			best = child
			bestScore = score
		}
	}

	return best, nil
}
