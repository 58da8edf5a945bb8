package mcts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildTree creates a root with the given stats and one child per entry of
// children, returning the state and the child ids in order.
func buildTree(t *testing.T, rootVisits uint32, rootValue float64,
	children []*Node) (*SearchState, []string) {

	t.Helper()

	state := NewSearchState("root", 100, 1.414, 10)
	root := state.Nodes[state.RootID]
	root.Visits = rootVisits
	root.Value = rootValue

	ids := make([]string, len(children))
	for i, child := range children {
		id, err := state.Insert(state.RootID, child.State)
		require.NoError(t, err)

		state.Nodes[id].Visits = child.Visits
		state.Nodes[id].Value = child.Value
		ids[i] = id
	}

	return state, ids
}

// TestSelectPrefersUnvisited asserts that an unvisited child always wins over
// a visited sibling, no matter the exploration constant.
func TestSelectPrefersUnvisited(t *testing.T) {
	t.Parallel()

	for _, c := range []float64{0, 0.1, 1.414, 10, 1000} {
		state, ids := buildTree(t, 6, 3, []*Node{
			{State: "visited", Visits: 5, Value: 5},
			{State: "fresh", Visits: 0, Value: 0},
		})

		selected, err := Select(
			context.Background(), state, state.RootID, c, 10,
		)
		require.NoError(t, err)
		require.Equal(t, ids[1], selected.ID,
			"exploration constant %v", c)
	}
}

// TestSelectUCB1Scenario pins the UCB1 arithmetic: with the root at 10
// visits, c1 at (5, 2.5) and c2 at (4, 3.0), an exploration constant of 1.4
// must pick c2.
func TestSelectUCB1Scenario(t *testing.T) {
	t.Parallel()

	state, ids := buildTree(t, 10, 5, []*Node{
		{State: "c1", Visits: 5, Value: 2.5},
		{State: "c2", Visits: 4, Value: 3.0},
	})

	selected, err := Select(
		context.Background(), state, state.RootID, 1.4, 10,
	)
	require.NoError(t, err)
	require.Equal(t, ids[1], selected.ID)
}

// TestSelectTieKeepsFirst asserts the deterministic tie-break: identical
// scores keep the first child in list order.
func TestSelectTieKeepsFirst(t *testing.T) {
	t.Parallel()

	state, ids := buildTree(t, 8, 4, []*Node{
		{State: "a", Visits: 4, Value: 2},
		{State: "b", Visits: 4, Value: 2},
	})

	selected, err := Select(
		context.Background(), state, state.RootID, 1.414, 10,
	)
	require.NoError(t, err)
	require.Equal(t, ids[0], selected.ID)
}

// TestSelectStopsAtLeaf asserts that selection returns the current node once
// there are no children to descend into.
func TestSelectStopsAtLeaf(t *testing.T) {
	t.Parallel()

	state := NewSearchState("root", 100, 1.414, 10)

	selected, err := Select(
		context.Background(), state, state.RootID, 1.414, 10,
	)
	require.NoError(t, err)
	require.Equal(t, state.RootID, selected.ID)
}

// TestSelectHonorsMaxDepth asserts the descent stops after maxDepth levels
// even when deeper children exist.
func TestSelectHonorsMaxDepth(t *testing.T) {
	t.Parallel()

	state := NewSearchState("root", 100, 1.414, 10)

	parentID := state.RootID
	var level1 string
	for i := 0; i < 3; i++ {
		id, err := state.Insert(parentID, "deeper")
		require.NoError(t, err)

		// Give every node a visit so selection scores rather than
		// short-circuits on the unvisited rule.
		state.Nodes[id].Visits = 1
		if i == 0 {
			level1 = id
		}
		parentID = id
	}

	selected, err := Select(
		context.Background(), state, state.RootID, 1.414, 1,
	)
	require.NoError(t, err)
	require.Equal(t, level1, selected.ID)
}

// TestSelectMissingStart asserts that an unknown start node surfaces as
// ErrNodeNotFound.
func TestSelectMissingStart(t *testing.T) {
	t.Parallel()

	state := NewSearchState("root", 100, 1.414, 10)

	_, err := Select(context.Background(), state, "missing", 1.414, 10)
	require.ErrorIs(t, err, ErrNodeNotFound)
}
