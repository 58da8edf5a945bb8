package mcts

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestNewSearchState asserts the shape of a freshly seeded session.
func TestNewSearchState(t *testing.T) {
	t.Parallel()

	state := NewSearchState("initial summary", 100, 1.414, 10)

	require.NoError(t, state.Validate())
	require.Len(t, state.Nodes, 1)

	root, err := state.Get(state.RootID)
	require.NoError(t, err)
	require.Equal(t, state.RootID, state.CurrentNodeID)
	require.Empty(t, root.Parent)
	require.Empty(t, root.Children)
	require.EqualValues(t, 1, root.Visits)
	require.Zero(t, root.Value)
	require.Equal(t, "initial summary", root.State)
	require.False(t, root.IsTerminal)
}

// TestInsertAndPath asserts parent/child bookkeeping and root-path
// resolution.
func TestInsertAndPath(t *testing.T) {
	t.Parallel()

	state := NewSearchState("root", 10, 1.414, 10)

	childID, err := state.Insert(state.RootID, "child")
	require.NoError(t, err)

	grandID, err := state.Insert(childID, "grandchild")
	require.NoError(t, err)

	root, err := state.Get(state.RootID)
	require.NoError(t, err)
	require.Equal(t, []string{childID}, root.Children)

	path, err := state.PathToRoot(grandID)
	require.NoError(t, err)
	require.Equal(t, []string{grandID, childID, state.RootID}, path)

	_, err = state.Insert("missing", "orphan")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

// TestValidate asserts the shape checks applied to inbound snapshots.
func TestValidate(t *testing.T) {
	t.Parallel()

	state := NewSearchState("root", 10, 1.414, 10)
	require.NoError(t, state.Validate())

	empty := &SearchState{}
	require.ErrorIs(t, empty.Validate(), ErrInvalidState)

	missingCurrent := state.Clone()
	missingCurrent.CurrentNodeID = "gone"
	require.ErrorIs(t, missingCurrent.Validate(), ErrInvalidState)

	missingRoot := state.Clone()
	missingRoot.RootID = "gone"
	require.ErrorIs(t, missingRoot.Validate(), ErrInvalidState)
}

// TestCloneIsolation asserts that mutating a clone never leaks into the
// original snapshot.
func TestCloneIsolation(t *testing.T) {
	t.Parallel()

	state := NewSearchState("root", 10, 1.414, 10)
	childID, err := state.Insert(state.RootID, "child")
	require.NoError(t, err)

	cp := state.Clone()
	cp.Nodes[childID].Visits = 42
	cp.Nodes[childID].Value = 7
	_, err = cp.Insert(childID, "grandchild")
	require.NoError(t, err)

	require.Zero(t, state.Nodes[childID].Visits)
	require.Zero(t, state.Nodes[childID].Value)
	require.Empty(t, state.Nodes[childID].Children)
	require.Len(t, state.Nodes, 2)
	require.Len(t, cp.Nodes, 3)
}

// TestTreeIntegrity grows a random tree and asserts the structural
// invariants: every non-root node appears exactly once in its parent's child
// list, the root has no parent, and every node reaches the root without
// cycles.
func TestTreeIntegrity(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		state := NewSearchState("root", 100, 1.414, 10)

		numInserts := rapid.IntRange(0, 50).Draw(rt, "num_inserts")
		for i := 0; i < numInserts; i++ {
			parentID := rapid.SampledFrom(state.NodeOrder).
				Draw(rt, "parent")

			_, err := state.Insert(parentID, "candidate")
			require.NoError(rt, err)
		}

		require.Len(rt, state.NodeOrder, len(state.Nodes))

		for id, node := range state.Nodes {
			require.Equal(rt, id, node.ID)

			if id == state.RootID {
				require.Empty(rt, node.Parent)
			} else {
				parent, err := state.Get(node.Parent)
				require.NoError(rt, err)

				occurrences := 0
				for _, childID := range parent.Children {
					if childID == id {
						occurrences++
					}
				}
				require.Equal(rt, 1, occurrences)
			}

			// Walking to the root must terminate within the node
			// count, otherwise there is a cycle.
			path, err := state.PathToRoot(id)
			require.NoError(rt, err)
			require.LessOrEqual(rt, len(path), len(state.Nodes))
			require.Equal(rt, state.RootID, path[len(path)-1])
		}
	})
}
