package report

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obiyadev/revtree/internal/mcts"
)

// searchFixture builds a small finished search: root plus one well-scored
// child.
func searchFixture(t *testing.T) (*mcts.SearchState, string) {
	t.Helper()

	search := mcts.NewSearchState("initial assessment", 10, 1.414, 10)
	childID, err := search.Insert(search.RootID, "refined conclusion")
	require.NoError(t, err)

	search.Nodes[childID].Visits = 4
	search.Nodes[childID].Value = 3.2

	return search, childID
}

// TestBuild asserts the report is assembled around the best node with
// correct statistics.
func TestBuild(t *testing.T) {
	t.Parallel()

	search, childID := searchFixture(t)
	search.OutputDestination = "out.md"

	r := Build("session-1", search, "selected after 10 iterations")

	require.Equal(t, "session-1", r.SessionID)
	require.Equal(t, childID, r.SelectedNodeID)
	require.Equal(t, "refined conclusion", r.State)
	require.EqualValues(t, 4, r.Stats.Visits)
	require.Equal(t, 3.2, r.Stats.Value)
	require.EqualValues(t, 5, r.Stats.TotalVisits)
	require.Zero(t, r.Stats.ChildrenCount)
	require.Len(t, r.AllNodes, 2)
	require.Equal(t, "out.md", r.OutputDestination)
}

// TestFileSinkMarkdown asserts the markdown rendering lands on disk.
func TestFileSinkMarkdown(t *testing.T) {
	t.Parallel()

	search, _ := searchFixture(t)
	dest := filepath.Join(t.TempDir(), "review", "report.md")
	search.OutputDestination = dest

	r := Build("session-2", search, "rationale text")
	r.Repository = "/tmp/repo"
	r.Requirements = "check error handling"

	require.NoError(t, NewFileSink().Publish(context.Background(), r))

	out, err := os.ReadFile(dest)
	require.NoError(t, err)

	content := string(out)
	require.Contains(t, content, "# Code Review Report")
	require.Contains(t, content, "refined conclusion")
	require.Contains(t, content, "rationale text")
	require.Contains(t, content, "check error handling")
}

// TestFileSinkHTML asserts .html destinations get rendered markup.
func TestFileSinkHTML(t *testing.T) {
	t.Parallel()

	search, _ := searchFixture(t)
	dest := filepath.Join(t.TempDir(), "report.html")
	search.OutputDestination = dest

	r := Build("session-3", search, "rationale")

	require.NoError(t, NewFileSink().Publish(context.Background(), r))

	out, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(out), "<h1"),
		"expected rendered html, got: %s", out)
}

// TestFileSinkNoDestination asserts an empty destination is a no-op.
func TestFileSinkNoDestination(t *testing.T) {
	t.Parallel()

	search, _ := searchFixture(t)
	r := Build("session-4", search, "rationale")

	require.NoError(t, NewFileSink().Publish(context.Background(), r))
}
