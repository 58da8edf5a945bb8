package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/obiyadev/revtree/internal/mcts"
	"github.com/obiyadev/revtree/internal/report"
)

// openTestStore opens a migrated store backed by a temp file.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	return s
}

func testSession(id string) *Session {
	return &Session{
		ID:                  id,
		Repository:          "/tmp/repo",
		Branch:              "main",
		Requirements:        "review error handling",
		State:               "idle",
		MaxIterations:       100,
		ExplorationConstant: 1.414,
		MaxDepth:            10,
		OutputDestination:   "out.md",
	}
}

// TestSessionRoundTrip asserts create, fetch, and state updates.
func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, testSession("sess-1")))

	got, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "/tmp/repo", got.Repository)
	require.Equal(t, "idle", got.State)
	require.EqualValues(t, 100, got.MaxIterations)
	require.Equal(t, 1.414, got.ExplorationConstant)

	require.NoError(t, s.UpdateSessionState(ctx, "sess-1", "finalized"))

	got, err = s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "finalized", got.State)
}

// TestSessionNotFound asserts missing rows surface as ErrNotFound.
func TestSessionNotFound(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetSession(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	err = s.UpdateSessionState(ctx, "missing", "seeded")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetReport(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestListSessions asserts all sessions come back.
func TestListSessions(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, testSession("sess-a")))
	require.NoError(t, s.CreateSession(ctx, testSession("sess-b")))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
}

// TestReportRoundTrip asserts a report survives persistence including its
// node map.
func TestReportRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, testSession("sess-r")))

	search := mcts.NewSearchState("assessment", 10, 1.414, 10)
	childID, err := search.Insert(search.RootID, "conclusion")
	require.NoError(t, err)
	search.Nodes[childID].Visits = 3
	search.Nodes[childID].Value = 2.4

	rep := report.Build("sess-r", search, "why this conclusion")

	require.NoError(t, s.SaveReport(ctx, rep))

	got, err := s.GetReport(ctx, "sess-r")
	require.NoError(t, err)
	require.Equal(t, rep.SelectedNodeID, got.SelectedNodeID)
	require.Equal(t, "conclusion", got.State)
	require.Equal(t, rep.Stats, got.Stats)
	require.Len(t, got.AllNodes, 2)
	require.Equal(t, "assessment", got.AllNodes[search.RootID].State)

	// Saving again overwrites rather than failing.
	rep.Reasoning = "updated"
	require.NoError(t, s.SaveReport(ctx, rep))

	got, err = s.GetReport(ctx, "sess-r")
	require.NoError(t, err)
	require.Equal(t, "updated", got.Reasoning)
}
