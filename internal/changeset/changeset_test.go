package changeset

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateRef asserts the accept/reject rules for refs used as git
// arguments.
func TestValidateRef(t *testing.T) {
	t.Parallel()

	valid := []string{
		"main", "feature/thing", "HEAD", "HEAD~14", "v1.2.3",
		"HEAD@{1}", "abc1234", "release-2024.01",
	}
	for _, ref := range valid {
		require.NoError(t, validateRef(ref), "ref %q", ref)
	}

	invalid := []string{
		"", "-rf", "--force", "a..b", "branch name",
		"branch;rm", "$(whoami)", "a:b",
	}
	for _, ref := range invalid {
		require.ErrorIs(t, validateRef(ref), ErrInvalidRef,
			"ref %q", ref)
	}
}

// initTestRepo creates a git repository with two commits and returns its
// path.
func initTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test",
			"GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test",
			"GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}

	run("init", "-b", "main")

	err := os.WriteFile(
		filepath.Join(dir, "a.txt"), []byte("one\n"), 0o644,
	)
	require.NoError(t, err)
	run("add", "a.txt")
	run("commit", "-m", "add a")

	err = os.WriteFile(
		filepath.Join(dir, "a.txt"), []byte("one\ntwo\n"), 0o644,
	)
	require.NoError(t, err)
	err = os.WriteFile(
		filepath.Join(dir, "b.txt"), []byte("bee\n"), 0o644,
	)
	require.NoError(t, err)
	run("add", "a.txt", "b.txt")
	run("commit", "-m", "extend a, add b")

	return dir
}

// TestGitLoaderLoad asserts files, messages, and diff come back for an
// explicit commit range.
func TestGitLoaderLoad(t *testing.T) {
	t.Parallel()

	repo := initTestRepo(t)
	loader := NewGitLoader()

	cs, err := loader.Load(context.Background(), &Request{
		RepoPath:    repo,
		StartCommit: "HEAD~1",
	})
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, cs.Files)
	require.Equal(t, []string{"extend a, add b"}, cs.Messages)
	require.Contains(t, cs.Diff, "+two")
	require.Contains(t, cs.Diff, "+bee")
	require.False(t, cs.Truncated)

	require.Len(t, cs.Stats, 2)
	require.Contains(t, cs.StatSummary(), "a.txt +1 -0")
}

// TestGitLoaderRejectsBadRefs asserts validation runs before any git
// command.
func TestGitLoaderRejectsBadRefs(t *testing.T) {
	t.Parallel()

	loader := NewGitLoader()

	_, err := loader.Load(context.Background(), &Request{
		RepoPath:    t.TempDir(),
		StartCommit: "--force",
	})
	require.ErrorIs(t, err, ErrInvalidRef)

	_, err = loader.Load(context.Background(), &Request{})
	require.ErrorIs(t, err, ErrInvalidRef)
}

// TestStat asserts per-file line counts parsed from a unified diff.
func TestStat(t *testing.T) {
	t.Parallel()

	const unified = `diff --git a/a.txt b/a.txt
--- a/a.txt
+++ b/a.txt
@@ -1,1 +1,2 @@
 one
+two
diff --git a/b.txt b/b.txt
--- /dev/null
+++ b/b.txt
@@ -0,0 +1,1 @@
+bee
`

	stats, err := Stat(unified)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	require.Equal(t, "a.txt", stats[0].Path)
	require.Equal(t, 1, stats[0].Added)
	require.Equal(t, 0, stats[0].Deleted)

	require.Equal(t, "b.txt", stats[1].Path)
	require.Equal(t, 1, stats[1].Added)
}

// TestStatEmpty asserts an empty diff yields no stats and no error.
func TestStatEmpty(t *testing.T) {
	t.Parallel()

	stats, err := Stat("  \n")
	require.NoError(t, err)
	require.Nil(t, stats)
}
