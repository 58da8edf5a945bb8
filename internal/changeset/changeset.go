// Package changeset loads the material a review session reasons about: the
// changed files, commit messages, and diff for a commit range in a local git
// repository.
package changeset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os/exec"
	"regexp"
	"strings"

	fn "github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// DefaultStartCommit is the range start used when the request names
	// none.
	DefaultStartCommit = "HEAD~14"

	// DefaultEndCommit is the range end used when the request names none.
	DefaultEndCommit = "HEAD"

	// maxDiffBytes caps the total diff size. Larger change sets are
	// sampled file by file until the budget is spent.
	maxDiffBytes = 1 << 20
)

// ErrInvalidRef is returned when a repository path, branch, or commit ref
// fails validation.
var ErrInvalidRef = errors.New("invalid git ref")

// ChangeSet is the loaded review material for one commit range.
type ChangeSet struct {
	// Files lists the changed file paths.
	Files []string `json:"files"`

	// Messages lists the commit subjects in the range, newest first.
	Messages []string `json:"messages"`

	// Diff is the unified diff, possibly sampled down to maxDiffBytes.
	Diff string `json:"diff"`

	// Stats holds the per-file add/delete counts parsed from Diff. Empty
	// when the diff could not be parsed.
	Stats []FileStat `json:"stats,omitempty"`

	// Truncated is set when the diff was sampled rather than complete.
	Truncated bool `json:"truncated,omitempty"`
}

// Request names the repository and commit range to load.
type Request struct {
	// RepoPath is the local path of the git repository.
	RepoPath string

	// Branch, if set, is checked out before reading the range.
	Branch string

	// StartCommit is the range start, DefaultStartCommit when empty.
	StartCommit string

	// EndCommit is the range end, DefaultEndCommit when empty.
	EndCommit string
}

// Loader produces the change set a review session is seeded with.
type Loader interface {
	// Load reads the changed files, commit messages, and diff for the
	// requested range.
	Load(ctx context.Context, req *Request) (*ChangeSet, error)
}

// GitLoader loads change sets by shelling out to git. The zero value is
// usable.
type GitLoader struct{}

// NewGitLoader creates a git-backed change set loader.
func NewGitLoader() *GitLoader {
	return &GitLoader{}
}

// gitRefPattern matches valid git ref characters, including the tilde and
// caret used by relative refs such as HEAD~14. It rejects shell
// metacharacters, spaces, and colons.
var gitRefPattern = regexp.MustCompile(
	`^[a-zA-Z0-9][a-zA-Z0-9/_.\-@{}~^]*$`,
)

// validateRef checks that a branch or commit ref contains only safe
// characters for use as a git argument. exec.Command does not use shell
// interpretation, but this prevents refs starting with "--" from being read
// as flags and rejects range syntax smuggled into a single endpoint.
func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("%w: empty ref", ErrInvalidRef)
	}
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("%w: ref %q starts with dash (could be "+
			"flag)", ErrInvalidRef, ref)
	}
	if strings.Contains(ref, "..") {
		return fmt.Errorf("%w: ref %q contains '..'", ErrInvalidRef,
			ref)
	}
	if !gitRefPattern.MatchString(ref) {
		return fmt.Errorf("%w: ref %q contains invalid characters",
			ErrInvalidRef, ref)
	}

	return nil
}

// optRef lifts a possibly empty ref string into an option.
func optRef(ref string) fn.Option[string] {
	if ref == "" {
		return fn.None[string]()
	}

	return fn.Some(ref)
}

// Load implements Loader.
func (l *GitLoader) Load(ctx context.Context,
	req *Request) (*ChangeSet, error) {

	if req.RepoPath == "" {
		return nil, fmt.Errorf("%w: empty repository path",
			ErrInvalidRef)
	}

	start := optRef(req.StartCommit).UnwrapOr(DefaultStartCommit)
	end := optRef(req.EndCommit).UnwrapOr(DefaultEndCommit)

	for _, ref := range []string{start, end} {
		if err := validateRef(ref); err != nil {
			return nil, err
		}
	}
	if req.Branch != "" {
		if err := validateRef(req.Branch); err != nil {
			return nil, err
		}

		// The "--" separator prevents the branch from being read as
		// a path.
		_, err := l.git(ctx, req.RepoPath, "checkout", req.Branch,
			"--")
		if err != nil {
			return nil, fmt.Errorf("checkout %s: %w", req.Branch,
				err)
		}
	}

	commitRange := start + ".." + end

	filesOut, err := l.git(
		ctx, req.RepoPath, "diff", "--name-only", commitRange, "--",
	)
	if err != nil {
		return nil, fmt.Errorf("list changed files: %w", err)
	}
	files := splitLines(filesOut)

	messagesOut, err := l.git(
		ctx, req.RepoPath, "log", "--pretty=format:%s", commitRange,
	)
	if err != nil {
		return nil, fmt.Errorf("list commit messages: %w", err)
	}
	messages := splitLines(messagesOut)

	diff, truncated, err := l.loadDiff(ctx, req.RepoPath, commitRange,
		files)
	if err != nil {
		return nil, err
	}

	stats, err := Stat(diff)
	if err != nil {
		log.WarnS(ctx, "Failed to parse diff for stats", err)
		stats = nil
	}

	log.InfoS(ctx, "Change set loaded",
		"repo", req.RepoPath,
		"range", commitRange,
		"num_files", len(files),
		"num_commits", len(messages),
		"diff_bytes", len(diff),
		"truncated", truncated)

	return &ChangeSet{
		Files:     files,
		Messages:  messages,
		Diff:      diff,
		Stats:     stats,
		Truncated: truncated,
	}, nil
}

// loadDiff returns the diff for the range. When the full diff exceeds the
// byte budget, per-file diffs are sampled in random order until the budget
// is spent, which keeps the review material representative of the whole
// change rather than biased toward files that sort first.
func (l *GitLoader) loadDiff(ctx context.Context, repoPath,
	commitRange string, files []string) (string, bool, error) {

	full, err := l.git(ctx, repoPath, "diff", commitRange, "--")
	if err != nil {
		return "", false, fmt.Errorf("load diff: %w", err)
	}
	if len(full) <= maxDiffBytes {
		return full, false, nil
	}

	sampled := make([]string, len(files))
	copy(sampled, files)
	rand.Shuffle(len(sampled), func(i, j int) {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	})

	var sb strings.Builder
	for _, file := range sampled {
		fileDiff, err := l.git(
			ctx, repoPath, "diff", commitRange, "--", file,
		)
		if err != nil {
			return "", false, fmt.Errorf("load diff for %s: %w",
				file, err)
		}

		if sb.Len()+len(fileDiff) > maxDiffBytes {
			continue
		}
		sb.WriteString(fileDiff)
	}

	return sb.String(), true, nil
}

// git runs a git command in the given repository and returns its stdout.
func (l *GitLoader) git(ctx context.Context, repoPath string,
	args ...string) (string, error) {

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = err.Error()
		}

		return "", fmt.Errorf("git %s: %s", args[0], errMsg)
	}

	return stdout.String(), nil
}

// splitLines splits command output into non-empty trimmed lines.
func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	return lines
}

// A compile time check to ensure GitLoader implements Loader.
var _ Loader = (*GitLoader)(nil)
