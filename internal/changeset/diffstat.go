package changeset

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// FileStat summarizes one file's portion of a diff.
type FileStat struct {
	// Path is the new file path, or the old one for deletions.
	Path string `json:"path"`

	// Added is the number of added lines.
	Added int `json:"added"`

	// Deleted is the number of deleted lines.
	Deleted int `json:"deleted"`
}

// Stat parses a unified diff and returns per-file line counts. A diff that
// fails to parse yields an error rather than partial counts.
func Stat(unified string) ([]FileStat, error) {
	if strings.TrimSpace(unified) == "" {
		return nil, nil
	}

	fileDiffs, err := diff.NewMultiFileDiffReader(
		strings.NewReader(unified),
	).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	stats := make([]FileStat, 0, len(fileDiffs))
	for _, fd := range fileDiffs {
		stat := fd.Stat()

		path := strings.TrimPrefix(fd.NewName, "b/")
		if path == "/dev/null" {
			path = strings.TrimPrefix(fd.OrigName, "a/")
		}

		stats = append(stats, FileStat{
			Path:    path,
			Added:   int(stat.Added + stat.Changed),
			Deleted: int(stat.Deleted + stat.Changed),
		})
	}

	return stats, nil
}

// StatSummary renders the change set's per-file stats as one line per file,
// suitable for prompts and reports. An empty string means no stats were
// parsed.
func (c *ChangeSet) StatSummary() string {
	var sb strings.Builder
	for _, stat := range c.Stats {
		fmt.Fprintf(&sb, "%s +%d -%d\n", stat.Path, stat.Added,
			stat.Deleted)
	}

	return strings.TrimRight(sb.String(), "\n")
}
