package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
)

// Sink publishes a finished report somewhere. Publishing is the last step of
// a session; a sink failure is the only failure the pipeline reports as a
// hard error.
type Sink interface {
	// Publish writes the report to its output destination.
	Publish(ctx context.Context, r *Report) error
}

// NopSink discards reports. Used when a request names no output destination.
type NopSink struct{}

// Publish implements Sink.
func (NopSink) Publish(ctx context.Context, r *Report) error {
	log.DebugS(ctx, "No output destination, report not persisted",
		"session_id", r.SessionID)

	return nil
}

// FileSink writes reports to the path named by the report's output
// destination. Markdown is written as-is; destinations ending in .html are
// rendered to HTML first.
type FileSink struct{}

// NewFileSink creates a file-writing report sink.
func NewFileSink() *FileSink {
	return &FileSink{}
}

// Publish implements Sink.
func (s *FileSink) Publish(ctx context.Context, r *Report) error {
	if r.OutputDestination == "" {
		return NopSink{}.Publish(ctx, r)
	}

	md := renderMarkdown(r)

	var out []byte
	if strings.HasSuffix(r.OutputDestination, ".html") {
		var buf bytes.Buffer
		if err := goldmark.Convert([]byte(md), &buf); err != nil {
			return fmt.Errorf("render report html: %w", err)
		}
		out = buf.Bytes()
	} else {
		out = []byte(md)
	}

	dir := filepath.Dir(r.OutputDestination)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	if err := os.WriteFile(r.OutputDestination, out, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	log.InfoS(ctx, "Report published",
		"session_id", r.SessionID,
		"destination", r.OutputDestination,
		"bytes", len(out))

	return nil
}

// renderMarkdown formats the report as a markdown document.
func renderMarkdown(r *Report) string {
	var sb strings.Builder

	sb.WriteString("# Code Review Report\n\n")

	if r.Repository != "" {
		fmt.Fprintf(&sb, "- **Repository**: %s\n", r.Repository)
	}
	if r.Branch != "" {
		fmt.Fprintf(&sb, "- **Branch**: %s\n", r.Branch)
	}
	if r.Requirements != "" {
		fmt.Fprintf(&sb, "- **Requirements**: %s\n", r.Requirements)
	}
	fmt.Fprintf(&sb, "- **Session**: %s\n\n", r.SessionID)

	sb.WriteString("## Conclusion\n\n")
	sb.WriteString(r.State)
	sb.WriteString("\n\n## Reasoning\n\n")
	sb.WriteString(r.Reasoning)
	sb.WriteString("\n\n## Search Statistics\n\n")
	fmt.Fprintf(&sb, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Selected node | %s |\n", r.SelectedNodeID)
	fmt.Fprintf(&sb, "| Visits | %d |\n", r.Stats.Visits)
	fmt.Fprintf(&sb, "| Cumulative value | %.3f |\n", r.Stats.Value)
	fmt.Fprintf(&sb, "| Total visits | %d |\n", r.Stats.TotalVisits)
	fmt.Fprintf(&sb, "| Children | %d |\n", r.Stats.ChildrenCount)
	fmt.Fprintf(&sb, "| Nodes explored | %d |\n", len(r.AllNodes))

	if len(r.AllNodes) > 0 {
		sb.WriteString("\n## Explored Reasoning States\n\n")

		ids := make([]string, 0, len(r.AllNodes))
		for id := range r.AllNodes {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			node := r.AllNodes[id]
			if node.Visits == 0 {
				continue
			}
			fmt.Fprintf(&sb,
				"- `%s` (visits=%d, mean=%.3f): %s\n",
				node.ID, node.Visits, node.MeanValue(),
				node.State,
			)
		}
	}

	sb.WriteString("\n")

	return sb.String()
}
