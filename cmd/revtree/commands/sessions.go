package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/obiyadev/revtree/internal/store"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect persisted review sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted review sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one session and its report, if finished",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}

// runSessionsList prints every persisted session, newest first.
func runSessionsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.ListSessions(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Println("No review sessions recorded.")
		return nil
	}

	for _, sess := range sessions {
		fmt.Printf("%s  [%s]  %s\n", sess.ID, sess.State,
			sess.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  Repo: %s", sess.Repository)
		if sess.Branch != "" {
			fmt.Printf(" (branch %s)", sess.Branch)
		}
		fmt.Println()
		fmt.Printf("  Requirements: %s\n", sess.Requirements)
	}

	return nil
}

// runSessionsShow prints one session's configuration and, when the session
// finished, its report.
func runSessionsShow(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	sessionID := args[0]

	sess, err := st.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("session %s not found", sessionID)
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	fmt.Printf("Session %s [%s]\n", sess.ID, sess.State)
	fmt.Printf("Repo: %s", sess.Repository)
	if sess.Branch != "" {
		fmt.Printf(" (branch %s)", sess.Branch)
	}
	fmt.Println()
	fmt.Printf("Requirements: %s\n", sess.Requirements)
	fmt.Printf("Search: max %d iterations, exploration %.3f, "+
		"max depth %d\n",
		sess.MaxIterations, sess.ExplorationConstant, sess.MaxDepth)
	fmt.Printf("Created: %s\n", sess.CreatedAt.Format(time.RFC3339))

	rep, err := st.GetReport(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Println("\nNo report recorded for this session.")
			return nil
		}
		return fmt.Errorf("failed to load report: %w", err)
	}

	fmt.Printf("\nSelected: %s\n", rep.SelectedNodeID)
	fmt.Printf("Conclusion: %s\n", rep.State)
	fmt.Printf("Reasoning: %s\n", rep.Reasoning)
	fmt.Printf("Stats: %d visits, %d total across %d states\n",
		rep.Stats.Visits, rep.Stats.TotalVisits, len(rep.AllNodes))

	return nil
}
