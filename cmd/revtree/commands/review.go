package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	fn "github.com/lightningnetwork/lnd/fn/v2"
	"github.com/obiyadev/revtree/internal/bus"
	"github.com/obiyadev/revtree/internal/changeset"
	"github.com/obiyadev/revtree/internal/oracle"
	"github.com/obiyadev/revtree/internal/report"
	"github.com/obiyadev/revtree/internal/review"
	"github.com/obiyadev/revtree/internal/store"
	"github.com/spf13/cobra"
)

var (
	// reviewRepo is the path to the repository under review.
	reviewRepo string

	// reviewBranch is the branch to check out before diffing.
	reviewBranch string

	// reviewRequirements describes what the review should judge the
	// change against.
	reviewRequirements string

	// reviewMaxIterations bounds the number of search iterations.
	reviewMaxIterations uint32

	// reviewExploration is the UCB1 exploration constant.
	reviewExploration float64

	// reviewMaxDepth bounds the selection descent.
	reviewMaxDepth uint32

	// reviewStartCommit and reviewEndCommit bound the commit range.
	reviewStartCommit string
	reviewEndCommit   string

	// reviewOutput is the report destination path (.md or .html).
	reviewOutput string

	// reviewAPIKey, reviewBaseURL, and reviewModel configure the oracle.
	reviewAPIKey  string
	reviewBaseURL string
	reviewModel   string

	// reviewNoPersist disables session persistence.
	reviewNoPersist bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run a tree-search review over a commit range",
	Long: `Run a review session: load the diff and commit messages for the
configured range, seed a search tree with an initial evaluation, then run
select/expand/simulate/backpropagate iterations until the iteration budget
is spent. The best-supported reasoning state becomes the report.`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVar(
		&reviewRepo, "repo", ".",
		"Path to the repository under review",
	)
	reviewCmd.Flags().StringVar(
		&reviewBranch, "branch", "",
		"Branch to check out before diffing (empty keeps the current "+
			"branch)",
	)
	reviewCmd.Flags().StringVarP(
		&reviewRequirements, "requirements", "r", "",
		"What the change should be reviewed against (required)",
	)
	reviewCmd.Flags().Uint32Var(
		&reviewMaxIterations, "max-iterations", 100,
		"Maximum number of search iterations",
	)
	reviewCmd.Flags().Float64Var(
		&reviewExploration, "exploration", 1.414,
		"UCB1 exploration constant",
	)
	reviewCmd.Flags().Uint32Var(
		&reviewMaxDepth, "max-depth", 10,
		"Maximum tree depth for the selection descent",
	)
	reviewCmd.Flags().StringVar(
		&reviewStartCommit, "start-commit",
		changeset.DefaultStartCommit,
		"Start of the commit range to review",
	)
	reviewCmd.Flags().StringVar(
		&reviewEndCommit, "end-commit", changeset.DefaultEndCommit,
		"End of the commit range to review",
	)
	reviewCmd.Flags().StringVarP(
		&reviewOutput, "output", "o", "",
		"Write the report to this path (.html renders HTML, anything "+
			"else markdown)",
	)
	reviewCmd.Flags().StringVar(
		&reviewAPIKey, "api-key", "",
		"Chat API key (default: $OPENAI_API_KEY)",
	)
	reviewCmd.Flags().StringVar(
		&reviewBaseURL, "base-url", "",
		"Chat API base URL, for OpenAI-compatible servers",
	)
	reviewCmd.Flags().StringVar(
		&reviewModel, "model", "",
		fmt.Sprintf("Chat model (default: %s)", oracle.DefaultModel),
	)
	reviewCmd.Flags().BoolVar(
		&reviewNoPersist, "no-persist", false,
		"Do not persist the session and report to the database",
	)

	reviewCmd.MarkFlagRequired("requirements")
}

// runReview wires the pipeline together, publishes the request, and blocks
// until the session's terminal event arrives.
func runReview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	storeOpt := fn.None[*store.Store]()
	if !reviewNoPersist {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		storeOpt = fn.Some(st)
	}

	apiKey := reviewAPIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	// Without a key the fallback policy still produces a usable, if
	// generic, review.
	if apiKey == "" {
		fmt.Fprintln(cmd.ErrOrStderr(),
			"warning: no API key configured, running with "+
				"fallback heuristics only")
	}

	orc := oracle.WithFallback(oracle.NewClient(&oracle.Config{
		APIKey:  apiKey,
		BaseURL: reviewBaseURL,
		Model:   reviewModel,
	}))

	b := bus.New(nil)
	defer func() {
		stopCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second,
		)
		defer cancel()
		b.Stop(stopCtx)
	}()

	svc := review.NewService(&review.Config{
		Bus:    b,
		Loader: &changeset.GitLoader{},
		Oracle: orc,
		Sink:   report.NewFileSink(),
		Store:  storeOpt,
	})
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start review service: %w", err)
	}

	completed := make(chan review.ReasoningCompleted, 1)
	failed := make(chan review.ReviewError, 1)

	err := b.Subscribe(
		review.TopicReasoningCompleted, "cli",
		func(_ context.Context, ev bus.Event) error {
			if done, ok := ev.(review.ReasoningCompleted); ok {
				completed <- done
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	err = b.Subscribe(
		review.TopicReviewError, "cli",
		func(_ context.Context, ev bus.Event) error {
			if fail, ok := ev.(review.ReviewError); ok {
				failed <- fail
			}
			return nil
		},
	)
	if err != nil {
		return err
	}

	sessionID := uuid.NewString()
	req := review.ReviewRequested{
		SessionID:           sessionID,
		RepoRef:             reviewRepo,
		Branch:              reviewBranch,
		MaxIterations:       reviewMaxIterations,
		ExplorationConstant: reviewExploration,
		MaxDepth:            reviewMaxDepth,
		ReviewStartCommit:   reviewStartCommit,
		ReviewEndCommit:     reviewEndCommit,
		Requirements:        reviewRequirements,
		OutputDestination:   reviewOutput,
	}
	if err := b.Publish(ctx, req); err != nil {
		return fmt.Errorf("failed to publish review request: %w", err)
	}

	fmt.Printf("Review session %s started (%s..%s, max %d iterations)\n",
		sessionID, reviewStartCommit, reviewEndCommit,
		reviewMaxIterations)

	select {
	case done := <-completed:
		printReport(cmd, done.Report)
		return nil

	case fail := <-failed:
		return fmt.Errorf("review failed: %s", fail.Message)

	case <-ctx.Done():
		return fmt.Errorf("interrupted before the session finished")
	}
}

// printReport writes a human-readable summary of the finished review.
func printReport(cmd *cobra.Command, rep *report.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "\nReview complete: session %s\n", rep.SessionID)
	fmt.Fprintf(out, "Selected: %s\n", rep.SelectedNodeID)
	fmt.Fprintf(out, "Conclusion: %s\n", rep.State)
	fmt.Fprintf(out, "Reasoning: %s\n", rep.Reasoning)
	mean := 0.0
	if rep.Stats.Visits > 0 {
		mean = rep.Stats.Value / float64(rep.Stats.Visits)
	}
	fmt.Fprintf(out, "Stats: %d visits on the selected state, %d total, "+
		"mean value %.3f\n",
		rep.Stats.Visits, rep.Stats.TotalVisits, mean)

	if rep.OutputDestination != "" {
		fmt.Fprintf(out, "Report written to %s\n",
			rep.OutputDestination)
	}
}
