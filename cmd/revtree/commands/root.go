package commands

import (
	"github.com/spf13/cobra"
)

var (
	// dbPath is the path to the SQLite database.
	dbPath string

	// logLevel is the textual log level for all subsystems.
	logLevel string

	// logDir is the directory for the rotating log file.
	logDir string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "revtree",
	Short: "Tree-search driven code review",
	Long: `revtree reviews a git change set by running a Monte Carlo tree
search over candidate lines of reasoning about the change. Each search
iteration selects a promising reasoning state, expands it with new
candidates, scores one of them, and folds the score back into the tree.
The final report is the best-supported conclusion the search found.`,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogging()
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags.
	rootCmd.PersistentFlags().StringVar(
		&dbPath, "db", "",
		"Path to SQLite database (default: ~/.revtree/revtree.db)",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info",
		"Log level: trace, debug, info, warn, error, critical, off",
	)
	rootCmd.PersistentFlags().StringVar(
		&logDir, "log-dir", "",
		"Directory for the rotating log file (empty disables file "+
			"logging)",
	)

	// Add subcommands.
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(versionCmd)
}
