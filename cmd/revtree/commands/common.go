package commands

import (
	"fmt"

	"github.com/obiyadev/revtree/internal/build"
	"github.com/obiyadev/revtree/internal/bus"
	"github.com/obiyadev/revtree/internal/changeset"
	"github.com/obiyadev/revtree/internal/mcts"
	"github.com/obiyadev/revtree/internal/oracle"
	"github.com/obiyadev/revtree/internal/report"
	"github.com/obiyadev/revtree/internal/review"
	"github.com/obiyadev/revtree/internal/store"
)

// logMgr is the process-wide logging backend, set up by the root command.
var logMgr *build.LoggerManager

// setupLogging builds the logging backend and hands each package its
// subsystem logger.
func setupLogging() error {
	mgr, err := build.NewLoggerManager(&build.LogConfig{
		Level:  logLevel,
		LogDir: logDir,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logMgr = mgr

	bus.UseLogger(mgr.GenSubLogger("BUS"))
	mcts.UseLogger(mgr.GenSubLogger("MCTS"))
	oracle.UseLogger(mgr.GenSubLogger("ORCL"))
	changeset.UseLogger(mgr.GenSubLogger("CHNG"))
	review.UseLogger(mgr.GenSubLogger("RVEW"))
	report.UseLogger(mgr.GenSubLogger("RPRT"))
	store.UseLogger(mgr.GenSubLogger("STOR"))

	return nil
}

// closeLogging flushes the file rotator, if one was configured.
func closeLogging() {
	if logMgr != nil {
		logMgr.Close()
	}
}

// openStore opens the database at the configured path, applying any pending
// migrations.
func openStore() (*store.Store, error) {
	path := dbPath
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return st, nil
}
