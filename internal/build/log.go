package build

import (
	"fmt"
	"io"
	"os"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// LogConfig holds the knobs for constructing the process-wide logging
// backend.
type LogConfig struct {
	// Level is the textual log level (trace, debug, info, warn, error,
	// critical, off).
	Level string

	// LogDir is the directory for the rotating log file. If empty, file
	// logging is disabled and only console output is produced.
	LogDir string
}

// DefaultLogConfig returns a LogConfig with info-level console logging and no
// file output.
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level: "info",
	}
}

// LoggerManager owns the root log handler and hands out per-subsystem
// loggers. All subsystem loggers share the same handler set, so a single
// SetLevel call affects every subsystem uniformly.
type LoggerManager struct {
	root btclogv2.Handler

	// rotator is the file rotator backing the file handler, if file
	// logging is enabled. Kept so Close can flush it.
	rotator *RotatingLogWriter
}

// NewLoggerManager constructs the logging backend from the given config. The
// returned manager fans log records out to stderr and, when LogDir is set, a
// gzip-rotated log file.
func NewLoggerManager(cfg *LogConfig) (*LoggerManager, error) {
	level, ok := btclog.LevelFromString(cfg.Level)
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.Level)
	}

	handlers := []btclogv2.Handler{
		btclogv2.NewDefaultHandler(os.Stderr),
	}

	var rot *RotatingLogWriter
	if cfg.LogDir != "" {
		rot = NewRotatingLogWriter()
		rotCfg := DefaultLogRotatorConfig()
		rotCfg.LogDir = cfg.LogDir

		if err := rot.InitLogRotator(rotCfg); err != nil {
			return nil, fmt.Errorf("init log rotator: %w", err)
		}

		handlers = append(
			handlers, btclogv2.NewDefaultHandler(io.Writer(rot)),
		)
	}

	set := NewHandlerSet(handlers...)
	set.SetLevel(level)

	return &LoggerManager{
		root:    set,
		rotator: rot,
	}, nil
}

// GenSubLogger returns a logger tagged with the given subsystem name. The
// logger shares the manager's handler set.
func (m *LoggerManager) GenSubLogger(tag string) btclogv2.Logger {
	return btclogv2.NewSLogger(m.root.SubSystem(tag))
}

// SetLevel changes the log level on every handler in the set.
func (m *LoggerManager) SetLevel(level btclog.Level) {
	m.root.SetLevel(level)
}

// Close flushes and stops the file rotator, if one was configured.
func (m *LoggerManager) Close() error {
	if m.rotator != nil {
		return m.rotator.Close()
	}

	return nil
}
