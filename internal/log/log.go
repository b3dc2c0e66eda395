// Package log provides the logging infrastructure for lectern.
//
// This package provides:
//   - A type alias for *slog.Logger to use as a DI dependency
//   - Factory functions to create configured loggers
//   - A Nop logger for testing
//
// Design: loggers are injected via constructors, never reached for as
// globals. Components add context with logger.With("component", ...).
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a type alias for *slog.Logger.
// Using the standard library type directly keeps full compatibility with
// the slog ecosystem and avoids a custom interface.
type Logger = *slog.Logger

// Config defines logger configuration options.
type Config struct {
	// Level sets the minimum log level. Default: slog.LevelInfo
	Level slog.Level

	// JSON enables JSON format output. Default: false (text format)
	JSON bool

	// AddSource adds source file information to log entries. Default: false
	AddSource bool
}

// New creates a new logger with the given configuration.
// Output is written to os.Stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter creates a new logger that writes to the specified writer.
// Useful for testing or custom output destinations.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// NewNop creates a logger that discards all output.
//
// Only for tests. Production code should always use New or NewWithWriter
// so problems stay visible.
func NewNop() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
