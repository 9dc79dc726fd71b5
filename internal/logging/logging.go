// Package logging configures structured logging for crawl runs.
// Interactive runs log human-readable text to stderr; when a log file
// is configured, JSON records go there with size-based rotation.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Config controls log output.
type Config struct {
	// Level is the minimum level (debug, info, warn, error).
	Level string
	// File receives JSON logs when set.
	File string
	// MaxSizeMB rotates the file beyond this size. Default 10.
	MaxSizeMB int
	// MaxFiles keeps this many rotated files. Default 5.
	MaxFiles int
	// Quiet suppresses stderr output (file logging still applies).
	Quiet bool
}

// Setup builds the logger and returns it with a cleanup function that
// flushes and closes the log file, if any.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	level := ParseLevel(cfg.Level)
	cleanup := func() {}

	var handlers []slog.Handler
	if !cfg.Quiet {
		handlers = append(handlers, stderrHandler(level))
	}

	if cfg.File != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxFiles := cfg.MaxFiles
		if maxFiles <= 0 {
			maxFiles = 5
		}
		w, err := NewRotatingWriter(cfg.File, maxSize, maxFiles)
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = w.Close() }
		handlers = append(handlers, slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	switch len(handlers) {
	case 0:
		return slog.New(slog.NewTextHandler(io.Discard, nil)), cleanup, nil
	case 1:
		return slog.New(handlers[0]), cleanup, nil
	default:
		return slog.New(fanout(handlers)), cleanup, nil
	}
}

// stderrHandler picks text output for terminals and JSON when stderr
// is redirected, so piped output stays machine-readable.
func stderrHandler(level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.NewJSONHandler(os.Stderr, opts)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
