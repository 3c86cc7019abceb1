// Package logging provides structured logging utilities.
//
// The console format is Maven-style, coloured on a terminal:
// [LEVEL] [SYSTEM] [HH:MM:SS] message key=value
//
// The json format is slog's JSON handler, one object per line.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/config"
)

// ParseLevel maps a config level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// New creates a logger writing to w in the configured format
func New(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewMavenHandler(w, opts))
}

// NewLogger creates a logger on stderr, leaving stdout to command output
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return New(cfg, os.Stderr)
}

// NewLoggerWithSystem creates a logger with a system prefix (e.g. "reconcile", "storage")
func NewLoggerWithSystem(cfg config.LoggingConfig, system string) *slog.Logger {
	return NewLogger(cfg).With("system", system)
}
