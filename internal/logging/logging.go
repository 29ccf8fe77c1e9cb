// Package logging builds slog loggers from the configured level.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a configuration level string onto a slog level.
// Unrecognized values fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a text-format logger at the given level writing to stderr.
func New(level string) *slog.Logger {
	return NewWithOutput(level, os.Stderr)
}

// NewWithOutput creates a text-format logger writing to w.
func NewWithOutput(level string, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(level),
	}))
}
