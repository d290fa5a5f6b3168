// Package loggingtest provides loggers for tests.
package loggingtest

import (
	"log/slog"
	"os"
)

// NewForTesting creates a logger writing warnings and above to stderr.
func NewForTesting() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}
