package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the worker's slog.Logger for the given environment.
// Production logs JSON at info level; everything else logs human-readable
// text at debug level with source locations.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: env == "development",
	}

	if env == "production" {
		opts.Level = slog.LevelInfo
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}

	opts.Level = slog.LevelDebug
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
