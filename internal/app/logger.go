package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. Production deployments ship JSON to
// the collector; everywhere else the text handler is easier to read.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
