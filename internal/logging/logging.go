// Package logging builds the structured logger used by cmd/reflow,
// internal/server and internal/watch. Core packages stay logger-free; only
// the ambient layers around them log.
package logging

import (
	"log/slog"
	"os"

	"github.com/dsi-mfg/reflow/internal/config"
)

// New builds a slog.Logger per cfg.LogFormat/LogLevel, matching
// C360Studio-semspec's pervasive *slog.Logger-field convention.
func New(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
