// Package logger builds the structured logger of the stationcast command.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aouyang1/go-stationcast/cmd/stationcast/config"
)

// New returns a logger writing to stderr so the report can go to stdout.
func New(cfg *config.Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter returns a text or json logger at the configured level. Unknown levels fall back
// to info.
func NewWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
