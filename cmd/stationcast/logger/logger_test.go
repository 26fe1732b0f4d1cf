package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/aouyang1/go-stationcast/cmd/stationcast/config"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevels(t *testing.T) {
	testData := map[string]struct {
		level    string
		enabled  slog.Level
		disabled slog.Level
	}{
		"debug":           {level: "debug", enabled: slog.LevelDebug, disabled: slog.LevelDebug - 1},
		"info":            {level: "info", enabled: slog.LevelInfo, disabled: slog.LevelDebug},
		"warn":            {level: "WARN", enabled: slog.LevelWarn, disabled: slog.LevelInfo},
		"error":           {level: "error", enabled: slog.LevelError, disabled: slog.LevelWarn},
		"unknown is info": {level: "verbose", enabled: slog.LevelInfo, disabled: slog.LevelDebug},
		"empty is info":   {enabled: slog.LevelInfo, disabled: slog.LevelDebug},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			l := New(&config.Config{LogLevel: td.level})
			assert.True(t, l.Enabled(context.Background(), td.enabled))
			assert.False(t, l.Enabled(context.Background(), td.disabled))
		})
	}
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter(&config.Config{LogFormat: "JSON"}, &buf).Info("trained", "models", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trained", line["msg"])
	assert.Equal(t, 2.0, line["models"])

	buf.Reset()
	NewWithWriter(&config.Config{LogFormat: "text"}, &buf).Info("trained", "models", 2)
	assert.Contains(t, buf.String(), "msg=trained models=2")
}
