package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer, level slog.Level) *CentralLogger {
	return &CentralLogger{
		config:       &LoggingConfig{DefaultLevel: "trace"},
		timezone:     time.UTC,
		moduleLevels: map[string]slog.Level{},
		baseHandler:  slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: level}),
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for line := range strings.SplitSeq(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestModuleLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, traceLevelValue).Module("capture").Module("merger")

	log.With(String("source", "gen:sine")).Info("source ready",
		Int("channels", 2),
		Float64("ratio", 1.234567),
		Error(errors.New("boom")),
		Duration("elapsed", 1500*time.Millisecond))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "capture.merger", lines[0]["module"])
	assert.Equal(t, "gen:sine", lines[0]["source"])
	assert.InDelta(t, 2, lines[0]["channels"], 0)
	assert.InDelta(t, 1.235, lines[0]["ratio"], 1e-9)
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "1.5s", lines[0]["elapsed"])
}

func TestModuleLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cl := newBufferLogger(&buf, traceLevelValue)
	cl.moduleLevels["player"] = slog.LevelWarn

	log := cl.Module("player")
	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Log(LogLevelError, "shown too")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestWithContextTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := newBufferLogger(&buf, slog.LevelInfo).Module("app")

	log.WithContext(WithTraceID(context.Background(), "abc-123")).Info("tick")
	log.WithContext(context.Background()).Info("tock")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "abc-123", lines[0]["trace_id"])
	assert.NotContains(t, lines[1], "trace_id")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
	})
	require.NoError(t, err)

	cl.Module("spectrogram").Debug("render", Int("jobs", 5))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"jobs":5`)
	assert.Contains(t, string(data), `"module":"spectrogram"`)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"trace":   traceLevelValue,
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}
