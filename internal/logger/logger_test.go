package logger

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, fn func()) string {
	origOut := os.Stdout
	defer func() { os.Stdout = origOut }()

	rOut, wOut, err := os.Pipe()
	require.NoError(t, err, "failed to create stdout pipe")

	os.Stdout = wOut

	fn()

	err = wOut.Close()
	require.NoError(t, err, "failed to close stdout pipe")

	outBytes, err := io.ReadAll(rOut)
	require.NoError(t, err, "failed to read stdout pipe")

	return string(outBytes)
}

func TestLogger_parseLevelString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, parseLevelString(tt.input), "parseLevelString(%q)", tt.input)
	}
}

func TestLogger_New(t *testing.T) {
	t.Run("dev logger writes text", func(t *testing.T) {
		stdout := capture(t, func() {
			logger, err := New(EnvDevelopment, LevelInfo)
			require.NoError(t, err)

			logger.Info("test message", "key", "value")
		})

		require.Contains(t, stdout, "test message")
		require.Contains(t, stdout, "key=value")
		require.Contains(t, stdout, "INFO")
	})

	t.Run("prod logger writes json", func(t *testing.T) {
		stdout := capture(t, func() {
			logger, err := New(EnvProduction, LevelInfo)
			require.NoError(t, err)

			logger.Info("test message", "key", "value")
		})

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &entry), "log line should be valid JSON")
		require.Equal(t, "test message", entry["msg"])
		require.Equal(t, "INFO", entry["level"])
		require.Equal(t, "value", entry["key"])
	})

	t.Run("unknown environment fails", func(t *testing.T) {
		_, err := New("staging", LevelInfo)
		require.Error(t, err)
	})
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFn    func(Logger)
		isLogged bool
	}{
		{"debug logger logs debug", LevelDebug, func(l Logger) { l.Debug("test") }, true},
		{"info logger skips debug", LevelInfo, func(l Logger) { l.Debug("test") }, false},
		{"info logger logs info", LevelInfo, func(l Logger) { l.Info("test") }, true},
		{"warn logger skips info", LevelWarn, func(l Logger) { l.Info("test") }, false},
		{"warn logger logs warn", LevelWarn, func(l Logger) { l.Warn("test") }, true},
		{"error logger skips warn", LevelError, func(l Logger) { l.Warn("test") }, false},
		{"error logger logs error", LevelError, func(l Logger) { l.Error("test") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout := capture(t, func() {
				logger, err := New(EnvDevelopment, tt.level)
				require.NoError(t, err)

				tt.logFn(logger)
			})

			require.Equal(t, tt.isLogged, len(stdout) > 0, "level %s: expected isLogged=%v", tt.level, tt.isLogged)
		})
	}
}

func TestLogger_With(t *testing.T) {
	stdout := capture(t, func() {
		logger, err := New(EnvDevelopment, LevelInfo)
		require.NoError(t, err)

		logger.With("component", "test").Info("test message")
	})

	require.Contains(t, stdout, "component=test")
	require.Contains(t, stdout, "test message")
}

func TestLogger_NewNoOp(t *testing.T) {
	stdout := capture(t, func() {
		logger := NewNoOp()
		logger.Debug("debug message")
		logger.Info("info message")
		logger.Error("error message")
	})

	require.Empty(t, stdout, "NoOp logger should stay silent")
}
