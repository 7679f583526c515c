package logger

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expectedLogger := NewLogger(TestConfig())
		ctx := ContextWithLogger(context.Background(), expectedLogger)

		actualLogger := FromContext(ctx)

		require.NotNil(t, actualLogger)
		assert.Equal(t, expectedLogger, actualLogger)
	})

	t.Run("Should return default logger when no logger in context", func(t *testing.T) {
		log := FromContext(context.Background())

		require.NotNil(t, log)
		log.Info("test message from default logger")
	})

	t.Run("Should return default logger when wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), LoggerCtxKey, "not a logger")

		log := FromContext(ctx)

		require.NotNil(t, log)
		log.Info("test message from fallback logger")
	})
}

func TestLogLevel_ToCharmlogLevel(t *testing.T) {
	t.Run("Should convert all log levels to charm log levels correctly", func(t *testing.T) {
		testCases := []struct {
			level    LogLevel
			expected int
		}{
			{DebugLevel, -4},
			{InfoLevel, 0},
			{WarnLevel, 4},
			{ErrorLevel, 8},
			{DisabledLevel, 1000},
			{LogLevel("unknown"), 0},
		}
		for _, tc := range testCases {
			actual := tc.level.ToCharmlogLevel()
			assert.Equal(t, tc.expected, int(actual), "LogLevel %s", tc.level)
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should create logger with provided config", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{
			Level:      InfoLevel,
			Output:     &buf,
			TimeFormat: "15:04:05",
		})
		log.Info("test message")

		require.NotNil(t, log)
		assert.Contains(t, buf.String(), "test message")
	})

	t.Run("Should create logger with JSON formatting when enabled", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{
			Level:      InfoLevel,
			Output:     &buf,
			JSON:       true,
			TimeFormat: "15:04:05",
		})
		log.Info("test message")

		output := buf.String()
		assert.Contains(t, output, "test message")
		assert.True(t, strings.Contains(output, "{") && strings.Contains(output, "}"))
	})
}

func TestLogger_With(t *testing.T) {
	t.Run("Should create logger with additional context fields", func(t *testing.T) {
		var buf bytes.Buffer
		baseLogger := NewLogger(&Config{
			Level:      InfoLevel,
			Output:     &buf,
			TimeFormat: "15:04:05",
		})

		contextLogger := baseLogger.With("component", "executor", "operation", "validate")
		contextLogger.Info("operation completed")

		output := buf.String()
		assert.Contains(t, output, "component")
		assert.Contains(t, output, "executor")
		assert.Contains(t, output, "operation completed")
	})
}

func TestConfigDefaults(t *testing.T) {
	t.Run("Should provide correct test configuration", func(t *testing.T) {
		config := TestConfig()

		assert.Equal(t, DisabledLevel, config.Level)
		assert.Equal(t, io.Discard, config.Output)
		assert.False(t, config.JSON)
		assert.False(t, config.AddSource)
	})

	t.Run("Should detect test environment", func(t *testing.T) {
		assert.True(t, IsTestEnvironment())
	})
}

func TestLoggerLevels(t *testing.T) {
	t.Run("Should respect log level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{
			Level:      WarnLevel,
			Output:     &buf,
			TimeFormat: "15:04:05",
		})

		log.Debug("debug message")
		log.Info("info message")
		log.Warn("warn message")
		log.Error("error message")

		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})

	t.Run("Should disable all logging when DisabledLevel is used", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{
			Level:      DisabledLevel,
			Output:     &buf,
			TimeFormat: "15:04:05",
		})

		log.Debug("debug message")
		log.Info("info message")
		log.Warn("warn message")
		log.Error("error message")

		assert.Empty(t, buf.String())
	})
}
