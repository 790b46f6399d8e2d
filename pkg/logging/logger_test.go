package logging_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fundatrack/fundatrack/pkg/logging"
)

func TestDefaultLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	logging.SetDefault(logger)

	logging.Debug().Msg("debug message")
	logging.Info().Msg("info message")
	logging.Warn().Msg("warning message")
	logging.Error().Msg("error message")

	output := buf.String()
	if !strings.Contains(output, "info message") {
		t.Errorf("Expected info message in output, got: %s", output)
	}
}

func TestContextLogger(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithScope(ctx, "amsterdam/buy")
	ctx = logging.WithSource(ctx, "funda_api")

	logger := logging.FromContext(ctx)
	logger.Info().Msg("test message")

	testLogger.AssertContains(t, "amsterdam/buy")
	testLogger.AssertContains(t, "funda_api")
	testLogger.AssertContains(t, "test message")
}

func TestWithRunID(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithRunID(ctx, "run-abc123")

	if got := logging.RunID(ctx); got != "run-abc123" {
		t.Errorf("RunID() = %q, want run-abc123", got)
	}

	logging.FromContext(ctx).Info().Msg("processing")
	testLogger.AssertContains(t, "run-abc123")
}

func TestFromContextFallback(t *testing.T) {
	// A context without a logger falls back to the default logger.
	if logging.FromContext(context.Background()) == nil {
		t.Fatal("FromContext returned nil for empty context")
	}
	if logging.FromContext(nil) == nil { //nolint:staticcheck // fallback path under test
		t.Fatal("FromContext returned nil for nil context")
	}
}

func TestNewLoggerFromConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *logging.Config
		level zerolog.Level
	}{
		{"nil config defaults to info", nil, zerolog.InfoLevel},
		{"debug level", &logging.Config{Level: "debug", Format: "json"}, zerolog.DebugLevel},
		{"warn level", &logging.Config{Level: "warning", Format: "json"}, zerolog.WarnLevel},
		{"unknown level falls back to info", &logging.Config{Level: "shout", Format: "json"}, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logging.NewLoggerFromConfig(tt.cfg)
			if logger.GetLevel() != tt.level {
				t.Errorf("level = %v, want %v", logger.GetLevel(), tt.level)
			}
		})
	}
}
