package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmops/telemetry/domain"
	"github.com/swarmops/telemetry/infrastructure/config"
)

type capturedLog struct {
	level  domain.LogLevel
	msg    string
	fields []domain.Field
}

type captureLogger struct {
	logs   []capturedLog
	fields []domain.Field
}

func (c *captureLogger) Debug(ctx context.Context, msg string, fields ...domain.Field) {
	c.logs = append(c.logs, capturedLog{domain.LogLevelDebug, msg, fields})
}

func (c *captureLogger) Info(ctx context.Context, msg string, fields ...domain.Field) {
	c.logs = append(c.logs, capturedLog{domain.LogLevelInfo, msg, fields})
}

func (c *captureLogger) Warn(ctx context.Context, msg string, fields ...domain.Field) {
	c.logs = append(c.logs, capturedLog{domain.LogLevelWarn, msg, fields})
}

func (c *captureLogger) Error(ctx context.Context, msg string, fields ...domain.Field) {
	c.logs = append(c.logs, capturedLog{domain.LogLevelError, msg, fields})
}

func (c *captureLogger) WithFields(fields ...domain.Field) domain.Logger {
	c.fields = append(c.fields, fields...)
	return c
}

func TestLevelFilterLogger(t *testing.T) {
	capture := &captureLogger{}
	logger := NewLevelFilterLogger(capture, domain.LogLevelWarn)
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	require.Len(t, capture.logs, 2)
	assert.Equal(t, "warn message", capture.logs[0].msg)
	assert.Equal(t, "error message", capture.logs[1].msg)
}

func TestLevelFilterLoggerPassesFields(t *testing.T) {
	capture := &captureLogger{}
	logger := NewLevelFilterLogger(capture, domain.LogLevelDebug)

	logger.Info(context.Background(), "message", domain.NewField("key", "value"))

	require.Len(t, capture.logs, 1)
	require.Len(t, capture.logs[0].fields, 1)
	assert.Equal(t, "key", capture.logs[0].fields[0].Key)
}

func TestFactoryFallsBackToConsole(t *testing.T) {
	factory := NewLoggerFactory(&config.LoggingConfig{
		Level:    "info",
		Promtail: &config.PromtailConfig{URL: ""},
	})

	logger := factory.CreateLogger("test")
	require.NotNil(t, logger)

	filter, ok := logger.(*LevelFilterLogger)
	require.True(t, ok)
	_, ok = filter.wrapped.(*ConsoleLogger)
	assert.True(t, ok)
}

func TestFactoryWrapsDebugLogger(t *testing.T) {
	factory := NewLoggerFactory(&config.LoggingConfig{
		Level:    "debug",
		Debug:    true,
		Promtail: &config.PromtailConfig{URL: ""},
	})

	logger := factory.CreateLogger("test")
	_, ok := logger.(*DebugLogger)
	assert.True(t, ok)
}

func TestNoOpLoggerIsSafe(t *testing.T) {
	logger := &NoOpLogger{}
	ctx := context.Background()

	assert.NotPanics(t, func() {
		logger.Debug(ctx, "x")
		logger.Info(ctx, "x")
		logger.Warn(ctx, "x")
		logger.Error(ctx, "x")
		logger.WithFields(domain.NewField("k", "v")).Info(ctx, "x")
	})
}
