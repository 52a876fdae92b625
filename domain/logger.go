package domain

import (
	"context"
)

// LogLevel orders log severities from debug up to error.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Field is one structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the logging surface handed to every engine component. The
// context travels with each call so implementations can pick up request or
// trace metadata without a global.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)

	// WithFields returns a logger that attaches the fields to every line.
	WithFields(fields ...Field) Logger
}

// NewField builds one structured field.
func NewField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
