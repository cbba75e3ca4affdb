package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across lintd.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldRequestID = "request_id"

	// Components
	FieldComponent = "component"

	// Operations
	FieldPath    = "path"
	FieldOutcome = "outcome"
	FieldPhase   = "phase"
	FieldReason  = "reason"

	// Timing
	FieldDurationMS = "duration_ms"
	FieldTimeout    = "timeout"
	FieldWarmup     = "warmup"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldSize  = "size"
	FieldBytes = "bytes"

	// Processes
	FieldPID       = "pid"
	FieldParentPID = "parent_pid"
	FieldExitCode  = "exit_code"
	FieldCommand   = "command"

	// Files and paths
	FieldFile = "file"

	// Network
	FieldAddress = "address"
	FieldPort    = "port"
)

// Context keys for propagating logging context
type contextKey string

const (
	requestIDKey contextKey = "logger_request_id"
	componentKey contextKey = "logger_component"
)

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// FromContext returns base with fields extracted from ctx.
// A nil base falls back to the global Logger.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Logger
	}
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	sup := supervisor.New(cfg, logger.ComponentLogger("supervisor"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
