package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool
)

func init() {
	// Safe no-op logger until Initialize runs, so library callers never see nil
	Logger = zap.NewNop().Sugar()
}

// Options controls how Initialize builds the global logger.
type Options struct {
	// JSON selects zap's production JSON encoding instead of the minimal console format
	JSON bool
	// Verbosity is the -v flag count (see VerbosityToLevel)
	Verbosity int
	// Output receives log lines. Defaults to stderr: stdout carries lint results.
	Output io.Writer
}

// Initialize sets up the global logger
func Initialize(opts Options) error {
	JSONOutput = opts.JSON

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	level := zap.NewAtomicLevelAt(VerbosityToLevel(opts.Verbosity))

	var encoder zapcore.Encoder
	if opts.JSON {
		// JSON structured output for machine consumption
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		// Human-readable console output with minimal, calm formatting
		encoder = newMinimalEncoder()
	}

	zapLogger := zap.New(zapcore.NewCore(encoder, zapcore.AddSync(out), level))
	Logger = zapLogger.Sugar()
	return nil
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// Infow logs an info message with structured fields
func Infow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, keysAndValues...)
	}
}

// Errorw logs an error message with structured fields
func Errorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Errorw(msg, keysAndValues...)
	}
}

// Warnw logs a warning message with structured fields
func Warnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, keysAndValues...)
	}
}

// Debugw logs a debug message with structured fields
func Debugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, keysAndValues...)
	}
}
