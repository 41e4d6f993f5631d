// Package logger wraps zap for the replay pipeline. Diagnostics always
// default to stderr: stdout and the output CSV carry the reconstruction
// result, and a single log line on stdout would corrupt downstream
// consumers of the rows.
package logger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/muhammadchandra19/mbp-engine/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Interface is an interface that wraps the Logger methods.
type Interface interface {
	Debug(message string, fields ...Field)
	Info(message string, fields ...Field)
	Warn(message string, fields ...Field)
	Error(err error, fields ...Field)
	Sync() error
	WithFields(fields ...Field) *Logger
	GetZap() *zap.Logger
}

// Logger is a wrapper around zap.Logger to provide structured logging.
//
// Every line carries a run_id field stamped at construction, so the
// malformed-row and protocol-anomaly warnings of one replay run can be
// correlated in aggregated logs without threading ids through the
// single-threaded pipeline.
type Logger struct {
	logger *zap.Logger
}

// Field holds key-value to be written to log.
type Field struct {
	Key   string
	Value any
}

// Level represents the severity level of the log.
type Level string

const (
	// DebugLevel is used for debug messages.
	DebugLevel Level = "debug"
	// InfoLevel is used for informational messages.
	InfoLevel Level = "info"
	// WarnLevel is used for warning messages.
	WarnLevel Level = "warn"
	// ErrorLevel is used for error messages.
	ErrorLevel Level = "error"
)

func (level Level) zapLevel() zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		// a feed with millions of events makes debug-by-default unusable
		return zapcore.InfoLevel
	}
}

// Options holds configuration options for the logger.
type Options struct {
	level       Level
	runID       string
	outputPaths []string
}

// WithLoggingLevel sets the minimum level that will be logged. Unset, the
// logger keeps `info` and above.
func WithLoggingLevel(level Level) Options {
	return Options{
		level: level,
	}
}

// WithRunID pins the run id instead of generating one. Useful for tests
// and for drivers that already carry an external correlation id.
func WithRunID(id string) Options {
	return Options{
		runID: id,
	}
}

// WithOutputPaths redirects diagnostics away from the stderr default. The
// special paths "stdout" and "stderr" are interpreted as os.Stdout and
// os.Stderr; anything else is treated as a file path. Pointing logs at
// stdout mixes them into the snapshot stream when the output file is
// stdout-redirected, so callers should only do that in tooling that
// discards the rows.
func WithOutputPaths(paths []string) Options {
	return Options{
		outputPaths: paths,
	}
}

// NewLogger creates a new Logger. Defaults: stderr only, info level, a
// fresh uuid run id.
func NewLogger(opts ...Options) (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.MessageKey = "message"

	var runID string
	for _, opt := range opts {
		if opt.level != "" {
			cfg.Level = zap.NewAtomicLevelAt(opt.level.zapLevel())
		}
		if opt.runID != "" {
			runID = opt.runID
		}
		if opt.outputPaths != nil {
			cfg.OutputPaths = opt.outputPaths
		}
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		logger: logger.With(zap.String("run_id", runID)),
	}, nil
}

// Sync flush the buffered log entries
func (l *Logger) Sync() error {
	return l.logger.Sync()
}

// GetZap returns zap.Logger instance used by log.Logger
func (l *Logger) GetZap() *zap.Logger {
	return l.logger
}

// Debug write log with severity level debug
func (l *Logger) Debug(message string, fields ...Field) {
	l.logger.Debug(message, convertFields(fields...)...)
}

// Info write log with severity level info
func (l *Logger) Info(message string, fields ...Field) {
	l.logger.Info(message, convertFields(fields...)...)
}

// Warn write log with severity level warn
func (l *Logger) Warn(message string, fields ...Field) {
	l.logger.Warn(message, convertFields(fields...)...)
}

// Error write log with severity level error. When err carries an
// ErrorTracer stack it replaces zap's own capture, so the trace points at
// the failure site instead of this wrapper.
func (l *Logger) Error(err error, fields ...Field) {
	stacktrace := ""
	if errTracer, ok := err.(errors.StackTracer); ok {
		stacktrace = strings.TrimSpace(fmt.Sprintf("%+v", errTracer.StackTrace()))
	}

	if ce := l.logger.Check(zapcore.ErrorLevel, err.Error()); ce != nil {
		if stacktrace != "" {
			ce.Stack = stacktrace
		}
		ce.Write(convertFields(fields...)...)
	}
}

// WithFields returns a child logger with additional fields.
func (l *Logger) WithFields(fields ...Field) *Logger {
	return &Logger{
		logger: l.logger.With(convertFields(fields...)...),
	}
}

// convertFields transform fields to zap log fields
func convertFields(fields ...Field) []zapcore.Field {
	var zapFields []zapcore.Field
	for _, field := range fields {
		zapFields = append(zapFields, zap.Any(field.Key, field.Value))
	}
	return zapFields
}
