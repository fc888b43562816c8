// Package log implements support for structured logging.
package log

import (
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Logger is a structured logger.
type Logger struct {
	logger log.Logger
	level  Level
	module string
}

// NewDefaultLogger initializes a new logger instance with default settings.
// For usage outside tests, prefer RootLogger() from package `cmd/common`.
func NewDefaultLogger(module string) *Logger {
	logger, err := NewLogger(module, os.Stderr, FmtJSON, LevelInfo)
	if err != nil {
		// Shouldn't happen as NewLogger can only fail if an invalid format is provided.
		panic(err)
	}
	return logger
}

// NewDiscardLogger returns a logger that drops everything. Useful in tests.
func NewDiscardLogger() *Logger {
	return &Logger{
		logger: log.NewNopLogger(),
		level:  LevelError,
		module: "discard",
	}
}

// NewLogger initializes a new logger instance.
func NewLogger(module string, w io.Writer, format Format, lvl Level) (*Logger, error) {
	// log.DefaultCaller + 2 for the exported level method and the shared
	// leveling wrapper.
	callerUnwind := 5

	var logger log.Logger
	switch format {
	case FmtLogfmt:
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case FmtJSON:
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("log: unsupported log format: %v", format)
	}

	logger = log.WithPrefix(logger,
		"ts", log.DefaultTimestampUTC,
		"caller", log.Caller(callerUnwind),
	)

	return &Logger{
		logger: logger,
		level:  lvl,
		module: module,
	}, nil
}

func (l *Logger) log(lvl Level, leveled func(log.Logger) log.Logger, msg string, keyvals []any) {
	if l.level > lvl {
		return
	}
	keyvals = append([]any{"module", l.module, "msg", msg}, keyvals...)
	_ = leveled(l.logger).Log(keyvals...)
}

// Debug logs the message and key value pairs at the Debug log level.
func (l *Logger) Debug(msg string, keyvals ...any) {
	l.log(LevelDebug, level.Debug, msg, keyvals)
}

// Info logs the message and key value pairs at the Info log level.
func (l *Logger) Info(msg string, keyvals ...any) {
	l.log(LevelInfo, level.Info, msg, keyvals)
}

// Warn logs the message and key value pairs at the Warn log level.
func (l *Logger) Warn(msg string, keyvals ...any) {
	l.log(LevelWarn, level.Warn, msg, keyvals)
}

// Error logs the message and key value pairs at the Error log level.
func (l *Logger) Error(msg string, keyvals ...any) {
	l.log(LevelError, level.Error, msg, keyvals)
}

// With returns a clone of the logger with the provided key/value pairs
// added as context for all subsequent logs.
func (l *Logger) With(keyvals ...any) *Logger {
	return &Logger{
		logger: log.With(l.logger, keyvals...),
		level:  l.level,
		module: l.module,
	}
}

// WithModule returns a clone of the logger with the provided module
// added as context for all subsequent logs.
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{
		logger: l.logger,
		level:  l.level,
		module: module,
	}
}

// Level is the logging level.
func (l *Logger) Level() Level {
	return l.level
}
