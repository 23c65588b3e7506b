// Package logger builds the zap loggers used across the learner and keeps a
// process-wide sugared logger for the command entry points.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a zap logger for level ("debug", "info", "warn", "error",
// "fatal"). Debug uses the development encoder; everything else the JSON
// production encoder.
func New(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var cfg zap.Config
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

var (
	mu  sync.RWMutex
	std = zap.NewNop().Sugar()
)

// SetGlobalLogLevel replaces the global logger with one at logLevel and
// returns it. An unknown level falls back to info.
func SetGlobalLogLevel(logLevel string) *zap.Logger {
	l, err := New(logLevel)
	if err != nil {
		l, _ = New("info")
		l.Warn("Unknown log level, using info", zap.String("level", logLevel))
	}
	SetGlobal(l)
	return l
}

// SetGlobal makes l the logger behind the package-level helpers.
func SetGlobal(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l.Sugar()
}

func global() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Sync flushes the global logger.
func Sync() {
	_ = global().Sync()
}

// Debugf logs a debug message with formatting.
func Debugf(format string, args ...interface{}) {
	global().Debugf(format, args...)
}

// Info logs an informational message.
func Info(args ...interface{}) {
	global().Info(args...)
}

// Infof logs an informational message with formatting.
func Infof(format string, args ...interface{}) {
	global().Infof(format, args...)
}

// Warnf logs a warning with formatting.
func Warnf(format string, args ...interface{}) {
	global().Warnf(format, args...)
}

// Errorf logs an error message with formatting.
func Errorf(format string, args ...interface{}) {
	global().Errorf(format, args...)
}

// Fatalf logs a fatal error message with formatting and exits.
func Fatalf(format string, args ...interface{}) {
	global().Fatalf(format, args...)
}
