// Package logging builds the CLI logger and scopes temporary level changes.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger pairs a logger with the level controlling it
type Logger struct {
	*zap.Logger
	Level zap.AtomicLevel
}

// New builds a development logger writing to stderr. verbose lowers the
// level from info to debug.
func New(verbose bool) (*Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if verbose {
		config.Level.SetLevel(zapcore.DebugLevel)
	}
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Logger{Logger: logger, Level: config.Level}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), Level: zap.NewAtomicLevel()}
}

// WithLevel sets level to l and returns a function restoring the previous
// level. Callers defer the restore so it runs on every exit path.
func WithLevel(level zap.AtomicLevel, l zapcore.Level) (restore func()) {
	prev := level.Level()
	level.SetLevel(l)
	return func() {
		level.SetLevel(prev)
	}
}

// OrNop returns logger, or a no-op logger when it is nil
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
