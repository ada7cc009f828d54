// Package utils carries small shared plumbing; right now that is the logging
// facade used across the engine.
package utils

import (
	"log/slog"
	"os"
)

// Logger is the engine-wide logging interface. WithArgs returns a derived
// logger carrying default key/value pairs, used to tag everything a table or
// an index scan logs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	WithArgs(args ...any) Logger
}

const prefix = "[ravendb] "

type DefaultLogger struct {
	logger *slog.Logger
}

func NewDefaultLogger(level slog.Level) *DefaultLogger {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	return &DefaultLogger{logger: logger}
}

func (d *DefaultLogger) Debug(msg string, args ...any) {
	d.logger.Debug(prefix+msg, args...)
}

func (d *DefaultLogger) Info(msg string, args ...any) {
	d.logger.Info(prefix+msg, args...)
}

func (d *DefaultLogger) Warn(msg string, args ...any) {
	d.logger.Warn(prefix+msg, args...)
}

func (d *DefaultLogger) Error(msg string, args ...any) {
	d.logger.Error(prefix+msg, args...)
}

func (d *DefaultLogger) WithArgs(args ...any) Logger {
	return &DefaultLogger{logger: d.logger.With(args...)}
}
