// Package logging holds the process-wide zap logger.
//
// By default nothing is logged. Commands call SetLogger with a logger built by
// New; library packages fetch the current logger with L on every use, so the
// logger can be swapped while work is running on other goroutines.
package logging

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var loggerPtr atomic.Pointer[zap.Logger]

func init() {
	loggerPtr.Store(zap.NewNop())
}

// L returns the current logger.
func L() *zap.Logger {
	return loggerPtr.Load()
}

// SetLogger replaces the current logger. Passing nil restores the silent default.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	loggerPtr.Store(l)
}

// New builds a logger. mode "release" or "production" selects the JSON
// production config; anything else gets the console development config with
// coloured level names. level overrides the default level when non-empty.
func New(mode, level string) (*zap.Logger, error) {
	var config zap.Config

	if mode == "release" || mode == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = zap.NewAtomicLevelAt(lvl)
	}

	return config.Build()
}

// Sync flushes the current logger, ignoring the error stderr sinks report.
func Sync() {
	_ = L().Sync()
}
