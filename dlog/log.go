// Package dlog provides the package-level logger and process-wide error
// sink used across docdb.
package dlog

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the global logger instance used by all docdb packages.
var Logger *zap.Logger

func init() {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	Logger, err = config.Build(zap.AddCallerSkip(1))
	if err != nil {
		Logger = zap.NewNop()
	}
}

// Debug logs a debug message.
func Debug(msg string, fields ...zap.Field) { Logger.Debug(msg, fields...) }

// Info logs an info message.
func Info(msg string, fields ...zap.Field) { Logger.Info(msg, fields...) }

// Warn logs a warning message.
func Warn(msg string, fields ...zap.Field) { Logger.Warn(msg, fields...) }

// Error logs an error message.
func Error(msg string, fields ...zap.Field) { Logger.Error(msg, fields...) }

// SetLogger replaces the global logger.
func SetLogger(logger *zap.Logger) { Logger = logger }

// Configure rebuilds the global logger with the given level.
// development selects zap's human-readable console encoder.
func Configure(development bool, level string) error {
	var config zap.Config
	if development {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

var (
	sinkMu sync.RWMutex
	sink   func(error) = func(err error) { Error("unhandled observer error", zap.Error(err)) }
)

// SetErrorSink registers the process-wide handler for errors raised by
// observers that did not supply an onError callback. The default sink
// logs the error.
func SetErrorSink(fn func(error)) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if fn == nil {
		fn = func(err error) { Error("unhandled observer error", zap.Error(err)) }
	}
	sink = fn
}

// ReportUnhandled routes err to the process-wide error sink.
func ReportUnhandled(err error) {
	sinkMu.RLock()
	fn := sink
	sinkMu.RUnlock()
	fn(err)
}
