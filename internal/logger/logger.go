package logger

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const loggerKey contextKey = "logger"

// PrepareLogger creates a new ZAP logger and stores it in the context.
// It returns a new context with the logger and the logger itself.
//
// Usage:
//   ctx, log := logger.PrepareLogger(ctx)
//   log.Info("engine started")
func PrepareLogger(ctx context.Context) (context.Context, *zap.Logger) {
	log := NewLoggerFromEnv()
	return context.WithValue(ctx, loggerKey, log), log
}

// PrepareLoggerWithConfig creates a new ZAP logger with custom config and
// stores it in the context. It returns a new context with the logger and
// the logger itself.
func PrepareLoggerWithConfig(ctx context.Context, config zap.Config) (context.Context, *zap.Logger) {
	log, err := config.Build()
	if err != nil {
		log = NewProductionLogger()
		log.Error("failed to build logger from config, using production logger", zap.Error(err))
	}
	return context.WithValue(ctx, loggerKey, log), log
}

// GetLogger retrieves the logger from the context.
// If no logger is found, it creates a new production logger and returns it.
// This ensures GetLogger never returns nil.
func GetLogger(ctx context.Context) *zap.Logger {
	if ctx == nil {
		return NewProductionLogger()
	}

	if log, ok := ctx.Value(loggerKey).(*zap.Logger); ok && log != nil {
		return log
	}

	return NewProductionLogger()
}

// WithFields creates a sub-logger with additional fields from the parent
// logger in context. The sub-logger is stored back in the context.
//
// Usage:
//   ctx = logger.WithFields(ctx, zap.String("operation_key", key), zap.String("host_id", hostID))
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	log := GetLogger(ctx)
	sub := log.With(fields...)
	return context.WithValue(ctx, loggerKey, sub)
}

// WithComponent creates a sub-logger with a "component" field.
func WithComponent(ctx context.Context, component string) context.Context {
	return WithFields(ctx, zap.String("component", component))
}

// NewProductionLogger creates a new production-ready ZAP logger.
// It logs at INFO level and above to stderr in JSON format.
func NewProductionLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	log, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}

	return log
}

// NewDevelopmentLogger creates a new development-friendly ZAP logger.
// It logs at DEBUG level and above to stderr in human-readable console format.
func NewDevelopmentLogger() *zap.Logger {
	config := zap.NewDevelopmentConfig()
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	log, err := config.Build()
	if err != nil {
		return zap.NewNop()
	}

	return log
}

// NewLoggerFromEnv creates a logger based on the DOCKERPILOT_ENV environment
// variable. If DOCKERPILOT_ENV=development (or dev), it creates a
// development logger; otherwise a production logger.
func NewLoggerFromEnv() *zap.Logger {
	env := os.Getenv("DOCKERPILOT_ENV")
	if env == "development" || env == "dev" {
		return NewDevelopmentLogger()
	}
	return NewProductionLogger()
}

// Sync flushes any buffered log entries from the logger in the context.
// This should be called before process shutdown.
func Sync(ctx context.Context) error {
	return GetLogger(ctx).Sync()
}

// Fatal logs a fatal message and exits the process.
func Fatal(ctx context.Context, msg string, fields ...zap.Field) {
	GetLogger(ctx).Fatal(msg, fields...)
}

// Fatalf logs a fatal message with fmt.Sprintf formatting and exits.
func Fatalf(ctx context.Context, format string, args ...interface{}) {
	GetLogger(ctx).Fatal(fmt.Sprintf(format, args...))
}

// WithLogger stores an existing logger in the context.
func WithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}
