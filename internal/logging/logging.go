// Package logging wraps go-log's zap loggers behind a small leveled interface.
package logging

import (
	"context"

	golog "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
)

// Logger is a leveled, structured logger.
// keysAndValues are treated as key-value pairs (e.g., "key1", value1, "key2", value2).
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// With returns a new logger with the given key-value pair.
	With(key string, value any) Logger
	// NewSystem returns a new logger with the given name, carrying over fields.
	NewSystem(name string) Logger
}

// Setup configures the process-wide log level and output. Unknown levels fall back to info.
func Setup(level string) {
	if level == "" {
		level = "info"
	}
	lvl, err := golog.LevelFromString(level)
	if err != nil {
		lvl = golog.LevelInfo
	}
	golog.SetupLogging(golog.Config{
		Level:  lvl,
		Stderr: true,
	})
}

// New returns a logger for the named subsystem.
func New(name string) Logger {
	return &zapLogger{
		lg: golog.Logger(name).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zapLogger{lg: zap.NewNop().Sugar()}
}

type zapLogger struct {
	lg     *zap.SugaredLogger
	fields []any
}

func (l *zapLogger) Debug(msg string, keysAndValues ...any) {
	l.lg.Debugw(msg, keysAndValues...)
}

func (l *zapLogger) Info(msg string, keysAndValues ...any) {
	l.lg.Infow(msg, keysAndValues...)
}

func (l *zapLogger) Warn(msg string, keysAndValues ...any) {
	l.lg.Warnw(msg, keysAndValues...)
}

func (l *zapLogger) Error(msg string, keysAndValues ...any) {
	l.lg.Errorw(msg, keysAndValues...)
}

func (l *zapLogger) With(key string, value any) Logger {
	fields := make([]any, 0, len(l.fields)+2)
	fields = append(fields, l.fields...)
	fields = append(fields, key, value)
	return &zapLogger{
		lg:     l.lg.With(key, value),
		fields: fields,
	}
}

func (l *zapLogger) NewSystem(name string) Logger {
	return &zapLogger{
		lg: golog.Logger(name).SugaredLogger.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar().With(l.fields...),
	}
}

type contextKey struct{}

// WithContext attaches lg to ctx.
func WithContext(ctx context.Context, lg Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, lg)
}

// FromContext returns the logger stored in ctx, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(contextKey{}).(Logger); ok {
		return lg
	}
	return Nop()
}
