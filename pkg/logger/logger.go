package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the structured logger.
type Options struct {
	ServiceName string
	Level       zerolog.Level
	Output      io.Writer
}

// Logger wraps zerolog and carries per-request fields through context.
type Logger struct {
	base *zerolog.Logger
}

type ctxKey struct{}

// New builds a Logger writing JSON to the configured output.
func New(opts Options) *Logger {
	if opts.Level == zerolog.NoLevel {
		opts.Level = zerolog.InfoLevel
	}

	var output io.Writer = opts.Output
	if output == nil {
		output = os.Stdout
	}
	if os.Getenv("LOG_FORMAT") == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "15:04:05",
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	logger := zerolog.
		New(output).
		With().
		Timestamp().
		Str("service", opts.ServiceName).
		Logger().
		Level(opts.Level)

	return &Logger{base: &logger}
}

// ParseLevel converts a config string into a zerolog level, defaulting to info.
func ParseLevel(value string) zerolog.Level {
	levelString := strings.ToLower(strings.TrimSpace(value))
	if levelString == "" {
		return zerolog.InfoLevel
	}
	if lvl, err := zerolog.ParseLevel(levelString); err == nil {
		return lvl
	}
	return zerolog.InfoLevel
}

// WithField returns a context carrying the given field for later log calls.
func (l *Logger) WithField(ctx context.Context, key string, value any) context.Context {
	return l.WithFields(ctx, map[string]any{key: value})
}

// WithFields returns a context carrying the given fields for later log calls.
func (l *Logger) WithFields(ctx context.Context, fields map[string]any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	merged := map[string]any{}
	if existing, ok := ctx.Value(ctxKey{}).(map[string]any); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, ctxKey{}, merged)
}

func (l *Logger) event(ctx context.Context, ev *zerolog.Event) *zerolog.Event {
	if ctx == nil {
		return ev
	}
	if fields, ok := ctx.Value(ctxKey{}).(map[string]any); ok {
		for k, v := range fields {
			ev = ev.Interface(k, v)
		}
	}
	return ev
}

// Debug logs a debug message with any context fields attached.
func (l *Logger) Debug(ctx context.Context, msg string) {
	l.event(ctx, l.base.Debug()).Msg(msg)
}

// Info logs an info message with any context fields attached.
func (l *Logger) Info(ctx context.Context, msg string) {
	l.event(ctx, l.base.Info()).Msg(msg)
}

// Warn logs a warning with any context fields attached.
func (l *Logger) Warn(ctx context.Context, msg string) {
	l.event(ctx, l.base.Warn()).Msg(msg)
}

// Error logs an error with any context fields attached.
func (l *Logger) Error(ctx context.Context, msg string, err error) {
	l.event(ctx, l.base.Error().Err(err)).Msg(msg)
}
