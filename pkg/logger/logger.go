package logger

import (
	"context"
	"log/slog"
	"os"
)

// ContextKey types the context keys this package reads back out of a
// request context.
type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"
	TenantKey    ContextKey = "tenant"
	UsernameKey  ContextKey = "username"
	// ProcessIDKey tags log lines with the review process being handled
	ProcessIDKey ContextKey = "process_id"
)

// contextAttrs maps context keys to the attribute names they log under.
var contextAttrs = []struct {
	key  ContextKey
	attr string
}{
	{RequestIDKey, "request_id"},
	{TenantKey, "tenant"},
	{UsernameKey, "username"},
	{ProcessIDKey, "process_id"},
}

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// Init installs the global slog handler. JSON is the default format;
// text is for local development.
func Init(cfg *Config) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns the default logger enriched with whatever tracing
// values the context carries. Missing values are simply skipped.
func WithContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	for _, ca := range contextAttrs {
		if v, ok := ctx.Value(ca.key).(string); ok && v != "" {
			l = l.With(ca.attr, v)
		}
	}
	return l
}

func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Debug(msg, args...)
}

func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Info(msg, args...)
}

func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Warn(msg, args...)
}

func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).Error(msg, args...)
}
