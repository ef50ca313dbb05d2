package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"
)

// Logger is the interface for structured logging.
// Every method takes the call's context so the fields attached by the
// context helpers (method, request_id, bucket, ...) land on each entry.
type Logger interface {
	Debug(ctx context.Context, message string)
	Debugf(ctx context.Context, format string, args ...interface{})
	Info(ctx context.Context, message string)
	Infof(ctx context.Context, format string, args ...interface{})
	Warn(ctx context.Context, message string)
	Warnf(ctx context.Context, format string, args ...interface{})
	Error(ctx context.Context, message string)
	Errorf(ctx context.Context, format string, args ...interface{})

	// With returns a logger that adds key=value to every entry
	With(key string, value interface{}) Logger
	// WithError returns a logger carrying err; a nil err returns the receiver
	WithError(err error) Logger
}

var _ Logger = &logger{}

// logger is the log/slog implementation
type logger struct {
	slog *slog.Logger
}

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string
	// Format is the output format: "text" or "json"
	Format string
	// Output is "stdout", "stderr" or empty (stdout). Ignored if Writer is set.
	Output string
	// Writer overrides Output, mostly for tests
	Writer io.Writer
	// Component is the component name (e.g., "hfadmin", "storage")
	Component string
	// Version is the component version
	Version string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "text",
		Output:    "stdout",
		Component: "hfadmin",
		Version:   "unknown",
	}
}

// ConfigFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_OUTPUT over DefaultConfig
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		cfg.Output = output
	}

	return cfg
}

// ParseLevel converts a level name to a slog.Level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
	}
}

func outputWriter(cfg Config) (io.Writer, error) {
	if cfg.Writer != nil {
		return cfg.Writer, nil
	}
	switch cfg.Output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("invalid log output %q: must be 'stdout', 'stderr', or empty", cfg.Output)
	}
}

// NewLogger creates a Logger. It fails on an unknown level, format or output
// so a mistyped flag is reported instead of silently ignored.
func NewLogger(cfg Config) (Logger, error) {
	writer, err := outputWriter(cfg)
	if err != nil {
		return nil, err
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	case "text", "":
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.Format)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	return &logger{
		slog: slog.New(handler).With(
			"component", cfg.Component,
			"version", cfg.Version,
			"hostname", hostname,
		),
	}, nil
}

// contextArgs flattens the context's log fields in key order
func contextArgs(ctx context.Context) []any {
	fields, ok := ctx.Value(LogFieldsKey).(LogFields)
	if !ok || len(fields) == 0 {
		return nil
	}
	args := make([]any, 0, len(fields)*2)
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, k, fields[k])
	}
	return args
}

func (l *logger) log(ctx context.Context, level slog.Level, message string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.slog.Enabled(ctx, level) {
		return
	}
	l.slog.Log(ctx, level, message, contextArgs(ctx)...)
}

// logf skips formatting when the level is disabled; retry loops log at debug
func (l *logger) logf(ctx context.Context, level slog.Level, format string, args []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.slog.Enabled(ctx, level) {
		return
	}
	l.slog.Log(ctx, level, fmt.Sprintf(format, args...), contextArgs(ctx)...)
}

func (l *logger) Debug(ctx context.Context, message string) {
	l.log(ctx, slog.LevelDebug, message)
}

func (l *logger) Debugf(ctx context.Context, format string, args ...interface{}) {
	l.logf(ctx, slog.LevelDebug, format, args)
}

func (l *logger) Info(ctx context.Context, message string) {
	l.log(ctx, slog.LevelInfo, message)
}

func (l *logger) Infof(ctx context.Context, format string, args ...interface{}) {
	l.logf(ctx, slog.LevelInfo, format, args)
}

func (l *logger) Warn(ctx context.Context, message string) {
	l.log(ctx, slog.LevelWarn, message)
}

func (l *logger) Warnf(ctx context.Context, format string, args ...interface{}) {
	l.logf(ctx, slog.LevelWarn, format, args)
}

func (l *logger) Error(ctx context.Context, message string) {
	l.log(ctx, slog.LevelError, message)
}

func (l *logger) Errorf(ctx context.Context, format string, args ...interface{}) {
	l.logf(ctx, slog.LevelError, format, args)
}

func (l *logger) With(key string, value interface{}) Logger {
	return &logger{slog: l.slog.With(key, value)}
}

func (l *logger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.With("error", err.Error())
}
