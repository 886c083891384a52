package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

var (
	mu     sync.Mutex
	logger *slog.Logger
)

type Config struct {
	Level     string `mapstructure:"level"`  // debug, info, warn, error
	Format    string `mapstructure:"format"` // json, text
	AddSource bool   `mapstructure:"add_source"`
}

// New builds a logger writing to w without touching the global one.
func New(cfg Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// Init installs the global logger and makes it slog's default.
func Init(cfg Config) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	logger = New(cfg, os.Stdout)
	slog.SetDefault(logger)
	return logger
}

func Get() *slog.Logger {
	mu.Lock()
	l := logger
	mu.Unlock()

	if l == nil {
		return Init(Config{Level: "info", Format: "json"})
	}
	return l
}

// FromContext decorates l with the request id and trace id found in ctx.
func FromContext(ctx context.Context, l *slog.Logger) *slog.Logger {
	if id := middleware.GetReqID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With("trace_id", sc.TraceID().String())
	}
	return l
}
