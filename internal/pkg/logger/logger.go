// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextKey is the type of the request-scoped values the HTTP
// middleware stores on the context for log enrichment.
type ContextKey string

const (
	ContextKeyRequestID  ContextKey = "request_id"
	ContextKeyTraceID    ContextKey = "trace_id"
	ContextKeyClientIP   ContextKey = "client_ip"
	ContextKeyUserAgent  ContextKey = "user_agent"
	ContextKeyMethod     ContextKey = "method"
	ContextKeyPath       ContextKey = "path"
	ContextKeyStatusCode ContextKey = "status_code"
	ContextKeyDuration   ContextKey = "duration_ms"
)

// contextKeys is the fixed set WithContext and the context handler
// pull off a request context. Order is the attribute order in output.
var contextKeys = []ContextKey{
	ContextKeyRequestID,
	ContextKeyTraceID,
	ContextKeyClientIP,
	ContextKeyUserAgent,
	ContextKeyMethod,
	ContextKeyPath,
	ContextKeyStatusCode,
	ContextKeyDuration,
}

// Config controls how the process logger is assembled.
type Config struct {
	Level          string
	Format         string // "json" or "text"
	Output         string // "stdout", "stderr" or "file:<path>"
	AddSource      bool
	SampleRate     float64 // in (0,1) enables sampling of info/debug records
	StackOnError   bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	Shippers       []ShipperConfig
}

// ShipperConfig describes an extra log destination beyond the primary
// writer, e.g. an Elasticsearch bulk endpoint.
type ShipperConfig struct {
	Type    string         `json:"type"`
	Level   string         `json:"level"`
	Options map[string]any `json:"options"`
}

// Logger wraps slog.Logger with context extraction and the handler
// chain built from Config.
type Logger struct {
	*slog.Logger
	cfg *Config
}

// SetupLogger builds the process logger from level and format, fills
// identity fields from the environment and installs it as the slog
// default.
func SetupLogger(level, format string) *Logger {
	cfg := &Config{
		Level:          level,
		Format:         format,
		Output:         "stdout",
		AddSource:      true,
		StackOnError:   level == "debug",
		ServiceName:    os.Getenv("SERVICE_NAME"),
		ServiceVersion: os.Getenv("SERVICE_VERSION"),
		Environment:    os.Getenv("APP_ENV"),
	}

	l := New(cfg)
	slog.SetDefault(l.Logger)
	return l
}

// New assembles the handler chain: primary writer, context
// enrichment, optional sampling, sanitization, then any shippers.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = &Config{Level: "info", Format: "json", Output: "stdout"}
	}

	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: normalizeAttr,
	}

	w := writerFor(cfg.Output)

	var h slog.Handler
	if cfg.Format == "text" {
		h = NewPrettyTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	h = NewContextHandler(h)
	if cfg.SampleRate > 0 && cfg.SampleRate < 1 {
		h = NewSamplingHandler(h, cfg.SampleRate)
	}
	h = NewSanitizingHandler(h)

	handlers := []slog.Handler{h}
	for _, sc := range cfg.Shippers {
		if sh := buildShipper(cfg, sc); sh != nil {
			handlers = append(handlers, sh)
		}
	}
	if len(handlers) > 1 {
		h = NewMultiHandler(handlers...)
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", cfg.ServiceVersion))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, slog.String("env", cfg.Environment))
	}
	if len(attrs) > 0 {
		h = h.WithAttrs(attrs)
	}

	return &Logger{Logger: slog.New(h), cfg: cfg}
}

// WithContext returns a child logger carrying the request-scoped
// attributes found on ctx.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if attrs := attrsFromContext(ctx); len(attrs) > 0 {
		return l.Logger.With(attrs...)
	}
	return l.Logger
}

// ErrorContext logs at error level with request attributes and, when
// StackOnError is set, the goroutine stack.
func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	if l.cfg != nil && l.cfg.StackOnError {
		args = append(args, slog.String("stack", stackTrace()))
	}
	l.WithContext(ctx).Log(ctx, slog.LevelError, msg, args...)
}

// WarnContext logs at warn level with request attributes.
func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Log(ctx, slog.LevelWarn, msg, args...)
}

// InfoContext logs at info level with request attributes.
func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Log(ctx, slog.LevelInfo, msg, args...)
}

// DebugContext logs at debug level with request attributes.
func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Log(ctx, slog.LevelDebug, msg, args...)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func writerFor(output string) io.Writer {
	switch {
	case output == "stderr":
		return os.Stderr
	case strings.HasPrefix(output, "file:"):
		f, err := os.OpenFile(strings.TrimPrefix(output, "file:"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return os.Stdout
		}
		return f
	default:
		return os.Stdout
	}
}

func attrsFromContext(ctx context.Context) []any {
	var attrs []any
	for _, key := range contextKeys {
		v := ctx.Value(key)
		if v == nil {
			continue
		}
		k := string(key)
		switch val := v.(type) {
		case string:
			if val != "" {
				attrs = append(attrs, slog.String(k, val))
			}
		case int:
			attrs = append(attrs, slog.Int(k, val))
		case time.Duration:
			attrs = append(attrs, slog.Float64(k, float64(val.Milliseconds())))
		case uuid.UUID:
			attrs = append(attrs, slog.String(k, val.String()))
		default:
			attrs = append(attrs, slog.Any(k, val))
		}
	}
	return attrs
}

// normalizeAttr pins timestamps to RFC3339Nano and converts any
// duration carried under a *_ms key to milliseconds.
func normalizeAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.Format(time.RFC3339Nano))
		}
	}
	if strings.HasSuffix(a.Key, "_ms") {
		if d, ok := a.Value.Any().(time.Duration); ok {
			a.Value = slog.Float64Value(float64(d.Milliseconds()))
		}
	}
	return a
}

func buildShipper(cfg *Config, sc ShipperConfig) slog.Handler {
	switch sc.Type {
	case "elasticsearch":
		return NewELKHandler(elkConfigFrom(sc.Options), cfg)
	case "file":
		name, _ := sc.Options["filename"].(string)
		if name == "" {
			return nil
		}
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil
		}
		return slog.NewJSONHandler(f, &slog.HandlerOptions{Level: parseLevel(sc.Level)})
	}
	return nil
}

func stackTrace() string {
	buf := make([]byte, 8<<10)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
