// Package obs contains observability utilities: logging and tracing.
package obs

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// Logger is the global structured logger used by the service.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// InitLogger initializes the global Logger with JSON handler at info level.
func InitLogger() {
	InitLoggerTo(os.Stdout)
}

// InitLoggerTo points the global Logger at w. Tests use it to capture output.
func InitLoggerTo(w io.Writer) {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	Logger = slog.New(h)
}

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// WithRequestID stores a request id for later log enrichment.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestID returns the request id carried by ctx, if any.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// L returns Logger enriched with the request id and the active span of ctx.
func L(ctx context.Context) *slog.Logger {
	l := Logger
	if id := RequestID(ctx); id != "" {
		l = l.With("request_id", id)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		l = l.With("trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	return l
}
