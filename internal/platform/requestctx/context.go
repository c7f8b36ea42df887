// Package requestctx carries request-scoped values (logger, trace ids, widget
// session) across package boundaries without import cycles.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceKey
	sessionKey
)

var noopLogger = zap.NewNop()

// TraceInfo holds the identifiers of the server span handling the request.
type TraceInfo struct {
	TraceID string
	SpanID  string
	Sampled bool
}

func with(ctx context.Context, key ctxKey, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func get[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithLogger stores logger on ctx; nil stores the no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return with(ctx, loggerKey, logger)
}

// Logger returns the request logger or the shared no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := get[*zap.Logger](ctx, loggerKey); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger exposes the shared no-op logger so callers can detect its absence.
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace stores span identifiers on ctx.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return with(ctx, traceKey, info)
}

// Trace returns the span identifiers stored on ctx.
func Trace(ctx context.Context) (TraceInfo, bool) {
	return get[TraceInfo](ctx, traceKey)
}

// TraceID returns the trace id stored on ctx, or "".
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithSessionID records the widget session addressed by the request.
func WithSessionID(ctx context.Context, id string) context.Context {
	return with(ctx, sessionKey, id)
}

// SessionID returns the widget session id stored on ctx, or "".
func SessionID(ctx context.Context) string {
	id, _ := get[string](ctx, sessionKey)
	return id
}
