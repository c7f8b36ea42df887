package observability

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hanko-field/teamwear/internal/platform/requestctx"
)

const serviceName = "teamwear"

// ParseLevel maps a configured level name onto a zap level; unknown names yield info.
func ParseLevel(name string) zapcore.Level {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// NewLogger builds the JSON logger used by the service. Entries carry the service
// name and use severity/message/timestamp keys so log routers can parse them.
func NewLogger(levelName string) (*zap.Logger, error) {
	encoder := zap.NewProductionEncoderConfig()
	encoder.MessageKey = "message"
	encoder.LevelKey = "severity"
	encoder.TimeKey = "timestamp"
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(ParseLevel(levelName)),
		Encoding:          "json",
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
		InitialFields:     map[string]any{"service": serviceName},
	}
	return cfg.Build()
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// EventLogger adapts zap to the event callback used by widgets. The request logger
// on ctx is preferred so events carry request and session fields; fallback is used
// for work outside a request.
func EventLogger(fallback *zap.Logger) func(context.Context, string, map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		zFields := make([]zap.Field, 0, len(fields)+2)
		zFields = append(zFields, zap.String("event", event))
		if session := requestctx.SessionID(ctx); session != "" {
			zFields = append(zFields, zap.String("session_id", SanitizeSessionID(session)))
		}
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Info("widget event", zFields...)
	}
}
