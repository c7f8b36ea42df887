package observability

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hanko-field/teamwear/internal/platform/requestctx"
)

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	fallbackCore, fallbackLogs := observer.New(zapcore.InfoLevel)
	requestCore, requestLogs := observer.New(zapcore.InfoLevel)
	log := EventLogger(zap.New(fallbackCore))

	log(context.Background(), "widget.design_load_failed", map[string]any{"handle": "trikot-classic"})
	if fallbackLogs.Len() != 1 {
		t.Fatalf("expected fallback logger to receive event outside a request")
	}

	ctx := requestctx.WithLogger(context.Background(), zap.New(requestCore))
	ctx = requestctx.WithSessionID(ctx, "01HZX")
	log(ctx, "widget.submit_failed", map[string]any{"variantID": int64(501)})

	entries := requestLogs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["event"] != "widget.submit_failed" {
		t.Fatalf("unexpected event %v", fields["event"])
	}
	if fields["session_id"] != "01HZX" {
		t.Fatalf("unexpected session %v", fields["session_id"])
	}
	if fields["variantID"] != int64(501) {
		t.Fatalf("unexpected variant %v", fields["variantID"])
	}
	if fallbackLogs.Len() != 1 {
		t.Fatalf("fallback logger should not see request events")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
