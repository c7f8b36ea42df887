package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hanko-field/teamwear/internal/platform/requestctx"
)

func TestRequestLoggerMiddlewareLogsRouteAndSession(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	r := chi.NewRouter()
	r.Use(InjectLoggerMiddleware(logger), RequestLoggerMiddleware())
	r.Get("/widgets/{sessionId}", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set(SessionHeader, chi.URLParam(req, "sessionId"))
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("{}"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/widgets/abc", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for 404, got %s", entry.Level)
	}
	fields := entry.ContextMap()
	if fields["route"] != "/widgets/{sessionId}" {
		t.Fatalf("unexpected route %v", fields["route"])
	}
	if fields["session_id"] != "abc" {
		t.Fatalf("unexpected session %v", fields["session_id"])
	}
	if fields["status"] != int64(http.StatusNotFound) {
		t.Fatalf("unexpected status %v", fields["status"])
	}
	if fields["bytes"] != int64(2) {
		t.Fatalf("unexpected bytes %v", fields["bytes"])
	}
}

func TestRecoveryMiddlewareReturnsJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["error"] != "internal_server_error" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged with the fallback logger")
	}
}

func TestTraceMiddlewareStoresTraceInfo(t *testing.T) {
	var info requestctx.TraceInfo
	var ok bool
	handler := TraceMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, ok = requestctx.Trace(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !ok {
		t.Fatalf("expected trace info on context")
	}
	if info.TraceID != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("expected propagated trace id, got %q", info.TraceID)
	}
}

func TestRequestLoggerRecordsTraceFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := InjectLoggerMiddleware(zap.New(core))(
		TraceMiddleware()(
			RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})),
		),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" || fields["span_id"] != "00f067aa0ba902b7" {
		t.Fatalf("unexpected trace fields %v", fields)
	}
	if fields["trace_sampled"] != true {
		t.Fatalf("expected sampled flag, got %v", fields["trace_sampled"])
	}
}

func TestSanitizeHelpers(t *testing.T) {
	if got := SanitizeSessionID("ab\ncd" + strings.Repeat("x", 100)); len(got) != 64 || strings.ContainsRune(got, '\n') {
		t.Fatalf("unexpected sanitised session id %q", got)
	}
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("expected / for empty route, got %q", got)
	}
	if got := SanitizeMethod("GET\r\n"); got != "GET" {
		t.Fatalf("unexpected method %q", got)
	}
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("verbose")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug to be disabled for unknown level")
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("expected info to be enabled")
	}

	debug, err := NewLogger(" DEBUG ")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !debug.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("expected debug level")
	}
}
