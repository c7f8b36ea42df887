// Package httpx holds the JSON response helpers shared by the HTTP handlers.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/teamwear/internal/platform/requestctx"
)

const (
	codeLimit    = 80
	messageLimit = 512
)

// Error is the JSON error envelope returned by the widget API. Message is meant for
// developers; UserMessage carries shopper-facing copy the page script shows as is.
// Details are merged into the top level of the envelope.
type Error struct {
	Code        string
	Message     string
	UserMessage string
	Status      int
	Details     map[string]any
}

// NewError builds an envelope; a zero status means 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    singleLine(code, codeLimit),
		Message: singleLine(message, messageLimit),
		Status:  status,
	}
}

// Error implements error.
func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// WithUserMessage attaches translated copy for the shopper.
func (e Error) WithUserMessage(msg string) Error {
	e.UserMessage = singleLine(msg, messageLimit)
	return e
}

// WithDetails attaches extra top-level fields. The map is copied.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	e.Details = make(map[string]any, len(details))
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func (e Error) body(ctx context.Context) map[string]any {
	out := make(map[string]any, len(e.Details)+6)
	for k, v := range e.Details {
		out[k] = v
	}
	out["error"] = e.Code
	out["message"] = e.Message
	out["status"] = e.Status
	if e.UserMessage != "" {
		out["userMessage"] = e.UserMessage
	}
	if id := middleware.GetReqID(ctx); id != "" {
		out["request_id"] = singleLine(id, codeLimit)
	}
	if traceID := requestctx.TraceID(ctx); traceID != "" {
		out["trace_id"] = traceID
	}
	return out
}

// WriteError writes err as JSON with its status.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}
	WriteJSON(w, err.Status, err.body(ctx))
}

// WriteJSON encodes payload with the given status. Responses are per-session state
// and must not be cached by the shop's CDN.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// singleLine flattens line breaks and cuts value to limit bytes on a rune boundary.
func singleLine(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value))
	if len(value) <= limit {
		return value
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(value[cut]) {
		cut--
	}
	return value[:cut]
}
