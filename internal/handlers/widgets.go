package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/i18n"
	"github.com/hanko-field/teamwear/internal/platform/httpx"
	"github.com/hanko-field/teamwear/internal/platform/observability"
	"github.com/hanko-field/teamwear/internal/platform/requestctx"
	"github.com/hanko-field/teamwear/internal/services"
	"github.com/hanko-field/teamwear/internal/storefront"
)

const defaultMaxBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

// cartCookieNames are the shopper cookies that identify the storefront cart.
var cartCookieNames = map[string]struct{}{
	"cart":     {},
	"cart_sig": {},
	"cart_ts":  {},
	"cart_ver": {},
}

// WidgetHandlers exposes the configurator session endpoints.
type WidgetHandlers struct {
	sessions *SessionRegistry
	copy     *i18n.Bundle
	maxBody  int64
}

// NewWidgetHandlers constructs handlers over the session registry.
func NewWidgetHandlers(sessions *SessionRegistry, bundle *i18n.Bundle, maxBody int64) *WidgetHandlers {
	if bundle == nil {
		bundle = i18n.MustLoad()
	}
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	return &WidgetHandlers{sessions: sessions, copy: bundle, maxBody: maxBody}
}

// Routes wires the /widgets endpoints onto the provided router.
func (h *WidgetHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createWidget)
	r.Route("/{sessionId}", func(rr chi.Router) {
		rr.Get("/", h.getWidget)
		rr.Delete("/", h.deleteWidget)
		rr.Post("/design", h.selectDesign)
		rr.Post("/color", h.selectColor)
		rr.Post("/quantity", h.setQuantity)
		rr.Post("/sizes", h.setSizeCount)
		rr.Post("/addons", h.toggleAddOn)
		rr.Post("/personalization", h.updatePersonalization)
		rr.Put("/team-logo", h.setTeamLogo)
		rr.Delete("/team-logo", h.clearTeamLogo)
		rr.Put("/team-name", h.setTeamName)
		rr.Post("/reset", h.resetWidget)
		rr.Post("/submit", h.submit)
	})
}

type createWidgetRequest struct {
	SectionID string `json:"sectionId"`
}

type createWidgetResponse struct {
	SessionID string        `json:"sessionId"`
	View      services.View `json:"view"`
}

type submitResponse struct {
	View services.View `json:"view"`
	Cart domain.Cart   `json:"cart"`
}

func (h *WidgetHandlers) createWidget(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createWidgetRequest
	if err := h.decodeOptional(r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	id, widget, err := h.sessions.Create(req.SectionID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	requestctx.Logger(ctx).Info("widget session created",
		zap.String("session_id", observability.SanitizeSessionID(id)),
		zap.String("widget_id", widget.ID()),
	)
	w.Header().Set(observability.SessionHeader, id)
	httpx.WriteJSON(w, http.StatusCreated, createWidgetResponse{SessionID: id, View: widget.View()})
}

func (h *WidgetHandlers) getWidget(w http.ResponseWriter, r *http.Request) {
	h.withWidget(w, r, func(ctx context.Context, widget *services.Widget) error {
		return nil
	})
}

func (h *WidgetHandlers) deleteWidget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	if !h.sessions.Delete(id) {
		h.writeError(r.Context(), w, ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selectDesignRequest struct {
	Handle string `json:"handle"`
}

func (h *WidgetHandlers) selectDesign(w http.ResponseWriter, r *http.Request) {
	var req selectDesignRequest
	h.withBody(w, r, &req, func(ctx context.Context, widget *services.Widget) error {
		return widget.SelectDesign(ctx, req.Handle)
	})
}

type selectColorRequest struct {
	Name string `json:"name"`
}

func (h *WidgetHandlers) selectColor(w http.ResponseWriter, r *http.Request) {
	var req selectColorRequest
	h.withBody(w, r, &req, func(ctx context.Context, widget *services.Widget) error {
		return widget.SelectColor(ctx, req.Name)
	})
}

type setQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *WidgetHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	h.withBody(w, r, &req, func(ctx context.Context, widget *services.Widget) error {
		return widget.SetQuantity(ctx, req.Quantity)
	})
}

type setSizeCountRequest struct {
	Size  string `json:"size"`
	Count int    `json:"count"`
}

func (h *WidgetHandlers) setSizeCount(w http.ResponseWriter, r *http.Request) {
	var req setSizeCountRequest
	h.withBody(w, r, &req, func(ctx context.Context, widget *services.Widget) error {
		return widget.SetSizeCount(ctx, req.Size, req.Count)
	})
}

type toggleAddOnRequest struct {
	AddOn   string `json:"addOn"`
	Enabled bool   `json:"enabled"`
}

func (h *WidgetHandlers) toggleAddOn(w http.ResponseWriter, r *http.Request) {
	var req toggleAddOnRequest
	h.withBody(w, r, &req, func(ctx context.Context, widget *services.Widget) error {
		return widget.ToggleAddOn(ctx, domain.AddOn(strings.TrimSpace(req.AddOn)), req.Enabled)
	})
}

type updatePersonalizationRequest struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *WidgetHandlers) updatePersonalization(w http.ResponseWriter, r *http.Request) {
	var req updatePersonalizationRequest
	h.withBody(w, r, &req, func(ctx context.Context, widget *services.Widget) error {
		field := services.RowField(strings.ToLower(strings.TrimSpace(req.Field)))
		return widget.UpdatePersonalization(ctx, req.Row, field, req.Value)
	})
}

type setTeamLogoRequest struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

func (h *WidgetHandlers) setTeamLogo(w http.ResponseWriter, r *http.Request) {
	var req setTeamLogoRequest
	h.withBody(w, r, &req, func(ctx context.Context, widget *services.Widget) error {
		return widget.SetTeamLogo(ctx, domain.TeamLogo{URL: req.URL, Filename: req.Filename})
	})
}

func (h *WidgetHandlers) clearTeamLogo(w http.ResponseWriter, r *http.Request) {
	h.withWidget(w, r, func(ctx context.Context, widget *services.Widget) error {
		widget.ClearTeamLogo(ctx)
		return nil
	})
}

type setTeamNameRequest struct {
	Name string `json:"name"`
}

func (h *WidgetHandlers) setTeamName(w http.ResponseWriter, r *http.Request) {
	var req setTeamNameRequest
	h.withBody(w, r, &req, func(ctx context.Context, widget *services.Widget) error {
		widget.SetTeamName(ctx, req.Name)
		return nil
	})
}

func (h *WidgetHandlers) resetWidget(w http.ResponseWriter, r *http.Request) {
	h.withWidget(w, r, func(ctx context.Context, widget *services.Widget) error {
		widget.Reset(ctx)
		return nil
	})
}

func (h *WidgetHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "sessionId")
	widget, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.Header().Set(observability.SessionHeader, id)
	ctx = requestctx.WithSessionID(ctx, id)

	ctx, jar := storefront.WithCartCookies(ctx, cartCookies(r))
	cart, err := widget.Submit(ctx)
	for _, cookie := range jar.ResponseCookies() {
		forwarded := *cookie
		forwarded.Domain = ""
		http.SetCookie(w, &forwarded)
	}
	if err != nil {
		h.writeErrorWithView(ctx, w, err, widget.View())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, submitResponse{View: widget.View(), Cart: cart})
}

// withBody decodes the JSON body into dst before running fn.
func (h *WidgetHandlers) withBody(w http.ResponseWriter, r *http.Request, dst any, fn func(context.Context, *services.Widget) error) {
	if err := h.decode(r, dst); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.withWidget(w, r, fn)
}

// withWidget resolves the session, runs fn and answers with the resulting view.
func (h *WidgetHandlers) withWidget(w http.ResponseWriter, r *http.Request, fn func(context.Context, *services.Widget) error) {
	ctx := r.Context()
	id := chi.URLParam(r, "sessionId")
	widget, err := h.sessions.Get(id)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.Header().Set(observability.SessionHeader, id)
	ctx = requestctx.WithSessionID(ctx, id)

	if err := fn(ctx, widget); err != nil {
		h.writeErrorWithView(ctx, w, err, widget.View())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, widget.View())
}

func (h *WidgetHandlers) decode(r *http.Request, dst any) error {
	body, err := readLimitedBody(r, h.maxBody)
	if err != nil {
		return err
	}
	return decodeStrict(body, dst)
}

// decodeOptional accepts an empty body.
func (h *WidgetHandlers) decodeOptional(r *http.Request, dst any) error {
	body, err := readLimitedBody(r, h.maxBody)
	if errors.Is(err, errEmptyBody) {
		return nil
	}
	if err != nil {
		return err
	}
	return decodeStrict(body, dst)
}

func decodeStrict(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &badRequestError{err: err}
	}
	if dec.More() {
		return &badRequestError{err: errors.New("unexpected data after JSON body")}
	}
	return nil
}

type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "invalid JSON body: " + e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func cartCookies(r *http.Request) []*http.Cookie {
	var out []*http.Cookie
	for _, cookie := range r.Cookies() {
		if _, ok := cartCookieNames[cookie.Name]; ok {
			out = append(out, cookie)
		}
	}
	return out
}

func (h *WidgetHandlers) writeErrorWithView(ctx context.Context, w http.ResponseWriter, err error, view services.View) {
	apiErr := h.classify(err)
	apiErr = apiErr.WithDetails(map[string]any{"view": view})
	h.log(ctx, apiErr, err)
	httpx.WriteError(ctx, w, apiErr)
}

func (h *WidgetHandlers) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := h.classify(err)
	h.log(ctx, apiErr, err)
	httpx.WriteError(ctx, w, apiErr)
}

func (h *WidgetHandlers) log(ctx context.Context, apiErr httpx.Error, err error) {
	if apiErr.Status >= http.StatusInternalServerError {
		requestctx.Logger(ctx).Error("widget request failed", zap.String("code", apiErr.Code), zap.Error(err))
		return
	}
	requestctx.Logger(ctx).Debug("widget request rejected", zap.String("code", apiErr.Code), zap.Error(err))
}

// classify maps widget and transport errors onto the JSON error envelope.
func (h *WidgetHandlers) classify(err error) httpx.Error {
	var submission *services.SubmissionError
	if errors.As(err, &submission) {
		switch submission.Kind {
		case services.SubmissionBusy:
			return httpx.NewError("submission_in_progress", err.Error(), http.StatusConflict).WithUserMessage(submission.Message)
		case services.SubmissionValidation:
			return httpx.NewError("invalid_configuration", err.Error(), http.StatusUnprocessableEntity).WithUserMessage(submission.Message)
		default:
			return httpx.NewError("cart_unavailable", err.Error(), http.StatusBadGateway).WithUserMessage(submission.Message)
		}
	}

	var badRequest *badRequestError
	switch {
	case errors.As(err, &badRequest), errors.Is(err, errEmptyBody):
		return httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, errBodyTooLarge):
		return httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge)
	case errors.Is(err, ErrSessionNotFound):
		return httpx.NewError("session_not_found", "widget session not found or expired", http.StatusNotFound)
	case errors.Is(err, ErrTooManySessions):
		return httpx.NewError("too_many_sessions", err.Error(), http.StatusServiceUnavailable).WithUserMessage(h.copy.T(i18n.KeyError))
	case errors.Is(err, services.ErrUnknownDesign):
		return httpx.NewError("unknown_design", err.Error(), http.StatusNotFound).WithUserMessage(h.copy.T(i18n.KeySelectDesign))
	case errors.Is(err, services.ErrDesignMissing):
		return httpx.NewError("design_missing", err.Error(), http.StatusConflict).WithUserMessage(h.copy.T(i18n.KeySelectDesign))
	case errors.Is(err, services.ErrColorsNotReady):
		return httpx.NewError("colors_not_ready", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrUnknownColor):
		return httpx.NewError("unknown_color", err.Error(), http.StatusUnprocessableEntity).WithUserMessage(h.copy.T(i18n.KeySelectColor))
	case errors.Is(err, services.ErrQuantityDerived):
		return httpx.NewError("quantity_derived", err.Error(), http.StatusConflict).WithUserMessage(h.copy.T(i18n.KeyCorrectSizes))
	case errors.Is(err, services.ErrInvalidQuantity):
		return httpx.NewError("invalid_quantity", err.Error(), http.StatusUnprocessableEntity).WithUserMessage(h.copy.T(i18n.KeySelectQuantity))
	case errors.Is(err, services.ErrUnknownSize):
		return httpx.NewError("unknown_size", err.Error(), http.StatusUnprocessableEntity).WithUserMessage(h.copy.T(i18n.KeyCorrectSizes))
	case errors.Is(err, services.ErrRowOutOfRange), errors.Is(err, services.ErrUnknownRowField):
		return httpx.NewError("invalid_personalization", err.Error(), http.StatusUnprocessableEntity).WithUserMessage(h.copy.T(i18n.KeyCorrectPersonalization))
	case errors.Is(err, services.ErrUnknownAddOn), errors.Is(err, services.ErrInvalidTeamLogo):
		return httpx.NewError("invalid_request", err.Error(), http.StatusUnprocessableEntity)
	default:
		return httpx.NewError("internal_server_error", fmt.Sprintf("unexpected error: %v", err), http.StatusInternalServerError).WithUserMessage(h.copy.T(i18n.KeyError))
	}
}
