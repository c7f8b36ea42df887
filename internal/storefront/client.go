package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hanko-field/teamwear/internal/domain"
)

const (
	defaultTimeout   = 8 * time.Second
	defaultUserAgent = "teamwear-configurator/1.0"
	errorBodyLimit   = 4 << 10
	tracerName       = "github.com/hanko-field/teamwear/internal/storefront"
)

var (
	// ErrMissingBaseURL is returned when the client is built without a storefront URL.
	ErrMissingBaseURL = errors.New("storefront: missing base url")
	// ErrInvalidHandle is returned for blank product handles.
	ErrInvalidHandle = errors.New("storefront: invalid product handle")
)

// StatusError is a non-2xx answer from the storefront AJAX API.
type StatusError struct {
	Status      int
	Message     string
	Description string
}

func (e *StatusError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storefront: status %d", e.Status)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Description != "" && e.Description != e.Message {
		b.WriteString(": ")
		b.WriteString(e.Description)
	}
	return b.String()
}

// StatusCode exposes the HTTP status for error classification.
func (e *StatusError) StatusCode() int { return e.Status }

// Client talks to the host shop's AJAX Product and Cart endpoints.
type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	logger    *zap.Logger
	tracer    trace.Tracer
}

type clientConfig struct {
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
	logger     *zap.Logger
}

// Option customises Client construction.
type Option func(*clientConfig)

// WithHTTPClient replaces the underlying HTTP client. Its transport is wrapped with otelhttp.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *clientConfig) {
		cfg.httpClient = client
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) {
		cfg.timeout = d
	}
}

// WithUserAgent sets the User-Agent sent upstream.
func WithUserAgent(ua string) Option {
	return func(cfg *clientConfig) {
		cfg.userAgent = strings.TrimSpace(ua)
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *clientConfig) {
		cfg.logger = logger
	}
}

// NewClient constructs a storefront client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return nil, ErrMissingBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, fmt.Errorf("storefront: invalid base url %q", baseURL)
	}

	cfg := clientConfig{
		timeout:   defaultTimeout,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	httpClient := &http.Client{}
	if cfg.httpClient != nil {
		clone := *cfg.httpClient
		httpClient = &clone
	}
	transport := httpClient.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	httpClient.Transport = otelhttp.NewTransport(transport)
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}
	if cfg.userAgent == "" {
		cfg.userAgent = defaultUserAgent
	}

	return &Client{
		baseURL:   base,
		http:      httpClient,
		userAgent: cfg.userAgent,
		logger:    cfg.logger,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

// Product fetches GET /products/{handle}.js.
func (c *Client) Product(ctx context.Context, handle string) (domain.Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || strings.ContainsAny(handle, "/?#") {
		return domain.Product{}, ErrInvalidHandle
	}

	ctx, span := c.tracer.Start(ctx, "storefront.Product", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("storefront.product_handle", handle))

	var product domain.Product
	err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(handle)+".js", nil, &product)
	if err != nil {
		recordError(span, err)
		return domain.Product{}, err
	}
	span.SetAttributes(attribute.Int("storefront.variant_count", len(product.Variants)))
	return product, nil
}

// AddToCart posts a single line to /cart/add.js.
func (c *Client) AddToCart(ctx context.Context, line domain.CartLine) (domain.CartItem, error) {
	ctx, span := c.tracer.Start(ctx, "storefront.AddToCart", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.Int64("storefront.variant_id", line.VariantID),
		attribute.Int("storefront.quantity", line.Quantity),
		attribute.Int("storefront.property_count", len(line.Properties)),
	)

	payload, err := json.Marshal(line)
	if err != nil {
		recordError(span, err)
		return domain.CartItem{}, fmt.Errorf("storefront: encode cart line: %w", err)
	}

	var item domain.CartItem
	if err := c.do(ctx, http.MethodPost, "/cart/add.js", payload, &item); err != nil {
		recordError(span, err)
		return domain.CartItem{}, err
	}
	return item, nil
}

// Cart fetches GET /cart.js.
func (c *Client) Cart(ctx context.Context) (domain.Cart, error) {
	ctx, span := c.tracer.Start(ctx, "storefront.Cart", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var cart domain.Cart
	if err := c.do(ctx, http.MethodGet, "/cart.js", nil, &cart); err != nil {
		recordError(span, err)
		return domain.Cart{}, err
	}
	span.SetAttributes(attribute.Int("storefront.cart_item_count", cart.ItemCount))
	return cart, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if jar := cookiesFrom(ctx); jar != nil {
		for _, cookie := range jar.outgoing() {
			req.AddCookie(cookie)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if jar := cookiesFrom(ctx); jar != nil {
		jar.record(resp.Cookies())
	}

	if resp.StatusCode >= 400 {
		statusErr := decodeStatusError(resp)
		c.logger.Debug("storefront request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return statusErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("storefront: decode %s %s: %w", method, path, err)
	}
	return nil
}

type errorPayload struct {
	Status      json.RawMessage `json:"status"`
	Message     string          `json:"message"`
	Description json.RawMessage `json:"description"`
}

func decodeStatusError(resp *http.Response) *StatusError {
	statusErr := &StatusError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))

	var payload errorPayload
	if err := json.Unmarshal(data, &payload); err == nil {
		statusErr.Message = strings.TrimSpace(payload.Message)
		statusErr.Description = describe(payload.Description)
	} else {
		statusErr.Message = drainText(data)
	}
	if statusErr.Message == "" {
		statusErr.Message = http.StatusText(resp.StatusCode)
	}
	return statusErr
}

// describe flattens description values that arrive either as a string or as a
// field-to-messages object.
func describe(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		parts := make([]string, 0, len(fields))
		for key, value := range fields {
			parts = append(parts, fmt.Sprintf("%s: %v", key, value))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func drainText(data []byte) string {
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "<") {
		return ""
	}
	if len(text) > 256 {
		text = text[:256]
	}
	return text
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		span.SetAttributes(attribute.Int("http.response.status_code", statusErr.Status))
	}
}
