package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/i18n"
	"github.com/hanko-field/teamwear/internal/platform/observability"
	"github.com/hanko-field/teamwear/internal/services"
	"github.com/hanko-field/teamwear/internal/storefront"
)

const classicProductJSON = `{
  "id": 7001,
  "handle": "trikot-classic",
  "title": "Trikot Classic",
  "options": ["Farbe", "Größe"],
  "variants": [
    {"id": 501, "price": 2000, "option1": "Rot", "option2": "S"},
    {"id": 502, "price": 2000, "option1": "Rot", "option2": "M"},
    {"id": 503, "price": 2000, "option1": "Blau", "option2": "S"}
  ],
  "images": [{"id": 1, "src": "https://cdn.example/rot.jpg", "variant_ids": [501, 502]}]
}`

type fakeShop struct {
	mu          sync.Mutex
	addStatus   int
	lines       []map[string]any
	cartCookies []string
	// cart cookies seen by /cart.js
	refreshCookies []string
}

func (s *fakeShop) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/products/trikot-classic.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, classicProductJSON)
	})
	mux.HandleFunc("/cart/add.js", func(w http.ResponseWriter, r *http.Request) {
		var line map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&line))
		s.mu.Lock()
		s.lines = append(s.lines, line)
		if c, err := r.Cookie("cart"); err == nil {
			s.cartCookies = append(s.cartCookies, c.Value)
		}
		status := s.addStatus
		s.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"status":422,"message":"Cart Error","description":"sold out"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "cart", Value: "fresh-token", Path: "/", Domain: "shop.example"})
		_, _ = io.WriteString(w, `{"id":501,"variant_id":501,"quantity":10,"price":1900,"line_price":19000}`)
	})
	mux.HandleFunc("/cart.js", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("cart")
		if err != nil {
			// A request without a cart cookie starts a new, empty cart.
			http.SetCookie(w, &http.Cookie{Name: "cart", Value: "empty-token", Path: "/"})
			_, _ = io.WriteString(w, `{"token":"empty-token","item_count":0,"total_price":0,"currency":"EUR","items":[]}`)
			return
		}
		s.mu.Lock()
		s.refreshCookies = append(s.refreshCookies, c.Value)
		s.mu.Unlock()
		_, _ = io.WriteString(w, `{"token":"`+c.Value+`","item_count":10,"total_price":19000,"currency":"EUR","items":[]}`)
	})
	return mux
}

type apiFixture struct {
	server   *httptest.Server
	shop     *fakeShop
	sessions *SessionRegistry
	designs  []domain.Design
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	shop := &fakeShop{}
	shopServer := httptest.NewServer(shop.handler(t))
	t.Cleanup(shopServer.Close)

	client, err := storefront.NewClient(shopServer.URL)
	require.NoError(t, err)
	cache, err := storefront.NewProductCache(client)
	require.NoError(t, err)

	designs := []domain.Design{
		{Handle: "trikot-classic", Name: "Classic", BasePrice: 2000, Discount: domain.DiscountConfig{Legacy: domain.DefaultLegacyDiscount()}},
		{Handle: "trikot-missing", Name: "Missing", BasePrice: 2500, Discount: domain.DiscountConfig{Legacy: domain.DefaultLegacyDiscount()}},
	}
	factory := func(widgetID string) (*services.Widget, error) {
		return services.NewWidget(services.WidgetDeps{
			ID:              widgetID,
			Designs:         designs,
			Products:        cache,
			Cart:            client,
			QuantityOptions: []int{10, 20, 30},
			ResetDelay:      time.Hour,
		})
	}
	sessions, err := NewSessionRegistry(factory, SessionOptions{})
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	router := NewRouter(
		WithDesignRoutes(NewDesignHandlers(designs, []int{10, 20}, nil, nil).Routes),
		WithWidgetRoutes(NewWidgetHandlers(sessions, nil, 1024).Routes),
	)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &apiFixture{server: server, shop: shop, sessions: sessions, designs: designs}
}

func (fx *apiFixture) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, fx.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	payload := map[string]any{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(bytes.TrimSpace(data)) > 0 {
		require.NoError(t, json.Unmarshal(data, &payload), string(data))
	}
	return resp, payload
}

func (fx *apiFixture) createSession(t *testing.T) string {
	t.Helper()
	resp, payload := fx.do(t, http.MethodPost, "/api/v1/widgets", map[string]string{"sectionId": "main"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := payload["sessionId"].(string)
	require.Equal(t, id, resp.Header.Get(observability.SessionHeader))
	return id
}

func TestWidgetFlowSubmitsToStorefront(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)
	base := "/api/v1/widgets/" + id

	resp, view := fx.do(t, http.MethodPost, base+"/design", map[string]string{"handle": "trikot-classic"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(services.StageColorsReady), view["stage"])
	assert.EqualValues(t, 10, view["quantity"])
	assert.Len(t, view["colors"], 2)
	assert.False(t, view["valid"].(bool))

	resp, view = fx.do(t, http.MethodPost, base+"/color", map[string]string{"name": "rot"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "501", view["variantId"])
	assert.Equal(t, "https://cdn.example/rot.jpg", view["previewImage"])
	assert.True(t, view["valid"].(bool))
	price := view["price"].(map[string]any)
	assert.EqualValues(t, 1900, price["unitPrice"])
	assert.Equal(t, "€190.00", price["totalLabel"])

	resp, view = fx.do(t, http.MethodPut, base+"/team-name", map[string]string{"name": "  FC <b>Beispiel</b> "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "FC Beispiel", view["teamName"])

	resp, payload := fx.do(t, http.MethodPost, base+"/submit", nil, &http.Cookie{Name: "cart", Value: "old-token"}, &http.Cookie{Name: "_secret", Value: "x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := payload["cart"].(map[string]any)
	assert.EqualValues(t, 10, cart["item_count"])
	submitted := payload["view"].(map[string]any)
	message := submitted["message"].(map[string]any)
	assert.Equal(t, i18n.MustLoad().T(i18n.KeyAddedToCart), message["text"])

	var forwarded *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "cart" {
			forwarded = c
		}
	}
	require.NotNil(t, forwarded)
	assert.Equal(t, "fresh-token", forwarded.Value)
	assert.Empty(t, forwarded.Domain)

	fx.shop.mu.Lock()
	defer fx.shop.mu.Unlock()
	require.Len(t, fx.shop.lines, 1)
	assert.EqualValues(t, 501, fx.shop.lines[0]["id"])
	assert.EqualValues(t, 10, fx.shop.lines[0]["quantity"])
	props := fx.shop.lines[0]["properties"].(map[string]any)
	assert.Equal(t, "Classic", props["Design"])
	assert.Equal(t, "FC Beispiel", props["Teamname"])
	assert.Equal(t, []string{"old-token"}, fx.shop.cartCookies)
	assert.Equal(t, []string{"fresh-token"}, fx.shop.refreshCookies)
}

func TestWidgetSubmitWithoutCartCookieKeepsNewCart(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)
	base := "/api/v1/widgets/" + id

	fx.do(t, http.MethodPost, base+"/design", map[string]string{"handle": "trikot-classic"})
	fx.do(t, http.MethodPost, base+"/color", map[string]string{"name": "Rot"})

	resp, payload := fx.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cart := payload["cart"].(map[string]any)
	assert.Equal(t, "fresh-token", cart["token"])
	assert.EqualValues(t, 10, cart["item_count"])

	var relayed []string
	for _, c := range resp.Cookies() {
		if c.Name == "cart" {
			relayed = append(relayed, c.Value)
		}
	}
	assert.Equal(t, []string{"fresh-token"}, relayed)

	fx.shop.mu.Lock()
	defer fx.shop.mu.Unlock()
	assert.Empty(t, fx.shop.cartCookies)
	assert.Equal(t, []string{"fresh-token"}, fx.shop.refreshCookies)
}

func TestWidgetSubmitRejectedBeforeNetwork(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	resp, payload := fx.do(t, http.MethodPost, "/api/v1/widgets/"+id+"/submit", nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid_configuration", payload["error"])
	assert.Equal(t, i18n.MustLoad().T(i18n.KeySelectDesign), payload["userMessage"])
	assert.Contains(t, payload, "view")

	fx.shop.mu.Lock()
	defer fx.shop.mu.Unlock()
	assert.Empty(t, fx.shop.lines)
}

func TestWidgetSubmitMapsStorefrontRejection(t *testing.T) {
	fx := newAPIFixture(t)
	fx.shop.addStatus = http.StatusUnprocessableEntity
	id := fx.createSession(t)
	base := "/api/v1/widgets/" + id

	fx.do(t, http.MethodPost, base+"/design", map[string]string{"handle": "trikot-classic"})
	fx.do(t, http.MethodPost, base+"/color", map[string]string{"name": "Blau"})

	resp, payload := fx.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "cart_unavailable", payload["error"])
	assert.Equal(t, i18n.MustLoad().T(i18n.KeyInvalidConfiguration), payload["userMessage"])
	view := payload["view"].(map[string]any)
	assert.Equal(t, string(services.StageColorSelected), view["stage"])
}

func TestWidgetProductLoadFailureShowsMessage(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	resp, view := fx.do(t, http.MethodPost, "/api/v1/widgets/"+id+"/design", map[string]string{"handle": "trikot-missing"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	message := view["message"].(map[string]any)
	assert.Equal(t, i18n.MustLoad().T(i18n.KeyProductLoadFailed), message["text"])
	assert.Empty(t, view["colors"])
}

func TestWidgetEventErrors(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)
	base := "/api/v1/widgets/" + id

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"unknown design", http.MethodPost, base + "/design", map[string]string{"handle": "nope"}, http.StatusNotFound, "unknown_design"},
		{"colour before design", http.MethodPost, base + "/color", map[string]string{"name": "Rot"}, http.StatusConflict, "design_missing"},
		{"negative quantity", http.MethodPost, base + "/quantity", map[string]int{"quantity": -1}, http.StatusUnprocessableEntity, "invalid_quantity"},
		{"unknown size", http.MethodPost, base + "/sizes", map[string]any{"size": "XXXXL", "count": 2}, http.StatusUnprocessableEntity, "unknown_size"},
		{"unknown add-on", http.MethodPost, base + "/addons", map[string]any{"addOn": "sleeve", "enabled": true}, http.StatusUnprocessableEntity, "invalid_request"},
		{"row out of range", http.MethodPost, base + "/personalization", map[string]any{"row": 99, "field": "name", "value": "Max"}, http.StatusUnprocessableEntity, "invalid_personalization"},
		{"bad logo", http.MethodPut, base + "/team-logo", map[string]string{"url": "javascript:alert(1)"}, http.StatusUnprocessableEntity, "invalid_request"},
		{"malformed json", http.MethodPost, base + "/quantity", "{", http.StatusBadRequest, "invalid_request"},
		{"unknown field", http.MethodPost, base + "/quantity", map[string]int{"qty": 3}, http.StatusBadRequest, "invalid_request"},
		{"empty body", http.MethodPost, base + "/quantity", nil, http.StatusBadRequest, "invalid_request"},
		{"too large", http.MethodPut, base + "/team-name", map[string]string{"name": strings.Repeat("x", 2048)}, http.StatusRequestEntityTooLarge, "payload_too_large"},
		{"unknown session", http.MethodGet, "/api/v1/widgets/missing", nil, http.StatusNotFound, "session_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, payload := fx.do(t, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, payload["error"])
		})
	}
}

func TestWidgetQuantityAndPersonalization(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)
	base := "/api/v1/widgets/" + id

	resp, view := fx.do(t, http.MethodPost, base+"/quantity", map[string]int{"quantity": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, view["rows"], 3)

	resp, view = fx.do(t, http.MethodPost, base+"/addons", map[string]any{"addOn": "playerNames", "enabled": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	columns := view["columns"].(map[string]any)
	assert.Equal(t, true, columns["name"])

	resp, view = fx.do(t, http.MethodPost, base+"/personalization", map[string]any{"row": 1, "field": "Name", "value": "Lena"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rows := view["rows"].([]any)
	assert.Equal(t, "Lena", rows[1].(map[string]any)["name"])

	resp, view = fx.do(t, http.MethodPost, base+"/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, view["quantity"])
	assert.Equal(t, string(services.StageNoDesignSelected), view["stage"])
}

func TestWidgetDelete(t *testing.T) {
	fx := newAPIFixture(t)
	id := fx.createSession(t)

	resp, _ := fx.do(t, http.MethodDelete, "/api/v1/widgets/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, fx.sessions.Len())

	resp, _ = fx.do(t, http.MethodDelete, "/api/v1/widgets/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
