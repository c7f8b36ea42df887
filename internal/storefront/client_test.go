package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanko-field/teamwear/internal/domain"
)

const productPayload = `{
  "id": 9001,
  "handle": "trikot-classic",
  "title": "Trikot Classic",
  "options": ["Farbe", "Größe"],
  "variants": [
    {"id": 501, "title": "Rot / M", "price": 2000, "option1": "Rot", "option2": "M", "available": true},
    {"id": 502, "title": "Blau / M", "price": 2000, "option1": "Blau", "option2": "M", "available": true}
  ],
  "images": [{"id": 77, "src": "//cdn.example/rot.jpg", "variant_ids": [501]}]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.URL + "/")
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := NewClient("  ")
	require.ErrorIs(t, err, ErrMissingBaseURL)

	_, err = NewClient("ftp://shop.example")
	require.Error(t, err)
}

func TestClientProduct(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/products/trikot-classic.js", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = io.WriteString(w, productPayload)
	})

	product, err := client.Product(context.Background(), " trikot-classic ")
	require.NoError(t, err)
	assert.Equal(t, "Trikot Classic", product.Title)
	require.Len(t, product.Variants, 2)
	assert.Equal(t, domain.ID("501"), product.Variants[0].ID)
	assert.Equal(t, domain.Minor(2000), product.Variants[0].Price)
}

func TestClientProductRejectsBadHandle(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected request %s", r.URL.Path)
	})
	for _, handle := range []string{"", "a/b", "x?y"} {
		_, err := client.Product(context.Background(), handle)
		assert.ErrorIs(t, err, ErrInvalidHandle, handle)
	}
}

func TestClientProductNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "<html>not here</html>")
	})

	_, err := client.Product(context.Background(), "missing")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode())
	assert.Equal(t, "Not Found", statusErr.Message)
}

func TestClientAddToCart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/cart/add.js", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		cookie, err := r.Cookie("cart")
		require.NoError(t, err)
		assert.Equal(t, "abc", cookie.Value)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":501,"quantity":12,"properties":{"_teamwear_set":"1","Design":"Classic"}}`, string(body))

		http.SetCookie(w, &http.Cookie{Name: "cart", Value: "def"})
		_, _ = io.WriteString(w, `{"key":"501:k","id":501,"variant_id":501,"quantity":12,"price":2000,"line_price":24000}`)
	})

	ctx, jar := WithCartCookies(context.Background(), []*http.Cookie{{Name: "cart", Value: "abc"}})
	item, err := client.AddToCart(ctx, domain.CartLine{
		VariantID: 501,
		Quantity:  12,
		Properties: []domain.Property{
			{Name: "_teamwear_set", Value: "1"},
			{Name: "Design", Value: "Classic"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 12, item.Quantity)
	assert.Equal(t, domain.Minor(24000), item.LinePrice)

	cookies := jar.ResponseCookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "def", cookies[0].Value)
}

func TestClientAddToCartUnprocessable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      422,
			"message":     "Cart Error",
			"description": "All 12 Trikot Classic are in your cart.",
		})
	})

	_, err := client.AddToCart(context.Background(), domain.CartLine{VariantID: 501, Quantity: 12})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 422, statusErr.Status)
	assert.Equal(t, "Cart Error", statusErr.Message)
	assert.Contains(t, statusErr.Error(), "All 12 Trikot Classic")
}

func TestClientCart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart.js", r.URL.Path)
		_, _ = io.WriteString(w, `{"token":"t1","item_count":13,"total_price":26000,"currency":"EUR","items":[]}`)
	})

	cart, err := client.Cart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 13, cart.ItemCount)
	assert.Equal(t, domain.Minor(26000), cart.TotalPrice)
	assert.Equal(t, "EUR", cart.Currency)
}

func TestClientReusesCartCreatedDuringSubmission(t *testing.T) {
	var (
		mu     sync.Mutex
		issued int
		items  = map[string]int{}
	)
	cartToken := func(w http.ResponseWriter, r *http.Request) string {
		if cookie, err := r.Cookie("cart"); err == nil && cookie.Value != "" {
			return cookie.Value
		}
		issued++
		token := "c" + strconv.Itoa(issued)
		http.SetCookie(w, &http.Cookie{Name: "cart", Value: token, Path: "/"})
		return token
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		token := cartToken(w, r)
		switch r.URL.Path {
		case "/cart/add.js":
			items[token] += 30
			_, _ = io.WriteString(w, `{"id":501,"variant_id":501,"quantity":30}`)
		case "/cart.js":
			_, _ = io.WriteString(w, `{"token":"`+token+`","item_count":`+strconv.Itoa(items[token])+`}`)
		}
	})

	ctx, jar := WithCartCookies(context.Background(), nil)
	_, err := client.AddToCart(ctx, domain.CartLine{VariantID: 501, Quantity: 30})
	require.NoError(t, err)
	cart, err := client.Cart(ctx)
	require.NoError(t, err)

	assert.Equal(t, "c1", cart.Token)
	assert.Equal(t, 30, cart.ItemCount)
	assert.Equal(t, 1, issued)
	cookies := jar.ResponseCookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "c1", cookies[0].Value)
}

func TestCookieJarOverlaysStorefrontCookies(t *testing.T) {
	_, jar := WithCartCookies(context.Background(), []*http.Cookie{
		{Name: "cart", Value: "old"},
		{Name: "localization", Value: "DE"},
		{Name: "discount", Value: "TEAM10"},
	})
	jar.record([]*http.Cookie{
		{Name: "cart", Value: "new"},
		{Name: "discount", Value: "", MaxAge: -1},
	})

	got := map[string]string{}
	for _, cookie := range jar.outgoing() {
		got[cookie.Name] = cookie.Value
	}
	assert.Equal(t, map[string]string{"cart": "new", "localization": "DE"}, got)
}

func TestClientTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client, err := NewClient(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = client.Cart(context.Background())
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestDescribeFieldErrors(t *testing.T) {
	got := describe(json.RawMessage(`{"quantity":["must be positive"]}`))
	assert.Equal(t, "quantity: [must be positive]", got)
	assert.Empty(t, describe(nil))
}
