package storefront

import (
	"context"
	"net/http"
	"sync"
)

type cookieKey struct{}

// CookieJar carries the shopper's cart cookies into storefront calls and collects
// any cookies the storefront sets in return.
type CookieJar struct {
	request []*http.Cookie

	mu       sync.Mutex
	response []*http.Cookie
}

// WithCartCookies forwards the shopper's cookies on every storefront request made
// with the returned context.
func WithCartCookies(ctx context.Context, cookies []*http.Cookie) (context.Context, *CookieJar) {
	jar := &CookieJar{request: append([]*http.Cookie(nil), cookies...)}
	return context.WithValue(ctx, cookieKey{}, jar), jar
}

// ResponseCookies returns cookies set by the storefront, last write per name wins.
func (j *CookieJar) ResponseCookies() []*http.Cookie {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*http.Cookie(nil), j.response...)
}

// outgoing returns the shopper's cookies overlaid by name with those the storefront
// set earlier in the same submission, so a freshly created cart is reused.
// Cookies the storefront expired are not sent.
func (j *CookieJar) outgoing() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*http.Cookie, 0, len(j.request)+len(j.response))
	set := make(map[string]*http.Cookie, len(j.response))
	for _, cookie := range j.response {
		set[cookie.Name] = cookie
	}
	for _, cookie := range j.request {
		if _, ok := set[cookie.Name]; !ok {
			out = append(out, cookie)
		}
	}
	for _, cookie := range j.response {
		if cookie.MaxAge < 0 || cookie.Value == "" {
			continue
		}
		out = append(out, &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	return out
}

func (j *CookieJar) record(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, cookie := range cookies {
		replaced := false
		for i, existing := range j.response {
			if existing.Name == cookie.Name {
				j.response[i] = cookie
				replaced = true
				break
			}
		}
		if !replaced {
			j.response = append(j.response, cookie)
		}
	}
}

func cookiesFrom(ctx context.Context) *CookieJar {
	jar, _ := ctx.Value(cookieKey{}).(*CookieJar)
	return jar
}
