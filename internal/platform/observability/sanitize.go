package observability

import (
	"strings"
	"unicode"
)

const (
	routeLimit   = 180
	methodLimit  = 10
	sessionLimit = 64
	addressLimit = 64
)

// clip strips control characters (tabs survive) and keeps at most limit runes.
func clip(value string, limit int) string {
	var b strings.Builder
	b.Grow(len(value))
	n := 0
	for _, r := range value {
		if unicode.IsControl(r) && r != '\t' {
			continue
		}
		if n == limit {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// SanitizeRoute bounds a route pattern for logs; empty routes log as "/".
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clip(route, routeLimit)
}

// SanitizeMethod bounds an HTTP method for logs.
func SanitizeMethod(method string) string {
	return clip(method, methodLimit)
}

// SanitizeSessionID bounds widget session identifiers written to logs.
func SanitizeSessionID(id string) string {
	return clip(id, sessionLimit)
}
