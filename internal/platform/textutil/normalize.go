package textutil

import (
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Ellipsis marks values cut at a length boundary.
const Ellipsis = "…"

var (
	folder       = cases.Fold()
	strictPolicy = bluemonday.StrictPolicy()
)

// NormalizeKey folds case, composes Unicode and collapses whitespace so that
// "Rot", "rot " and " ROT" compare equal.
func NormalizeKey(value string) string {
	value = norm.NFC.String(value)
	value = folder.String(value)
	return strings.Join(strings.Fields(value), " ")
}

// CleanDisplay trims and collapses whitespace while keeping the original casing.
func CleanDisplay(value string) string {
	return strings.Join(strings.Fields(norm.NFC.String(value)), " ")
}

// SanitizeText strips markup and control characters from shopper input.
func SanitizeText(value string) string {
	if value == "" {
		return ""
	}
	value = html.UnescapeString(strictPolicy.Sanitize(value))
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, value)
	return CleanDisplay(value)
}

// Truncate limits value to max runes; cut values end with Ellipsis, which counts
// towards the limit.
func Truncate(value string, max int) string {
	if max <= 0 || utf8.RuneCountInString(value) <= max {
		return value
	}
	ellipsisLen := utf8.RuneCountInString(Ellipsis)
	if max <= ellipsisLen {
		return string([]rune(value)[:max])
	}
	runes := []rune(value)
	return strings.TrimRightFunc(string(runes[:max-ellipsisLen]), unicode.IsSpace) + Ellipsis
}

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
