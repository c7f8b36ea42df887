// Package money formats and parses shop amounts. Amounts are carried as integer
// minor units (cents) everywhere; strings only exist at the display boundary.
package money

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when an amount string cannot be parsed.
var ErrInvalidAmount = errors.New("money: invalid amount")

var placeholderPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Formatter renders minor-unit amounts using the shop's money format template,
// falling back to "€12.34" when no template is configured.
type Formatter struct {
	template string
}

// NewFormatter builds a Formatter. Markup in the template (shops often wrap the
// amount in a span) is stripped.
func NewFormatter(template string) *Formatter {
	template = strings.TrimSpace(template)
	if template != "" {
		template = html.UnescapeString(bluemonday.StrictPolicy().Sanitize(template))
		if !placeholderPattern.MatchString(template) {
			template = ""
		}
	}
	return &Formatter{template: template}
}

// Format renders minor units as a display string.
func (f *Formatter) Format(minor int64) string {
	if f == nil || f.template == "" {
		return Fallback(minor)
	}
	return placeholderPattern.ReplaceAllStringFunc(f.template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		return formatPlaceholder(name, minor)
	})
}

// Fallback renders the fixed euro format used when the shop exposes no template.
func Fallback(minor int64) string {
	return "€" + withDelimiters(minor, 2, "", ".")
}

func formatPlaceholder(name string, minor int64) string {
	switch name {
	case "amount_no_decimals":
		return withDelimiters(minor, 0, ",", ".")
	case "amount_with_comma_separator":
		return withDelimiters(minor, 2, ".", ",")
	case "amount_no_decimals_with_comma_separator":
		return withDelimiters(minor, 0, ".", ",")
	case "amount_with_apostrophe_separator":
		return withDelimiters(minor, 2, "'", ".")
	case "amount_with_space_separator":
		return withDelimiters(minor, 2, " ", ",")
	case "amount_no_decimals_with_space_separator":
		return withDelimiters(minor, 0, " ", ",")
	default:
		return withDelimiters(minor, 2, ",", ".")
	}
}

// withDelimiters renders minor units with the given precision (0 or 2) rounding
// half away from zero.
func withDelimiters(minor int64, precision int, thousands, decimalSep string) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	major := minor / 100
	cents := minor % 100
	if precision == 0 && cents >= 50 {
		major++
	}

	digits := fmt.Sprintf("%d", major)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range digits {
		if i != 0 && thousands != "" && (len(digits)-i)%3 == 0 {
			b.WriteString(thousands)
		}
		b.WriteRune(c)
	}
	if precision > 0 {
		b.WriteString(decimalSep)
		b.WriteString(fmt.Sprintf("%02d", cents))
	}
	return b.String()
}

// ParseMajor parses a major-unit amount such as "20.00", "19,90" or "1.234,50"
// into minor units. Fractions beyond cents are rounded half up.
func ParseMajor(value string) (int64, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "€")
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	lastDot := strings.LastIndex(value, ".")
	lastComma := strings.LastIndex(value, ",")
	switch {
	case lastComma > lastDot:
		value = strings.ReplaceAll(value, ".", "")
		value = strings.Replace(value, ",", ".", 1)
	case lastDot > lastComma && lastComma >= 0:
		value = strings.ReplaceAll(value, ",", "")
	}

	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: negative amount %q", ErrInvalidAmount, value)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}

// PercentString renders a whole percentage like "15%".
func PercentString(percent int) string {
	return fmt.Sprintf("%d%%", percent)
}
