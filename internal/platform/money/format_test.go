package money

import (
	"errors"
	"testing"
)

func TestFormatterFallback(t *testing.T) {
	f := NewFormatter("")
	cases := map[int64]string{
		0:      "€0.00",
		1700:   "€17.00",
		51000:  "€510.00",
		123456: "€1234.56",
		-250:   "€-2.50",
	}
	for minor, want := range cases {
		if got := f.Format(minor); got != want {
			t.Errorf("Format(%d) = %q, want %q", minor, got, want)
		}
	}
}

func TestFormatterTemplates(t *testing.T) {
	tests := []struct {
		template string
		minor    int64
		want     string
	}{
		{"€{{amount}}", 123456, "€1,234.56"},
		{"{{amount_with_comma_separator}} €", 123456, "1.234,56 €"},
		{"{{ amount_no_decimals }} EUR", 123450, "1,235 EUR"},
		{"{{amount_no_decimals_with_comma_separator}}€", 99, "1€"},
		{"CHF {{amount_with_apostrophe_separator}}", 100000000, "CHF 1'000'000.00"},
		{`<span class="money">{{amount_with_comma_separator}} €</span>`, 2000, "20,00 €"},
	}
	for _, tc := range tests {
		f := NewFormatter(tc.template)
		if got := f.Format(tc.minor); got != tc.want {
			t.Errorf("template %q Format(%d) = %q, want %q", tc.template, tc.minor, got, tc.want)
		}
	}
}

func TestFormatterIgnoresTemplateWithoutPlaceholder(t *testing.T) {
	f := NewFormatter("EUR")
	if got := f.Format(500); got != "€5.00" {
		t.Fatalf("expected fallback for template without placeholder, got %q", got)
	}
}

func TestParseMajor(t *testing.T) {
	cases := map[string]int64{
		"20.00":    2000,
		"20":       2000,
		"19,90":    1990,
		"1.234,50": 123450,
		"1,234.50": 123450,
		"€ 5.5":    550,
		"0.005":    1,
	}
	for in, want := range cases {
		got, err := ParseMajor(in)
		if err != nil {
			t.Fatalf("ParseMajor(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseMajor(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseMajorRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "abc", "-3.00"} {
		if _, err := ParseMajor(in); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseMajor(%q) expected ErrInvalidAmount, got %v", in, err)
		}
	}
}
