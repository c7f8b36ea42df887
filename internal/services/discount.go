package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/platform/requestctx"
)

// ErrInvalidBreakpoints is returned when a serialized breakpoint table cannot be read.
var ErrInvalidBreakpoints = errors.New("discount: invalid breakpoint table")

const maxPercent = 100

var (
	breakpointQuantityKeys = []string{"quantity", "min_quantity", "minQuantity", "threshold"}
	breakpointDiscountKeys = []string{"discount", "percentage", "percent"}
)

// LegacyDiscountPercent applies the tier formula min(floor(q/tierSize)*perTier, max).
func LegacyDiscountPercent(quantity int, cfg domain.LegacyDiscount) int {
	if quantity <= 0 || cfg.TierSize <= 0 || cfg.PerTier <= 0 {
		return 0
	}
	percent := (quantity / cfg.TierSize) * cfg.PerTier
	return clampPercent(percent, cfg.Max)
}

// BreakpointDiscountPercent returns the largest discount among breakpoints whose
// threshold is met, capped at limit. Input order does not matter.
func BreakpointDiscountPercent(quantity int, breakpoints []domain.Breakpoint, limit int) int {
	if quantity <= 0 {
		return 0
	}
	if limit <= 0 {
		limit = maxPercent
	}
	best := 0
	for _, bp := range breakpoints {
		if bp.Quantity <= quantity && bp.Discount > best {
			best = bp.Discount
		}
	}
	return clampPercent(best, limit)
}

// UsesBreakpoints reports whether the breakpoint strategy is active for cfg.
func UsesBreakpoints(cfg domain.DiscountConfig) bool {
	if len(cfg.Breakpoints) == 0 {
		return false
	}
	return cfg.BreakpointsOverride || cfg.UseDynamicDiscounts
}

// DiscountPercent maps a quantity to the design's discount percentage.
func DiscountPercent(quantity int, cfg domain.DiscountConfig) int {
	if quantity <= 0 || cfg.Disabled {
		return 0
	}
	if UsesBreakpoints(cfg) {
		return BreakpointDiscountPercent(quantity, cfg.Breakpoints, cfg.MaxDiscountLimit)
	}
	return LegacyDiscountPercent(quantity, cfg.Legacy)
}

func clampPercent(percent, limit int) int {
	if limit < 0 {
		limit = 0
	}
	if limit > maxPercent {
		limit = maxPercent
	}
	if percent > limit {
		percent = limit
	}
	if percent < 0 {
		percent = 0
	}
	return percent
}

// ParseBreakpoints reads a JSON array of breakpoint objects. Values may be numbers
// or numeric strings; fractional values are floored. An empty input yields no table.
func ParseBreakpoints(raw string) ([]domain.Breakpoint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil, nil
	}
	var entries []map[string]json.RawMessage
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBreakpoints, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidBreakpoints)
	}

	breakpoints := make([]domain.Breakpoint, 0, len(entries))
	for i, entry := range entries {
		quantity, err := breakpointField(entry, breakpointQuantityKeys)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d quantity: %v", ErrInvalidBreakpoints, i, err)
		}
		discount, err := breakpointField(entry, breakpointDiscountKeys)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d discount: %v", ErrInvalidBreakpoints, i, err)
		}
		if quantity < 0 || discount < 0 {
			return nil, fmt.Errorf("%w: entry %d has negative values", ErrInvalidBreakpoints, i)
		}
		breakpoints = append(breakpoints, domain.Breakpoint{Quantity: quantity, Discount: discount})
	}
	if len(breakpoints) == 0 {
		return nil, nil
	}
	return breakpoints, nil
}

func breakpointField(entry map[string]json.RawMessage, keys []string) (int, error) {
	for _, key := range keys {
		value, ok := entry[key]
		if !ok {
			continue
		}
		return parseWholeNumber(value)
	}
	return 0, errors.New("missing")
}

func parseWholeNumber(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "%")
	}
	value, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("not a number: %s", string(raw))
	}
	if value.GreaterThan(decimal.NewFromInt(1_000_000)) {
		return 0, fmt.Errorf("out of range: %s", value.String())
	}
	return int(value.Floor().IntPart()), nil
}

// DiscountSettings is the raw discount configuration of a design as supplied by
// the catalogue or page data attributes.
type DiscountSettings struct {
	PerTier             int
	TierSize            int
	MaxDiscount         int
	Breakpoints         string
	UseDynamicDiscounts bool
	MaxDiscountLimit    int
	BreakpointsOverride bool
}

// NewDiscountConfig resolves raw settings into a DiscountConfig. Missing legacy
// values fall back to 5% per 10 units capped at 50%. A malformed breakpoint table
// disables discounting and is logged; it is never returned as an error.
func NewDiscountConfig(ctx context.Context, settings DiscountSettings) domain.DiscountConfig {
	legacy := domain.DefaultLegacyDiscount()
	if settings.PerTier > 0 {
		legacy.PerTier = settings.PerTier
	}
	if settings.TierSize > 0 {
		legacy.TierSize = settings.TierSize
	}
	if settings.MaxDiscount > 0 {
		legacy.Max = settings.MaxDiscount
	}

	cfg := domain.DiscountConfig{
		Legacy:              legacy,
		UseDynamicDiscounts: settings.UseDynamicDiscounts,
		MaxDiscountLimit:    settings.MaxDiscountLimit,
		BreakpointsOverride: settings.BreakpointsOverride,
	}

	breakpoints, err := ParseBreakpoints(settings.Breakpoints)
	if err != nil {
		requestctx.Logger(ctx).Warn("discount breakpoints rejected; discounting disabled",
			zap.Error(err),
			zap.Int("raw_length", len(settings.Breakpoints)),
		)
		cfg.Disabled = true
		return cfg
	}
	cfg.Breakpoints = breakpoints
	return cfg
}

// QuantityOption previews the discount and per-piece price of one offered quantity.
type QuantityOption struct {
	Quantity        int   `json:"quantity"`
	DiscountPercent int   `json:"discountPercent"`
	UnitPrice       int64 `json:"unitPrice"`
}

// QuantityPreview computes the discount and discounted per-piece price for each
// offered quantity. Non-positive options and a non-positive base price yield nothing.
func QuantityPreview(options []int, basePrice int64, cfg domain.DiscountConfig) []QuantityOption {
	if basePrice <= 0 || len(options) == 0 {
		return nil
	}
	preview := make([]QuantityOption, 0, len(options))
	for _, quantity := range options {
		if quantity <= 0 {
			continue
		}
		percent := DiscountPercent(quantity, cfg)
		preview = append(preview, QuantityOption{
			Quantity:        quantity,
			DiscountPercent: percent,
			UnitPrice:       DiscountedUnitPrice(basePrice, percent),
		})
	}
	return preview
}
