package services

import (
	"math"

	"github.com/hanko-field/teamwear/internal/domain"
)

// PriceInput carries everything the calculator needs. Amounts are minor units.
type PriceInput struct {
	BasePrice       int64
	Quantity        int
	DiscountPercent int
	Surcharges      []int64
}

// Quote is a computed price.
type Quote struct {
	BasePrice       int64 `json:"basePrice"`
	DiscountPercent int   `json:"discountPercent"`
	DiscountedUnit  int64 `json:"discountedUnit"`
	Surcharge       int64 `json:"surcharge"`
	UnitPrice       int64 `json:"unitPrice"`
	Quantity        int   `json:"quantity"`
	Total           int64 `json:"total"`
}

// DiscountedUnitPrice applies percent to base, rounding half up to the nearest
// minor unit.
func DiscountedUnitPrice(base int64, percent int) int64 {
	if base <= 0 {
		return 0
	}
	percent = clampPercent(percent, maxPercent)
	remaining := int64(maxPercent - percent)
	if base > (math.MaxInt64-50)/maxPercent {
		// split to keep base*remaining in range
		return base/maxPercent*remaining + (base%maxPercent*remaining+50)/maxPercent
	}
	return (base*remaining + 50) / maxPercent
}

// CalculatePrice returns the per-unit and total price. ok is false when there is
// nothing to quote (non-positive base price or quantity) or the total overflows.
func CalculatePrice(in PriceInput) (Quote, bool) {
	if in.BasePrice <= 0 || in.Quantity <= 0 {
		return Quote{}, false
	}
	percent := clampPercent(in.DiscountPercent, maxPercent)
	discounted := DiscountedUnitPrice(in.BasePrice, percent)

	var surcharge int64
	for _, amount := range in.Surcharges {
		if amount <= 0 {
			continue
		}
		if surcharge > math.MaxInt64-amount {
			return Quote{}, false
		}
		surcharge += amount
	}
	if discounted > math.MaxInt64-surcharge {
		return Quote{}, false
	}
	unit := discounted + surcharge
	quantity := int64(in.Quantity)
	if unit > 0 && quantity > math.MaxInt64/unit {
		return Quote{}, false
	}

	return Quote{
		BasePrice:       in.BasePrice,
		DiscountPercent: percent,
		DiscountedUnit:  discounted,
		Surcharge:       surcharge,
		UnitPrice:       unit,
		Quantity:        in.Quantity,
		Total:           unit * quantity,
	}, true
}

// EnabledSurcharges collects the per-unit prices of the enabled add-ons in display order.
func EnabledSurcharges(enabled map[domain.AddOn]bool, prices map[domain.AddOn]int64) []int64 {
	if len(enabled) == 0 {
		return nil
	}
	surcharges := make([]int64, 0, len(enabled))
	for _, addOn := range domain.AddOns {
		if !enabled[addOn] {
			continue
		}
		if price := prices[addOn]; price > 0 {
			surcharges = append(surcharges, price)
		}
	}
	return surcharges
}
