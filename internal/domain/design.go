package domain

// Legacy discount defaults applied when a design carries no explicit values.
const (
	DefaultDiscountPerTier = 5
	DefaultTierSize        = 10
	DefaultMaxDiscount     = 50
)

// Design is a purchasable base product offered by the configurator.
type Design struct {
	ProductID ID             `json:"productId"`
	Handle    string         `json:"handle"`
	Name      string         `json:"name"`
	BasePrice int64          `json:"basePrice"`
	Image     string         `json:"image,omitempty"`
	Discount  DiscountConfig `json:"discount"`
}

// LegacyDiscount grants PerTier percent for every full TierSize units, up to Max.
type LegacyDiscount struct {
	PerTier  int `json:"perTier"`
	TierSize int `json:"tierSize"`
	Max      int `json:"max"`
}

// Breakpoint grants Discount percent once the quantity reaches Quantity.
type Breakpoint struct {
	Quantity int `json:"quantity"`
	Discount int `json:"discount"`
}

// DiscountConfig holds both discount strategies of a design and the switches that
// choose between them.
type DiscountConfig struct {
	Legacy              LegacyDiscount `json:"legacy"`
	Breakpoints         []Breakpoint   `json:"breakpoints,omitempty"`
	UseDynamicDiscounts bool           `json:"useDynamicDiscounts"`
	// MaxDiscountLimit caps the breakpoint strategy; zero or less means 100.
	MaxDiscountLimit int `json:"maxDiscountLimit"`
	// BreakpointsOverride lets a non-empty breakpoint table win even when
	// UseDynamicDiscounts is off.
	BreakpointsOverride bool `json:"breakpointsOverride"`
	// Disabled is set when the breakpoint payload could not be parsed.
	Disabled bool `json:"disabled"`
}

// DefaultLegacyDiscount returns the stock 5% per 10 units, capped at 50%.
func DefaultLegacyDiscount() LegacyDiscount {
	return LegacyDiscount{PerTier: DefaultDiscountPerTier, TierSize: DefaultTierSize, Max: DefaultMaxDiscount}
}
