package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/platform/money"
	"github.com/hanko-field/teamwear/internal/platform/textutil"
)

// ErrEmptyCatalog is returned when the catalogue lists no designs.
var ErrEmptyCatalog = errors.New("config: catalogue has no designs")

// Catalog is the merchant-maintained description of the configurator: designs,
// add-on prices, colour swatches and copy overrides. Discount settings are kept
// raw; the widget layer resolves them.
type Catalog struct {
	Designs         []DesignSettings
	AddOnPrices     map[domain.AddOn]int64
	Swatches        map[string]string
	QuantityOptions []int
	Sizes           []string
	SizeAliases     map[string]string
	Translations    map[string]string
}

// DesignSettings is one catalogue design with its price in minor units.
type DesignSettings struct {
	Handle    string
	Name      string
	ProductID string
	BasePrice int64
	Image     string
	Discount  DiscountSettings
}

// DiscountSettings are the discount fields of a design as written. Breakpoints
// holds the table as JSON text. BreakpointsOverride already has the service-wide
// default applied.
type DiscountSettings struct {
	PerTier             int
	TierSize            int
	MaxDiscount         int
	Breakpoints         string
	UseDynamicDiscounts bool
	MaxDiscountLimit    int
	BreakpointsOverride bool
}

// Handles lists the design handles in catalogue order.
func (c Catalog) Handles() []string {
	out := make([]string, 0, len(c.Designs))
	for _, d := range c.Designs {
		out = append(out, d.Handle)
	}
	return out
}

type catalogFile struct {
	QuantityOptions []int                `yaml:"quantityOptions"`
	AddOnPrices     map[string]majorUnit `yaml:"addOnPrices"`
	Swatches        map[string]string    `yaml:"swatches"`
	Sizes           []string             `yaml:"sizes"`
	SizeAliases     map[string]string    `yaml:"sizeAliases"`
	Translations    map[string]string    `yaml:"translations"`
	Designs         []designEntry        `yaml:"designs"`
}

type designEntry struct {
	Handle    string        `yaml:"handle"`
	Name      string        `yaml:"name"`
	ProductID string        `yaml:"productId"`
	BasePrice majorUnit     `yaml:"basePrice"`
	Image     string        `yaml:"image"`
	Discount  discountEntry `yaml:"discount"`
}

type discountEntry struct {
	PerTier             int            `yaml:"perTier"`
	TierSize            int            `yaml:"tierSize"`
	MaxDiscount         int            `yaml:"maxDiscount"`
	Breakpoints         rawBreakpoints `yaml:"breakpoints"`
	UseDynamicDiscounts bool           `yaml:"useDynamicDiscounts"`
	MaxDiscountLimit    int            `yaml:"maxDiscountLimit"`
	BreakpointsOverride *bool          `yaml:"breakpointsOverride"`
}

// majorUnit is a price written in major units ("20.00", 19.9 or 20).
type majorUnit int64

func (m *majorUnit) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a scalar", node.Line)
	}
	minor, err := money.ParseMajor(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = majorUnit(minor)
	return nil
}

// rawBreakpoints keeps the breakpoint table as the JSON text the discount parser
// expects. It accepts either a JSON string or a YAML list of mappings.
type rawBreakpoints string

func (r *rawBreakpoints) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*r = rawBreakpoints(node.Value)
		return nil
	case yaml.SequenceNode:
		var entries []map[string]any
		if err := node.Decode(&entries); err != nil {
			return err
		}
		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*r = rawBreakpoints(data)
		return nil
	default:
		return fmt.Errorf("line %d: breakpoints must be a string or a list", node.Line)
	}
}

// LoadCatalog reads the YAML catalogue at path.
func LoadCatalog(ctx context.Context, path string, widget WidgetConfig) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("config: read catalogue: %w", err)
	}
	return ParseCatalog(ctx, data, widget)
}

// ParseCatalog validates a YAML catalogue document. Breakpoint tables are not
// interpreted here; a malformed table is the widget layer's concern.
func ParseCatalog(_ context.Context, data []byte, widget WidgetConfig) (Catalog, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return Catalog{}, fmt.Errorf("config: parse catalogue: %w", err)
	}
	if len(file.Designs) == 0 {
		return Catalog{}, ErrEmptyCatalog
	}

	catalog := Catalog{
		AddOnPrices:     make(map[domain.AddOn]int64, len(file.AddOnPrices)),
		Swatches:        textutil.NormalizeStringMap(file.Swatches),
		QuantityOptions: append([]int(nil), file.QuantityOptions...),
		Sizes:           append([]string(nil), file.Sizes...),
		SizeAliases:     textutil.NormalizeStringMap(file.SizeAliases),
		Translations:    textutil.NormalizeStringMap(file.Translations),
	}
	for name, price := range file.AddOnPrices {
		addOn := domain.AddOn(strings.TrimSpace(name))
		if !addOn.Valid() {
			return Catalog{}, fmt.Errorf("config: unknown add-on %q", name)
		}
		catalog.AddOnPrices[addOn] = int64(price)
	}
	for _, q := range catalog.QuantityOptions {
		if q <= 0 {
			return Catalog{}, fmt.Errorf("config: quantity option %d must be positive", q)
		}
	}

	seen := make(map[string]struct{}, len(file.Designs))
	var invalid []string
	for i, entry := range file.Designs {
		handle := strings.TrimSpace(entry.Handle)
		switch {
		case handle == "":
			invalid = append(invalid, fmt.Sprintf("designs[%d].handle", i))
			continue
		case entry.BasePrice <= 0:
			invalid = append(invalid, fmt.Sprintf("designs[%d].basePrice", i))
			continue
		}
		if _, dup := seen[handle]; dup {
			invalid = append(invalid, fmt.Sprintf("designs[%d].handle", i))
			continue
		}
		seen[handle] = struct{}{}

		override := widget.BreakpointsOverride
		if entry.Discount.BreakpointsOverride != nil {
			override = *entry.Discount.BreakpointsOverride
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = handle
		}
		catalog.Designs = append(catalog.Designs, DesignSettings{
			Handle:    handle,
			Name:      name,
			ProductID: strings.TrimSpace(entry.ProductID),
			BasePrice: int64(entry.BasePrice),
			Image:     strings.TrimSpace(entry.Image),
			Discount: DiscountSettings{
				PerTier:             entry.Discount.PerTier,
				TierSize:            entry.Discount.TierSize,
				MaxDiscount:         entry.Discount.MaxDiscount,
				Breakpoints:         strings.TrimSpace(string(entry.Discount.Breakpoints)),
				UseDynamicDiscounts: entry.Discount.UseDynamicDiscounts,
				MaxDiscountLimit:    entry.Discount.MaxDiscountLimit,
				BreakpointsOverride: override,
			},
		})
	}
	if len(invalid) > 0 {
		return Catalog{}, &ValidationError{fields: invalid}
	}
	return catalog, nil
}
