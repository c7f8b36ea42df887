package main

import (
	"context"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/platform/config"
	"github.com/hanko-field/teamwear/internal/services"
)

// resolveDesigns turns catalogue entries into widget designs. A malformed
// breakpoint table disables discounting for that design and is logged through
// ctx; it never fails startup.
func resolveDesigns(ctx context.Context, entries []config.DesignSettings) []domain.Design {
	designs := make([]domain.Design, 0, len(entries))
	for _, entry := range entries {
		d := entry.Discount
		designs = append(designs, domain.Design{
			ProductID: domain.ID(entry.ProductID),
			Handle:    entry.Handle,
			Name:      entry.Name,
			BasePrice: entry.BasePrice,
			Image:     entry.Image,
			Discount: services.NewDiscountConfig(ctx, services.DiscountSettings{
				PerTier:             d.PerTier,
				TierSize:            d.TierSize,
				MaxDiscount:         d.MaxDiscount,
				Breakpoints:         d.Breakpoints,
				UseDynamicDiscounts: d.UseDynamicDiscounts,
				MaxDiscountLimit:    d.MaxDiscountLimit,
				BreakpointsOverride: d.BreakpointsOverride,
			}),
		})
	}
	return designs
}

func sizeVocabulary(catalog config.Catalog) services.SizeVocabulary {
	if len(catalog.Sizes) == 0 {
		return services.DefaultSizeVocabulary()
	}
	return services.NewSizeVocabulary(catalog.Sizes, catalog.SizeAliases)
}
