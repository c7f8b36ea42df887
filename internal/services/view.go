package services

import (
	"fmt"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/i18n"
	"github.com/hanko-field/teamwear/internal/platform/money"
)

// View is the render-ready snapshot of a widget returned after every event.
type View struct {
	WidgetID        string                      `json:"widgetId"`
	Stage           Stage                       `json:"stage"`
	Valid           bool                        `json:"valid"`
	Submitting      bool                        `json:"submitting"`
	Designs         []DesignView                `json:"designs"`
	Colors          []ColorView                 `json:"colors"`
	VariantID       string                      `json:"variantId,omitempty"`
	PreviewImage    string                      `json:"previewImage,omitempty"`
	QuantityMode    QuantityMode                `json:"quantityMode"`
	Quantity        int                         `json:"quantity"`
	QuantityOptions []QuantityOptionView        `json:"quantityOptions"`
	Sizes           []SizeView                  `json:"sizes"`
	SizeTotal       int                         `json:"sizeTotal"`
	AddOns          []AddOnView                 `json:"addOns"`
	Columns         ColumnVisibility            `json:"columns"`
	Rows            []domain.PersonalizationRow `json:"rows"`
	TeamLogo        *domain.TeamLogo            `json:"teamLogo,omitempty"`
	TeamName        string                      `json:"teamName,omitempty"`
	Price           *PriceView                  `json:"price,omitempty"`
	Message         *Message                    `json:"message,omitempty"`
}

type DesignView struct {
	Handle         string `json:"handle"`
	Name           string `json:"name"`
	Image          string `json:"image,omitempty"`
	BasePrice      int64  `json:"basePrice"`
	BasePriceLabel string `json:"basePriceLabel"`
	Selected       bool   `json:"selected"`
}

type ColorView struct {
	Name      string `json:"name"`
	Key       string `json:"key"`
	Swatch    string `json:"swatch"`
	VariantID string `json:"variantId"`
	Selected  bool   `json:"selected"`
}

type QuantityOptionView struct {
	QuantityOption
	DiscountLabel string `json:"discountLabel"`
	PriceLabel    string `json:"priceLabel"`
	Active        bool   `json:"active"`
}

type SizeView struct {
	Size  string `json:"size"`
	Count int    `json:"count"`
}

type AddOnView struct {
	ID         domain.AddOn `json:"id"`
	Label      string       `json:"label"`
	Price      int64        `json:"price"`
	PriceLabel string       `json:"priceLabel"`
	Enabled    bool         `json:"enabled"`
}

type PriceView struct {
	Quote
	UnitLabel  string `json:"unitLabel"`
	TotalLabel string `json:"totalLabel"`
	Details    string `json:"details"`
}

// View renders the current state.
func (w *Widget) View() View {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state

	view := View{
		WidgetID:     w.id,
		Stage:        s.Stage,
		Valid:        s.Valid(),
		Submitting:   w.submitting,
		PreviewImage: s.PreviewImage,
		QuantityMode: s.QuantityMode,
		Quantity:     s.Quantity,
		SizeTotal:    s.SizeTotal(),
		Columns:      s.Columns,
		Rows:         append([]domain.PersonalizationRow{}, s.Rows...),
		TeamName:     s.TeamName,
		Message:      w.currentMessage(),
	}
	if s.TeamLogo != nil {
		logo := *s.TeamLogo
		view.TeamLogo = &logo
	}
	if s.Variant != nil {
		view.VariantID = s.Variant.ID.String()
	}

	view.Designs = make([]DesignView, 0, len(w.designOrder))
	for _, handle := range w.designOrder {
		design := w.designs[handle]
		view.Designs = append(view.Designs, DesignView{
			Handle:         design.Handle,
			Name:           design.Name,
			Image:          design.Image,
			BasePrice:      design.BasePrice,
			BasePriceLabel: w.formatter.Format(design.BasePrice),
			Selected:       s.Design != nil && s.Design.Handle == handle,
		})
	}

	view.Colors = make([]ColorView, 0, len(s.Colors))
	for _, color := range s.Colors {
		view.Colors = append(view.Colors, ColorView{
			Name:      color.Name,
			Key:       color.Key,
			Swatch:    color.Swatch,
			VariantID: color.VariantID.String(),
			Selected:  s.Color != nil && s.Color.Key == color.Key,
		})
	}

	view.QuantityOptions = []QuantityOptionView{}
	if s.Design != nil {
		for _, option := range QuantityPreview(w.quantityOptions, s.BasePrice, s.Design.Discount) {
			view.QuantityOptions = append(view.QuantityOptions, QuantityOptionView{
				QuantityOption: option,
				DiscountLabel:  w.discountLabel(option.DiscountPercent),
				PriceLabel:     fmt.Sprintf("%s %s", w.formatter.Format(option.UnitPrice), w.copy.T(i18n.KeyPerPiece)),
				Active:         option.Quantity == s.Quantity,
			})
		}
	}

	view.Sizes = make([]SizeView, 0, len(s.Sizes))
	for _, size := range s.Sizes {
		view.Sizes = append(view.Sizes, SizeView{Size: size, Count: s.SizeCounts[size]})
	}

	view.AddOns = make([]AddOnView, 0, len(domain.AddOns))
	for _, addOn := range domain.AddOns {
		price := w.addOnPrices[addOn]
		view.AddOns = append(view.AddOns, AddOnView{
			ID:         addOn,
			Label:      w.copy.T(i18n.AddOnKey(string(addOn))),
			Price:      price,
			PriceLabel: "+" + w.formatter.Format(price),
			Enabled:    s.AddOns[addOn],
		})
	}

	if s.Quote != nil {
		view.Price = w.priceView(*s.Quote)
	}
	return view
}

func (w *Widget) discountLabel(percent int) string {
	if percent > 0 {
		return fmt.Sprintf("-%s %s", money.PercentString(percent), w.copy.T(i18n.KeyDiscount))
	}
	return w.copy.T(i18n.KeyBasePrice)
}

func (w *Widget) priceView(q Quote) *PriceView {
	unit := w.formatter.Format(q.UnitPrice)
	details := w.copy.F(i18n.KeyPriceDetails, q.Quantity, unit)
	if q.DiscountPercent > 0 {
		details = w.copy.F(i18n.KeyPriceDetailsDiscount, q.Quantity, unit, q.DiscountPercent)
	}
	return &PriceView{
		Quote:      q,
		UnitLabel:  unit,
		TotalLabel: w.formatter.Format(q.Total),
		Details:    details,
	}
}
