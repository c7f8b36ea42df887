package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/i18n"
	"github.com/hanko-field/teamwear/internal/platform/httpx"
	"github.com/hanko-field/teamwear/internal/platform/money"
	"github.com/hanko-field/teamwear/internal/services"
)

// DesignHandlers serves the read-only design catalogue with quantity previews.
type DesignHandlers struct {
	designs   []domain.Design
	options   []int
	formatter *money.Formatter
	copy      *i18n.Bundle
}

// NewDesignHandlers constructs catalogue handlers.
func NewDesignHandlers(designs []domain.Design, quantityOptions []int, formatter *money.Formatter, bundle *i18n.Bundle) *DesignHandlers {
	if formatter == nil {
		formatter = money.NewFormatter("")
	}
	if bundle == nil {
		bundle = i18n.MustLoad()
	}
	return &DesignHandlers{
		designs:   append([]domain.Design(nil), designs...),
		options:   append([]int(nil), quantityOptions...),
		formatter: formatter,
		copy:      bundle,
	}
}

// Routes wires the /designs endpoints onto the provided router.
func (h *DesignHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listDesigns)
	r.Get("/{handle}", h.getDesign)
}

type designPayload struct {
	Handle          string                  `json:"handle"`
	Name            string                  `json:"name"`
	Image           string                  `json:"image,omitempty"`
	BasePrice       int64                   `json:"basePrice"`
	BasePriceLabel  string                  `json:"basePriceLabel"`
	QuantityOptions []quantityOptionPayload `json:"quantityOptions"`
}

type quantityOptionPayload struct {
	services.QuantityOption
	DiscountLabel string `json:"discountLabel"`
	PriceLabel    string `json:"priceLabel"`
}

func (h *DesignHandlers) listDesigns(w http.ResponseWriter, r *http.Request) {
	items := make([]designPayload, 0, len(h.designs))
	for _, design := range h.designs {
		items = append(items, h.payload(design))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"designs": items})
}

func (h *DesignHandlers) getDesign(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "handle")
	for _, design := range h.designs {
		if design.Handle == handle {
			httpx.WriteJSON(w, http.StatusOK, h.payload(design))
			return
		}
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("unknown_design", fmt.Sprintf("design %q not found", handle), http.StatusNotFound).
		WithUserMessage(h.copy.T(i18n.KeySelectDesign)))
}

func (h *DesignHandlers) payload(design domain.Design) designPayload {
	preview := services.QuantityPreview(h.options, design.BasePrice, design.Discount)
	options := make([]quantityOptionPayload, 0, len(preview))
	for _, option := range preview {
		label := h.copy.T(i18n.KeyBasePrice)
		if option.DiscountPercent > 0 {
			label = fmt.Sprintf("-%s %s", money.PercentString(option.DiscountPercent), h.copy.T(i18n.KeyDiscount))
		}
		options = append(options, quantityOptionPayload{
			QuantityOption: option,
			DiscountLabel:  label,
			PriceLabel:     fmt.Sprintf("%s %s", h.formatter.Format(option.UnitPrice), h.copy.T(i18n.KeyPerPiece)),
		})
	}
	return designPayload{
		Handle:          design.Handle,
		Name:            design.Name,
		Image:           design.Image,
		BasePrice:       design.BasePrice,
		BasePriceLabel:  h.formatter.Format(design.BasePrice),
		QuantityOptions: options,
	}
}
