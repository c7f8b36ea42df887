package services

import (
	"errors"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/i18n"
)

// Stage is the configurator's progress through design and colour selection.
type Stage string

const (
	StageNoDesignSelected Stage = "no_design_selected"
	StageLoadingColors    Stage = "loading_colors"
	StageColorsReady      Stage = "colors_ready"
	StageColorSelected    Stage = "color_selected"
)

// QuantityMode decides where the quantity comes from.
type QuantityMode string

const (
	// QuantityFree takes the quantity from a direct choice; a size breakdown is
	// optional but must add up when given.
	QuantityFree QuantityMode = "free"
	// QuantityFromSizes derives the quantity from the per-size counts.
	QuantityFromSizes QuantityMode = "sizes"
)

// Valid reports whether the mode is known.
func (m QuantityMode) Valid() bool {
	return m == QuantityFree || m == QuantityFromSizes
}

var (
	ErrDesignMissing   = errors.New("form: design not selected")
	ErrColorMissing    = errors.New("form: color not resolved")
	ErrQuantityMissing = errors.New("form: quantity not set")
	ErrSizesMismatch   = errors.New("form: size counts do not match quantity")
)

// FormState is everything the shopper has configured so far.
type FormState struct {
	Stage        Stage
	Design       *domain.Design
	Product      *domain.Product
	ColorAxis    int
	Colors       []domain.Color
	Color        *domain.Color
	Variant      *domain.Variant
	PreviewImage string
	Sizes        []string

	QuantityMode QuantityMode
	Quantity     int
	SizeCounts   map[string]int

	AddOns   map[domain.AddOn]bool
	Columns  ColumnVisibility
	Rows     []domain.PersonalizationRow
	TeamLogo *domain.TeamLogo
	TeamName string

	BasePrice       int64
	DiscountPercent int
	Quote           *Quote
}

func newFormState(mode QuantityMode) FormState {
	if !mode.Valid() {
		mode = QuantityFree
	}
	return FormState{
		Stage:        StageNoDesignSelected,
		ColorAxis:    NoColorAxis,
		Sizes:        append([]string(nil), DefaultSizes...),
		QuantityMode: mode,
		SizeCounts:   map[string]int{},
		AddOns:       map[domain.AddOn]bool{},
		Rows:         []domain.PersonalizationRow{},
	}
}

// SizeTotal sums the per-size counts.
func (s FormState) SizeTotal() int {
	total := 0
	for _, n := range s.SizeCounts {
		total += n
	}
	return total
}

// quantityConsistent is the single quantity rule: a positive quantity whose size
// breakdown, when present, adds up exactly. In QuantityFromSizes mode the breakdown
// is required.
func (s FormState) quantityConsistent() bool {
	if s.Quantity <= 0 {
		return false
	}
	total := s.SizeTotal()
	if s.QuantityMode == QuantityFromSizes {
		return total == s.Quantity
	}
	return total == 0 || total == s.Quantity
}

func (s FormState) hasColorAndVariant() bool {
	if s.Color == nil || s.Variant == nil {
		return false
	}
	_, ok := s.Variant.ID.Int64()
	return ok
}

// Valid gates the submit action.
func (s FormState) Valid() bool {
	return s.Design != nil && s.hasColorAndVariant() && s.quantityConsistent()
}

// CheckSubmittable returns the first reason the state cannot be submitted.
func (s FormState) CheckSubmittable() error {
	switch {
	case s.Design == nil:
		return ErrDesignMissing
	case !s.hasColorAndVariant():
		return ErrColorMissing
	case s.Quantity <= 0:
		return ErrQuantityMissing
	case !s.quantityConsistent():
		return ErrSizesMismatch
	}
	return ValidateRows(s.Rows, s.Quantity, s.Columns, s.Sizes)
}

// messageKeyFor maps precondition failures to shopper-facing copy.
func messageKeyFor(err error) string {
	switch {
	case errors.Is(err, ErrDesignMissing):
		return i18n.KeySelectDesign
	case errors.Is(err, ErrColorMissing):
		return i18n.KeySelectColor
	case errors.Is(err, ErrQuantityMissing):
		return i18n.KeySelectQuantity
	case errors.Is(err, ErrSizesMismatch):
		return i18n.KeyCorrectSizes
	case errors.Is(err, ErrPersonalizationInvalid):
		return i18n.KeyCorrectPersonalization
	case errors.Is(err, ErrTooManyProperties):
		return i18n.KeyTooManyProperties
	default:
		return i18n.KeyError
	}
}

func (s *FormState) clone() FormState {
	out := *s
	out.Colors = append([]domain.Color(nil), s.Colors...)
	out.Sizes = append([]string(nil), s.Sizes...)
	out.Rows = append([]domain.PersonalizationRow{}, s.Rows...)
	out.SizeCounts = make(map[string]int, len(s.SizeCounts))
	for k, v := range s.SizeCounts {
		out.SizeCounts[k] = v
	}
	out.AddOns = make(map[domain.AddOn]bool, len(s.AddOns))
	for k, v := range s.AddOns {
		out.AddOns[k] = v
	}
	if s.Quote != nil {
		q := *s.Quote
		out.Quote = &q
	}
	return out
}
