package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/i18n"
	"github.com/hanko-field/teamwear/internal/platform/money"
	"github.com/hanko-field/teamwear/internal/platform/textutil"
)

// MarkerProperty flags cart lines created by the configurator. Underscore-prefixed
// properties are hidden from the shopper at checkout.
const MarkerProperty = "_teamwear_set"

const (
	DefaultMaxProperties     = 100
	DefaultMaxPropertyLength = 255
)

var (
	// ErrSubmissionInProgress is returned while another submission is running.
	ErrSubmissionInProgress = errors.New("submission: already in progress")
	// ErrCartUnavailable wraps failures of the cart side effect.
	ErrCartUnavailable = errors.New("submission: cart request failed")
	// ErrTooManyProperties is returned when the order data alone exceeds the
	// property limit of a cart line.
	ErrTooManyProperties = errors.New("submission: order data exceeds the cart property limit")
)

// SubmissionErrorKind classifies submission failures.
type SubmissionErrorKind string

const (
	SubmissionValidation SubmissionErrorKind = "validation"
	SubmissionTransport  SubmissionErrorKind = "transport"
	SubmissionBusy       SubmissionErrorKind = "busy"
)

// SubmissionError carries the shopper-facing message of a failed submission.
type SubmissionError struct {
	Kind    SubmissionErrorKind
	Message string
	Err     error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("submission %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("submission %s: %v", e.Kind, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// PropertyLimits bounds the property map of a cart line.
type PropertyLimits struct {
	MaxCount       int
	MaxValueLength int
}

func (l PropertyLimits) withDefaults() PropertyLimits {
	if l.MaxCount <= 0 {
		l.MaxCount = DefaultMaxProperties
	}
	if l.MaxValueLength <= 0 {
		l.MaxValueLength = DefaultMaxPropertyLength
	}
	return l
}

// LineBuilder turns a submittable form state into a cart line.
type LineBuilder struct {
	Copy        *i18n.Bundle
	Formatter   *money.Formatter
	AddOnPrices map[domain.AddOn]int64
	Limits      PropertyLimits
}

type property struct {
	domain.Property
	essential bool
}

// Build serializes state. It fails with the precondition error when the state is
// not submittable, and with ErrTooManyProperties when the essential properties
// (design, colour, quantity, logo, team name, sizes and player rows) do not fit
// the property limit. Dropped lists the price summaries removed to fit.
func (b LineBuilder) Build(state FormState) (domain.CartLine, []string, error) {
	if err := state.CheckSubmittable(); err != nil {
		return domain.CartLine{}, nil, err
	}
	variantID, _ := state.Variant.ID.Int64()

	limits := b.Limits.withDefaults()
	props := b.properties(state)
	if n := essentialCount(props); n > limits.MaxCount {
		return domain.CartLine{}, nil, fmt.Errorf("%w: %d essential properties, limit %d", ErrTooManyProperties, n, limits.MaxCount)
	}
	props, dropped := fitProperties(props, limits)

	out := make([]domain.Property, 0, len(props))
	for _, p := range props {
		out = append(out, p.Property)
	}
	return domain.CartLine{VariantID: variantID, Quantity: state.Quantity, Properties: out}, dropped, nil
}

func (b LineBuilder) properties(state FormState) []property {
	msg := b.Copy
	props := make([]property, 0, 16+len(state.Rows))
	add := func(name, value string, essential bool) {
		if value == "" {
			return
		}
		props = append(props, property{Property: domain.Property{Name: name, Value: value}, essential: essential})
	}

	designName := textutil.CleanDisplay(state.Design.Name)
	if designName == "" {
		designName = msg.T(i18n.KeyUnknownDesign)
	}

	add(MarkerProperty, "true", true)
	add(msg.T(i18n.KeyPropertyDesign), designName, true)
	add(msg.T(i18n.KeyPropertyColor), state.Color.Name, true)
	add(msg.T(i18n.KeyPropertyQuantity), strconv.Itoa(state.Quantity), true)

	discounted := DiscountedUnitPrice(state.BasePrice, state.DiscountPercent)
	add(msg.T(i18n.KeyPropertyBasePrice), b.Formatter.Format(state.BasePrice), false)
	if state.DiscountPercent > 0 {
		add(msg.T(i18n.KeyPropertyDiscount), money.PercentString(state.DiscountPercent), false)
	} else {
		add(msg.T(i18n.KeyPropertyDiscount), msg.T(i18n.KeyNoDiscount), false)
	}
	add(msg.T(i18n.KeyPropertyUnitPrice), b.Formatter.Format(discounted), false)

	var surcharge int64
	for _, addOn := range domain.AddOns {
		if !state.AddOns[addOn] {
			continue
		}
		price := b.AddOnPrices[addOn]
		label := msg.F(i18n.KeyPropertyExtra, msg.T(i18n.AddOnKey(string(addOn))))
		add(label, msg.F(i18n.KeyPropertyExtraValue, b.Formatter.Format(price), msg.T(i18n.KeyPerPiece)), false)
		if price > 0 {
			surcharge += price
		}
	}
	if surcharge > 0 {
		add(msg.T(i18n.KeyPropertyUnitPriceWithExtras), b.Formatter.Format(discounted+surcharge), false)
	}

	if state.TeamLogo != nil {
		add(msg.T(i18n.KeyPropertyTeamLogo), state.TeamLogo.URL, true)
		add(msg.T(i18n.KeyPropertyTeamLogoFile), state.TeamLogo.Filename, true)
	}
	add(msg.T(i18n.KeyPropertyTeamName), state.TeamName, true)

	for _, size := range state.Sizes {
		if n := state.SizeCounts[size]; n > 0 {
			add(msg.F(i18n.KeyPropertySize, size), strconv.Itoa(n), true)
		}
	}
	for _, row := range state.Rows {
		add(msg.F(i18n.KeyPropertyRow, row.Ordinal), rowSummary(row, state.Columns), true)
	}
	return props
}

func essentialCount(props []property) int {
	n := 0
	for _, p := range props {
		if p.essential {
			n++
		}
	}
	return n
}

// fitProperties enforces the limits by dropping non-essential properties, latest
// first. Essential properties are never dropped; callers reject states whose
// essential properties alone exceed the count. Values are truncated to the
// maximum length.
func fitProperties(props []property, limits PropertyLimits) ([]property, []string) {
	var dropped []string
	for i := len(props) - 1; i >= 0 && len(props) > limits.MaxCount; i-- {
		if props[i].essential {
			continue
		}
		dropped = append(dropped, props[i].Name)
		props = append(props[:i], props[i+1:]...)
	}
	for i := range props {
		props[i].Name = textutil.Truncate(props[i].Name, limits.MaxValueLength)
		props[i].Value = textutil.Truncate(props[i].Value, limits.MaxValueLength)
	}
	return props, dropped
}

type statusCoder interface {
	StatusCode() int
}

// SubmissionMessageKey maps a cart failure to shopper-facing copy: 404 and 422
// responses, transport failures, and everything else.
func SubmissionMessageKey(err error) string {
	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case 404:
			return i18n.KeyNotFound
		case 422:
			return i18n.KeyInvalidConfiguration
		}
		return i18n.KeyError
	}
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded) {
		return i18n.KeyNetworkError
	}
	return i18n.KeyError
}
