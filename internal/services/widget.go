package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hanko-field/teamwear/internal/domain"
	"github.com/hanko-field/teamwear/internal/i18n"
	"github.com/hanko-field/teamwear/internal/platform/money"
	"github.com/hanko-field/teamwear/internal/platform/textutil"
)

var (
	ErrUnknownDesign   = errors.New("widget: unknown design")
	ErrUnknownColor    = errors.New("widget: unknown color")
	ErrColorsNotReady  = errors.New("widget: colors not loaded")
	ErrInvalidQuantity = errors.New("widget: invalid quantity")
	ErrQuantityDerived = errors.New("widget: quantity is derived from size counts")
	ErrUnknownSize     = errors.New("widget: unknown size")
	ErrUnknownAddOn    = errors.New("widget: unknown add-on")
	ErrInvalidTeamLogo = errors.New("widget: invalid team logo")
)

const (
	DefaultMessageTTL  = 5 * time.Second
	DefaultResetDelay  = 2 * time.Second
	DefaultQuantity    = 10
	DefaultMaxQuantity = 500

	maxTeamNameRunes = 50
)

// MessageKind styles the transient message.
type MessageKind string

const (
	MessageInfo    MessageKind = "info"
	MessageSuccess MessageKind = "success"
	MessageError   MessageKind = "error"
)

// Message is the single transient notice shown by a widget.
type Message struct {
	Kind      MessageKind `json:"kind"`
	Text      string      `json:"text"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// WidgetDeps wires a Widget.
type WidgetDeps struct {
	ID              string
	Designs         []domain.Design
	Products        ProductSource
	Cart            CartGateway
	Listener        CartListener
	Copy            *i18n.Bundle
	Formatter       *money.Formatter
	AddOnPrices     map[domain.AddOn]int64
	Swatches        map[string]string
	Sizes           *SizeVocabulary
	QuantityMode    QuantityMode
	QuantityOptions []int
	DefaultQuantity int
	MaxQuantity     int
	Limits          PropertyLimits
	MessageTTL      time.Duration
	ResetDelay      time.Duration
	Now             func() time.Time
	Schedule        Scheduler
	Logger          func(context.Context, string, map[string]any)
}

// Widget is one configurator instance. It owns its form state exclusively and is
// safe for concurrent callers.
type Widget struct {
	id              string
	designs         map[string]domain.Design
	designOrder     []string
	products        ProductSource
	cart            CartGateway
	listener        CartListener
	copy            *i18n.Bundle
	formatter       *money.Formatter
	addOnPrices     map[domain.AddOn]int64
	swatches        map[string]string
	vocab           SizeVocabulary
	mode            QuantityMode
	quantityOptions []int
	defaultQuantity int
	maxQuantity     int
	builder         LineBuilder
	messageTTL      time.Duration
	resetDelay      time.Duration
	now             func() time.Time
	schedule        Scheduler
	logger          func(context.Context, string, map[string]any)

	mu          sync.Mutex
	state       FormState
	message     *Message
	submitting  bool
	cancelReset func() bool
}

// NewWidget validates deps and returns a widget with an empty form.
func NewWidget(deps WidgetDeps) (*Widget, error) {
	if deps.Products == nil {
		return nil, errors.New("widget: product source is required")
	}
	if deps.Cart == nil {
		return nil, errors.New("widget: cart gateway is required")
	}
	if len(deps.Designs) == 0 {
		return nil, errors.New("widget: at least one design is required")
	}

	designs := make(map[string]domain.Design, len(deps.Designs))
	order := make([]string, 0, len(deps.Designs))
	for _, design := range deps.Designs {
		handle := strings.TrimSpace(design.Handle)
		if handle == "" {
			return nil, fmt.Errorf("widget: design %q has no handle", design.Name)
		}
		if _, dup := designs[handle]; dup {
			return nil, fmt.Errorf("widget: duplicate design handle %q", handle)
		}
		design.Handle = handle
		designs[handle] = design
		order = append(order, handle)
	}

	mode := deps.QuantityMode
	if mode == "" {
		mode = QuantityFree
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("widget: unknown quantity mode %q", mode)
	}

	bundle := deps.Copy
	if bundle == nil {
		bundle = i18n.MustLoad()
	}
	formatter := deps.Formatter
	if formatter == nil {
		formatter = money.NewFormatter("")
	}
	vocab := DefaultSizeVocabulary()
	if deps.Sizes != nil {
		vocab = *deps.Sizes
	}
	defaultQuantity := deps.DefaultQuantity
	if defaultQuantity <= 0 {
		defaultQuantity = DefaultQuantity
	}
	maxQuantity := deps.MaxQuantity
	if maxQuantity <= 0 {
		maxQuantity = DefaultMaxQuantity
	}
	ttl := deps.MessageTTL
	if ttl <= 0 {
		ttl = DefaultMessageTTL
	}
	resetDelay := deps.ResetDelay
	if resetDelay <= 0 {
		resetDelay = DefaultResetDelay
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	schedule := deps.Schedule
	if schedule == nil {
		schedule = defaultScheduler
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	options := make([]int, 0, len(deps.QuantityOptions))
	for _, q := range deps.QuantityOptions {
		if q > 0 && q <= maxQuantity {
			options = append(options, q)
		}
	}

	w := &Widget{
		id:              deps.ID,
		designs:         designs,
		designOrder:     order,
		products:        deps.Products,
		cart:            deps.Cart,
		listener:        deps.Listener,
		copy:            bundle,
		formatter:       formatter,
		addOnPrices:     deps.AddOnPrices,
		swatches:        deps.Swatches,
		vocab:           vocab,
		mode:            mode,
		quantityOptions: options,
		defaultQuantity: defaultQuantity,
		maxQuantity:     maxQuantity,
		builder: LineBuilder{
			Copy:        bundle,
			Formatter:   formatter,
			AddOnPrices: deps.AddOnPrices,
			Limits:      deps.Limits,
		},
		messageTTL: ttl,
		resetDelay: resetDelay,
		now:        func() time.Time { return now().UTC() },
		schedule:   schedule,
		logger:     logger,
		state:      newFormState(mode),
	}
	return w, nil
}

// ID returns the widget identifier.
func (w *Widget) ID() string { return w.id }

// State returns a copy of the current form state.
func (w *Widget) State() FormState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// SelectDesign switches to the design with handle, clears the colour selection and
// loads the design's colours. The product is fetched without holding the widget
// lock; the result is applied only if the design is still selected and waiting.
func (w *Widget) SelectDesign(ctx context.Context, handle string) error {
	handle = strings.TrimSpace(handle)

	w.mu.Lock()
	design, ok := w.designs[handle]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownDesign, handle)
	}
	s := &w.state
	s.Design = &design
	s.Stage = StageLoadingColors
	s.Product = nil
	s.ColorAxis = NoColorAxis
	s.Colors = nil
	s.Color = nil
	s.Variant = nil
	s.PreviewImage = design.Image
	if s.Quantity == 0 && w.mode == QuantityFree && w.offersQuantity(w.defaultQuantity) {
		w.applyQuantity(w.defaultQuantity)
	}
	w.recompute()
	w.mu.Unlock()

	product, err := w.products.Product(ctx, handle)

	w.mu.Lock()
	defer w.mu.Unlock()
	s = &w.state
	if s.Design == nil || s.Design.Handle != handle || s.Stage != StageLoadingColors {
		w.logger(ctx, "widget.design_load_stale", map[string]any{
			"widgetID": w.id,
			"handle":   handle,
		})
		return nil
	}
	s.Stage = StageColorsReady
	if err != nil {
		w.logger(ctx, "widget.design_load_failed", map[string]any{
			"widgetID": w.id,
			"handle":   handle,
			"error":    err.Error(),
		})
		w.setMessage(MessageError, w.copy.T(i18n.KeyProductLoadFailed))
		w.recompute()
		return nil
	}

	res := ExtractColors(product, w.vocab, w.swatches)
	s.Product = &product
	s.ColorAxis = res.Axis
	s.Colors = res.Colors
	s.Sizes = SizeOptions(product, res.Axis, w.vocab)
	w.pruneSizeCounts()
	if !res.OK {
		w.logger(ctx, "widget.colors_unresolved", map[string]any{
			"widgetID": w.id,
			"handle":   handle,
			"variants": len(product.Variants),
		})
		w.setMessage(MessageError, w.copy.T(i18n.KeyColorsUnavailable))
	}
	if img, ok := FindPreviewImage(domain.Variant{}, "", product.Images); ok && s.PreviewImage == "" {
		s.PreviewImage = img.Src
	}
	w.recompute()
	return nil
}

// SelectColor picks a colour by name and resolves it to a variant. When no variant
// can be resolved the colour stays unset and the form invalid.
func (w *Widget) SelectColor(ctx context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &w.state
	if s.Design == nil {
		return ErrDesignMissing
	}
	if s.Stage == StageLoadingColors || s.Product == nil {
		return ErrColorsNotReady
	}
	res := ColorResolution{Axis: s.ColorAxis, Colors: s.Colors, OK: len(s.Colors) > 0}
	color, ok := res.FindColor(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColor, name)
	}

	variant, ok := ResolveVariant(color, s.Product.Variants)
	if !ok {
		s.Color = nil
		s.Variant = nil
		s.Stage = StageColorsReady
		w.logger(ctx, "widget.variant_unresolved", map[string]any{
			"widgetID": w.id,
			"color":    color.Name,
		})
		w.setMessage(MessageError, w.copy.T(i18n.KeySelectColor))
		w.recompute()
		return nil
	}
	s.Color = &color
	s.Variant = &variant
	s.Stage = StageColorSelected
	if img, ok := FindPreviewImage(variant, color.Name, s.Product.Images); ok {
		s.PreviewImage = img.Src
	}
	w.recompute()
	return nil
}

// SetQuantity sets the quantity directly. Rows are rebuilt when it changes.
func (w *Widget) SetQuantity(_ context.Context, quantity int) error {
	if quantity < 0 || quantity > w.maxQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.mode == QuantityFromSizes {
		return ErrQuantityDerived
	}
	w.applyQuantity(quantity)
	w.recompute()
	return nil
}

// SetSizeCount records how many pieces of size are wanted. In QuantityFromSizes
// mode the quantity follows the sum of all sizes.
func (w *Widget) SetSizeCount(_ context.Context, size string, count int) error {
	if count < 0 || count > w.maxQuantity {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, count)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &w.state
	label, ok := w.sizeLabel(size)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSize, size)
	}
	previous := s.SizeCounts[label]
	if count == 0 {
		delete(s.SizeCounts, label)
	} else {
		s.SizeCounts[label] = count
	}
	if w.mode == QuantityFromSizes {
		total := s.SizeTotal()
		if total > w.maxQuantity {
			s.SizeCounts[label] = previous
			if previous == 0 {
				delete(s.SizeCounts, label)
			}
			return fmt.Errorf("%w: total %d", ErrInvalidQuantity, total)
		}
		w.applyQuantity(total)
	}
	w.recompute()
	return nil
}

// ToggleAddOn enables or disables an add-on. Rows are rebuilt when the visible
// columns change.
func (w *Widget) ToggleAddOn(_ context.Context, addOn domain.AddOn, enabled bool) error {
	if !addOn.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAddOn, addOn)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	s := &w.state
	if enabled {
		s.AddOns[addOn] = true
	} else {
		delete(s.AddOns, addOn)
	}
	if columns := VisibilityFor(s.AddOns); columns != s.Columns {
		s.Columns = columns
		s.Rows = BuildRows(s.Quantity)
	}
	w.recompute()
	return nil
}

// UpdatePersonalization edits one cell of the grid in place.
func (w *Widget) UpdatePersonalization(_ context.Context, index int, field RowField, value string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if field == RowFieldSize {
		if label, ok := w.sizeLabel(value); ok {
			value = label
		}
	}
	return UpdateRow(w.state.Rows, index, field, value, w.state.Columns)
}

// SetTeamLogo stores the hosted logo returned by the upload widget.
func (w *Widget) SetTeamLogo(_ context.Context, logo domain.TeamLogo) error {
	logo.URL = strings.TrimSpace(logo.URL)
	u, err := url.Parse(logo.URL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTeamLogo, logo.URL)
	}
	logo.Filename = textutil.SanitizeText(logo.Filename)
	if logo.Filename == "" {
		segments := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
		logo.Filename = segments[len(segments)-1]
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.TeamLogo = &logo
	return nil
}

// ClearTeamLogo removes the logo.
func (w *Widget) ClearTeamLogo(_ context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.TeamLogo = nil
}

// SetTeamName stores the sanitised team name; an empty name clears it.
func (w *Widget) SetTeamName(_ context.Context, name string) {
	name = textutil.Truncate(textutil.SanitizeText(name), maxTeamNameRunes)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.TeamName = name
}

// Reset discards the form and cancels a pending post-submit reset. The current
// message stays visible.
func (w *Widget) Reset(_ context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelReset != nil {
		w.cancelReset()
		w.cancelReset = nil
	}
	w.state = newFormState(w.mode)
}

// Close cancels pending timers.
func (w *Widget) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancelReset != nil {
		w.cancelReset()
		w.cancelReset = nil
	}
}

// Submit adds the configured set to the cart. Preconditions are checked before
// any network call; concurrent submissions are rejected. On success the refreshed
// cart is broadcast and the form resets after the configured delay. On failure the
// form is left untouched.
func (w *Widget) Submit(ctx context.Context) (domain.Cart, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return domain.Cart{}, &SubmissionError{Kind: SubmissionBusy, Message: w.copy.T(i18n.KeySubmitInProgress), Err: ErrSubmissionInProgress}
	}
	line, dropped, err := w.builder.Build(w.state)
	if err != nil {
		text := w.copy.T(messageKeyFor(err))
		w.setMessage(MessageError, text)
		w.mu.Unlock()
		w.logger(ctx, "widget.submit_rejected", map[string]any{
			"widgetID": w.id,
			"error":    err.Error(),
		})
		return domain.Cart{}, &SubmissionError{Kind: SubmissionValidation, Message: text, Err: err}
	}
	w.submitting = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.submitting = false
		w.mu.Unlock()
	}()

	if len(dropped) > 0 {
		w.logger(ctx, "widget.properties_dropped", map[string]any{
			"widgetID": w.id,
			"dropped":  dropped,
		})
	}

	item, err := w.cart.AddToCart(ctx, line)
	if err != nil {
		text := w.copy.T(SubmissionMessageKey(err))
		w.mu.Lock()
		w.setMessage(MessageError, text)
		w.mu.Unlock()
		w.logger(ctx, "widget.submit_failed", map[string]any{
			"widgetID":  w.id,
			"variantID": line.VariantID,
			"error":     err.Error(),
		})
		return domain.Cart{}, &SubmissionError{Kind: SubmissionTransport, Message: text, Err: fmt.Errorf("%w: %w", ErrCartUnavailable, err)}
	}

	cart, err := w.cart.Cart(ctx)
	if err != nil {
		w.logger(ctx, "widget.cart_refresh_failed", map[string]any{
			"widgetID": w.id,
			"error":    err.Error(),
		})
	} else if w.listener != nil {
		event := CartEvent{WidgetID: w.id, Line: line, Item: item, Cart: cart, At: w.now()}
		if err := w.listener.CartUpdated(ctx, event); err != nil {
			w.logger(ctx, "widget.cart_listener_failed", map[string]any{
				"widgetID": w.id,
				"error":    err.Error(),
			})
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.setMessage(MessageSuccess, w.copy.T(i18n.KeyAddedToCart))
	if w.cancelReset != nil {
		w.cancelReset()
	}
	w.cancelReset = w.schedule(w.resetDelay, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.cancelReset = nil
		w.state = newFormState(w.mode)
	})
	return cart, nil
}

// applyQuantity must be called with the lock held.
func (w *Widget) applyQuantity(quantity int) {
	s := &w.state
	if s.Quantity == quantity && len(s.Rows) == quantity {
		return
	}
	s.Quantity = quantity
	s.Rows = BuildRows(quantity)
}

// recompute refreshes base price, discount and quote. Lock held.
func (w *Widget) recompute() {
	s := &w.state
	if s.Design == nil {
		s.BasePrice = 0
		s.DiscountPercent = 0
		s.Quote = nil
		return
	}
	s.BasePrice = s.Design.BasePrice
	if s.Variant != nil && s.Variant.Price > 0 {
		s.BasePrice = int64(s.Variant.Price)
	}
	s.DiscountPercent = DiscountPercent(s.Quantity, s.Design.Discount)
	quote, ok := CalculatePrice(PriceInput{
		BasePrice:       s.BasePrice,
		Quantity:        s.Quantity,
		DiscountPercent: s.DiscountPercent,
		Surcharges:      EnabledSurcharges(s.AddOns, w.addOnPrices),
	})
	if !ok {
		s.Quote = nil
		return
	}
	s.Quote = &quote
}

func (w *Widget) offersQuantity(quantity int) bool {
	if len(w.quantityOptions) == 0 {
		return true
	}
	for _, q := range w.quantityOptions {
		if q == quantity {
			return true
		}
	}
	return false
}

func (w *Widget) sizeLabel(size string) (string, bool) {
	key := textutil.NormalizeKey(size)
	if key == "" {
		return "", false
	}
	for _, label := range w.state.Sizes {
		if textutil.NormalizeKey(label) == key {
			return label, true
		}
	}
	return "", false
}

// pruneSizeCounts drops counts for sizes the new product does not offer. Lock held.
func (w *Widget) pruneSizeCounts() {
	s := &w.state
	for label := range s.SizeCounts {
		if !ContainsSize(s.Sizes, label) {
			delete(s.SizeCounts, label)
			continue
		}
		if canonical, ok := w.sizeLabel(label); ok && canonical != label {
			s.SizeCounts[canonical] += s.SizeCounts[label]
			delete(s.SizeCounts, label)
		}
	}
	if w.mode == QuantityFromSizes {
		w.applyQuantity(s.SizeTotal())
	}
}

// setMessage replaces the transient message. Lock held.
func (w *Widget) setMessage(kind MessageKind, text string) {
	w.message = &Message{Kind: kind, Text: text, ExpiresAt: w.now().Add(w.messageTTL)}
}

func (w *Widget) currentMessage() *Message {
	if w.message == nil || !w.now().Before(w.message.ExpiresAt) {
		return nil
	}
	msg := *w.message
	return &msg
}
