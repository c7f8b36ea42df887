package services

import (
	"context"
	"time"

	"github.com/hanko-field/teamwear/internal/domain"
)

// ProductSource loads product payloads by handle.
type ProductSource interface {
	Product(ctx context.Context, handle string) (domain.Product, error)
}

// CartGateway performs the purchase side effects against the shop's cart.
type CartGateway interface {
	AddToCart(ctx context.Context, line domain.CartLine) (domain.CartItem, error)
	Cart(ctx context.Context) (domain.Cart, error)
}

// CartEvent is broadcast after a configured set has been added to the cart.
type CartEvent struct {
	WidgetID string
	Line     domain.CartLine
	Item     domain.CartItem
	Cart     domain.Cart
	At       time.Time
}

// CartListener is informed about cart changes (badge counters, drawers, analytics).
type CartListener interface {
	CartUpdated(ctx context.Context, event CartEvent) error
}

// CartListenerFunc adapts a function to CartListener.
type CartListenerFunc func(ctx context.Context, event CartEvent) error

// CartUpdated calls f.
func (f CartListenerFunc) CartUpdated(ctx context.Context, event CartEvent) error {
	return f(ctx, event)
}

// Scheduler runs fn after d. The returned function cancels a pending run.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

func defaultScheduler(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}
