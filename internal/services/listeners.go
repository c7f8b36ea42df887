package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hanko-field/teamwear/internal/platform/requestctx"
)

// CartListeners fans an event out to every listener and joins their errors.
type CartListeners []CartListener

// CartUpdated notifies all listeners; one failing listener does not stop the others.
func (ls CartListeners) CartUpdated(ctx context.Context, event CartEvent) error {
	var errs []error
	for _, l := range ls {
		if l == nil {
			continue
		}
		if err := l.CartUpdated(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogCartListener writes cart updates to the request logger.
type LogCartListener struct {
	Logger *zap.Logger
}

// CartUpdated logs the event.
func (l LogCartListener) CartUpdated(ctx context.Context, event CartEvent) error {
	logger := l.Logger
	if logger == nil {
		logger = requestctx.Logger(ctx)
	}
	logger.Info("cart updated",
		zap.String("widget_id", event.WidgetID),
		zap.Int64("variant_id", event.Line.VariantID),
		zap.Int("quantity", event.Line.Quantity),
		zap.Int("cart_item_count", event.Cart.ItemCount),
		zap.Int64("cart_total", int64(event.Cart.TotalPrice)),
	)
	return nil
}
