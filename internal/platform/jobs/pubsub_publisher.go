package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/oklog/ulid/v2"

	"github.com/hanko-field/teamwear/internal/services"
)

// CartUpdatedEventType tags cart broadcasts on the topic.
const CartUpdatedEventType = "teamwear.cart.updated"

// CartUpdatedMessage is the JSON payload published after a set lands in the cart.
type CartUpdatedMessage struct {
	EventID       string            `json:"eventId"`
	WidgetID      string            `json:"widgetId"`
	VariantID     int64             `json:"variantId"`
	Quantity      int               `json:"quantity"`
	Properties    map[string]string `json:"properties"`
	CartItemCount int               `json:"cartItemCount"`
	CartTotal     int64             `json:"cartTotal"`
	Currency      string            `json:"currency,omitempty"`
	OccurredAt    time.Time         `json:"occurredAt"`
}

// PubSubCartPublisher broadcasts cart updates to a Pub/Sub topic. It satisfies
// services.CartListener.
type PubSubCartPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
	newID   func() string
}

// NewPubSubCartPublisher constructs a Pub/Sub backed cart listener.
func NewPubSubCartPublisher(topic *pubsub.Topic) (*PubSubCartPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub cart publisher: topic is required")
	}
	return &PubSubCartPublisher{
		topic:   topic,
		marshal: json.Marshal,
		newID:   func() string { return ulid.Make().String() },
	}, nil
}

// CartUpdated publishes the event and waits for the server acknowledgement.
func (p *PubSubCartPublisher) CartUpdated(ctx context.Context, event services.CartEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub cart publisher: not initialised")
	}

	occurredAt := event.At
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	message := CartUpdatedMessage{
		EventID:       p.newID(),
		WidgetID:      event.WidgetID,
		VariantID:     event.Line.VariantID,
		Quantity:      event.Line.Quantity,
		Properties:    event.Line.PropertyMap(),
		CartItemCount: event.Cart.ItemCount,
		CartTotal:     int64(event.Cart.TotalPrice),
		Currency:      event.Cart.Currency,
		OccurredAt:    occurredAt.UTC(),
	}

	data, err := p.marshal(message)
	if err != nil {
		return fmt.Errorf("marshal cart update: %w", err)
	}

	attrs := map[string]string{"eventType": CartUpdatedEventType}
	setAttr(attrs, "eventId", message.EventID)
	setAttr(attrs, "widgetId", message.WidgetID)
	if message.VariantID > 0 {
		attrs["variantId"] = strconv.FormatInt(message.VariantID, 10)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish cart update: %w", err)
	}
	return nil
}

// Stop flushes pending messages and stops the topic's background goroutines.
func (p *PubSubCartPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
