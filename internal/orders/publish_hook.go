package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const publishHookName = "pubsub.order_events"

// EventPublisher sends one message to the order events topic.
type EventPublisher interface {
	Publish(ctx context.Context, orderingKey string, attrs map[string]string, data []byte) (string, error)
}

// PublishHook publishes every committed order event as JSON, keyed by order
// so consumers see a single order's events in commit order.
func PublishHook(pub EventPublisher, logg *logger.Logger) Hook {
	return NewHook(publishHookName, func(ctx context.Context, event Event) error {
		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("encode order event: %w", err)
		}
		attrs := map[string]string{
			"event_type":     event.Type.String(),
			"order_id":       event.OrderID.String(),
			"payment_method": string(event.PaymentMethod),
		}
		id, err := pub.Publish(ctx, event.OrderID.String(), attrs, data)
		if err != nil {
			return fmt.Errorf("publish %s: %w", event.Type, err)
		}
		logCtx := logg.WithFields(ctx, map[string]any{
			"event_type": event.Type.String(),
			"message_id": id,
		})
		logg.Debug(logg.WithOrderID(logCtx, event.OrderID.String()), "order.event_published")
		return nil
	})
}
