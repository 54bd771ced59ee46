package notifications

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// OrderHook turns committed order events into in-app notifications for the
// buyer. Events without a buyer-facing message are skipped.
func OrderHook(repo creator, logg *logger.Logger) orders.Hook {
	return orders.NewHook("notifications.order", func(ctx context.Context, event orders.Event) error {
		notification := notificationFor(event)
		if notification == nil {
			return nil
		}
		if err := repo.Create(ctx, notification); err != nil {
			return fmt.Errorf("create %s notification: %w", notification.Type, err)
		}
		logg.Info(logg.WithFields(ctx, map[string]any{
			"order_id":          event.OrderID.String(),
			"notification_type": string(notification.Type),
		}), "notification.created")
		return nil
	})
}

func notificationFor(event orders.Event) *models.Notification {
	link := fmt.Sprintf("/orders/%s", event.OrderID)
	n := &models.Notification{UserID: event.UserID, Link: &link}
	switch {
	case event.Type == enums.OrderEventConfirmed:
		n.Type = enums.NotificationTypeOrderConfirmed
		n.Title = "Order confirmed"
		n.Message = fmt.Sprintf("Your order %s has been confirmed.", event.OrderNumber)
	case event.Type == enums.OrderEventPlaced && event.PaymentMethod == enums.PaymentMethodCOD:
		n.Type = enums.NotificationTypeOrderConfirmed
		n.Title = "Order placed"
		n.Message = fmt.Sprintf("Your cash on delivery order %s has been placed.", event.OrderNumber)
	case event.Type == enums.OrderEventCancelled:
		n.Type = enums.NotificationTypeOrderCancelled
		n.Title = "Order cancelled"
		n.Message = fmt.Sprintf("Your order %s has been cancelled.", event.OrderNumber)
	case event.Type == enums.OrderEventStatusChanged && event.Status == enums.OrderStatusShipped:
		n.Type = enums.NotificationTypeOrderShipped
		n.Title = "Order shipped"
		n.Message = fmt.Sprintf("Your order %s is on its way.", event.OrderNumber)
		if event.TrackingNumber != nil {
			n.Message = fmt.Sprintf("Your order %s is on its way. Tracking number: %s", event.OrderNumber, *event.TrackingNumber)
		}
	default:
		return nil
	}
	return n
}
