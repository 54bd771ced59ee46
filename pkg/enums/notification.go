package enums

// NotificationType classifies in-app notifications.
type NotificationType string

const (
	NotificationTypeOrderConfirmed NotificationType = "ORDER_CONFIRMED"
	NotificationTypeOrderCancelled NotificationType = "ORDER_CANCELLED"
	NotificationTypeOrderShipped   NotificationType = "ORDER_SHIPPED"
)

func (n NotificationType) String() string {
	return string(n)
}
