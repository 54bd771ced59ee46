package razorpay

import "encoding/json"

// Webhook event names handled by the storefront.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "X-Razorpay-Signature"

// WebhookEvent is the envelope Razorpay posts to webhook endpoints.
type WebhookEvent struct {
	EventID   string         `json:"event_id,omitempty"`
	Event     string         `json:"event"`
	CreatedAt int64          `json:"created_at"`
	Payload   WebhookPayload `json:"payload"`
}

type WebhookPayload struct {
	Payment *struct {
		Entity Payment `json:"entity"`
	} `json:"payment,omitempty"`
	Order *struct {
		Entity Order `json:"entity"`
	} `json:"order,omitempty"`
}

// ParseWebhookEvent decodes a webhook body.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// PaymentEntity returns the embedded payment, if any.
func (e *WebhookEvent) PaymentEntity() *Payment {
	if e == nil || e.Payload.Payment == nil {
		return nil
	}
	return &e.Payload.Payment.Entity
}

// OrderEntity returns the embedded order, if any.
func (e *WebhookEvent) OrderEntity() *Order {
	if e == nil || e.Payload.Order == nil {
		return nil
	}
	return &e.Payload.Order.Entity
}

// IdempotencyKey prefers the delivery's event id and falls back to the event
// name plus the embedded payment or order id. The fallback cannot tell apart
// two distinct events of one type for the same entity.
func (e *WebhookEvent) IdempotencyKey() string {
	if e == nil {
		return ""
	}
	if e.EventID != "" {
		return e.EventID
	}
	entityID := ""
	if p := e.PaymentEntity(); p != nil && p.ID != "" {
		entityID = p.ID
	} else if o := e.OrderEntity(); o != nil {
		entityID = o.ID
	}
	if entityID == "" {
		return ""
	}
	return e.Event + "-" + entityID
}
