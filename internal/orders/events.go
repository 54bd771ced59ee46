package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Event describes a committed order change handed to post-commit hooks.
type Event struct {
	Type           enums.OrderEventType `json:"type"`
	OrderID        uuid.UUID            `json:"order_id"`
	OrderNumber    string               `json:"order_number"`
	UserID         uuid.UUID            `json:"user_id"`
	Status         enums.OrderStatus    `json:"status"`
	PaymentStatus  enums.PaymentStatus  `json:"payment_status"`
	PaymentMethod  enums.PaymentMethod  `json:"payment_method"`
	TotalAmount    decimal.Decimal      `json:"total_amount"`
	TrackingNumber *string              `json:"tracking_number,omitempty"`
	OccurredAt     time.Time            `json:"occurred_at"`
}

// NewEvent snapshots order as an event of type t.
func NewEvent(t enums.OrderEventType, order *models.Order, at time.Time) Event {
	return Event{
		Type:           t,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		UserID:         order.UserID,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		PaymentMethod:  order.PaymentMethod,
		TotalAmount:    order.TotalAmount,
		TrackingNumber: order.TrackingNumber,
		OccurredAt:     at.UTC(),
	}
}

// Hook is a best-effort side effect run after an order transaction commits.
type Hook interface {
	Name() string
	Handle(ctx context.Context, event Event) error
}

type hookFunc struct {
	name string
	fn   func(ctx context.Context, event Event) error
}

// NewHook adapts a function into a named Hook.
func NewHook(name string, fn func(ctx context.Context, event Event) error) Hook {
	return hookFunc{name: name, fn: fn}
}

func (h hookFunc) Name() string { return h.name }

func (h hookFunc) Handle(ctx context.Context, event Event) error { return h.fn(ctx, event) }

// Hooks run in order. A failing hook never stops the ones after it.
type Hooks []Hook

// Run executes every hook and logs failures. The committed transaction is
// final, so errors are swallowed after logging.
func (h Hooks) Run(ctx context.Context, logg *logger.Logger, event Event) {
	var errs error
	var failed []string
	for _, hook := range h {
		if hook == nil {
			continue
		}
		if err := hook.Handle(ctx, event); err != nil {
			errs = multierr.Append(errs, err)
			failed = append(failed, hook.Name())
		}
	}
	if errs == nil {
		return
	}
	logCtx := logg.WithFields(ctx, map[string]any{
		"event_type":   event.Type.String(),
		"order_id":     event.OrderID.String(),
		"failed_hooks": failed,
	})
	logg.Error(logCtx, "order.post_commit_failed", errs)
}
