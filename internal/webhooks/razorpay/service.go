package razorpaywebhook

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
)

// Outcome is the acknowledgement returned to the gateway.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type confirmer interface {
	Confirm(ctx context.Context, input payments.ConfirmInput) (*payments.Result, error)
}

type failer interface {
	FailPayment(ctx context.Context, gatewayOrderID string) (orders.FailOutcome, error)
}

// Metrics counts deliveries by event and outcome.
type Metrics interface {
	WebhookEvent(event, outcome string)
}

// ServiceParams wires the webhook service. Metrics and Logger are optional.
type ServiceParams struct {
	Payments confirmer
	Orders   failer
	Guard    *Guard
	Secret   string
	Metrics  Metrics
	Logger   *logger.Logger
}

// Service authenticates gateway webhooks and applies them to orders.
type Service struct {
	payments confirmer
	orders   failer
	guard    *Guard
	secret   string
	metrics  Metrics
	logg     *logger.Logger
}

// NewService validates params and requires the webhook signing secret.
func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook guard required")
	}
	if params.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook secret required")
	}
	return &Service{
		payments: params.Payments,
		orders:   params.Orders,
		guard:    params.Guard,
		secret:   params.Secret,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Handle verifies and applies one delivery. A returned error means the
// delivery should be retried. Everything else is acknowledged with the
// outcome, including payloads that can never succeed.
func (s *Service) Handle(ctx context.Context, body []byte, signature string) (Outcome, error) {
	if !razorpay.VerifyWebhookSignature(body, signature, s.secret) {
		s.record("unknown", "invalid_signature")
		s.logg.Warn(ctx, "webhook.invalid_signature")
		return "", pkgerrors.New(pkgerrors.CodeInvalidSignature, "Invalid webhook signature")
	}

	event, err := razorpay.ParseWebhookEvent(body)
	if err != nil {
		s.record("unknown", string(OutcomeIgnored))
		s.logg.Warn(ctx, "webhook.malformed_payload")
		return OutcomeIgnored, nil
	}
	key := event.IdempotencyKey()
	ctx = s.logg.WithFields(ctx, map[string]any{"event": event.Event, "event_key": key})

	if s.guard.Seen(ctx, key) {
		s.logg.Info(ctx, "webhook.duplicate")
		s.record(event.Event, string(OutcomeDuplicate))
		return OutcomeDuplicate, nil
	}

	outcome, err := s.dispatch(ctx, event)
	if err != nil {
		s.record(event.Event, "retry")
		s.logg.Error(ctx, "webhook.handler_failed", err)
		return "", err
	}
	s.guard.Mark(ctx, key)
	s.record(event.Event, string(outcome))
	return outcome, nil
}

func (s *Service) dispatch(ctx context.Context, event *razorpay.WebhookEvent) (Outcome, error) {
	switch event.Event {
	case razorpay.EventPaymentCaptured:
		payment := event.PaymentEntity()
		if payment == nil || payment.OrderID == "" {
			return OutcomeIgnored, nil
		}
		return s.confirm(ctx, payments.ConfirmInput{
			GatewayOrderID: payment.OrderID,
			PaymentID:      payment.ID,
			AmountPaise:    payment.Amount,
			Source:         "webhook." + event.Event,
		})
	case razorpay.EventOrderPaid:
		order := event.OrderEntity()
		if order == nil || order.ID == "" {
			return OutcomeIgnored, nil
		}
		input := payments.ConfirmInput{
			GatewayOrderID: order.ID,
			AmountPaise:    order.AmountPaid,
			Source:         "webhook." + event.Event,
		}
		if input.AmountPaise == 0 {
			input.AmountPaise = order.Amount
		}
		if payment := event.PaymentEntity(); payment != nil {
			input.PaymentID = payment.ID
		}
		return s.confirm(ctx, input)
	case razorpay.EventPaymentFailed:
		payment := event.PaymentEntity()
		if payment == nil || payment.OrderID == "" {
			return OutcomeIgnored, nil
		}
		result, err := s.orders.FailPayment(ctx, payment.OrderID)
		if err != nil {
			return "", err
		}
		if result == orders.FailOutcomeCancelled {
			return OutcomeProcessed, nil
		}
		return OutcomeIgnored, nil
	default:
		return OutcomeIgnored, nil
	}
}

func (s *Service) confirm(ctx context.Context, input payments.ConfirmInput) (Outcome, error) {
	_, err := s.payments.Confirm(ctx, input)
	switch {
	case err == nil:
		return OutcomeProcessed, nil
	case pkgerrors.IsRetryable(err):
		return "", err
	case pkgerrors.Is(err, pkgerrors.CodeStateConflict):
		s.logg.Error(ctx, "webhook.payment_for_closed_order", err)
		return OutcomeIgnored, nil
	default:
		// Not found, amount mismatch and stock shortfall never heal on retry.
		return OutcomeIgnored, nil
	}
}

func (s *Service) record(event, outcome string) {
	if s.metrics != nil {
		s.metrics.WebhookEvent(event, outcome)
	}
}
