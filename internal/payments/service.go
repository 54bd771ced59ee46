package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
)

// Verification outcomes recorded in metrics.
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeAlreadyConfirmed = "already_confirmed"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeAmountMismatch   = "amount_mismatch"
	OutcomeNotCaptured      = "not_captured"
	OutcomeFailed           = "failed"
)

// errLostRace rolls back a confirmation that another path already made.
var errLostRace = errors.New("order confirmed concurrently")

// Gateway is the trusted server-to-server view of a payment.
type Gateway interface {
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
}

// Metrics records verification outcomes.
type Metrics interface {
	PaymentVerification(outcome string)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams carries the payment service dependencies.
type ServiceParams struct {
	Repo              orders.Repository
	Ledger            orders.StockLedger
	Gateway           Gateway
	TransactionRunner txRunner
	KeySecret         string
	Hooks             orders.Hooks
	Metrics           Metrics
	Logger            *logger.Logger
	Now               func() time.Time
}

// Service verifies gateway payments and commits the paid order exactly once.
type Service struct {
	repo      orders.Repository
	ledger    orders.StockLedger
	gateway   Gateway
	tx        txRunner
	keySecret string
	hooks     orders.Hooks
	metrics   Metrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the payment service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.KeySecret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway key secret required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:      params.Repo,
		ledger:    params.Ledger,
		gateway:   params.Gateway,
		tx:        params.TransactionRunner,
		keySecret: params.KeySecret,
		hooks:     params.Hooks,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       now,
	}, nil
}

// VerifyInput is the checkout callback posted by the client.
type VerifyInput struct {
	OrderID           *uuid.UUID `json:"orderId,omitempty"`
	RazorpayOrderID   string     `json:"razorpayOrderId" validate:"required"`
	RazorpayPaymentID string     `json:"razorpayPaymentId" validate:"required"`
	RazorpaySignature string     `json:"razorpaySignature" validate:"required"`
}

// Result is the order state after a verification or confirmation.
type Result struct {
	OrderID          uuid.UUID           `json:"orderId"`
	OrderNumber      string              `json:"orderNumber"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"paymentStatus"`
	AlreadyConfirmed bool                `json:"alreadyConfirmed"`
}

func resultFor(order *models.Order, already bool) *Result {
	return &Result{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		AlreadyConfirmed: already,
	}
}

// Verify authenticates a client payment claim, re-checks the charged amount
// with the gateway and confirms the order. Replays return the current state.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, input VerifyInput) (*Result, error) {
	gatewayOrderID := strings.TrimSpace(input.RazorpayOrderID)
	paymentID := strings.TrimSpace(input.RazorpayPaymentID)
	signature := strings.TrimSpace(input.RazorpaySignature)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
	})

	if !razorpay.VerifyPaymentSignature(gatewayOrderID, paymentID, signature, s.keySecret) {
		s.record(OutcomeInvalidSignature)
		s.logg.Warn(ctx, "payment.invalid_signature")
		return nil, pkgerrors.New(pkgerrors.CodeInvalidSignature, "Invalid payment signature")
	}

	payment, err := s.repo.FindPaymentByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment == nil || payment.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Payment not found")
	}
	order := payment.Order
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "Not authorized to verify this payment")
	}
	if input.OrderID != nil && *input.OrderID != order.ID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Payment does not belong to this order")
	}
	if order.PaymentStatus == enums.PaymentStatusSuccess {
		s.record(OutcomeAlreadyConfirmed)
		return resultFor(order, true), nil
	}

	gatewayPayment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		s.record(OutcomeFailed)
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch gateway payment")
	}
	if gatewayPayment.OrderID != "" && gatewayPayment.OrderID != gatewayOrderID {
		s.record(OutcomeAmountMismatch)
		s.logg.Error(ctx, "payment.order_mismatch", nil)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Payment does not belong to this order")
	}
	if err := s.checkAmount(ctx, order, gatewayPayment.Amount); err != nil {
		return nil, err
	}
	if !gatewayPayment.Captured() {
		s.record(OutcomeNotCaptured)
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Payment has not been captured").
			WithDetails(map[string]any{"gateway_status": gatewayPayment.Status})
	}

	return s.Confirm(ctx, ConfirmInput{
		GatewayOrderID: gatewayOrderID,
		PaymentID:      paymentID,
		Signature:      &signature,
		AmountPaise:    gatewayPayment.Amount,
		Source:         "verify",
	})
}

// ConfirmInput identifies a captured gateway payment.
type ConfirmInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      *string
	// AmountPaise is the amount the gateway reports as paid.
	AmountPaise int64
	Source      string
}

// Confirm commits a captured payment: every line's stock is decremented and
// the order and payment flip to CONFIRMED/SUCCESS in one transaction. The
// flip is conditional on paymentStatus not being SUCCESS, so the client
// callback and webhook deliveries converge on a single commit.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (*Result, error) {
	var (
		order   *models.Order
		already bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindPaymentByGatewayOrderID(ctx, input.GatewayOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Payment not found")
		}
		locked, err := repo.FindByIDForUpdate(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if locked == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
		}
		order = locked

		if locked.PaymentStatus == enums.PaymentStatusSuccess {
			already = true
			return nil
		}
		if locked.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order is no longer awaiting payment and needs a manual refund")
		}
		if err := s.checkAmount(ctx, locked, input.AmountPaise); err != nil {
			return err
		}

		now := s.now().UTC()
		ok, err := repo.CompareAndSetState(ctx, locked.ID, orders.StateOf(locked), map[string]any{
			"status":          enums.OrderStatusConfirmed,
			"payment_status":  enums.PaymentStatusSuccess,
			"stock_committed": true,
			"confirmed_at":    now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if !ok {
			return errLostRace
		}
		if err := s.ledger.DecrementAll(ctx, tx, orders.Lines(locked)); err != nil {
			return err
		}

		paymentUpdates := map[string]any{"status": enums.PaymentStatusSuccess}
		if input.PaymentID != "" {
			paymentUpdates["razorpay_payment_id"] = input.PaymentID
		}
		if input.Signature != nil {
			paymentUpdates["razorpay_signature"] = *input.Signature
		}
		if err := repo.UpdatePayment(ctx, payment.ID, paymentUpdates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment record")
		}

		locked.Status = enums.OrderStatusConfirmed
		locked.PaymentStatus = enums.PaymentStatusSuccess
		locked.StockCommitted = true
		locked.ConfirmedAt = &now
		return nil
	})

	ctx = s.logg.WithField(ctx, "source", input.Source)
	switch {
	case errors.Is(err, errLostRace):
		current, loadErr := s.repo.FindByID(ctx, order.ID)
		if loadErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "reload order")
		}
		s.record(OutcomeAlreadyConfirmed)
		return resultFor(current, true), nil
	case err != nil:
		if pkgerrors.Is(err, pkgerrors.CodeInsufficientStock) {
			// The buyer has paid, so a shortfall here needs a refund.
			s.logg.Error(ctx, "payment.stock_shortfall", err)
		}
		if !pkgerrors.Is(err, pkgerrors.CodeAmountMismatch) {
			s.record(OutcomeFailed)
		}
		return nil, err
	case already:
		s.record(OutcomeAlreadyConfirmed)
		return resultFor(order, true), nil
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "payment.verified")
	s.record(OutcomeConfirmed)
	s.hooks.Run(ctx, s.logg, orders.NewEvent(enums.OrderEventConfirmed, order, s.now()))
	return resultFor(order, false), nil
}

func (s *Service) checkAmount(ctx context.Context, order *models.Order, paidPaise int64) error {
	expected := orders.AmountInPaise(order.TotalAmount)
	if paidPaise == expected {
		return nil
	}
	s.record(OutcomeAmountMismatch)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"expected_paise": expected,
		"paid_paise":     paidPaise,
	})
	s.logg.Error(logCtx, "payment.amount_mismatch", nil)
	return pkgerrors.New(pkgerrors.CodeAmountMismatch, "Payment amount does not match order total")
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.PaymentVerification(outcome)
	}
}
