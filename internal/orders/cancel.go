package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// FailOutcome reports what a gateway failure did to the order.
type FailOutcome string

const (
	FailOutcomeCancelled FailOutcome = "cancelled"
	// FailOutcomeIgnored covers unknown gateway orders, orders already paid
	// and orders that were already closed.
	FailOutcomeIgnored FailOutcome = "ignored"
)

func (s *service) CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if loaded == nil || (!actor.IsAdmin() && loaded.UserID != actor.UserID) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
		}
		if !loaded.Status.Cancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order cannot be cancelled at this stage")
		}
		if err := s.cancelLocked(ctx, tx, loaded); err != nil {
			return err
		}
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterCancel(ctx, order)
	dto := ToDTO(order)
	return &dto, nil
}

// cancelLocked moves a locked order to CANCELLED, restoring stock only when
// the order holds it and failing the payment only when it had succeeded.
func (s *service) cancelLocked(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)
	now := s.now().UTC()

	paymentStatus := order.PaymentStatus
	if paymentStatus == enums.PaymentStatusSuccess {
		paymentStatus = enums.PaymentStatusFailed
	}
	ok, err := repo.CompareAndSetState(ctx, order.ID, StateOf(order), map[string]any{
		"status":          enums.OrderStatusCancelled,
		"payment_status":  paymentStatus,
		"stock_committed": false,
		"cancelled_at":    now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "Order was updated concurrently. Please retry.")
	}

	if order.StockCommitted {
		if err := s.ledger.IncrementAll(ctx, tx, Lines(order)); err != nil {
			return err
		}
	}
	if order.Payment != nil && order.Payment.Status == enums.PaymentStatusSuccess {
		if err := repo.UpdatePayment(ctx, order.Payment.ID, map[string]any{"status": enums.PaymentStatusFailed}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment record")
		}
		order.Payment.Status = enums.PaymentStatusFailed
	}

	order.Status = enums.OrderStatusCancelled
	order.PaymentStatus = paymentStatus
	order.StockCommitted = false
	order.CancelledAt = &now
	return nil
}

func (s *service) afterCancel(ctx context.Context, order *models.Order) {
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order.cancelled")
	if order.PaymentMethod == enums.PaymentMethodCOD {
		if err := s.cod.RecordCancelled(ctx, order.UserID); err != nil {
			s.logg.Warn(ctx, "order.cod_counter_failed")
		}
	}
	s.hooks.Run(ctx, s.logg, NewEvent(enums.OrderEventCancelled, order, s.now()))
}

// FailPayment applies a gateway failure to an unpaid order: CANCELLED with
// paymentStatus FAILED. No stock moves because none was committed.
func (s *service) FailPayment(ctx context.Context, gatewayOrderID string) (FailOutcome, error) {
	if gatewayOrderID == "" {
		return FailOutcomeIgnored, nil
	}
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		payment, err := repo.FindPaymentByGatewayOrderID(ctx, gatewayOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment == nil {
			return nil
		}
		loaded, err := repo.FindByIDForUpdate(ctx, payment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if loaded == nil || !failable(loaded) {
			return nil
		}
		changed, err := s.failLocked(ctx, repo, loaded)
		if err != nil || !changed {
			return err
		}
		order = loaded
		return nil
	})
	if err != nil {
		return "", err
	}
	if order == nil {
		return FailOutcomeIgnored, nil
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order.payment_failed")
	s.hooks.Run(ctx, s.logg, NewEvent(enums.OrderEventCancelled, order, s.now()))
	return FailOutcomeCancelled, nil
}

// ExpirePending cancels a stale unpaid gateway order. It reports false when
// the order was paid or closed in the meantime.
func (s *service) ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if loaded == nil || loaded.PaymentMethod != enums.PaymentMethodRazorpay ||
			loaded.Status != enums.OrderStatusPending || !failable(loaded) {
			return nil
		}
		changed, err := s.failLocked(ctx, repo, loaded)
		if err != nil || !changed {
			return err
		}
		order = loaded
		return nil
	})
	if err != nil || order == nil {
		return false, err
	}
	s.hooks.Run(ctx, s.logg, NewEvent(enums.OrderEventCancelled, order, s.now()))
	return true, nil
}

func failable(order *models.Order) bool {
	return order.PaymentStatus != enums.PaymentStatusSuccess && order.Status.Cancellable()
}

func (s *service) failLocked(ctx context.Context, repo Repository, order *models.Order) (bool, error) {
	now := s.now().UTC()
	ok, err := repo.CompareAndSetState(ctx, order.ID, StateOf(order), map[string]any{
		"status":         enums.OrderStatusCancelled,
		"payment_status": enums.PaymentStatusFailed,
		"cancelled_at":   now,
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail order payment")
	}
	if !ok {
		return false, nil
	}
	if order.Payment != nil {
		if err := repo.UpdatePayment(ctx, order.Payment.ID, map[string]any{"status": enums.PaymentStatusFailed}); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment record")
		}
		order.Payment.Status = enums.PaymentStatusFailed
	}
	order.Status = enums.OrderStatusCancelled
	order.PaymentStatus = enums.PaymentStatusFailed
	order.CancelledAt = &now
	return true, nil
}
