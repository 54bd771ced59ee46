package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// CreatePaymentOrder opens a fresh gateway order for an unpaid online order,
// for shoppers whose first checkout session expired or was abandoned.
func (s *service) CreatePaymentOrder(ctx context.Context, userID, orderID uuid.UUID) (*CheckoutSession, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	if order.PaymentStatus == enums.PaymentStatusSuccess {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Order already paid")
	}
	if order.PaymentMethod != enums.PaymentMethodRazorpay {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Order is not payable online")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "Order is no longer awaiting payment")
	}
	if order.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order has no payment record")
	}

	gatewayOrder, err := s.openGatewayOrder(ctx, userID, order.OrderNumber, order.TotalAmount)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if locked == nil || locked.PaymentStatus == enums.PaymentStatusSuccess {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order already paid")
		}
		if locked.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order is no longer awaiting payment")
		}
		return repo.UpdatePayment(ctx, order.Payment.ID, map[string]any{
			"razorpay_order_id": gatewayOrder.ID,
			"status":            enums.PaymentStatusPending,
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach gateway order")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order.gateway_order_reopened")
	return s.sessionFor(gatewayOrder), nil
}
