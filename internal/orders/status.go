package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// UpdateStatus is the admin fulfilment transition. Online orders only leave
// PENDING through payment. A COD order commits its stock when it first
// leaves PENDING and settles its payment on delivery.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, input StatusUpdateInput) (*OrderDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.Status == enums.OrderStatusCancelled {
		return s.CancelOrder(ctx, Actor{Role: enums.RoleAdmin}, orderID)
	}

	var (
		order    *models.Order
		previous enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		loaded, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if loaded == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
		}
		if loaded.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("Order is already %s", loaded.Status))
		}
		if !loaded.Status.Precedes(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("Cannot move order from %s to %s", loaded.Status, input.Status))
		}
		if loaded.Status == enums.OrderStatusPending && loaded.PaymentMethod != enums.PaymentMethodCOD {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Online orders are confirmed by payment")
		}

		now := s.now().UTC()
		updates := map[string]any{"status": input.Status}
		if tracking := trimmedOrNil(input.TrackingNumber); tracking != nil {
			updates["tracking_number"] = *tracking
			loaded.TrackingNumber = tracking
		}

		commitStock := loaded.PaymentMethod == enums.PaymentMethodCOD && !loaded.StockCommitted
		if commitStock {
			updates["stock_committed"] = true
			if loaded.ConfirmedAt == nil {
				updates["confirmed_at"] = now
				loaded.ConfirmedAt = &now
			}
		}
		settle := input.Status == enums.OrderStatusDelivered && loaded.PaymentMethod == enums.PaymentMethodCOD
		if settle {
			updates["payment_status"] = enums.PaymentStatusSuccess
		}

		ok, err := repo.CompareAndSetState(ctx, loaded.ID, StateOf(loaded), updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "Order was updated concurrently. Please retry.")
		}
		if commitStock {
			if err := s.ledger.DecrementAll(ctx, tx, Lines(loaded)); err != nil {
				return err
			}
			loaded.StockCommitted = true
		}
		if settle {
			if loaded.Payment != nil {
				if err := repo.UpdatePayment(ctx, loaded.Payment.ID, map[string]any{"status": enums.PaymentStatusSuccess}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payment record")
				}
				loaded.Payment.Status = enums.PaymentStatusSuccess
			}
			loaded.PaymentStatus = enums.PaymentStatusSuccess
		}

		previous = loaded.Status
		loaded.Status = input.Status
		order = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":    order.ID.String(),
		"from_status": strings.ToLower(string(previous)),
		"to_status":   strings.ToLower(string(order.Status)),
	})
	s.logg.Info(ctx, "order.status_changed")
	if order.Status == enums.OrderStatusDelivered && order.PaymentMethod == enums.PaymentMethodCOD {
		if err := s.cod.RecordClosed(ctx, order.UserID); err != nil {
			s.logg.Warn(ctx, "order.cod_counter_failed")
		}
	}
	s.hooks.Run(ctx, s.logg, NewEvent(enums.OrderEventStatusChanged, order, s.now()))

	dto := ToDTO(order)
	return &dto, nil
}
