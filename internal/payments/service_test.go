package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
)

func TestVerifyCommitsStockOnceAndReplaysIdempotently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.placeOnlineOrder(t)
	gatewayOrderID := created.Razorpay.OrderID
	require.Equal(t, int64(60000), created.Razorpay.Amount)

	a, b := f.stock(t)
	require.Equal(t, 5, a, "checkout must not reserve stock")
	require.Equal(t, 1, b)

	f.gateway.capture("pay_1", gatewayOrderID, 60000)
	result, err := f.payments.Verify(ctx, f.user.ID, f.verifyInput(gatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.False(t, result.AlreadyConfirmed)
	assert.Equal(t, enums.OrderStatusConfirmed, result.Status)
	assert.Equal(t, enums.PaymentStatusSuccess, result.PaymentStatus)

	a, b = f.stock(t)
	assert.Equal(t, 2, a)
	assert.Equal(t, 0, b)

	order := f.loadOrder(t, created.Order.ID)
	assert.True(t, order.StockCommitted)
	require.NotNil(t, order.ConfirmedAt)
	require.NotNil(t, order.Payment)
	assert.Equal(t, enums.PaymentStatusSuccess, order.Payment.Status)
	require.NotNil(t, order.Payment.RazorpayPaymentID)
	assert.Equal(t, "pay_1", *order.Payment.RazorpayPaymentID)

	replay, err := f.payments.Verify(ctx, f.user.ID, f.verifyInput(gatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.True(t, replay.AlreadyConfirmed)
	a, b = f.stock(t)
	assert.Equal(t, 2, a)
	assert.Equal(t, 0, b)

	assert.Equal(t, 1, f.hook.ofType(enums.OrderEventConfirmed))
	assert.Equal(t, 1, f.metrics.count(OutcomeConfirmed))
	assert.Equal(t, 1, f.metrics.count(OutcomeAlreadyConfirmed))
}

func TestVerifyRejectsTamperedAmount(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)
	gatewayOrderID := created.Razorpay.OrderID
	f.gateway.capture("pay_low", gatewayOrderID, 100)

	_, err := f.payments.Verify(context.Background(), f.user.ID, f.verifyInput(gatewayOrderID, "pay_low"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeAmountMismatch, pkgerrors.CodeOf(err))

	order := f.loadOrder(t, created.Order.ID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.False(t, order.StockCommitted)
	a, b := f.stock(t)
	assert.Equal(t, 5, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, f.metrics.count(OutcomeAmountMismatch))
}

func TestVerifyRejectsInvalidSignature(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)
	input := f.verifyInput(created.Razorpay.OrderID, "pay_1")
	input.RazorpaySignature = razorpay.Sign([]byte("forged"), testKeySecret)

	_, err := f.payments.Verify(context.Background(), f.user.ID, input)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInvalidSignature, pkgerrors.CodeOf(err))
	assert.Zero(t, f.gateway.fetches, "no gateway call before the signature checks out")
	assert.Equal(t, enums.OrderStatusPending, f.loadOrder(t, created.Order.ID).Status)
}

func TestVerifyRejectsOtherUsersPayment(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)
	f.gateway.capture("pay_1", created.Razorpay.OrderID, 60000)

	_, err := f.payments.Verify(context.Background(), uuid.New(), f.verifyInput(created.Razorpay.OrderID, "pay_1"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeForbidden, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.OrderStatusPending, f.loadOrder(t, created.Order.ID).Status)
}

func TestVerifyRejectsMismatchedOrderID(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)
	f.gateway.capture("pay_1", created.Razorpay.OrderID, 60000)
	input := f.verifyInput(created.Razorpay.OrderID, "pay_1")
	other := uuid.New()
	input.OrderID = &other

	_, err := f.payments.Verify(context.Background(), f.user.ID, input)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestVerifyUnknownGatewayOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.payments.Verify(context.Background(), f.user.ID, f.verifyInput("order_missing", "pay_1"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestVerifyRequiresCapturedPayment(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)
	f.gateway.capture("pay_1", created.Razorpay.OrderID, 60000)
	f.gateway.payments["pay_1"].Status = "authorized"

	_, err := f.payments.Verify(context.Background(), f.user.ID, f.verifyInput(created.Razorpay.OrderID, "pay_1"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "authorized", details["gateway_status"])
	assert.Equal(t, 1, f.metrics.count(OutcomeNotCaptured))
}

func TestVerifyGatewayOutageIsRetryable(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)
	f.gateway.fetchErr = pkgerrors.New(pkgerrors.CodeGateway, "razorpay unavailable")

	_, err := f.payments.Verify(context.Background(), f.user.ID, f.verifyInput(created.Razorpay.OrderID, "pay_1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsRetryable(err))
	assert.Equal(t, enums.OrderStatusPending, f.loadOrder(t, created.Order.ID).Status)
}

func TestConfirmRollsBackOnStockShortfall(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)
	// Another buyer took the last hoodie between checkout and payment.
	require.NoError(t, f.conn.Exec("UPDATE product_variants SET stock = 0 WHERE id = ?", f.variantB.ID).Error)

	_, err := f.payments.Confirm(context.Background(), ConfirmInput{
		GatewayOrderID: created.Razorpay.OrderID,
		PaymentID:      "pay_1",
		AmountPaise:    60000,
		Source:         "webhook",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.CodeOf(err))

	order := f.loadOrder(t, created.Order.ID)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	assert.False(t, order.StockCommitted)
	a, _ := f.stock(t)
	assert.Equal(t, 5, a, "partial decrements roll back")
	assert.Zero(t, f.hook.ofType(enums.OrderEventConfirmed))
}

func TestConfirmAfterCancellationNeedsRefund(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)
	_, err := f.orders.CancelOrder(context.Background(), ordersActor(f), created.Order.ID)
	require.NoError(t, err)

	_, err = f.payments.Confirm(context.Background(), ConfirmInput{
		GatewayOrderID: created.Razorpay.OrderID,
		PaymentID:      "pay_late",
		AmountPaise:    60000,
		Source:         "webhook",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.CodeOf(err))
	a, b := f.stock(t)
	assert.Equal(t, 5, a)
	assert.Equal(t, 1, b)
}

func TestConfirmChecksWebhookAmount(t *testing.T) {
	f := newFixture(t)
	created := f.placeOnlineOrder(t)

	_, err := f.payments.Confirm(context.Background(), ConfirmInput{
		GatewayOrderID: created.Razorpay.OrderID,
		PaymentID:      "pay_1",
		AmountPaise:    59999,
		Source:         "webhook",
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeAmountMismatch, pkgerrors.CodeOf(err))
	assert.Equal(t, enums.OrderStatusPending, f.loadOrder(t, created.Order.ID).Status)
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.CodeOf(err))
}
