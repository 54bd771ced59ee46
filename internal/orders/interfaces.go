package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cod"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
)

// Repository defines persistence operations for orders and their payment
// records. Finders return nil, nil when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByOrderNumber(ctx context.Context, number string) (*models.Order, error)
	FindPaymentByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	FindUserEmail(ctx context.Context, userID uuid.UUID) (string, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter ListFilter) ([]models.Order, int64, error)
	ListStalePending(ctx context.Context, method enums.PaymentMethod, cutoff time.Time, limit int) ([]models.Order, error)
	CountCODByUser(ctx context.Context, statuses []enums.OrderStatus, since *time.Time) (map[uuid.UUID]int64, error)
	// CompareAndSetState applies updates only while the order still holds the
	// expected state and reports whether it did.
	CompareAndSetState(ctx context.Context, id uuid.UUID, expect State, updates map[string]any) (bool, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdatePayment(ctx context.Context, paymentID uuid.UUID, updates map[string]any) error
}

// State is the pair of statuses guarded by every transition.
type State struct {
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
}

// StateOf snapshots the state of an order.
func StateOf(order *models.Order) State {
	return State{Status: order.Status, PaymentStatus: order.PaymentStatus}
}

// ListFilter narrows a shopper's order listing.
type ListFilter struct {
	Status *enums.OrderStatus
	Page   pagination.Page
}

// GatewayClient opens gateway orders for checkout.
type GatewayClient interface {
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	KeyID() string
}

// CODGate is the cash-on-delivery admission capability.
type CODGate interface {
	CanPlaceOrder(ctx context.Context, userID uuid.UUID, value decimal.Decimal) cod.Decision
	RecordPlaced(ctx context.Context, userID uuid.UUID) error
	RecordClosed(ctx context.Context, userID uuid.UUID) error
	RecordCancelled(ctx context.Context, userID uuid.UUID) error
}

// StockLedger moves stock inside the caller's transaction.
type StockLedger interface {
	DecrementAll(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	IncrementAll(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

// VariantReader loads variants with their products for checkout.
type VariantReader interface {
	FindVariants(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
