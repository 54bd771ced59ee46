package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// Actor identifies who is acting on an order.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// IsAdmin reports whether the actor may act on any order.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// ItemInput is one requested line of a checkout.
type ItemInput struct {
	VariantID uuid.UUID `json:"variantId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1,max=100"`
}

// CreateOrderInput is the checkout request.
type CreateOrderInput struct {
	Items           []ItemInput           `json:"items" validate:"required,min=1,max=50,dive"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress" validate:"required"`
	PaymentMethod   enums.PaymentMethod   `json:"paymentMethod" validate:"required,oneof=RAZORPAY COD"`
	Notes           *string               `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// OrderSummary is the compact order block returned from checkout.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"orderNumber"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
}

// CheckoutSession is what the client needs to open the gateway payment UI.
type CheckoutSession struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Key      string `json:"key"`
}

// CreateOrderResult is the checkout response.
type CreateOrderResult struct {
	Order    OrderSummary     `json:"order"`
	Razorpay *CheckoutSession `json:"razorpay,omitempty"`
}

// ItemDTO is a line item as shown to clients.
type ItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	VariantID   uuid.UUID       `json:"variantId"`
	ProductName string          `json:"productName"`
	Size        string          `json:"size"`
	Color       string          `json:"color"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// PaymentDTO omits the verification signature.
type PaymentDTO struct {
	Method            enums.PaymentMethod `json:"method"`
	Status            enums.PaymentStatus `json:"status"`
	RazorpayOrderID   *string             `json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID *string             `json:"razorpayPaymentId,omitempty"`
}

// OrderDTO is the full order view for its owner and admins.
type OrderDTO struct {
	OrderSummary
	Subtotal        decimal.Decimal       `json:"subtotal"`
	ShippingCost    decimal.Decimal       `json:"shippingCost"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress"`
	TrackingNumber  *string               `json:"trackingNumber,omitempty"`
	Notes           *string               `json:"notes,omitempty"`
	Items           []ItemDTO             `json:"items"`
	Payment         *PaymentDTO           `json:"payment,omitempty"`
	ConfirmedAt     *time.Time            `json:"confirmedAt,omitempty"`
	CancelledAt     *time.Time            `json:"cancelledAt,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// OrderList is one page of a shopper's orders.
type OrderList struct {
	Orders     []OrderDTO      `json:"orders"`
	Pagination pagination.Meta `json:"pagination"`
}

// TrackInput identifies an order by id or number plus the owner's email.
type TrackInput struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Email       string `json:"email" validate:"required,email"`
}

// TrackingView is the redacted order view served to anonymous tracking.
type TrackingView struct {
	OrderNumber    string              `json:"orderNumber"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"paymentStatus"`
	TrackingNumber *string             `json:"trackingNumber,omitempty"`
	Items          []TrackingItem      `json:"items"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

type TrackingItem struct {
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// StatusUpdateInput is the admin status change request.
type StatusUpdateInput struct {
	Status         enums.OrderStatus `json:"status" validate:"required"`
	TrackingNumber *string           `json:"trackingNumber,omitempty" validate:"omitempty,max=100"`
}

// Summarize builds the compact block for order.
func Summarize(order *models.Order) OrderSummary {
	return OrderSummary{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		TotalAmount:   order.TotalAmount,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
	}
}

// ToDTO maps a loaded order into its client view.
func ToDTO(order *models.Order) OrderDTO {
	items := make([]ItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, ItemDTO{
			ID:          item.ID,
			VariantID:   item.VariantID,
			ProductName: item.ProductName,
			Size:        item.Size,
			Color:       item.Color,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	dto := OrderDTO{
		OrderSummary:    Summarize(order),
		Subtotal:        order.Subtotal,
		ShippingCost:    order.ShippingCost,
		ShippingAddress: order.ShippingAddress,
		TrackingNumber:  order.TrackingNumber,
		Notes:           order.Notes,
		Items:           items,
		ConfirmedAt:     order.ConfirmedAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	if order.Payment != nil {
		dto.Payment = &PaymentDTO{
			Method:            order.Payment.Method,
			Status:            order.Payment.Status,
			RazorpayOrderID:   order.Payment.RazorpayOrderID,
			RazorpayPaymentID: order.Payment.RazorpayPaymentID,
		}
	}
	return dto
}

func toTrackingView(order *models.Order) TrackingView {
	items := make([]TrackingItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, TrackingItem{ProductName: item.ProductName, Quantity: item.Quantity})
	}
	return TrackingView{
		OrderNumber:    order.OrderNumber,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		TrackingNumber: order.TrackingNumber,
		Items:          items,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
}

// Lines converts an order's items into ledger lines.
func Lines(order *models.Order) []inventory.Line {
	lines := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, inventory.Line{
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			Label:     describeItem(item.ProductName, item.Size, item.Color),
		})
	}
	return lines
}

func describeItem(name, size, color string) string {
	return name + " (" + size + " / " + color + ")"
}
