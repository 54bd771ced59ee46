package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/razorpay"
)

const (
	orderNumberAttempts = 3
	trackingNotFoundMsg = "Order not found. Please check your order ID and email."
)

// Service defines checkout, order queries and the non-payment transitions.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error)
	ListOrders(ctx context.Context, userID uuid.UUID, filter ListFilter) (*OrderList, error)
	GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	TrackOrder(ctx context.Context, input TrackInput) (*TrackingView, error)
	CancelOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, input StatusUpdateInput) (*OrderDTO, error)
	CreatePaymentOrder(ctx context.Context, userID, orderID uuid.UUID) (*CheckoutSession, error)
	FailPayment(ctx context.Context, gatewayOrderID string) (FailOutcome, error)
	ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// Metrics records checkout outcomes.
type Metrics interface {
	OrderCreated(method string)
}

// ServiceParams carries the order service dependencies.
type ServiceParams struct {
	Repo              Repository
	Variants          VariantReader
	Ledger            StockLedger
	COD               CODGate
	Gateway           GatewayClient
	TransactionRunner txRunner
	Pricing           Pricing
	Currency          string
	Hooks             Hooks
	Metrics           Metrics
	Logger            *logger.Logger
	Now               func() time.Time
}

type service struct {
	repo     Repository
	variants VariantReader
	ledger   StockLedger
	cod      CODGate
	gateway  GatewayClient
	tx       txRunner
	pricing  Pricing
	currency string
	hooks    Hooks
	metrics  Metrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Variants == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "variant reader required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stock ledger required")
	}
	if params.COD == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cod gate required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	currency := params.Currency
	if currency == "" {
		currency = "INR"
	}
	pricing := params.Pricing
	if pricing == (Pricing{}) {
		pricing = DefaultPricing()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		variants: params.Variants,
		ledger:   params.Ledger,
		cod:      params.COD,
		gateway:  params.Gateway,
		tx:       params.TransactionRunner,
		pricing:  pricing,
		currency: currency,
		hooks:    params.Hooks,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*CreateOrderResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid payment method")
	}
	requested, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}

	items, err := s.buildItems(ctx, requested)
	if err != nil {
		return nil, err
	}
	totals := ComputeTotals(items, s.pricing)

	if input.PaymentMethod == enums.PaymentMethodCOD {
		if decision := s.cod.CanPlaceOrder(ctx, userID, totals.Total); !decision.Allowed {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, decision.Reason)
		}
	}

	order := &models.Order{
		UserID:          userID,
		Subtotal:        totals.Subtotal,
		ShippingCost:    totals.Shipping,
		TotalAmount:     totals.Total,
		ShippingAddress: input.ShippingAddress.Normalized(),
		PaymentMethod:   input.PaymentMethod,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		Notes:           trimmedOrNil(input.Notes),
		Items:           items,
		Payment: &models.Payment{
			Method: input.PaymentMethod,
			Status: enums.PaymentStatusPending,
		},
	}

	// The gateway order is opened before the transaction so a gateway outage
	// never leaves an unpayable order behind. It is opened per insert attempt
	// so its notes always carry the order number that was stored.
	var session *CheckoutSession
	attach := func(*models.Order) error { return nil }
	if input.PaymentMethod == enums.PaymentMethodRazorpay {
		attach = func(o *models.Order) error {
			gatewayOrder, err := s.openGatewayOrder(ctx, userID, o.OrderNumber, o.TotalAmount)
			if err != nil {
				return err
			}
			o.Payment.RazorpayOrderID = &gatewayOrder.ID
			session = s.sessionFor(gatewayOrder)
			return nil
		}
	}

	if err := s.insertOrder(ctx, order, attach); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"order_number":   order.OrderNumber,
		"payment_method": string(order.PaymentMethod),
	})
	s.logg.Info(ctx, "order.created")
	if s.metrics != nil {
		s.metrics.OrderCreated(string(order.PaymentMethod))
	}
	if order.PaymentMethod == enums.PaymentMethodCOD {
		if err := s.cod.RecordPlaced(ctx, userID); err != nil {
			s.logg.Warn(ctx, "order.cod_counter_failed")
		}
	}
	s.hooks.Run(ctx, s.logg, NewEvent(enums.OrderEventPlaced, order, s.now()))

	return &CreateOrderResult{Order: Summarize(order), Razorpay: session}, nil
}

// insertOrder writes the order, its items and payment record in one
// transaction, regenerating the order number on collision. attach runs once
// the number of each attempt is known.
func (s *service) insertOrder(ctx context.Context, order *models.Order, attach func(*models.Order) error) error {
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order.OrderNumber = NewOrderNumber(s.now())
		if err := attach(order); err != nil {
			return err
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).CreateOrder(ctx, order)
		})
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "order_number") {
			break
		}
		resetIDs(order)
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
}

func resetIDs(order *models.Order) {
	order.ID = uuid.Nil
	for i := range order.Items {
		order.Items[i].ID = uuid.Nil
		order.Items[i].OrderID = uuid.Nil
	}
	if order.Payment != nil {
		order.Payment.ID = uuid.Nil
		order.Payment.OrderID = uuid.Nil
	}
}

func (s *service) buildItems(ctx context.Context, requested []ItemInput) ([]models.OrderItem, error) {
	ids := make([]uuid.UUID, 0, len(requested))
	for _, item := range requested {
		ids = append(ids, item.VariantID)
	}
	variants, err := s.variants.FindVariants(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	byID := make(map[uuid.UUID]models.ProductVariant, len(variants))
	for _, v := range variants {
		byID[v.ID] = v
	}

	items := make([]models.OrderItem, 0, len(requested))
	for _, req := range requested {
		variant, ok := byID[req.VariantID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("Variant %s not found", req.VariantID))
		}
		if variant.Product == nil || !variant.Product.IsActive {
			name := "Product"
			if variant.Product != nil {
				name = variant.Product.Name
			}
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is no longer available", name))
		}
		// Advisory only. Stock moves when payment is verified.
		if variant.Stock < req.Quantity {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("Insufficient stock for %s. Available: %d",
					describeItem(variant.Product.Name, variant.Size, variant.Color), variant.Stock))
		}
		items = append(items, models.OrderItem{
			VariantID:   variant.ID,
			ProductName: variant.Product.Name,
			Size:        variant.Size,
			Color:       variant.Color,
			Quantity:    req.Quantity,
			Price:       variant.Product.Price,
		})
	}
	return items, nil
}

func (s *service) openGatewayOrder(ctx context.Context, userID uuid.UUID, orderNumber string, total decimal.Decimal) (*razorpay.Order, error) {
	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   AmountInPaise(total),
		Currency: s.currency,
		Receipt:  NewReceipt(),
		Notes: map[string]string{
			"user_id":      userID.String(),
			"order_number": orderNumber,
		},
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create gateway order")
	}
	return gatewayOrder, nil
}

func (s *service) sessionFor(gatewayOrder *razorpay.Order) *CheckoutSession {
	currency := gatewayOrder.Currency
	if currency == "" {
		currency = s.currency
	}
	return &CheckoutSession{
		OrderID:  gatewayOrder.ID,
		Amount:   gatewayOrder.Amount,
		Currency: currency,
		Key:      s.gateway.KeyID(),
	}
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, filter ListFilter) (*OrderList, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	rows, total, err := s.repo.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), Pagination: pagination.MetaFor(filter.Page, total)}
	for i := range rows {
		list.Orders = append(list.Orders, ToDTO(&rows[i]))
	}
	return list, nil
}

func (s *service) GetOrder(ctx context.Context, actor Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || (!actor.IsAdmin() && order.UserID != actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	dto := ToDTO(order)
	return &dto, nil
}

func (s *service) TrackOrder(ctx context.Context, input TrackInput) (*TrackingView, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	var (
		order *models.Order
		err   error
	)
	switch {
	case strings.TrimSpace(input.OrderID) != "":
		id, parseErr := uuid.Parse(strings.TrimSpace(input.OrderID))
		if parseErr != nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, trackingNotFoundMsg)
		}
		order, err = s.repo.FindByID(ctx, id)
	case strings.TrimSpace(input.OrderNumber) != "":
		order, err = s.repo.FindByOrderNumber(ctx, input.OrderNumber)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id or order number is required")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, trackingNotFoundMsg)
	}

	ownerEmail, err := s.repo.FindUserEmail(ctx, order.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order owner")
	}
	if ownerEmail == "" || !strings.EqualFold(ownerEmail, email) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, trackingNotFoundMsg)
	}
	view := toTrackingView(order)
	return &view, nil
}

func mergeItems(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Order must have at least one item")
	}
	index := make(map[uuid.UUID]int, len(items))
	merged := make([]ItemInput, 0, len(items))
	for _, item := range items {
		if item.VariantID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id is required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantity must be positive")
		}
		if i, ok := index[item.VariantID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.VariantID] = len(merged)
		merged = append(merged, item)
	}
	return merged, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
