package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	lowStockThreshold = 5
	recentOrderLimit  = 5
)

// RecentOrder is an order row joined with its customer.
type RecentOrder struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"orderNumber"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	PaymentMethod enums.PaymentMethod `json:"paymentMethod"`
	CustomerName  string              `json:"customerName"`
	CustomerEmail string              `json:"customerEmail"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// Stats is the admin overview.
type Stats struct {
	TotalRevenue   decimal.Decimal               `json:"totalRevenue"`
	TotalOrders    int64                         `json:"totalOrders"`
	TotalCustomers int64                         `json:"totalCustomers"`
	PendingOrders  int64                         `json:"pendingOrders"`
	LowStockCount  int64                         `json:"lowStockCount"`
	PaymentSplit   map[enums.PaymentMethod]int64 `json:"paymentSplit"`
	RecentOrders   []RecentOrder                 `json:"recentOrders"`
}

type Service interface {
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "dashboard repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	var (
		stats Stats
		err   error
	)
	if stats.TotalRevenue, err = s.repo.Revenue(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum revenue")
	}
	if stats.TotalOrders, err = s.repo.CountOrders(ctx, nil); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count orders")
	}
	pending := enums.OrderStatusPending
	if stats.PendingOrders, err = s.repo.CountOrders(ctx, &pending); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pending orders")
	}
	if stats.TotalCustomers, err = s.repo.CountCustomers(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count customers")
	}
	if stats.LowStockCount, err = s.repo.CountLowStock(ctx, lowStockThreshold); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count low stock variants")
	}
	if stats.PaymentSplit, err = s.repo.PaymentSplit(ctx); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "split payment methods")
	}
	if stats.RecentOrders, err = s.repo.RecentOrders(ctx, recentOrderLimit); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recent orders")
	}
	if stats.RecentOrders == nil {
		stats.RecentOrders = []RecentOrder{}
	}
	return &stats, nil
}
