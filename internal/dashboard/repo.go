package dashboard

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository runs the aggregate reads behind the admin dashboard.
type Repository interface {
	Revenue(ctx context.Context) (decimal.Decimal, error)
	CountOrders(ctx context.Context, status *enums.OrderStatus) (int64, error)
	CountCustomers(ctx context.Context) (int64, error)
	CountLowStock(ctx context.Context, threshold int) (int64, error)
	PaymentSplit(ctx context.Context) (map[enums.PaymentMethod]int64, error)
	RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Revenue(ctx context.Context) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	row := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("SUM(total_amount)").
		Where("payment_status = ?", enums.PaymentStatusSuccess).
		Row()
	if err := row.Scan(&total); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *repository) CountOrders(ctx context.Context, status *enums.OrderStatus) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

func (r *repository) CountCustomers(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", enums.RoleUser).Count(&count).Error
	return count, err
}

func (r *repository) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProductVariant{}).Where("stock <= ?", threshold).Count(&count).Error
	return count, err
}

func (r *repository) PaymentSplit(ctx context.Context) (map[enums.PaymentMethod]int64, error) {
	var rows []struct {
		PaymentMethod enums.PaymentMethod
		Count         int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("payment_method, COUNT(*) AS count").
		Group("payment_method").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	split := make(map[enums.PaymentMethod]int64, len(rows))
	for _, row := range rows {
		split[row.PaymentMethod] = row.Count
	}
	return split, nil
}

func (r *repository) RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error) {
	var rows []RecentOrder
	err := r.db.WithContext(ctx).
		Table("orders").
		Select(`orders.id, orders.order_number, orders.total_amount, orders.status,
			orders.payment_status, orders.payment_method, orders.created_at,
			users.name AS customer_name, users.email AS customer_email`).
		Joins("JOIN users ON users.id = orders.user_id").
		Order("orders.created_at DESC, orders.id DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
