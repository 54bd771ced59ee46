package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository exposes persistence operations for shopper carts.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// ClearItems deletes every item in the user's cart and reports how many went.
func (r *Repository) ClearItems(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("cart_id IN (?)", r.cartIDs(userID)).
		Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

// CountItems returns the number of lines in the user's cart.
func (r *Repository) CountItems(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("cart_id IN (?)", r.cartIDs(userID)).
		Count(&count).Error
	return count, err
}

func (r *Repository) cartIDs(userID uuid.UUID) *gorm.DB {
	return r.db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
}
