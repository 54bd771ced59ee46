package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	ClearItems(ctx context.Context, userID uuid.UUID) (int64, error)
	CountItems(ctx context.Context, userID uuid.UUID) (int64, error)
}

type cacheDeleter interface {
	Del(ctx context.Context, keys ...string) error
}
