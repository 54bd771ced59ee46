package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// Service exposes cart maintenance used around checkout.
type Service interface {
	ClearForUser(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo  CartRepository
	cache cacheDeleter
	logg  *logger.Logger
}

// NewService builds a cart service. cache may be nil when no cart view is cached.
func NewService(repo CartRepository, cache cacheDeleter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, errors.New("cart repository required")
	}
	return &service{repo: repo, cache: cache, logg: logg}, nil
}

// ClearForUser empties the cart and drops its cached view.
func (s *service) ClearForUser(ctx context.Context, userID uuid.UUID) error {
	removed, err := s.repo.ClearItems(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart items")
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, redis.CartKey(userID.String())); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop cart cache")
		}
	}
	if removed > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id":       userID.String(),
			"removed_items": removed,
		}), "cart.cleared")
	}
	return nil
}

// ClearHook empties the buyer's cart once an order is paid for, or straight
// away for cash-on-delivery orders which need no payment step.
func ClearHook(svc Service) orders.Hook {
	return orders.NewHook("cart.clear", func(ctx context.Context, event orders.Event) error {
		switch {
		case event.Type == enums.OrderEventConfirmed:
		case event.Type == enums.OrderEventPlaced && event.PaymentMethod == enums.PaymentMethodCOD:
		default:
			return nil
		}
		return svc.ClearForUser(ctx, event.UserID)
	})
}
