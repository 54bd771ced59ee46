package razorpaywebhook

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// DefaultDedupTTL bounds how long a processed delivery is remembered.
const DefaultDedupTTL = 24 * time.Hour

type dedupStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Guard filters repeated webhook deliveries. Store failures degrade to
// processing the delivery again, which the payment guards make safe.
type Guard struct {
	store dedupStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewGuard remembers processed deliveries for ttl, DefaultDedupTTL when unset.
func NewGuard(store dedupStore, ttl time.Duration, logg *logger.Logger) (*Guard, error) {
	if store == nil {
		return nil, errors.New("dedup store is required")
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Guard{store: store, ttl: ttl, logg: logg}, nil
}

// Seen reports whether eventID was already processed.
func (g *Guard) Seen(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return false
	}
	seen, err := g.store.Exists(ctx, redis.WebhookKey(eventID))
	if err != nil {
		g.logg.Error(g.logg.WithField(ctx, "event_key", eventID), "webhook.dedup_read_failed", err)
		return false
	}
	return seen
}

// Mark records eventID as processed.
func (g *Guard) Mark(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	if err := g.store.Set(ctx, redis.WebhookKey(eventID), "1", g.ttl); err != nil {
		g.logg.Error(g.logg.WithField(ctx, "event_key", eventID), "webhook.dedup_write_failed", err)
	}
}
