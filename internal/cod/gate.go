package cod

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

const accountBlockedReason = "COD is not available for your account. Please use online payment."

// Limits are the admission thresholds for cash-on-delivery orders.
type Limits struct {
	MaxActiveOrders    int64
	MaxOrderValue      decimal.Decimal
	MaxCancellations   int64
	ActiveTTL          time.Duration
	CancellationWindow time.Duration
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxActiveOrders:    3,
		MaxOrderValue:      decimal.NewFromInt(5000),
		MaxCancellations:   2,
		ActiveTTL:          7 * 24 * time.Hour,
		CancellationWindow: 30 * 24 * time.Hour,
	}
}

// LimitsFromConfig parses the COD section of the service config.
func LimitsFromConfig(cfg config.CODConfig) (Limits, error) {
	maxValue, err := decimal.NewFromString(cfg.MaxOrderValue)
	if err != nil {
		return Limits{}, fmt.Errorf("parse cod max order value: %w", err)
	}
	return Limits{
		MaxActiveOrders:    int64(cfg.MaxActiveOrders),
		MaxOrderValue:      maxValue,
		MaxCancellations:   int64(cfg.MaxCancellations),
		ActiveTTL:          cfg.ActiveTTL,
		CancellationWindow: cfg.CancellationWindow,
	}, nil
}

// Decision is the outcome of an admission check. Reason is shown to the
// shopper verbatim.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Gate scores COD admission from best-effort cache counters. Counter reads
// that fail count as zero and counter writes that fail are only logged.
type Gate struct {
	store  redis.CounterStore
	limits Limits
	logg   *logger.Logger
}

// NewGate builds the gate over a counter store.
func NewGate(store redis.CounterStore, limits Limits, logg *logger.Logger) (*Gate, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "counter store required")
	}
	return &Gate{store: store, limits: limits, logg: logg}, nil
}

// CanPlaceOrder decides whether userID may place a COD order worth value
// rupees.
func (g *Gate) CanPlaceOrder(ctx context.Context, userID uuid.UUID, value decimal.Decimal) Decision {
	if active := g.ActiveOrders(ctx, userID); active >= g.limits.MaxActiveOrders {
		return Decision{Reason: fmt.Sprintf("Maximum %d active COD orders allowed", g.limits.MaxActiveOrders)}
	}
	if value.GreaterThan(g.limits.MaxOrderValue) {
		return Decision{Reason: fmt.Sprintf("COD not available for orders above ₹%s", g.limits.MaxOrderValue.String())}
	}
	if cancelled := g.Cancellations(ctx, userID); cancelled >= g.limits.MaxCancellations {
		return Decision{Reason: accountBlockedReason}
	}
	return Decision{Allowed: true}
}

// ActiveOrders returns the active COD order counter.
func (g *Gate) ActiveOrders(ctx context.Context, userID uuid.UUID) int64 {
	return g.read(ctx, redis.CODActiveKey(userID.String()))
}

// Cancellations returns the COD cancellation counter.
func (g *Gate) Cancellations(ctx context.Context, userID uuid.UUID) int64 {
	return g.read(ctx, redis.CODCancellationsKey(userID.String()))
}

// RecordPlaced bumps the active counter and refreshes its TTL.
func (g *Gate) RecordPlaced(ctx context.Context, userID uuid.UUID) error {
	key := redis.CODActiveKey(userID.String())
	if _, err := g.store.Incr(ctx, key); err != nil {
		return g.counterFailed(ctx, "incr_active", key, err)
	}
	if err := g.store.Expire(ctx, key, g.limits.ActiveTTL); err != nil {
		return g.counterFailed(ctx, "expire_active", key, err)
	}
	return nil
}

// RecordClosed lowers the active counter, never below zero. It runs on
// delivery and on cancellation.
func (g *Gate) RecordClosed(ctx context.Context, userID uuid.UUID) error {
	key := redis.CODActiveKey(userID.String())
	if g.read(ctx, key) <= 0 {
		return nil
	}
	value, err := g.store.Decr(ctx, key)
	if err != nil {
		return g.counterFailed(ctx, "decr_active", key, err)
	}
	if value < 0 {
		if err := g.store.Set(ctx, key, 0, g.limits.ActiveTTL); err != nil {
			return g.counterFailed(ctx, "floor_active", key, err)
		}
	}
	return nil
}

// RecordCancelled closes the active order and counts the cancellation
// against the user for the cancellation window.
func (g *Gate) RecordCancelled(ctx context.Context, userID uuid.UUID) error {
	closeErr := g.RecordClosed(ctx, userID)

	key := redis.CODCancellationsKey(userID.String())
	if _, err := g.store.Incr(ctx, key); err != nil {
		return g.counterFailed(ctx, "incr_cancellations", key, err)
	}
	if err := g.store.Expire(ctx, key, g.limits.CancellationWindow); err != nil {
		return g.counterFailed(ctx, "expire_cancellations", key, err)
	}
	return closeErr
}

// Reset overwrites both counters. Used by the reconciliation job.
func (g *Gate) Reset(ctx context.Context, userID uuid.UUID, active, cancellations int64) error {
	if err := g.store.Set(ctx, redis.CODActiveKey(userID.String()), active, g.limits.ActiveTTL); err != nil {
		return err
	}
	return g.store.Set(ctx, redis.CODCancellationsKey(userID.String()), cancellations, g.limits.CancellationWindow)
}

// Limits returns the configured thresholds.
func (g *Gate) Limits() Limits {
	return g.limits
}

func (g *Gate) read(ctx context.Context, key string) int64 {
	raw, err := g.store.Get(ctx, key)
	if err != nil {
		if !redis.IsMiss(err) {
			g.counterFailed(ctx, "read", key, err)
		}
		return 0
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return value
}

func (g *Gate) counterFailed(ctx context.Context, op, key string, err error) error {
	ctx = g.logg.WithFields(ctx, map[string]any{"op": op, "key": key, "error": err.Error()})
	g.logg.Warn(ctx, "cod.counter_failed")
	return err
}
