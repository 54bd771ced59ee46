package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	pendingOrderExpiryJobName = "pending_order_expiry"
	defaultPendingOrderTTL    = 48 * time.Hour
	defaultExpiryBatchSize    = 100
)

type staleOrderLister interface {
	ListStalePending(ctx context.Context, method enums.PaymentMethod, cutoff time.Time, limit int) ([]models.Order, error)
}

type pendingExpirer interface {
	ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// ItemCounter counts rows a job acted on.
type ItemCounter interface {
	AddProcessed(job string, n int)
}

// PendingOrderExpiryJobParams configure the stale checkout sweep.
type PendingOrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderLister
	Expirer   pendingExpirer
	Metrics   ItemCounter
	TTL       time.Duration
	BatchSize int
	Now       func() time.Time
}

type pendingOrderExpiryJob struct {
	logg      *logger.Logger
	orders    staleOrderLister
	expirer   pendingExpirer
	metrics   ItemCounter
	ttl       time.Duration
	batchSize int
	now       func() time.Time
}

// NewPendingOrderExpiryJob cancels gateway orders whose payment never
// arrived. Expiry goes through the order service so committed stock, COD
// counters and hooks follow the normal cancellation path.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Orders == nil {
		return nil, errors.New("order repository is required")
	}
	if params.Expirer == nil {
		return nil, errors.New("order service is required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &pendingOrderExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		expirer:   params.Expirer,
		metrics:   params.Metrics,
		ttl:       ttl,
		batchSize: batch,
		now:       now,
	}, nil
}

func (j *pendingOrderExpiryJob) Name() string { return pendingOrderExpiryJobName }

func (j *pendingOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	// skipped holds orders that stay listed after an attempt, either because
	// expiry failed or because the order was left untouched.
	skipped := map[uuid.UUID]struct{}{}
	var (
		expired int
		failed  int
		errs    error
	)
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		limit := j.batchSize + len(skipped)
		rows, err := j.orders.ListStalePending(ctx, enums.PaymentMethodRazorpay, cutoff, limit)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list stale orders: %w", err))
		}
		attempted := 0
		for _, order := range rows {
			if _, skip := skipped[order.ID]; skip {
				continue
			}
			attempted++
			changed, err := j.expirer.ExpirePending(ctx, order.ID)
			if err != nil {
				failed++
				skipped[order.ID] = struct{}{}
				errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
				continue
			}
			if !changed {
				skipped[order.ID] = struct{}{}
				continue
			}
			expired++
		}
		if len(rows) < limit || attempted == 0 {
			break
		}
	}

	if j.metrics != nil {
		j.metrics.AddProcessed(pendingOrderExpiryJobName, expired)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff.Format(time.RFC3339),
		"expired": expired,
		"failed":  failed,
	})
	j.logg.Info(logCtx, "cron.pending_orders_expired")
	return errs
}
