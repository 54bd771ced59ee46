package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/cod"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const codReconcileJobName = "cod_counter_reconcile"

var activeCODStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusConfirmed,
	enums.OrderStatusProcessing,
	enums.OrderStatusShipped,
}

type codOrderCounter interface {
	CountCODByUser(ctx context.Context, statuses []enums.OrderStatus, since *time.Time) (map[uuid.UUID]int64, error)
}

type codCounterResetter interface {
	Reset(ctx context.Context, userID uuid.UUID, active, cancellations int64) error
	Limits() cod.Limits
}

// CODReconcileJobParams configure the COD counter rebuild.
type CODReconcileJobParams struct {
	Logger  *logger.Logger
	Orders  codOrderCounter
	Gate    codCounterResetter
	Metrics ItemCounter
	Now     func() time.Time
}

type codReconcileJob struct {
	logg    *logger.Logger
	orders  codOrderCounter
	gate    codCounterResetter
	metrics ItemCounter
	now     func() time.Time
}

// NewCODReconcileJob rewrites the cache counters used by the COD gate from
// the orders table. Users with no qualifying orders keep whatever the cache
// holds until the keys expire.
func NewCODReconcileJob(params CODReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Orders == nil {
		return nil, errors.New("order repository is required")
	}
	if params.Gate == nil {
		return nil, errors.New("cod gate is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &codReconcileJob{
		logg:    params.Logger,
		orders:  params.Orders,
		gate:    params.Gate,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (j *codReconcileJob) Name() string { return codReconcileJobName }

func (j *codReconcileJob) Run(ctx context.Context) error {
	active, err := j.orders.CountCODByUser(ctx, activeCODStatuses, nil)
	if err != nil {
		return fmt.Errorf("count active cod orders: %w", err)
	}
	since := j.now().UTC().Add(-j.gate.Limits().CancellationWindow)
	cancelled, err := j.orders.CountCODByUser(ctx, []enums.OrderStatus{enums.OrderStatusCancelled}, &since)
	if err != nil {
		return fmt.Errorf("count cod cancellations: %w", err)
	}

	users := make(map[uuid.UUID]struct{}, len(active)+len(cancelled))
	for id := range active {
		users[id] = struct{}{}
	}
	for id := range cancelled {
		users[id] = struct{}{}
	}

	var errs error
	reset := 0
	for id := range users {
		if err := j.gate.Reset(ctx, id, active[id], cancelled[id]); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reset cod counters for %s: %w", id, err))
			continue
		}
		reset++
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(codReconcileJobName, reset)
	}
	j.logg.Info(j.logg.WithField(ctx, "users", reset), "cron.cod_counters_reconciled")
	return errs
}
