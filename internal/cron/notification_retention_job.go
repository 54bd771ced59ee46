package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	notificationRetentionJobName = "notification_retention"
	defaultNotificationRetention = 90 * 24 * time.Hour
)

type readNotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationRetentionJobParams configure the read notification purge.
type NotificationRetentionJobParams struct {
	Logger    *logger.Logger
	Repo      readNotificationPurger
	Metrics   ItemCounter
	Retention time.Duration
	Now       func() time.Time
}

type notificationRetentionJob struct {
	logg      *logger.Logger
	repo      readNotificationPurger
	metrics   ItemCounter
	retention time.Duration
	now       func() time.Time
}

// NewNotificationRetentionJob deletes read notifications past retention.
func NewNotificationRetentionJob(params NotificationRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repo == nil {
		return nil, errors.New("notification repository is required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &notificationRetentionJob{
		logg:      params.Logger,
		repo:      params.Repo,
		metrics:   params.Metrics,
		retention: retention,
		now:       now,
	}, nil
}

func (j *notificationRetentionJob) Name() string { return notificationRetentionJobName }

func (j *notificationRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete read notifications: %w", err)
	}
	if j.metrics != nil {
		j.metrics.AddProcessed(notificationRetentionJobName, int(deleted))
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff.Format(time.RFC3339),
		"deleted": deleted,
	})
	j.logg.Info(logCtx, "cron.notifications_purged")
	return nil
}
