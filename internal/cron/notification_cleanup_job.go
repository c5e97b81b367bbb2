package cron

import (
	"context"
	"errors"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

// NotificationCleanupJobParams configure the cleanup job.
type NotificationCleanupJobParams struct {
	Logger        *logger.Logger
	Engine        notificationEngine
	Notifications repositories.NotificationRepository
	Retention     time.Duration
	Interval      time.Duration
}

// NotificationCleanupJob prunes old delivery records and aged feed
// notifications so the collections do not grow without bound.
type NotificationCleanupJob struct {
	logg          *logger.Logger
	engine        notificationEngine
	notifications repositories.NotificationRepository
	retention     time.Duration
	interval      time.Duration
}

// NewNotificationCleanupJob builds the cleanup job.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (*NotificationCleanupJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if params.Notifications == nil {
		return nil, errors.New("notification repository is required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	interval := params.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	return &NotificationCleanupJob{
		logg:          params.Logger,
		engine:        params.Engine,
		notifications: params.Notifications,
		retention:     retention,
		interval:      interval,
	}, nil
}

func (j *NotificationCleanupJob) Name() string { return "notification_cleanup" }

func (j *NotificationCleanupJob) Interval() time.Duration { return j.interval }

// Run deletes permanently failed delivery records and feed notifications
// older than the retention window.
func (j *NotificationCleanupJob) Run(ctx context.Context) error {
	removed, err := j.engine.Cleanup(ctx)
	if err != nil {
		return err
	}
	pruned, err := j.notifications.DeleteOlderThan(time.Now().Add(-j.retention))
	if err != nil {
		return err
	}
	if removed > 0 || pruned > 0 {
		fields := map[string]any{"delivery_records": removed, "feed_notifications": pruned}
		j.logg.Info(j.logg.WithFields(ctx, fields), "notification cleanup pruned aged records")
	}
	return nil
}
