package cron

import (
	"context"
	"errors"
	"time"

	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

// notificationEngine is the subset of the push engine the worker drives.
type notificationEngine interface {
	DispatchPass(ctx context.Context) (int, error)
	RetryPass(ctx context.Context) (int, error)
	Cleanup(ctx context.Context) (int64, error)
}

// NotificationDrainJobParams configure the drain job.
type NotificationDrainJobParams struct {
	Logger   *logger.Logger
	Engine   notificationEngine
	Interval time.Duration
}

// NotificationDrainJob reconciles the pending notification queue. The API
// process schedules its own passes after each enqueue, but a crash between
// enqueue and dispatch would strand records; this job re-drives retry and
// dispatch so every record eventually reaches a terminal status.
type NotificationDrainJob struct {
	logg     *logger.Logger
	engine   notificationEngine
	interval time.Duration
}

// NewNotificationDrainJob builds the drain job.
func NewNotificationDrainJob(params NotificationDrainJobParams) (*NotificationDrainJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Engine == nil {
		return nil, errors.New("engine is required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &NotificationDrainJob{
		logg:     params.Logger,
		engine:   params.Engine,
		interval: interval,
	}, nil
}

func (j *NotificationDrainJob) Name() string { return "notification_drain" }

func (j *NotificationDrainJob) Interval() time.Duration { return j.interval }

// Run replays failed records back to pending, then drains a dispatch pass.
func (j *NotificationDrainJob) Run(ctx context.Context) error {
	if _, err := j.engine.RetryPass(ctx); err != nil {
		return err
	}
	_, err := j.engine.DispatchPass(ctx)
	return err
}
