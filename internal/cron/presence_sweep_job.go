package cron

import (
	"context"
	"errors"
	"time"

	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

// presenceSweeper flips stale online profiles back to offline.
type presenceSweeper interface {
	IdleSweep(ctx context.Context) (int64, error)
}

// PresenceSweepJobParams configure the idle sweep job.
type PresenceSweepJobParams struct {
	Logger   *logger.Logger
	Tracker  presenceSweeper
	Interval time.Duration
}

// PresenceSweepJob periodically reconciles online flags for users whose
// clients disappeared without sending an offline heartbeat.
type PresenceSweepJob struct {
	logg     *logger.Logger
	tracker  presenceSweeper
	interval time.Duration
}

// NewPresenceSweepJob builds the idle sweep job.
func NewPresenceSweepJob(params PresenceSweepJobParams) (*PresenceSweepJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Tracker == nil {
		return nil, errors.New("tracker is required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return &PresenceSweepJob{
		logg:     params.Logger,
		tracker:  params.Tracker,
		interval: interval,
	}, nil
}

func (j *PresenceSweepJob) Name() string { return "presence_idle_sweep" }

func (j *PresenceSweepJob) Interval() time.Duration { return j.interval }

func (j *PresenceSweepJob) Run(ctx context.Context) error {
	_, err := j.tracker.IdleSweep(ctx)
	return err
}
