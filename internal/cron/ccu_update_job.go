package cron

import (
	"context"
	"errors"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/ccu"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

// ccuUpdater recomputes the concurrency aggregates.
type ccuUpdater interface {
	UpdateMetrics(ctx context.Context) (*ccu.Metrics, error)
}

// CCUUpdateJobParams configure the CCU aggregation job.
type CCUUpdateJobParams struct {
	Logger     *logger.Logger
	Aggregator ccuUpdater
	Interval   time.Duration
}

// CCUUpdateJob refreshes the cached concurrency metrics so dashboard reads
// stay cheap and bounded.
type CCUUpdateJob struct {
	logg       *logger.Logger
	aggregator ccuUpdater
	interval   time.Duration
}

// NewCCUUpdateJob builds the aggregation job.
func NewCCUUpdateJob(params CCUUpdateJobParams) (*CCUUpdateJob, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Aggregator == nil {
		return nil, errors.New("aggregator is required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CCUUpdateJob{
		logg:       params.Logger,
		aggregator: params.Aggregator,
		interval:   interval,
	}, nil
}

func (j *CCUUpdateJob) Name() string { return "ccu_update" }

func (j *CCUUpdateJob) Interval() time.Duration { return j.interval }

func (j *CCUUpdateJob) Run(ctx context.Context) error {
	metrics, err := j.aggregator.UpdateMetrics(ctx)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"ccu_current": metrics.CCUCurrent,
		"ccu_24h":     metrics.CCU24h,
		"ccu_30d":     metrics.CCU30d,
	}
	j.logg.Debug(j.logg.WithFields(ctx, fields), "ccu metrics refreshed")
	return nil
}
