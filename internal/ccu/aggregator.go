package ccu

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

// Cache keys for the ccu namespace of the shared expiring cache table.
const (
	KeyCurrent = "ccu:current"
	Key24h     = "ccu:24h"
	Key30d     = "ccu:30d"
	KeyAvg     = "ccu:avg"
	KeyHourly  = "ccu:hourly"
	KeyDaily   = "ccu:daily"
)

const (
	cohortCap = 10000

	hourlySnapshotCap = 720
	dailySnapshotCap  = 90
	hourlyRetention   = 30 * 24 * time.Hour
	dailyRetention    = 90 * 24 * time.Hour

	// Count entries self-heal: a stalled aggregator lets them lapse
	// instead of serving indefinitely stale values.
	countTTL    = 2 * time.Minute
	avgTTL      = 5 * time.Minute
	hourlyTTL   = 5 * time.Minute
	dailyTTL    = dailyRetention
	hourBucket  = time.Hour
	dayBucket   = 24 * time.Hour
	windowDay   = 24 * time.Hour
	windowMonth = 30 * 24 * time.Hour
)

// Sample is one timestamped concurrency measurement.
type Sample struct {
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Count     int64     `json:"count" bson:"count"`
}

// SnapshotPayload is the cached ring buffer of samples.
type SnapshotPayload struct {
	Snapshots []Sample `json:"snapshots" bson:"snapshots"`
}

// CountPayload is a cached cohort count; Limited reports that the count
// query hit its cap and may undercount.
type CountPayload struct {
	Count   int64 `json:"count" bson:"count"`
	Limited bool  `json:"limited,omitempty" bson:"limited,omitempty"`
}

// AvgPayload is the cached mean over retained hourly samples.
type AvgPayload struct {
	Average     float64 `json:"average" bson:"average"`
	SampleCount int     `json:"sample_count" bson:"sample_count"`
}

// Metrics is the result of one aggregation run.
type Metrics struct {
	CCUCurrent int64   `json:"ccu_current"`
	CCU24h     int64   `json:"ccu_24h"`
	CCU30d     int64   `json:"ccu_30d"`
	CCUAvg     float64 `json:"ccu_avg"`
	Limited    bool    `json:"limited,omitempty"`
}

// SeriesPoint is one labeled bucket of a chart-ready series.
type SeriesPoint struct {
	Label string  `json:"label"`
	Count float64 `json:"count"`
}

// Dashboard is the admin-facing aggregate view. Reads never hard-fail: on
// any storage error Status is "error" and the counts are zero.
type Dashboard struct {
	Status       string       `json:"status"`
	CCUCurrent   int64        `json:"ccu_current"`
	CCU24h       int64        `json:"ccu_24h"`
	CCU30d       int64        `json:"ccu_30d"`
	CCUAvg       float64      `json:"ccu_avg"`
	Limited      bool         `json:"limited"`
	HourlySeries []SeriesPoint `json:"hourly_series"`
	DailySeries  []SeriesPoint `json:"daily_series"`
}

// AggregatorParams configure the CCU aggregator.
type AggregatorParams struct {
	Logger   *logger.Logger
	Profiles repositories.ProfileRepository
	Cache    repositories.CacheRepository
}

// Aggregator computes rolling concurrency metrics from presence documents
// and retains them in the shared expiring cache so dashboard reads never
// scan the user population.
type Aggregator struct {
	logg     *logger.Logger
	profiles repositories.ProfileRepository
	cache    repositories.CacheRepository
	now      func() time.Time
}

// NewAggregator builds a CCU aggregator.
func NewAggregator(params AggregatorParams) (*Aggregator, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Profiles == nil {
		return nil, errors.New("profile repository is required")
	}
	if params.Cache == nil {
		return nil, errors.New("cache repository is required")
	}
	return &Aggregator{
		logg:     params.Logger,
		profiles: params.Profiles,
		cache:    params.Cache,
		now:      time.Now,
	}, nil
}

// UpdateMetrics samples the three activity cohorts, folds the current
// sample into the hourly and daily ring buffers, and rewrites the five
// cache entries.
func (a *Aggregator) UpdateMetrics(ctx context.Context) (*Metrics, error) {
	now := a.now()

	current, currentLimited, err := a.profiles.CountActiveSince(ctx, now.Add(-time.Minute), cohortCap)
	if err != nil {
		return nil, fmt.Errorf("count current cohort: %w", err)
	}
	day, dayLimited, err := a.profiles.CountActiveSince(ctx, now.Add(-windowDay), cohortCap)
	if err != nil {
		return nil, fmt.Errorf("count 24h cohort: %w", err)
	}
	month, monthLimited, err := a.profiles.CountActiveSince(ctx, now.Add(-windowMonth), cohortCap)
	if err != nil {
		return nil, fmt.Errorf("count 30d cohort: %w", err)
	}

	var hourly SnapshotPayload
	if _, err := a.cache.Get(ctx, KeyHourly, &hourly); err != nil {
		return nil, fmt.Errorf("load hourly snapshots: %w", err)
	}
	hourly.Snapshots = foldHourly(hourly.Snapshots, Sample{Timestamp: now, Count: current}, now)
	avg := meanCount(hourly.Snapshots)

	var daily SnapshotPayload
	if _, err := a.cache.Get(ctx, KeyDaily, &daily); err != nil {
		return nil, fmt.Errorf("load daily snapshots: %w", err)
	}
	daily.Snapshots = foldDaily(daily.Snapshots, Sample{Timestamp: now, Count: current}, now)

	limited := currentLimited || dayLimited || monthLimited

	writes := []struct {
		key   string
		value any
		ttl   time.Duration
	}{
		{KeyCurrent, CountPayload{Count: current, Limited: currentLimited}, countTTL},
		{Key24h, CountPayload{Count: day, Limited: dayLimited}, countTTL},
		{Key30d, CountPayload{Count: month, Limited: monthLimited}, countTTL},
		{KeyAvg, AvgPayload{Average: avg, SampleCount: len(hourly.Snapshots)}, avgTTL},
		{KeyHourly, hourly, hourlyTTL},
		{KeyDaily, daily, dailyTTL},
	}
	for _, write := range writes {
		if err := a.cache.Upsert(ctx, write.key, write.value, write.ttl); err != nil {
			return nil, fmt.Errorf("write %s: %w", write.key, err)
		}
	}

	return &Metrics{
		CCUCurrent: current,
		CCU24h:     day,
		CCU30d:     month,
		CCUAvg:     avg,
		Limited:    limited,
	}, nil
}

// GetMetrics assembles the dashboard view from the cached aggregates.
// Failures degrade to a zeroed "error" result instead of propagating so a
// monitoring read never hard-fails.
func (a *Aggregator) GetMetrics(ctx context.Context) *Dashboard {
	dashboard := &Dashboard{Status: "ok", HourlySeries: []SeriesPoint{}, DailySeries: []SeriesPoint{}}
	now := a.now()

	var current, day, month CountPayload
	var avg AvgPayload
	var hourly, daily SnapshotPayload
	reads := []struct {
		key string
		out any
	}{
		{KeyCurrent, &current},
		{Key24h, &day},
		{Key30d, &month},
		{KeyAvg, &avg},
		{KeyHourly, &hourly},
		{KeyDaily, &daily},
	}
	for _, read := range reads {
		if _, err := a.cache.Get(ctx, read.key, read.out); err != nil {
			a.logg.Error(a.logg.WithField(ctx, "key", read.key), "metrics read failed", err)
			return &Dashboard{Status: "error", HourlySeries: []SeriesPoint{}, DailySeries: []SeriesPoint{}}
		}
	}

	dashboard.CCUCurrent = current.Count
	dashboard.CCU24h = day.Count
	dashboard.CCU30d = month.Count
	dashboard.CCUAvg = avg.Average
	dashboard.Limited = current.Limited || day.Limited || month.Limited ||
		len(hourly.Snapshots) >= hourlySnapshotCap || len(daily.Snapshots) >= dailySnapshotCap

	dashboard.HourlySeries = BucketSeries(hourly.Snapshots, windowDay, hourBucket, now, func(t time.Time) string {
		return t.Format("15:00")
	})
	dashboard.DailySeries = BucketSeries(daily.Snapshots, windowMonth, dayBucket, now, func(t time.Time) string {
		return fmt.Sprintf("%d", t.Day())
	})
	return dashboard
}

// foldHourly folds the current sample into the hourly ring buffer: the
// newest sample is replaced in place when it falls in the same hour
// bucket, samples older than the retention window are dropped, and the
// buffer is truncated oldest-first to its cap.
func foldHourly(snapshots []Sample, sample Sample, now time.Time) []Sample {
	if n := len(snapshots); n > 0 && snapshots[n-1].Timestamp.Truncate(hourBucket).Equal(sample.Timestamp.Truncate(hourBucket)) {
		snapshots[n-1] = sample
	} else {
		snapshots = append(snapshots, sample)
	}
	return capSnapshots(snapshots, now.Add(-hourlyRetention), hourlySnapshotCap)
}

// foldDaily upserts the sample under its calendar date, keeping the peak
// count for the day. Re-running the aggregator on the same date replaces
// rather than appends, so the daily buffer is idempotent per date.
func foldDaily(snapshots []Sample, sample Sample, now time.Time) []Sample {
	date := sample.Timestamp.UTC().Truncate(dayBucket)
	replaced := false
	for i := range snapshots {
		if snapshots[i].Timestamp.UTC().Truncate(dayBucket).Equal(date) {
			if sample.Count > snapshots[i].Count {
				snapshots[i].Count = sample.Count
			}
			replaced = true
			break
		}
	}
	if !replaced {
		snapshots = append(snapshots, Sample{Timestamp: date, Count: sample.Count})
	}
	return capSnapshots(snapshots, now.Add(-dailyRetention), dailySnapshotCap)
}

// capSnapshots drops samples older than the cutoff, then truncates
// oldest-first to the cap.
func capSnapshots(snapshots []Sample, cutoff time.Time, limit int) []Sample {
	kept := snapshots[:0]
	for _, snapshot := range snapshots {
		if !snapshot.Timestamp.Before(cutoff) {
			kept = append(kept, snapshot)
		}
	}
	if len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	return kept
}

func meanCount(snapshots []Sample) float64 {
	if len(snapshots) == 0 {
		return 0
	}
	var total int64
	for _, snapshot := range snapshots {
		total += snapshot.Count
	}
	return float64(total) / float64(len(snapshots))
}

// BucketSeries groups samples within the window into fixed-width buckets
// (timestamps truncated to the interval) and averages counts per bucket.
// The result is ordered oldest bucket first; given the same samples the
// output is identical, making the aggregation replayable.
func BucketSeries(snapshots []Sample, window, interval time.Duration, now time.Time, label func(time.Time) string) []SeriesPoint {
	cutoff := now.Add(-window)
	type bucketAgg struct {
		total int64
		n     int64
	}
	buckets := make(map[int64]*bucketAgg)
	for _, snapshot := range snapshots {
		if snapshot.Timestamp.Before(cutoff) {
			continue
		}
		key := snapshot.Timestamp.Truncate(interval).Unix()
		agg, ok := buckets[key]
		if !ok {
			agg = &bucketAgg{}
			buckets[key] = agg
		}
		agg.total += snapshot.Count
		agg.n++
	}

	keys := make([]int64, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	series := make([]SeriesPoint, 0, len(keys))
	for _, key := range keys {
		agg := buckets[key]
		series = append(series, SeriesPoint{
			Label: label(time.Unix(key, 0).UTC()),
			Count: float64(agg.total) / float64(agg.n),
		})
	}
	return series
}
