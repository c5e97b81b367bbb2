package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/nexa-labs/wavechat-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name     string
	interval time.Duration
	runs     int
	err      error
}

func (j *countingJob) Name() string            { return j.name }
func (j *countingJob) Interval() time.Duration { return j.interval }
func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type fakeLock struct {
	acquired  bool
	acquireOK bool
	releases  int
	err       error
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	l.acquired = true
	return l.acquireOK, l.err
}

func (l *fakeLock) Release(context.Context) error {
	l.releases++
	return nil
}

func testService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	require.NoError(t, err)
	return service
}

func TestRegistrySkipsNilAndPreservesOrder(t *testing.T) {
	first := &countingJob{name: "first"}
	second := &countingJob{name: "second"}
	registry := NewRegistry(first, nil, second)
	registry.Register(nil)

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "first", jobs[0].Name())
	assert.Equal(t, "second", jobs[1].Name())
}

func TestRunCycleRunsAllJobsOnFirstPass(t *testing.T) {
	fast := &countingJob{name: "fast", interval: 30 * time.Second}
	slow := &countingJob{name: "slow", interval: time.Hour}
	lock := &fakeLock{acquireOK: true}
	service := testService(t, lock, fast, slow)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 1, fast.runs)
	assert.Equal(t, 1, slow.runs)
	assert.Equal(t, 1, lock.releases)
}

func TestRunCycleHonorsPerJobIntervals(t *testing.T) {
	fast := &countingJob{name: "fast", interval: 30 * time.Second}
	slow := &countingJob{name: "slow", interval: time.Hour}
	lock := &fakeLock{acquireOK: true}
	service := testService(t, lock, fast, slow)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := start
	service.now = func() time.Time { return current }

	require.NoError(t, service.runCycle(context.Background()))

	// One minute later only the fast job is due again
	current = start.Add(time.Minute)
	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 2, fast.runs)
	assert.Equal(t, 1, slow.runs)

	// Past the hour both are due
	current = start.Add(61 * time.Minute)
	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 3, fast.runs)
	assert.Equal(t, 2, slow.runs)
}

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &countingJob{name: "job", interval: time.Second}
	lock := &fakeLock{acquireOK: false}
	service := testService(t, lock, job)

	require.NoError(t, service.runCycle(context.Background()))
	assert.True(t, lock.acquired)
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

func TestRunCycleDoesNotAcquireLockWithoutDueJobs(t *testing.T) {
	job := &countingJob{name: "job", interval: time.Hour}
	lock := &fakeLock{acquireOK: true}
	service := testService(t, lock, job)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := start
	service.now = func() time.Time { return current }

	require.NoError(t, service.runCycle(context.Background()))
	lock.acquired = false

	current = start.Add(time.Second)
	require.NoError(t, service.runCycle(context.Background()))
	assert.False(t, lock.acquired)
	assert.Equal(t, 1, job.runs)
}

func TestRunCycleContinuesPastFailingJob(t *testing.T) {
	failing := &countingJob{name: "failing", interval: time.Second, err: errors.New("boom")}
	healthy := &countingJob{name: "healthy", interval: time.Second}
	lock := &fakeLock{acquireOK: true}
	service := testService(t, lock, failing, healthy)

	require.NoError(t, service.runCycle(context.Background()))
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, healthy.runs)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	lock := &fakeLock{acquireOK: true}
	service := testService(t, lock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
