package push

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeOutboxRepo is an in-memory PendingNotificationRepository.
type fakeOutboxRepo struct {
	mu      sync.Mutex
	records []*models.PendingNotification
	nowSeq  time.Time
}

func newFakeOutboxRepo() *fakeOutboxRepo {
	return &fakeOutboxRepo{nowSeq: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeOutboxRepo) Create(_ context.Context, n *models.PendingNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = primitive.NewObjectID()
	n.Status = models.DeliveryPending
	n.Attempts = 0
	f.nowSeq = f.nowSeq.Add(time.Millisecond)
	n.CreatedAt = f.nowSeq
	stored := *n
	f.records = append(f.records, &stored)
	return nil
}

func (f *fakeOutboxRepo) find(id string) *models.PendingNotification {
	for _, record := range f.records {
		if record.ID.Hex() == id {
			return record
		}
	}
	return nil
}

func (f *fakeOutboxRepo) GetByID(_ context.Context, id string) (*models.PendingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := f.find(id)
	if record == nil {
		return nil, errors.New("notification not found")
	}
	copied := *record
	return &copied, nil
}

func (f *fakeOutboxRepo) fetchByStatus(status models.DeliveryStatus, limit int64, maxAttempts int) []models.PendingNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var batch []models.PendingNotification
	for _, record := range f.records {
		if record.Status == status && record.Attempts < maxAttempts {
			batch = append(batch, *record)
			if int64(len(batch)) == limit {
				break
			}
		}
	}
	return batch
}

func (f *fakeOutboxRepo) FetchPending(_ context.Context, limit int64, maxAttempts int) ([]models.PendingNotification, error) {
	return f.fetchByStatus(models.DeliveryPending, limit, maxAttempts), nil
}

func (f *fakeOutboxRepo) FetchFailed(_ context.Context, limit int64, maxAttempts int) ([]models.PendingNotification, error) {
	return f.fetchByStatus(models.DeliveryFailed, limit, maxAttempts), nil
}

func (f *fakeOutboxRepo) ApplyAttempt(_ context.Context, id string, status models.DeliveryStatus, deliveryErr string, results *models.DeliveryResults, at time.Time) (*models.PendingNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := f.find(id)
	if record == nil {
		return nil, errors.New("notification not found")
	}
	record.Attempts++
	record.Status = status
	record.LastAttempt = &at
	if deliveryErr != "" {
		record.LastError = deliveryErr
	}
	if results != nil {
		record.Results = results
	}
	if status == models.DeliveryDelivered {
		record.ProcessedAt = &at
	}
	copied := *record
	return &copied, nil
}

func (f *fakeOutboxRepo) ForcePermanentFailure(_ context.Context, id string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := f.find(id)
	if record == nil {
		return errors.New("notification not found")
	}
	record.Status = models.DeliveryPermanentFailure
	record.LastError = reason
	return nil
}

func (f *fakeOutboxRepo) ResetToPending(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := f.find(id)
	if record == nil || record.Status != models.DeliveryFailed {
		return nil
	}
	record.Status = models.DeliveryPending
	record.LastAttempt = &at
	return nil
}

func (f *fakeOutboxRepo) DeletePermanentFailures(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.records[:0]
	var deleted int64
	for _, record := range f.records {
		if record.Status == models.DeliveryPermanentFailure {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	f.records = kept
	return deleted, nil
}

// handlerFunc adapts a function to DeliveryHandler.
type handlerFunc func(ctx context.Context, batch []models.PendingNotification) ([]Outcome, error)

func (fn handlerFunc) Deliver(ctx context.Context, batch []models.PendingNotification) ([]Outcome, error) {
	return fn(ctx, batch)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

// outcomeAll reports the same status for every record in the batch.
func outcomeAll(status models.DeliveryStatus, deliveryErr string) handlerFunc {
	return func(_ context.Context, batch []models.PendingNotification) ([]Outcome, error) {
		outcomes := make([]Outcome, 0, len(batch))
		for _, record := range batch {
			outcomes = append(outcomes, Outcome{ID: record.ID.Hex(), Status: status, Error: deliveryErr})
		}
		return outcomes, nil
	}
}

// syncSchedule runs scheduled tasks immediately, collapsing the whole task
// chain into the calling goroutine.
func syncSchedule(_ time.Duration, fn func()) { fn() }

// recordingSchedule collects scheduled delays without running the tasks.
type recordingSchedule struct {
	mu     sync.Mutex
	delays []time.Duration
	tasks  []func()
}

func (r *recordingSchedule) schedule(delay time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, delay)
	r.tasks = append(r.tasks, fn)
}

func newEngine(t *testing.T, repo *fakeOutboxRepo, handler DeliveryHandler, schedule func(time.Duration, func())) *Engine {
	t.Helper()
	engine, err := NewEngine(EngineParams{
		Logger:     testLogger(),
		Repository: repo,
		Handler:    handler,
		Schedule:   schedule,
	})
	require.NoError(t, err)
	return engine
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{-1, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryDelay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestEnqueueRequiresTitleAndBody(t *testing.T) {
	repo := newFakeOutboxRepo()
	engine := newEngine(t, repo, outcomeAll(models.DeliveryDelivered, ""), (&recordingSchedule{}).schedule)

	_, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 1, Body: "b"})
	assert.Error(t, err)
	_, err = engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 1, Title: "t"})
	assert.Error(t, err)
	assert.Empty(t, repo.records)
}

func TestEnqueueDefaultsAndSchedulesDispatch(t *testing.T) {
	repo := newFakeOutboxRepo()
	sched := &recordingSchedule{}
	engine := newEngine(t, repo, outcomeAll(models.DeliveryDelivered, ""), sched.schedule)

	id, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 1, Title: "t", Body: "b"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPending, stored.Status)
	assert.Equal(t, 0, stored.Attempts)
	assert.Equal(t, models.PriorityNormal, stored.Priority)

	require.Len(t, sched.delays, 1)
	assert.Equal(t, time.Duration(0), sched.delays[0])
}

func TestDispatchNoSubscriptionsIsTerminal(t *testing.T) {
	repo := newFakeOutboxRepo()
	sched := &recordingSchedule{}
	engine := newEngine(t, repo, outcomeAll(models.DeliveryNoSubscriptions, ""), sched.schedule)

	id, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 7, Title: "t", Body: "b"})
	require.NoError(t, err)

	processed, err := engine.DispatchPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryNoSubscriptions, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.True(t, stored.Status.Terminal())

	// Only the enqueue-time dispatch was scheduled, never a retry
	assert.Equal(t, []time.Duration{0}, sched.delays)

	// Terminal records are invisible to later passes
	processed, err = engine.DispatchPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	processed, err = engine.RetryPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestPersistentFailureFreezesAfterMaxAttempts(t *testing.T) {
	repo := newFakeOutboxRepo()
	engine := newEngine(t, repo, outcomeAll(models.DeliveryFailed, "gateway unreachable"), syncSchedule)

	// The synchronous scheduler collapses the dispatch -> retry -> dispatch
	// chain; the enqueue returns only once the record froze.
	id, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 3, Title: "t", Body: "b"})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPermanentFailure, stored.Status)
	assert.Equal(t, MaxAttempts, stored.Attempts)
	assert.Equal(t, "Max retry attempts reached", stored.LastError)

	// Frozen records never resurface
	processed, err := engine.RetryPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	processed, err = engine.DispatchPass(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
}

func TestAttemptsOnlyGrow(t *testing.T) {
	repo := newFakeOutboxRepo()
	sched := &recordingSchedule{}
	engine := newEngine(t, repo, outcomeAll(models.DeliveryFailed, "boom"), sched.schedule)

	id, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 3, Title: "t", Body: "b"})
	require.NoError(t, err)

	seen := 0
	for i := 0; i < 3; i++ {
		_, err := engine.DispatchPass(context.Background())
		require.NoError(t, err)
		stored, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Greater(t, stored.Attempts, seen)
		seen = stored.Attempts

		_, err = engine.RetryPass(context.Background())
		require.NoError(t, err)
		after, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, seen, after.Attempts, "retry reset must not touch attempts")
	}
}

func TestBatchFailureMarksWholeBatchFailed(t *testing.T) {
	repo := newFakeOutboxRepo()
	sched := &recordingSchedule{}
	failing := handlerFunc(func(_ context.Context, _ []models.PendingNotification) ([]Outcome, error) {
		return nil, errors.New("push service unavailable")
	})
	engine := newEngine(t, repo, failing, sched.schedule)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: uint(i + 1), Title: "t", Body: "b"})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	sched.delays = nil

	processed, err := engine.DispatchPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	for _, id := range ids {
		stored, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, models.DeliveryFailed, stored.Status)
		assert.Equal(t, 1, stored.Attempts)
		assert.Equal(t, "push service unavailable", stored.LastError)
	}

	// One retry pass at the batch-failure delay, no per-record retries
	assert.Equal(t, []time.Duration{5 * time.Second}, sched.delays)
}

func TestMissingOutcomeCountsAsFailed(t *testing.T) {
	repo := newFakeOutboxRepo()
	sched := &recordingSchedule{}
	silent := handlerFunc(func(_ context.Context, _ []models.PendingNotification) ([]Outcome, error) {
		return nil, nil
	})
	engine := newEngine(t, repo, silent, sched.schedule)

	id, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 1, Title: "t", Body: "b"})
	require.NoError(t, err)

	_, err = engine.DispatchPass(context.Background())
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, stored.Status)
	assert.Equal(t, "delivery handler reported no outcome", stored.LastError)
}

func TestFullBatchSchedulesImmediateFollowUp(t *testing.T) {
	repo := newFakeOutboxRepo()
	sched := &recordingSchedule{}
	engine := newEngine(t, repo, outcomeAll(models.DeliveryDelivered, ""), sched.schedule)

	for i := 0; i < dispatchBatchSize+1; i++ {
		_, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: uint(i + 1), Title: "t", Body: "b"})
		require.NoError(t, err)
	}
	sched.delays = nil

	processed, err := engine.DispatchPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dispatchBatchSize, processed)
	assert.Equal(t, []time.Duration{0}, sched.delays)

	processed, err = engine.DispatchPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
}

func TestRetryPassSchedulesDispatch(t *testing.T) {
	repo := newFakeOutboxRepo()
	sched := &recordingSchedule{}
	engine := newEngine(t, repo, outcomeAll(models.DeliveryFailed, "boom"), sched.schedule)

	id, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 1, Title: "t", Body: "b"})
	require.NoError(t, err)
	_, err = engine.DispatchPass(context.Background())
	require.NoError(t, err)

	sched.delays = nil
	reset, err := engine.RetryPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reset)
	assert.Equal(t, []time.Duration{time.Second}, sched.delays)

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPending, stored.Status)
}

func TestCleanupRemovesOnlyPermanentFailures(t *testing.T) {
	repo := newFakeOutboxRepo()
	engine := newEngine(t, repo, outcomeAll(models.DeliveryFailed, "boom"), syncSchedule)

	// Runs to permanent failure under the synchronous scheduler
	frozen, err := engine.Enqueue(context.Background(), &models.PendingNotification{UserID: 1, Title: "t", Body: "b"})
	require.NoError(t, err)

	healthy := &models.PendingNotification{UserID: 2, Title: "t", Body: "b"}
	require.NoError(t, repo.Create(context.Background(), healthy))

	deleted, err := engine.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = repo.GetByID(context.Background(), frozen)
	assert.Error(t, err)
	_, err = repo.GetByID(context.Background(), healthy.ID.Hex())
	assert.NoError(t, err)
}
