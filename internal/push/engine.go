package push

import (
	"context"
	"errors"
	"time"

	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
	"github.com/nexa-labs/wavechat-backend/pkg/logger"
)

const (
	// MaxAttempts bounds the delivery retries before a record is frozen.
	MaxAttempts = 5

	dispatchBatchSize = 10
	retryBatchSize    = 20

	baseRetryDelay         = time.Second
	maxRetryDelay          = 30 * time.Second
	batchFailureRetryDelay = 5 * time.Second
	postRetryDispatchDelay = time.Second
	passTimeout            = 30 * time.Second

	maxAttemptsReached = "Max retry attempts reached"
)

// Outcome is the per-record result reported by a delivery handler.
type Outcome struct {
	ID      string
	Status  models.DeliveryStatus
	Error   string
	Results *models.DeliveryResults
}

// DeliveryHandler sends a whole batch of pending notifications and reports
// one outcome per record. A returned error is a batch-level failure (e.g.
// the push gateway was unreachable) and fails every record in the batch.
type DeliveryHandler interface {
	Deliver(ctx context.Context, batch []models.PendingNotification) ([]Outcome, error)
}

// EngineParams configure the dispatch engine.
type EngineParams struct {
	Logger     *logger.Logger
	Repository repositories.PendingNotificationRepository
	Handler    DeliveryHandler

	// Schedule defers fn by delay. Defaults to time.AfterFunc; injectable
	// so tests can run the task chain synchronously.
	Schedule func(delay time.Duration, fn func())
}

// Engine drives pending notifications through their delivery state machine.
// Passes are short-lived tasks that schedule their successors; a pass that
// finds no eligible records does not reschedule, terminating the chain.
// Delivery errors are converted into per-record state and never propagate.
type Engine struct {
	repo     repositories.PendingNotificationRepository
	handler  DeliveryHandler
	logg     *logger.Logger
	schedule func(delay time.Duration, fn func())
	now      func() time.Time

	dispatchLimit int64
	retryLimit    int64
	maxAttempts   int
}

// NewEngine builds a dispatch engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("pending notification repository is required")
	}
	if params.Handler == nil {
		return nil, errors.New("delivery handler is required")
	}
	schedule := params.Schedule
	if schedule == nil {
		schedule = func(delay time.Duration, fn func()) {
			time.AfterFunc(delay, fn)
		}
	}
	return &Engine{
		repo:          params.Repository,
		handler:       params.Handler,
		logg:          params.Logger,
		schedule:      schedule,
		now:           time.Now,
		dispatchLimit: dispatchBatchSize,
		retryLimit:    retryBatchSize,
		maxAttempts:   MaxAttempts,
	}, nil
}

// RetryDelay computes the backoff before the next attempt: exponential in
// the attempt count, capped at 30 seconds.
func RetryDelay(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	delay := baseRetryDelay
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return delay
}

// Enqueue persists a new pending notification and schedules an immediate
// dispatch pass. Repeated calls create independent records; deduplication
// is left to clients via the tag field.
func (e *Engine) Enqueue(ctx context.Context, notification *models.PendingNotification) (string, error) {
	if notification.Title == "" || notification.Body == "" {
		return "", errors.New("notification title and body are required")
	}
	if notification.Priority == "" {
		notification.Priority = models.PriorityNormal
	}
	if err := e.repo.Create(ctx, notification); err != nil {
		return "", err
	}
	e.ScheduleDispatch(0)
	return notification.ID.Hex(), nil
}

// ScheduleDispatch queues a dispatch pass after the given delay.
func (e *Engine) ScheduleDispatch(delay time.Duration) {
	e.schedule(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
		defer cancel()
		if _, err := e.DispatchPass(ctx); err != nil {
			e.logg.Error(ctx, "dispatch pass failed", err)
		}
	})
}

// ScheduleRetry queues a retry pass after the given delay.
func (e *Engine) ScheduleRetry(delay time.Duration) {
	e.schedule(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), passTimeout)
		defer cancel()
		if _, err := e.RetryPass(ctx); err != nil {
			e.logg.Error(ctx, "retry pass failed", err)
		}
	})
}

// DispatchPass hands one batch of pending records to the delivery handler
// and applies each record's outcome. A batch-level handler error marks the
// whole batch failed and schedules a retry pass shortly after; a full batch
// schedules an immediate follow-up pass to drain backlog.
func (e *Engine) DispatchPass(ctx context.Context) (int, error) {
	batch, err := e.repo.FetchPending(ctx, e.dispatchLimit, e.maxAttempts)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	passCtx := e.logg.WithField(ctx, "batch_size", len(batch))
	outcomes, deliverErr := e.handler.Deliver(ctx, batch)
	if deliverErr != nil {
		e.logg.Error(passCtx, "delivery handler failed, failing batch", deliverErr)
		for _, record := range batch {
			if err := e.applyAttempt(ctx, record.ID.Hex(), models.DeliveryFailed, deliverErr.Error(), nil, false); err != nil {
				e.logg.Error(passCtx, "failed to mark record failed", err)
			}
		}
		e.ScheduleRetry(batchFailureRetryDelay)
		return len(batch), nil
	}

	byID := make(map[string]Outcome, len(outcomes))
	for _, outcome := range outcomes {
		byID[outcome.ID] = outcome
	}
	for _, record := range batch {
		id := record.ID.Hex()
		outcome, ok := byID[id]
		if !ok {
			outcome = Outcome{ID: id, Status: models.DeliveryFailed, Error: "delivery handler reported no outcome"}
		}
		if err := e.UpdateStatus(ctx, id, outcome.Status, outcome.Error, outcome.Results); err != nil {
			e.logg.Error(passCtx, "failed to update notification status", err)
		}
	}

	e.logg.Info(passCtx, "dispatch pass complete")
	if int64(len(batch)) == e.dispatchLimit {
		e.ScheduleDispatch(0)
	}
	return len(batch), nil
}

// UpdateStatus applies one attempt's outcome to a record: attempts are
// incremented, the status transition is recorded, and failed records with
// attempts remaining get a retry pass scheduled after the backoff delay.
// Once the attempt cap is reached the record is frozen as a permanent
// failure regardless of the requested status.
func (e *Engine) UpdateStatus(ctx context.Context, id string, status models.DeliveryStatus, deliveryErr string, results *models.DeliveryResults) error {
	return e.applyAttempt(ctx, id, status, deliveryErr, results, true)
}

func (e *Engine) applyAttempt(ctx context.Context, id string, status models.DeliveryStatus, deliveryErr string, results *models.DeliveryResults, scheduleRetry bool) error {
	updated, err := e.repo.ApplyAttempt(ctx, id, status, deliveryErr, results, e.now())
	if err != nil {
		return err
	}

	if updated.Attempts >= e.maxAttempts && updated.Status != models.DeliveryPermanentFailure {
		if err := e.repo.ForcePermanentFailure(ctx, id, maxAttemptsReached); err != nil {
			return err
		}
		failCtx := e.logg.WithFields(ctx, map[string]any{
			"notification_id": id,
			"attempts":        updated.Attempts,
		})
		e.logg.Warn(failCtx, "notification permanently failed")
		return nil
	}

	if scheduleRetry && status == models.DeliveryFailed {
		e.ScheduleRetry(RetryDelay(updated.Attempts))
	}
	return nil
}

// RetryPass moves one batch of failed records back to pending without
// touching their attempt counts, then schedules a dispatch pass.
func (e *Engine) RetryPass(ctx context.Context) (int, error) {
	batch, err := e.repo.FetchFailed(ctx, e.retryLimit, e.maxAttempts)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	reset := 0
	for _, record := range batch {
		if err := e.repo.ResetToPending(ctx, record.ID.Hex(), e.now()); err != nil {
			e.logg.Error(ctx, "failed to reset notification for retry", err)
			continue
		}
		reset++
	}
	if reset > 0 {
		e.ScheduleDispatch(postRetryDispatchDelay)
	}
	return reset, nil
}

// Cleanup deletes all permanently failed records and returns the count.
// Intended to run on a coarse periodic schedule, independent of dispatch.
func (e *Engine) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := e.repo.DeletePermanentFailures(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		e.logg.Info(e.logg.WithField(ctx, "deleted", deleted), "cleaned up permanently failed notifications")
	}
	return deleted, nil
}
