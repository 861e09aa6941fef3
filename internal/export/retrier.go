package export

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/domain"
	"github.com/PostHog/bigquery-plugin/internal/scheduler"
	"github.com/PostHog/bigquery-plugin/internal/warehouse"
)

// maxRetryDelay caps the backoff schedule. The default ceiling tops out
// around 13.7h; oversized configured ceilings saturate here instead of
// overflowing the duration into an immediate re-fire.
const maxRetryDelay = 24 * time.Hour

// RetrierConfig bounds the backoff schedule.
type RetrierConfig struct {
	// MaxRetries is the retry ceiling: a retryable failure on a batch whose
	// attempt counter has reached it drops the batch.
	MaxRetries int

	// BaseDelay is the first retry delay; each further retry doubles it.
	BaseDelay time.Duration
}

// Retrier drives the per-batch delivery state machine: attempt, then on a
// retryable failure either schedule a delayed copy with the counter bumped
// or drop at the ceiling. Fatal failures go back to the caller untouched.
// All batch state travels inside the scheduled job payload.
type Retrier struct {
	uploader *Uploader
	jobs     scheduler.JobQueue
	config   RetrierConfig
	stats    *Stats
	log      *zap.Logger
}

func NewRetrier(uploader *Uploader, jobs scheduler.JobQueue, config RetrierConfig, stats *Stats, log *zap.Logger) *Retrier {
	return &Retrier{
		uploader: uploader,
		jobs:     jobs,
		config:   config,
		stats:    stats,
		log:      log,
	}
}

// Run performs one delivery attempt for batch. The returned error is non-nil
// only for fatal failures; retryable outcomes are handled internally.
func (r *Retrier) Run(ctx context.Context, batch domain.Batch) error {
	err := r.uploader.Upload(ctx, batch.Rows)
	if err == nil {
		r.stats.BatchExported(len(batch.Rows))
		r.log.Info("Batch exported",
			zap.String("batch_id", batch.ID),
			zap.Int("attempt", batch.Attempt),
			zap.Int("row_count", len(batch.Rows)))
		return nil
	}

	if !warehouse.IsRetryable(err) {
		return err
	}

	if batch.Attempt >= r.config.MaxRetries {
		r.stats.BatchDropped(len(batch.Rows))
		r.log.Error("Batch dropped after exhausting retries",
			zap.String("batch_id", batch.ID),
			zap.Int("attempt", batch.Attempt),
			zap.Int("row_count", len(batch.Rows)),
			zap.Error(err))
		return nil
	}

	delay := backoffDelay(r.config.BaseDelay, batch.Attempt)
	next := batch.WithNextAttempt()

	if enqueueErr := r.jobs.Enqueue(ctx, next, delay); enqueueErr != nil {
		// The job queue is best-effort; a lost retry is a bounded delivery
		// loss, not an error surfaced to the producer.
		r.stats.BatchDropped(len(batch.Rows))
		r.log.Error("Failed to schedule batch retry, dropping batch",
			zap.String("batch_id", batch.ID),
			zap.Int("attempt", batch.Attempt),
			zap.Error(enqueueErr))
		return nil
	}

	r.stats.RetryScheduled()
	r.log.Warn("Batch upload failed, retry scheduled",
		zap.String("batch_id", batch.ID),
		zap.Int("attempt", batch.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
	return nil
}

// backoffDelay doubles base once per prior attempt, saturating at
// maxRetryDelay so high attempt counts cannot overflow.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryDelay || delay <= 0 {
			return maxRetryDelay
		}
	}
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
