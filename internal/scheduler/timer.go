package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

// TimerQueue is the in-process JobQueue: each job is a timer firing the
// handler in its own goroutine. Jobs do not survive a restart.
type TimerQueue struct {
	log *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	handler Handler
}

func NewTimerQueue(log *zap.Logger) *TimerQueue {
	return &TimerQueue{log: log}
}

// Start registers the handler. Jobs enqueued afterwards fire until ctx is
// cancelled.
func (q *TimerQueue) Start(ctx context.Context, h Handler) {
	q.mu.Lock()
	q.ctx = ctx
	q.handler = h
	q.mu.Unlock()
}

// Enqueue schedules batch to fire after delay.
func (q *TimerQueue) Enqueue(_ context.Context, batch domain.Batch, delay time.Duration) error {
	time.AfterFunc(delay, func() {
		q.mu.Lock()
		ctx, h := q.ctx, q.handler
		q.mu.Unlock()

		if h == nil {
			q.log.Warn("Scheduled job fired before Start, dropping",
				zap.String("batch_id", batch.ID))
			return
		}
		if ctx.Err() != nil {
			q.log.Info("Scheduled job fired after shutdown, dropping",
				zap.String("batch_id", batch.ID),
				zap.Int("attempt", batch.Attempt))
			return
		}
		h(ctx, batch)
	})
	return nil
}
