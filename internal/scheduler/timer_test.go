package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

type handlerRecorder struct {
	mu      sync.Mutex
	batches []domain.Batch
}

func (r *handlerRecorder) handle(_ context.Context, batch domain.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *handlerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func TestTimerQueue_EnqueueFiresAfterDelay(t *testing.T) {
	rec := &handlerRecorder{}
	q := NewTimerQueue(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Start(ctx, rec.handle)

	batch := domain.Batch{ID: "b1", Attempt: 3}
	require.NoError(t, q.Enqueue(ctx, batch, 10*time.Millisecond))

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "b1", rec.batches[0].ID)
	assert.Equal(t, 3, rec.batches[0].Attempt)
}

func TestTimerQueue_DropsJobsAfterShutdown(t *testing.T) {
	rec := &handlerRecorder{}
	q := NewTimerQueue(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx, rec.handle)

	require.NoError(t, q.Enqueue(ctx, domain.Batch{ID: "b1"}, 30*time.Millisecond))
	cancel()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}
