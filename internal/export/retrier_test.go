package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/domain"
	"github.com/PostHog/bigquery-plugin/internal/scheduler"
)

// fakeJobQueue records enqueued jobs without firing them.
type fakeJobQueue struct {
	enqueued []scheduledJob
	err      error
}

type scheduledJob struct {
	batch domain.Batch
	delay time.Duration
}

func (q *fakeJobQueue) Start(context.Context, scheduler.Handler) {}

func (q *fakeJobQueue) Enqueue(_ context.Context, batch domain.Batch, delay time.Duration) error {
	if q.err != nil {
		return q.err
	}
	q.enqueued = append(q.enqueued, scheduledJob{batch: batch, delay: delay})
	return nil
}

func newTestRetrier(client *MockWarehouseClient, jobs scheduler.JobQueue) (*Retrier, *Stats) {
	stats := &Stats{}
	uploader := NewUploader(client, zap.NewNop())
	retrier := NewRetrier(uploader, jobs, RetrierConfig{
		MaxRetries: 15,
		BaseDelay:  3 * time.Second,
	}, stats, zap.NewNop())
	return retrier, stats
}

func oneRowBatch(attempt int) domain.Batch {
	return domain.Batch{ID: "batch-1", Attempt: attempt, Rows: []domain.Row{testRow("1")}}
}

func TestRetrier_Run_SuccessSchedulesNothing(t *testing.T) {
	mockClient := new(MockWarehouseClient)
	jobs := &fakeJobQueue{}
	retrier, stats := newTestRetrier(mockClient, jobs)

	mockClient.On("Insert", mock.Anything, mock.Anything).Return(nil)

	err := retrier.Run(context.Background(), oneRowBatch(0))

	assert.NoError(t, err)
	assert.Empty(t, jobs.enqueued)
	assert.Equal(t, int64(1), stats.Snapshot().BatchesExported)
}

func TestRetrier_Run_RetryableFailureSchedulesRetry(t *testing.T) {
	mockClient := new(MockWarehouseClient)
	jobs := &fakeJobQueue{}
	retrier, stats := newTestRetrier(mockClient, jobs)

	mockClient.On("Insert", mock.Anything, mock.Anything).Return(errors.New("backend error"))

	err := retrier.Run(context.Background(), oneRowBatch(0))

	assert.NoError(t, err)
	require.Len(t, jobs.enqueued, 1)
	assert.Equal(t, "batch-1", jobs.enqueued[0].batch.ID)
	assert.Equal(t, 1, jobs.enqueued[0].batch.Attempt)
	assert.Equal(t, 3*time.Second, jobs.enqueued[0].delay)
	assert.Equal(t, int64(1), stats.Snapshot().RetriesScheduled)
}

func TestRetrier_Run_ExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		delay   time.Duration
	}{
		{0, 3 * time.Second},
		{1, 6 * time.Second},
		{4, 48 * time.Second},
		{14, 3 * time.Second << 14}, // ~13.7h
	}

	for _, tt := range tests {
		mockClient := new(MockWarehouseClient)
		jobs := &fakeJobQueue{}
		retrier, _ := newTestRetrier(mockClient, jobs)

		mockClient.On("Insert", mock.Anything, mock.Anything).Return(errors.New("backend error"))

		err := retrier.Run(context.Background(), oneRowBatch(tt.attempt))

		assert.NoError(t, err)
		require.Len(t, jobs.enqueued, 1, "attempt %d", tt.attempt)
		assert.Equal(t, tt.delay, jobs.enqueued[0].delay, "attempt %d", tt.attempt)
		assert.Equal(t, tt.attempt+1, jobs.enqueued[0].batch.Attempt)
	}
}

func TestRetrier_Run_BackoffSaturatesForOversizedCeilings(t *testing.T) {
	for _, attempt := range []int{16, 40, 100} {
		mockClient := new(MockWarehouseClient)
		jobs := &fakeJobQueue{}
		stats := &Stats{}
		retrier := NewRetrier(NewUploader(mockClient, zap.NewNop()), jobs, RetrierConfig{
			MaxRetries: 1 << 10,
			BaseDelay:  3 * time.Second,
		}, stats, zap.NewNop())

		mockClient.On("Insert", mock.Anything, mock.Anything).Return(errors.New("backend error"))

		err := retrier.Run(context.Background(), oneRowBatch(attempt))

		assert.NoError(t, err)
		require.Len(t, jobs.enqueued, 1, "attempt %d", attempt)
		assert.Equal(t, 24*time.Hour, jobs.enqueued[0].delay, "attempt %d", attempt)
	}
}

func TestRetrier_Run_DropsAtRetryCeiling(t *testing.T) {
	mockClient := new(MockWarehouseClient)
	jobs := &fakeJobQueue{}
	retrier, stats := newTestRetrier(mockClient, jobs)

	mockClient.On("Insert", mock.Anything, mock.Anything).Return(errors.New("backend error"))

	err := retrier.Run(context.Background(), oneRowBatch(15))

	// Dropped silently: no error to the caller, nothing re-scheduled.
	assert.NoError(t, err)
	assert.Empty(t, jobs.enqueued)
	assert.Equal(t, int64(1), stats.Snapshot().BatchesDropped)
	assert.Equal(t, int64(1), stats.Snapshot().RowsDropped)
}

func TestRetrier_Run_FatalFailurePropagates(t *testing.T) {
	mockClient := new(MockWarehouseClient)
	jobs := &fakeJobQueue{}
	retrier, _ := newTestRetrier(mockClient, jobs)

	mockClient.On("Insert", mock.Anything, mock.Anything).
		Return(errors.New("Request Entity Too Large"))

	err := retrier.Run(context.Background(), oneRowBatch(0))

	assert.Error(t, err)
	assert.Empty(t, jobs.enqueued)
}

func TestRetrier_Run_EnqueueFailureDropsBatch(t *testing.T) {
	mockClient := new(MockWarehouseClient)
	jobs := &fakeJobQueue{err: errors.New("queue unavailable")}
	retrier, stats := newTestRetrier(mockClient, jobs)

	mockClient.On("Insert", mock.Anything, mock.Anything).Return(errors.New("backend error"))

	err := retrier.Run(context.Background(), oneRowBatch(0))

	assert.NoError(t, err)
	assert.Equal(t, int64(1), stats.Snapshot().BatchesDropped)
}

func TestRetrier_Run_FailThenSucceedRetriesOnce(t *testing.T) {
	mockClient := new(MockWarehouseClient)
	jobs := &fakeJobQueue{}
	retrier, stats := newTestRetrier(mockClient, jobs)

	mockClient.On("Insert", mock.Anything, mock.Anything).Return(errors.New("backend error")).Once()
	mockClient.On("Insert", mock.Anything, mock.Anything).Return(nil).Once()

	require.NoError(t, retrier.Run(context.Background(), oneRowBatch(0)))
	require.Len(t, jobs.enqueued, 1)

	// Fire the scheduled retry by hand; it succeeds and nothing further is
	// scheduled.
	require.NoError(t, retrier.Run(context.Background(), jobs.enqueued[0].batch))
	assert.Len(t, jobs.enqueued, 1)
	assert.Equal(t, int64(1), stats.Snapshot().BatchesExported)
	mockClient.AssertExpectations(t)
}
