package export

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/config"
	"github.com/PostHog/bigquery-plugin/internal/domain"
	"github.com/PostHog/bigquery-plugin/internal/scheduler"
	"github.com/PostHog/bigquery-plugin/internal/warehouse"
)

// Exporter wires the export pipeline together: ignore filter, row mapper,
// batch buffer, uploader and retrier. One Exporter serves the whole process.
type Exporter struct {
	filter  *Filter
	mapper  *Mapper
	buffer  *Buffer
	retrier *Retrier
	stats   *Stats
	log     *zap.Logger

	// flushCtx is the context flush goroutines and retry jobs run under; it
	// outlives the per-event contexts.
	flushCtx context.Context

	// flushes tracks in-flight flush deliveries so Close can wait for the
	// tail batch instead of orphaning it at shutdown.
	flushes sync.WaitGroup
}

// New builds an Exporter from the export configuration. jobs must be started
// with the exporter's RunJob before events flow.
func New(ctx context.Context, cfg config.Export, client warehouse.Client, jobs scheduler.JobQueue, log *zap.Logger) *Exporter {
	stats := &Stats{}
	uploader := NewUploader(client, log)
	retrier := NewRetrier(uploader, jobs, RetrierConfig{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  time.Duration(cfg.RetryBaseIntervalSec) * time.Second,
	}, stats, log)

	e := &Exporter{
		filter:   NewFilter(cfg.EventsToIgnore),
		mapper:   NewMapper(cfg.ElementsOnAnyEvent),
		retrier:  retrier,
		stats:    stats,
		log:      log,
		flushCtx: ctx,
	}

	e.buffer = NewBuffer(
		cfg.BufferLimitBytes,
		time.Duration(cfg.FlushIntervalSec)*time.Second,
		e.onFlush,
		log,
	)

	return e
}

// OnEvent is the per-event entry point invoked by the ingestion pipeline.
// Export is fire-and-forget from the producer's point of view: the event is
// filtered, mapped and buffered, and any later delivery failure is only
// visible in logs and stats.
func (e *Exporter) OnEvent(_ context.Context, event *domain.Event) {
	e.stats.EventReceived()

	if e.filter.Ignored(event.Event) {
		e.stats.EventIgnored()
		return
	}

	row := e.mapper.Map(event)
	e.buffer.Add(row, row.EstimateSize())
	e.stats.RowAccepted()
}

// RunJob executes a scheduled retry job. It is the handler registered on the
// job queue.
func (e *Exporter) RunJob(ctx context.Context, batch domain.Batch) {
	if err := e.retrier.Run(ctx, batch); err != nil {
		e.log.Error("Fatal export failure on scheduled retry",
			zap.String("batch_id", batch.ID),
			zap.Int("attempt", batch.Attempt),
			zap.Error(err))
	}
}

// Flush forces out any buffered rows.
func (e *Exporter) Flush() {
	e.buffer.Flush()
}

// Close drains the buffer, stops its timer, and waits for in-flight
// deliveries to finish their current attempt. Retries still pending on the
// job queue are the queue's responsibility after this returns.
func (e *Exporter) Close() {
	e.buffer.Close()
	e.flushes.Wait()
}

// Stats exposes the pipeline counters.
func (e *Exporter) Stats() *Stats {
	return e.stats
}

func (e *Exporter) onFlush(rows []domain.Row) {
	batch := domain.Batch{
		ID:      uuid.NewString(),
		Attempt: 0,
		Rows:    rows,
	}

	e.log.Info("Flushing batch",
		zap.String("batch_id", batch.ID),
		zap.Int("row_count", len(rows)))

	e.flushes.Add(1)
	go func() {
		defer e.flushes.Done()
		if err := e.retrier.Run(e.flushCtx, batch); err != nil {
			e.log.Error("Fatal export failure",
				zap.String("batch_id", batch.ID),
				zap.Error(err))
		}
	}()
}
