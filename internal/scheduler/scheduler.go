// Package scheduler provides the delayed-job facility the export pipeline
// schedules batch retries on. The job payload is the serializable batch
// itself; the queue holds no other state. Delivery is at-least-once and
// best-effort: a queue may drop a scheduled job before it fires, which the
// export design accepts as a bounded-probability delivery loss.
package scheduler

import (
	"context"
	"time"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

// Handler executes a due job.
type Handler func(ctx context.Context, batch domain.Batch)

// JobQueue schedules batches for delayed re-delivery to a handler.
type JobQueue interface {
	// Start registers the handler and begins delivering due jobs until ctx
	// is cancelled. It must be called before Enqueue.
	Start(ctx context.Context, h Handler)

	// Enqueue schedules batch to be handed to the handler after delay.
	Enqueue(ctx context.Context, batch domain.Batch, delay time.Duration) error
}
