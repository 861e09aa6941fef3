package export

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

// FlushFunc receives the detached content of a flushed buffer.
type FlushFunc func(rows []domain.Row)

// Buffer accumulates rows until either the byte limit is reached on an add
// or the flush timeout elapses since the first unflushed add, whichever
// comes first. State is detached atomically before the callback runs, so
// rows added during a flush start the next batch and never join the one in
// flight.
type Buffer struct {
	limitBytes int
	timeout    time.Duration
	flush      FlushFunc
	log        *zap.Logger

	mu    sync.Mutex
	rows  []domain.Row
	bytes int
	timer *time.Timer
}

func NewBuffer(limitBytes int, timeout time.Duration, flush FlushFunc, log *zap.Logger) *Buffer {
	return &Buffer{
		limitBytes: limitBytes,
		timeout:    timeout,
		flush:      flush,
		log:        log,
	}
}

// Add appends a row. sizeBytes is the caller's encoded-size estimate; when
// the running total reaches the limit the buffer flushes within this call.
func (b *Buffer) Add(row domain.Row, sizeBytes int) {
	b.mu.Lock()

	b.rows = append(b.rows, row)
	b.bytes += sizeBytes

	// The timeout window starts at the oldest unflushed row.
	if b.timer == nil {
		b.timer = time.AfterFunc(b.timeout, b.onTimeout)
	}

	if b.bytes >= b.limitBytes {
		b.log.Debug("Buffer byte limit reached",
			zap.Int("bytes", b.bytes),
			zap.Int("rows", len(b.rows)))
		b.flushLocked()
		return
	}

	b.mu.Unlock()
}

// Flush hands any pending rows to the callback immediately.
func (b *Buffer) Flush() {
	b.mu.Lock()
	if len(b.rows) == 0 {
		b.mu.Unlock()
		return
	}
	b.flushLocked()
}

// Close flushes the remainder and stops the pending timer.
func (b *Buffer) Close() {
	b.Flush()
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()
}

func (b *Buffer) onTimeout() {
	b.mu.Lock()
	b.timer = nil
	if len(b.rows) == 0 {
		// No-op tick.
		b.mu.Unlock()
		return
	}
	b.log.Debug("Buffer flush timeout reached", zap.Int("rows", len(b.rows)))
	b.flushLocked()
}

// flushLocked detaches the pending rows, resets state and releases the lock
// before invoking the callback.
func (b *Buffer) flushLocked() {
	rows := b.rows
	b.rows = nil
	b.bytes = 0
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	b.flush(rows)
}
