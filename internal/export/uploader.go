package export

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/domain"
	"github.com/PostHog/bigquery-plugin/internal/warehouse"
)

// Uploader performs the remote insert and classifies its outcome. An
// oversized payload is bisected and retried within the same call; every
// other failure comes back as *warehouse.RetryableError for the retrier. A
// single row the warehouse still rejects for size is fatal.
type Uploader struct {
	client warehouse.Client
	log    *zap.Logger
}

func NewUploader(client warehouse.Client, log *zap.Logger) *Uploader {
	return &Uploader{client: client, log: log}
}

// Upload inserts rows, recursively splitting on payload-size rejections.
func (u *Uploader) Upload(ctx context.Context, rows []domain.Row) error {
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	err := u.client.Insert(ctx, rows)
	if err == nil {
		u.log.Info("Inserted rows",
			zap.Int("row_count", len(rows)),
			zap.Duration("latency", time.Since(start)))
		return nil
	}

	if warehouse.IsRowTooLarge(err) {
		if len(rows) == 1 {
			return fmt.Errorf("single row exceeds the insert size limit: %w", err)
		}

		u.log.Warn("Insert payload too large, splitting batch",
			zap.Int("row_count", len(rows)))

		mid := len(rows) / 2
		if err := u.Upload(ctx, rows[:mid]); err != nil {
			return err
		}
		return u.Upload(ctx, rows[mid:])
	}

	return &warehouse.RetryableError{Err: err}
}
