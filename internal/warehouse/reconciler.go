package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/cache"
)

const schemaCacheKey = "bigquery-plugin:reconciled-schema"

// Reconciler ensures, once per process, that the destination table exists
// and its column set is a superset of the required columns. The last
// reconciled (dataset, table, field count) tuple is cached so an unchanged
// destination skips the metadata round-trips entirely.
type Reconciler struct {
	client  Client
	store   cache.Store
	dataset string
	table   string
	log     *zap.Logger
}

func NewReconciler(client Client, store cache.Store, dataset, table string, log *zap.Logger) *Reconciler {
	return &Reconciler{
		client:  client,
		store:   store,
		dataset: dataset,
		table:   table,
		log:     log,
	}
}

// Reconcile runs the one-shot schema check. Connection-level failures come
// back wrapped in *RetryableError so the caller can re-run setup; a table
// that still misses required columns after an additive update is fatal.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	required := RequiredFields()

	if count, ok, err := r.cachedFieldCount(ctx); err != nil {
		r.log.Warn("Schema cache read failed, reconciling anyway", zap.Error(err))
	} else if ok && count >= len(required) {
		r.log.Info("Schema cache hit, skipping metadata calls",
			zap.String("dataset", r.dataset),
			zap.String("table", r.table),
			zap.Int("field_count", count))
		return nil
	}

	fieldCount, err := r.reconcileTable(ctx, required)
	if err != nil {
		if IsTransientSetup(err) {
			return &RetryableError{Err: err}
		}
		return err
	}

	if err := r.store.Set(ctx, schemaCacheKey, r.cacheValue(fieldCount)); err != nil {
		r.log.Warn("Failed to write schema cache", zap.Error(err))
	}

	return nil
}

// reconcileTable creates or extends the table as needed and returns the
// resulting field count.
func (r *Reconciler) reconcileTable(ctx context.Context, required []FieldSchema) (int, error) {
	md, err := r.client.GetTableMetadata(ctx)

	if errors.Is(err, ErrTableNotFound) {
		r.log.Info("Destination table missing, creating",
			zap.String("dataset", r.dataset),
			zap.String("table", r.table))

		if err := r.client.CreateTable(ctx, required); err != nil {
			if errors.Is(err, ErrTableExists) {
				// Lost the creation race to a concurrent worker; the table
				// is there, verify its columns below.
				r.log.Info("Table created concurrently, verifying schema")
				md, err := r.client.GetTableMetadata(ctx)
				if err != nil {
					return 0, fmt.Errorf("failed to get metadata for %s.%s: %w", r.dataset, r.table, err)
				}
				return r.extendExisting(ctx, md, required)
			}
			return 0, fmt.Errorf("failed to create table %s.%s: %w", r.dataset, r.table, err)
		}
		return len(required), nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to get metadata for %s.%s: %w", r.dataset, r.table, err)
	}

	return r.extendExisting(ctx, md, required)
}

// extendExisting adds the missing required fields to the current schema and
// verifies the result.
func (r *Reconciler) extendExisting(ctx context.Context, md *TableMetadata, required []FieldSchema) (int, error) {
	missing := MissingFields(md.Fields, required)
	if len(missing) == 0 {
		return len(md.Fields), nil
	}

	r.log.Info("Extending destination table schema",
		zap.String("dataset", r.dataset),
		zap.String("table", r.table),
		zap.Int("missing_fields", len(missing)))

	updated := append(append([]FieldSchema{}, md.Fields...), missing...)
	if err := r.client.UpdateSchema(ctx, updated); err != nil {
		return 0, fmt.Errorf("failed to update schema for %s.%s: %w", r.dataset, r.table, err)
	}

	md, err := r.client.GetTableMetadata(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to re-read metadata for %s.%s: %w", r.dataset, r.table, err)
	}
	if still := MissingFields(md.Fields, required); len(still) > 0 {
		names := make([]string, len(still))
		for i, f := range still {
			names[i] = f.Name
		}
		return 0, fmt.Errorf("table %s.%s still missing columns after update: %s",
			r.dataset, r.table, strings.Join(names, ", "))
	}

	return len(md.Fields), nil
}

func (r *Reconciler) cachedFieldCount(ctx context.Context) (int, bool, error) {
	val, ok, err := r.store.Get(ctx, schemaCacheKey)
	if err != nil || !ok {
		return 0, false, err
	}

	parts := strings.Split(val, ":")
	if len(parts) != 3 || parts[0] != r.dataset || parts[1] != r.table {
		return 0, false, nil
	}
	count, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, false, nil
	}
	return count, true, nil
}

func (r *Reconciler) cacheValue(fieldCount int) string {
	return fmt.Sprintf("%s:%s:%d", r.dataset, r.table, fieldCount)
}
