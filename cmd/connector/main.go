package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/cache"
	"github.com/PostHog/bigquery-plugin/internal/config"
	"github.com/PostHog/bigquery-plugin/internal/consumer"
	"github.com/PostHog/bigquery-plugin/internal/export"
	"github.com/PostHog/bigquery-plugin/internal/logger"
	queuesqs "github.com/PostHog/bigquery-plugin/internal/queue/sqs"
	"github.com/PostHog/bigquery-plugin/internal/scheduler"
	"github.com/PostHog/bigquery-plugin/internal/status"
	"github.com/PostHog/bigquery-plugin/internal/warehouse"
	"github.com/PostHog/bigquery-plugin/internal/warehouse/bigquery"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		if err := log.Sync(); err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting BigQuery export connector",
		zap.String("environment", cfg.Service.Environment),
		zap.String("dataset", cfg.BigQuery.DatasetID),
		zap.String("table", cfg.BigQuery.TableID))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Schema cache: Valkey when configured, otherwise in-process.
	var store cache.Store
	if cfg.Valkey.Host != "" {
		valkey, err := cache.NewValkey(ctx, cfg.Valkey, log)
		if err != nil {
			log.Fatal("Failed to connect to Valkey", zap.Error(err))
		}
		store = valkey
	} else {
		log.Info("No Valkey host configured, using in-process schema cache")
		store = cache.NewMemory()
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close cache store", zap.Error(err))
		}
	}()

	// Destination warehouse client.
	bqClient, err := bigquery.NewClient(ctx, &cfg.BigQuery, log)
	if err != nil {
		log.Fatal("Failed to create BigQuery client", zap.Error(err))
	}
	defer func() {
		if err := bqClient.Close(); err != nil {
			log.Error("Failed to close BigQuery client", zap.Error(err))
		}
	}()

	// One-shot schema reconciliation; transient failures re-run setup.
	reconciler := warehouse.NewReconciler(bqClient, store, cfg.BigQuery.DatasetID, cfg.BigQuery.TableID, log)
	if err := reconcileWithRetry(ctx, reconciler, cfg.Export, log); err != nil {
		log.Fatal("Failed to reconcile destination schema", zap.Error(err))
	}
	log.Info("Destination schema reconciled")

	// Delayed-job facility for batch retries: durable SQS queue when
	// configured, in-process timers otherwise.
	jobs, err := newJobQueue(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to create job queue", zap.Error(err))
	}

	exporter := export.New(ctx, cfg.Export, bqClient, jobs, log)
	defer exporter.Close()

	jobs.Start(ctx, exporter.RunJob)

	// Ingestion pipeline.
	eventsClient, err := queuesqs.NewClient(ctx, cfg.SQS, cfg.SQS.QueueURL, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}
	c := consumer.NewConsumer(eventsClient, exporter, log)

	// Status server.
	go func() {
		srv := status.NewServer(exporter.Stats(), store, cfg.Service.Environment, log)
		addr := ":" + cfg.Service.StatusPort
		log.Info("Status server starting", zap.String("address", addr))
		if err := http.ListenAndServe(addr, srv); err != nil {
			log.Error("Status server error", zap.Error(err))
		}
	}()

	go func() {
		if err := c.Start(ctx); err != nil {
			log.Fatal("Consumer error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down connector gracefully")
	// Drain and deliver the tail batch before tearing down the context the
	// flush goroutines run under.
	exporter.Close()
	cancel()
}

// reconcileWithRetry re-runs setup on transient connection failures, up to
// the configured attempt budget.
func reconcileWithRetry(ctx context.Context, r *warehouse.Reconciler, cfg config.Export, log *zap.Logger) error {
	interval := time.Duration(cfg.SetupRetryIntervalSec) * time.Second

	var err error
	for attempt := 0; attempt < cfg.SetupRetryAttempts; attempt++ {
		err = r.Reconcile(ctx)
		if err == nil {
			return nil
		}
		if !warehouse.IsRetryable(err) {
			return err
		}
		log.Warn("Transient setup failure, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("interval", interval),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	return err
}

func newJobQueue(ctx context.Context, cfg *config.Config, log *zap.Logger) (scheduler.JobQueue, error) {
	if cfg.SQS.JobsQueueURL == "" {
		log.Info("No jobs queue configured, scheduling retries in process")
		return scheduler.NewTimerQueue(log), nil
	}

	jobsClient, err := queuesqs.NewClient(ctx, cfg.SQS, cfg.SQS.JobsQueueURL, log)
	if err != nil {
		return nil, err
	}

	return scheduler.NewSQSQueue(jobsClient, jobsClient, log), nil
}
