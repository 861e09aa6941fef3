package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	minBufferLimitBytes = 1 << 20
	maxBufferLimitBytes = 10 << 20
	minFlushIntervalSec = 1
	maxFlushIntervalSec = 600
)

// Service holds process-level settings.
type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	StatusPort  string `envconfig:"STATUS_PORT" default:"8081"`
}

// BigQuery holds the destination warehouse settings.
type BigQuery struct {
	ProjectID       string `envconfig:"BIGQUERY_PROJECT_ID" required:"true"`
	DatasetID       string `envconfig:"BIGQUERY_DATASET_ID" required:"true"`
	TableID         string `envconfig:"BIGQUERY_TABLE_ID" required:"true"`
	CredentialsJSON string `envconfig:"BIGQUERY_CREDENTIALS_JSON"`
}

// Export holds the batching and retry settings for the export pipeline.
type Export struct {
	EventsToIgnore        string `envconfig:"EXPORT_EVENTS_TO_IGNORE" default:"$feature_flag_called"`
	BufferLimitBytes      int    `envconfig:"EXPORT_BUFFER_LIMIT_BYTES" default:"1048576"`
	FlushIntervalSec      int    `envconfig:"EXPORT_FLUSH_INTERVAL_SEC" default:"30"`
	ElementsOnAnyEvent    bool   `envconfig:"EXPORT_ELEMENTS_ON_ANY_EVENT" default:"false"`
	MaxRetries            int    `envconfig:"EXPORT_MAX_RETRIES" default:"15"`
	RetryBaseIntervalSec  int    `envconfig:"EXPORT_RETRY_BASE_SEC" default:"3"`
	SetupRetryAttempts    int    `envconfig:"EXPORT_SETUP_RETRY_ATTEMPTS" default:"5"`
	SetupRetryIntervalSec int    `envconfig:"EXPORT_SETUP_RETRY_SEC" default:"5"`
}

// SQS holds the ingestion queue settings.
type SQS struct {
	Endpoint     string `envconfig:"SQS_ENDPOINT"`
	QueueURL     string `envconfig:"SQS_QUEUE_URL" required:"true"`
	JobsQueueURL string `envconfig:"SQS_JOBS_QUEUE_URL"`
	Region       string `envconfig:"SQS_REGION" required:"true"`
}

// Valkey holds the schema cache settings. The cache is optional; an empty
// host disables it.
type Valkey struct {
	Host string `envconfig:"VALKEY_HOST"`
	Port string `envconfig:"VALKEY_PORT" default:"6379"`
}

type Config struct {
	Service  Service
	BigQuery BigQuery
	Export   Export
	SQS      SQS
	Valkey   Valkey
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.Export.BufferLimitBytes = clamp(cfg.Export.BufferLimitBytes, minBufferLimitBytes, maxBufferLimitBytes)
	cfg.Export.FlushIntervalSec = clamp(cfg.Export.FlushIntervalSec, minFlushIntervalSec, maxFlushIntervalSec)

	if cfg.Export.MaxRetries < 0 {
		return nil, fmt.Errorf("EXPORT_MAX_RETRIES must not be negative, got %d", cfg.Export.MaxRetries)
	}
	if cfg.Export.RetryBaseIntervalSec < 1 {
		return nil, fmt.Errorf("EXPORT_RETRY_BASE_SEC must be at least 1, got %d", cfg.Export.RetryBaseIntervalSec)
	}

	return &cfg, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
