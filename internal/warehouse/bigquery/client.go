package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/PostHog/bigquery-plugin/internal/config"
	"github.com/PostHog/bigquery-plugin/internal/domain"
	"github.com/PostHog/bigquery-plugin/internal/warehouse"
)

// Client implements warehouse.Client on top of the BigQuery streaming API.
type Client struct {
	client *bigquery.Client
	table  *bigquery.Table
	log    *zap.Logger
}

// NewClient creates a BigQuery client for the configured project, dataset
// and table. Credentials come from the configured service-account JSON, or
// from application default credentials when none is set.
func NewClient(ctx context.Context, cfg *config.BigQuery, log *zap.Logger) (*Client, error) {
	log.Info("Connecting to BigQuery",
		zap.String("project", cfg.ProjectID),
		zap.String("dataset", cfg.DatasetID),
		zap.String("table", cfg.TableID))

	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		log.Error("Failed to create BigQuery client", zap.Error(err))
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}

	return &Client{
		client: client,
		table:  client.Dataset(cfg.DatasetID).Table(cfg.TableID),
		log:    log,
	}, nil
}

// GetTableMetadata returns the destination table schema, translating the
// service's not-found response into warehouse.ErrTableNotFound.
func (c *Client) GetTableMetadata(ctx context.Context) (*warehouse.TableMetadata, error) {
	md, err := c.table.Metadata(ctx)
	if err != nil {
		if isStatus(err, 404) {
			return nil, warehouse.ErrTableNotFound
		}
		return nil, fmt.Errorf("failed to get table metadata: %w", err)
	}
	return &warehouse.TableMetadata{Fields: fromBigQuerySchema(md.Schema)}, nil
}

// CreateTable creates the destination table, translating the service's
// conflict response into warehouse.ErrTableExists.
func (c *Client) CreateTable(ctx context.Context, fields []warehouse.FieldSchema) error {
	err := c.table.Create(ctx, &bigquery.TableMetadata{Schema: toBigQuerySchema(fields)})
	if err != nil {
		if isStatus(err, 409) {
			return warehouse.ErrTableExists
		}
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// UpdateSchema replaces the table schema, using the current metadata ETag so
// a concurrent update loses cleanly instead of clobbering.
func (c *Client) UpdateSchema(ctx context.Context, fields []warehouse.FieldSchema) error {
	md, err := c.table.Metadata(ctx)
	if err != nil {
		return fmt.Errorf("failed to get table metadata before update: %w", err)
	}

	update := bigquery.TableMetadataToUpdate{Schema: toBigQuerySchema(fields)}
	if _, err := c.table.Update(ctx, update, md.ETag); err != nil {
		return fmt.Errorf("failed to update table schema: %w", err)
	}
	return nil
}

// Insert streams rows into the table in one call. Insert-id deduplication is
// disabled; the export pipeline owns retry semantics and tolerates rare
// duplicates on ambiguous outcomes.
func (c *Client) Insert(ctx context.Context, rows []domain.Row) error {
	savers := make([]*rowSaver, len(rows))
	for i := range rows {
		savers[i] = &rowSaver{row: &rows[i]}
	}

	inserter := c.table.Inserter()
	inserter.SkipInvalidRows = false
	inserter.IgnoreUnknownValues = false

	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("failed to insert rows: %w", err)
	}
	return nil
}

// Close closes the underlying BigQuery client.
func (c *Client) Close() error {
	c.log.Info("Closing BigQuery client")
	return c.client.Close()
}

// rowSaver adapts a domain row to the streaming insert API without assigning
// an insert id.
type rowSaver struct {
	row *domain.Row
}

func (s *rowSaver) Save() (map[string]bigquery.Value, string, error) {
	r := s.row
	return map[string]bigquery.Value{
		"uuid":                  r.UUID,
		"event":                 r.Event,
		"properties":            r.Properties,
		"elements":              r.Elements,
		"set":                   r.Set,
		"set_once":              r.SetOnce,
		"distinct_id":           r.DistinctID,
		"team_id":               r.TeamID,
		"ip":                    r.IP,
		"site_url":              r.SiteURL,
		"timestamp":             r.Timestamp,
		"bq_ingested_timestamp": r.BqIngestedTimestamp,
	}, bigquery.NoDedupeID, nil
}

func isStatus(err error, code int) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

func toBigQuerySchema(fields []warehouse.FieldSchema) bigquery.Schema {
	schema := make(bigquery.Schema, len(fields))
	for i, f := range fields {
		schema[i] = &bigquery.FieldSchema{Name: f.Name, Type: toFieldType(f.Type)}
	}
	return schema
}

func fromBigQuerySchema(schema bigquery.Schema) []warehouse.FieldSchema {
	fields := make([]warehouse.FieldSchema, len(schema))
	for i, f := range schema {
		fields[i] = warehouse.FieldSchema{Name: f.Name, Type: fromFieldType(f.Type)}
	}
	return fields
}

func toFieldType(t warehouse.FieldType) bigquery.FieldType {
	switch t {
	case warehouse.FieldTypeInteger:
		return bigquery.IntegerFieldType
	case warehouse.FieldTypeTimestamp:
		return bigquery.TimestampFieldType
	default:
		return bigquery.StringFieldType
	}
}

func fromFieldType(t bigquery.FieldType) warehouse.FieldType {
	switch t {
	case bigquery.IntegerFieldType:
		return warehouse.FieldTypeInteger
	case bigquery.TimestampFieldType:
		return warehouse.FieldTypeTimestamp
	default:
		return warehouse.FieldTypeString
	}
}
