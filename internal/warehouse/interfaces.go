package warehouse

import (
	"context"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

// FieldType is the semantic column type of a destination table field.
type FieldType string

const (
	FieldTypeString    FieldType = "STRING"
	FieldTypeInteger   FieldType = "INTEGER"
	FieldTypeTimestamp FieldType = "TIMESTAMP"
)

// FieldSchema describes one column of the destination table.
type FieldSchema struct {
	Name string
	Type FieldType
}

// TableMetadata is the subset of destination table metadata the connector
// cares about.
type TableMetadata struct {
	Fields []FieldSchema
}

// Client defines the operations the connector needs from the destination
// warehouse. Implementations own the translation of backend errors into the
// sentinel and classified errors of this package.
type Client interface {
	// GetTableMetadata returns the current table schema, or ErrTableNotFound
	// if the table does not exist yet.
	GetTableMetadata(ctx context.Context) (*TableMetadata, error)

	// CreateTable creates the destination table with the given schema.
	// Returns ErrTableExists if another worker won the creation race.
	CreateTable(ctx context.Context, fields []FieldSchema) error

	// UpdateSchema replaces the table schema with the given field list. The
	// update is additive from the reconciler's perspective: callers pass the
	// existing fields plus any missing required ones.
	UpdateSchema(ctx context.Context, fields []FieldSchema) error

	// Insert appends rows to the table. Client-library retries and
	// insert-id deduplication are disabled; retry semantics belong to the
	// export pipeline.
	Insert(ctx context.Context, rows []domain.Row) error

	// Close releases the underlying connection.
	Close() error
}
