package consumer

import (
	"github.com/PostHog/bigquery-plugin/internal/domain"
)

// MessageParser parses raw message bytes into a captured event.
type MessageParser interface {
	Parse(body []byte) (*domain.Event, error)
}
