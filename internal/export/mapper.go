package export

import (
	"encoding/json"
	"time"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

// Mapper transforms captured events into destination rows. Mapping is pure
// apart from the ingestion timestamp, which comes from the injected clock.
type Mapper struct {
	// ElementsOnAnyEvent exports UI elements for every event instead of
	// only for autocapture events.
	ElementsOnAnyEvent bool

	now func() time.Time
}

func NewMapper(elementsOnAnyEvent bool) *Mapper {
	return &Mapper{
		ElementsOnAnyEvent: elementsOnAnyEvent,
		now:                time.Now,
	}
}

// Map converts one event into its row. Every JSON column is always a valid
// JSON string. Rows come out in the same order events go in: Map holds no
// state across calls.
func (m *Mapper) Map(event *domain.Event) domain.Row {
	ip := event.IP
	if v, ok := event.Properties["$ip"].(string); ok && v != "" {
		ip = v
	}

	// Canonical fallback chain: the event's own timestamp, then the
	// timestamp property, then sent_at, then the mapping instant.
	timestamp := event.Timestamp
	if timestamp == "" {
		if v, ok := event.Properties["timestamp"].(string); ok {
			timestamp = v
		}
	}
	if timestamp == "" {
		timestamp = event.SentAt
	}
	if timestamp == "" {
		timestamp = m.now().UTC().Format(time.RFC3339Nano)
	}

	elements := "[]"
	if event.Event == domain.AutocaptureEvent || m.ElementsOnAnyEvent {
		if len(event.Elements) > 0 {
			elements = encodeJSON(event.Elements, "[]")
		}
	}

	return domain.Row{
		UUID:                event.UUID,
		Event:               event.Event,
		Properties:          encodeObject(event.Properties),
		Elements:            elements,
		Set:                 encodeObject(event.Set),
		SetOnce:             encodeObject(event.SetOnce),
		DistinctID:          event.DistinctID,
		TeamID:              event.TeamID,
		IP:                  ip,
		SiteURL:             event.SiteURL,
		Timestamp:           timestamp,
		BqIngestedTimestamp: m.now().UTC().Format(time.RFC3339Nano),
	}
}

func encodeObject(v map[string]any) string {
	if v == nil {
		return "{}"
	}
	return encodeJSON(v, "{}")
}

func encodeJSON(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}
