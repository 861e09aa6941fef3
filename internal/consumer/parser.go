package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

// CaptureParser parses JSON capture payloads as produced by the ingestion
// pipeline into events. Unknown fields are ignored; a missing uuid gets a
// generated one so every exported row carries an identity.
type CaptureParser struct{}

func NewCaptureParser() *CaptureParser {
	return &CaptureParser{}
}

func (p *CaptureParser) Parse(body []byte) (*domain.Event, error) {
	var msg map[string]any
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal capture payload: %w", err)
	}

	name := stringField(msg, "event")
	if name == "" {
		return nil, fmt.Errorf("capture payload has no event name")
	}

	eventUUID := stringField(msg, "uuid")
	if eventUUID == "" {
		eventUUID = uuid.NewString()
	}

	event := &domain.Event{
		UUID:       eventUUID,
		Event:      name,
		Properties: objectField(msg, "properties"),
		Elements:   elementsField(msg),
		Set:        objectField(msg, "$set"),
		SetOnce:    objectField(msg, "$set_once"),
		DistinctID: stringField(msg, "distinct_id"),
		TeamID:     int64Field(msg, "team_id"),
		IP:         stringField(msg, "ip"),
		SiteURL:    stringField(msg, "site_url"),
		Timestamp:  stringField(msg, "timestamp"),
		SentAt:     stringField(msg, "sent_at"),
	}

	return event, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func int64Field(m map[string]any, key string) int64 {
	if v, ok := m[key].(float64); ok {
		return int64(v)
	}
	return 0
}

func objectField(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func elementsField(m map[string]any) []map[string]any {
	raw, ok := m["elements"].([]any)
	if !ok {
		return nil
	}
	var elements []map[string]any
	for _, e := range raw {
		if obj, ok := e.(map[string]any); ok {
			elements = append(elements, obj)
		}
	}
	return elements
}
