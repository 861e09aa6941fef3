package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

func newTestMapper(elementsOnAnyEvent bool) *Mapper {
	m := NewMapper(elementsOnAnyEvent)
	m.now = func() time.Time {
		return time.Date(2022, 8, 18, 16, 0, 0, 0, time.UTC)
	}
	return m
}

func TestMapper_Map_BasicEvent(t *testing.T) {
	mapper := newTestMapper(false)

	event := &domain.Event{
		UUID:       "37114ebb-4ce1-4aa8-b7cd-c4b4d6d22aaa",
		Event:      "test",
		Properties: map[string]any{},
		DistinctID: "did1",
		TeamID:     1,
		IP:         "127.0.0.1",
		Timestamp:  "2022-08-18T15:42:32.597Z",
	}

	row := mapper.Map(event)

	assert.Equal(t, "37114ebb-4ce1-4aa8-b7cd-c4b4d6d22aaa", row.UUID)
	assert.Equal(t, "test", row.Event)
	assert.Equal(t, "{}", row.Properties)
	assert.Equal(t, "[]", row.Elements)
	assert.Equal(t, "{}", row.Set)
	assert.Equal(t, "{}", row.SetOnce)
	assert.Equal(t, "did1", row.DistinctID)
	assert.Equal(t, int64(1), row.TeamID)
	assert.Equal(t, "127.0.0.1", row.IP)
	assert.Equal(t, "2022-08-18T15:42:32.597Z", row.Timestamp)
	assert.NotEmpty(t, row.BqIngestedTimestamp)
	_, err := time.Parse(time.RFC3339Nano, row.BqIngestedTimestamp)
	require.NoError(t, err)
}

func TestMapper_Map_IPPropertyWins(t *testing.T) {
	mapper := newTestMapper(false)

	event := &domain.Event{
		Event:      "test",
		IP:         "10.0.0.1",
		Properties: map[string]any{"$ip": "203.0.113.7"},
	}

	row := mapper.Map(event)
	assert.Equal(t, "203.0.113.7", row.IP)
}

func TestMapper_Map_IPFallsBackToEventField(t *testing.T) {
	mapper := newTestMapper(false)

	event := &domain.Event{Event: "test", IP: "10.0.0.1"}
	row := mapper.Map(event)
	assert.Equal(t, "10.0.0.1", row.IP)
}

func TestMapper_Map_TimestampFallbackChain(t *testing.T) {
	tests := []struct {
		name  string
		event domain.Event
		want  string
	}{
		{
			name: "event timestamp wins",
			event: domain.Event{
				Timestamp:  "2022-08-18T15:42:32.597Z",
				Properties: map[string]any{"timestamp": "2022-01-01T00:00:00Z"},
				SentAt:     "2022-02-02T00:00:00Z",
			},
			want: "2022-08-18T15:42:32.597Z",
		},
		{
			name: "properties timestamp second",
			event: domain.Event{
				Properties: map[string]any{"timestamp": "2022-01-01T00:00:00Z"},
				SentAt:     "2022-02-02T00:00:00Z",
			},
			want: "2022-01-01T00:00:00Z",
		},
		{
			name: "sent_at third",
			event: domain.Event{
				SentAt: "2022-02-02T00:00:00Z",
			},
			want: "2022-02-02T00:00:00Z",
		},
		{
			name:  "mapping instant last",
			event: domain.Event{},
			want:  "2022-08-18T16:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapper := newTestMapper(false)
			tt.event.Event = "test"
			row := mapper.Map(&tt.event)
			assert.Equal(t, tt.want, row.Timestamp)
		})
	}
}

func TestMapper_Map_ElementsOnlyForAutocapture(t *testing.T) {
	mapper := newTestMapper(false)
	elements := []map[string]any{{"tag_name": "button", "text": "Sign up"}}

	row := mapper.Map(&domain.Event{Event: "$pageview", Elements: elements})
	assert.Equal(t, "[]", row.Elements)

	row = mapper.Map(&domain.Event{Event: domain.AutocaptureEvent, Elements: elements})
	assert.JSONEq(t, `[{"tag_name":"button","text":"Sign up"}]`, row.Elements)
}

func TestMapper_Map_ElementsOnAnyEventFlag(t *testing.T) {
	mapper := newTestMapper(true)
	elements := []map[string]any{{"tag_name": "a"}}

	row := mapper.Map(&domain.Event{Event: "custom_event", Elements: elements})
	assert.JSONEq(t, `[{"tag_name":"a"}]`, row.Elements)
}

func TestMapper_Map_SetAndSetOnce(t *testing.T) {
	mapper := newTestMapper(false)

	event := &domain.Event{
		Event:   "test",
		Set:     map[string]any{"plan": "pro"},
		SetOnce: map[string]any{"first_seen": "2022-08-18"},
	}

	row := mapper.Map(event)
	assert.JSONEq(t, `{"plan":"pro"}`, row.Set)
	assert.JSONEq(t, `{"first_seen":"2022-08-18"}`, row.SetOnce)
}

func TestMapper_Map_NilMappingsEncodeAsEmptyObjects(t *testing.T) {
	mapper := newTestMapper(false)

	row := mapper.Map(&domain.Event{Event: "test"})

	assert.Equal(t, "{}", row.Properties)
	assert.Equal(t, "{}", row.Set)
	assert.Equal(t, "{}", row.SetOnce)
	assert.Equal(t, "[]", row.Elements)
}

func TestMapper_Map_Idempotent(t *testing.T) {
	mapper := newTestMapper(false)

	event := &domain.Event{
		UUID:       "u1",
		Event:      "test",
		Properties: map[string]any{"k": "v"},
		DistinctID: "did1",
		TeamID:     2,
		Timestamp:  "2022-08-18T15:42:32.597Z",
	}

	first := mapper.Map(event)
	second := mapper.Map(event)

	// The ingestion timestamp is the only field allowed to differ; the
	// fixed clock makes even that equal here.
	assert.Equal(t, first, second)
}
