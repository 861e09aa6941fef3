package domain

// AutocaptureEvent is the event name whose payload carries UI element
// metadata exported under the elements inclusion policy.
const AutocaptureEvent = "$autocapture"

// Event represents a single captured analytics event as delivered by the
// ingestion pipeline. Events are read-only once parsed.
type Event struct {
	UUID       string           `json:"uuid"`
	Event      string           `json:"event"`
	Properties map[string]any   `json:"properties"`
	Elements   []map[string]any `json:"elements"`
	Set        map[string]any   `json:"$set"`
	SetOnce    map[string]any   `json:"$set_once"`
	DistinctID string           `json:"distinct_id"`
	TeamID     int64            `json:"team_id"`
	IP         string           `json:"ip"`
	SiteURL    string           `json:"site_url"`
	Timestamp  string           `json:"timestamp"`
	SentAt     string           `json:"sent_at"`
}
