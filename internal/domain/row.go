package domain

// Row is the flat destination representation of one event, ready for an
// append-only insert. The properties, elements, set and set_once columns are
// always valid JSON strings ("{}" / "[]" when absent).
type Row struct {
	UUID                string `json:"uuid"`
	Event               string `json:"event"`
	Properties          string `json:"properties"`
	Elements            string `json:"elements"`
	Set                 string `json:"set"`
	SetOnce             string `json:"set_once"`
	DistinctID          string `json:"distinct_id"`
	TeamID              int64  `json:"team_id"`
	IP                  string `json:"ip"`
	SiteURL             string `json:"site_url"`
	Timestamp           string `json:"timestamp"`
	BqIngestedTimestamp string `json:"bq_ingested_timestamp"`
}

// EstimateSize returns an approximate encoded byte size of the row, used by
// the batch buffer to enforce its byte limit. It sums the string columns plus
// a fixed overhead for field names and scalar columns.
func (r *Row) EstimateSize() int {
	const overhead = 160
	return overhead +
		len(r.UUID) +
		len(r.Event) +
		len(r.Properties) +
		len(r.Elements) +
		len(r.Set) +
		len(r.SetOnce) +
		len(r.DistinctID) +
		len(r.IP) +
		len(r.SiteURL) +
		len(r.Timestamp) +
		len(r.BqIngestedTimestamp)
}
