package warehouse

// RequiredFields returns the column set the destination table must contain,
// order-independent. Reconciliation treats any superset as valid.
func RequiredFields() []FieldSchema {
	return []FieldSchema{
		{Name: "uuid", Type: FieldTypeString},
		{Name: "event", Type: FieldTypeString},
		{Name: "properties", Type: FieldTypeString},
		{Name: "elements", Type: FieldTypeString},
		{Name: "set", Type: FieldTypeString},
		{Name: "set_once", Type: FieldTypeString},
		{Name: "distinct_id", Type: FieldTypeString},
		{Name: "team_id", Type: FieldTypeInteger},
		{Name: "ip", Type: FieldTypeString},
		{Name: "site_url", Type: FieldTypeString},
		{Name: "timestamp", Type: FieldTypeTimestamp},
		{Name: "bq_ingested_timestamp", Type: FieldTypeTimestamp},
	}
}

// MissingFields returns the required fields absent from current, keeping the
// required order.
func MissingFields(current, required []FieldSchema) []FieldSchema {
	present := make(map[string]struct{}, len(current))
	for _, f := range current {
		present[f.Name] = struct{}{}
	}

	var missing []FieldSchema
	for _, f := range required {
		if _, ok := present[f.Name]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}
