package domain

// Batch is one delivery unit: an ordered group of rows flushed together,
// identified by an ID that stays stable across retries. Attempt counts the
// retries performed so far; a re-scheduled batch is a copy with Attempt
// incremented, never a mutation of the in-flight one.
//
// Batch is the payload of a scheduled retry job and must stay serializable.
type Batch struct {
	ID      string `json:"id"`
	Attempt int    `json:"attempt"`
	Rows    []Row  `json:"rows"`
}

// WithNextAttempt returns a copy of the batch carrying the incremented retry
// counter.
func (b Batch) WithNextAttempt() Batch {
	return Batch{ID: b.ID, Attempt: b.Attempt + 1, Rows: b.Rows}
}
