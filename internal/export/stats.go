package export

import "sync/atomic"

// Stats holds the connector's steady-state counters, read by the status
// server. All methods are safe for concurrent use.
type Stats struct {
	eventsReceived   atomic.Int64
	eventsIgnored    atomic.Int64
	rowsAccepted     atomic.Int64
	batchesExported  atomic.Int64
	rowsExported     atomic.Int64
	retriesScheduled atomic.Int64
	batchesDropped   atomic.Int64
	rowsDropped      atomic.Int64
}

func (s *Stats) EventReceived() { s.eventsReceived.Add(1) }
func (s *Stats) EventIgnored()  { s.eventsIgnored.Add(1) }
// RowAccepted counts a row that passed the filter and entered the buffer.
// It is a lifetime total, not the current buffer depth.
func (s *Stats) RowAccepted() { s.rowsAccepted.Add(1) }

func (s *Stats) BatchExported(rows int) {
	s.batchesExported.Add(1)
	s.rowsExported.Add(int64(rows))
}

func (s *Stats) RetryScheduled() { s.retriesScheduled.Add(1) }

func (s *Stats) BatchDropped(rows int) {
	s.batchesDropped.Add(1)
	s.rowsDropped.Add(int64(rows))
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	EventsReceived   int64 `json:"events_received"`
	EventsIgnored    int64 `json:"events_ignored"`
	RowsAccepted     int64 `json:"rows_accepted"`
	BatchesExported  int64 `json:"batches_exported"`
	RowsExported     int64 `json:"rows_exported"`
	RetriesScheduled int64 `json:"retries_scheduled"`
	BatchesDropped   int64 `json:"batches_dropped"`
	RowsDropped      int64 `json:"rows_dropped"`
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		EventsReceived:   s.eventsReceived.Load(),
		EventsIgnored:    s.eventsIgnored.Load(),
		RowsAccepted:     s.rowsAccepted.Load(),
		BatchesExported:  s.batchesExported.Load(),
		RowsExported:     s.rowsExported.Load(),
		RetriesScheduled: s.retriesScheduled.Load(),
		BatchesDropped:   s.batchesDropped.Load(),
		RowsDropped:      s.rowsDropped.Load(),
	}
}
