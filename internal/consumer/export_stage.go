package consumer

import (
	"context"

	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/domain"
)

// EventHandler is the connector entry point the export stage invokes once
// per accepted event.
type EventHandler interface {
	OnEvent(ctx context.Context, event *domain.Event)
}

// ExportStage hands each envelope to the exporter and acknowledges it. The
// export is fire-and-forget: once an event is buffered the queue message is
// done, and any later delivery failure is the retry scheduler's business.
type ExportStage struct {
	handler EventHandler
	log     *zap.Logger
}

func NewExportStage(handler EventHandler, log *zap.Logger) *ExportStage {
	return &ExportStage{
		handler: handler,
		log:     log,
	}
}

// Start consumes envelopes from in until ctx is cancelled or in closes.
func (s *ExportStage) Start(ctx context.Context, in <-chan *Envelope) {
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Export stage shutting down")
			return
		case envelope, ok := <-in:
			if !ok {
				s.log.Info("Export stage input channel closed")
				return
			}

			s.handler.OnEvent(ctx, envelope.Event)

			if err := envelope.Ack(ctx); err != nil {
				s.log.Error("Failed to ack envelope",
					zap.String("event_uuid", envelope.Event.UUID),
					zap.Error(err))
			}
		}
	}
}
