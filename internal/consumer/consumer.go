package consumer

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/queue"
)

// Consumer orchestrates the ingestion pipeline: receive queue messages,
// parse them into events, hand each event to the exporter.
type Consumer struct {
	receiver    *Receiver
	parser      *ParserStage
	exportStage *ExportStage
}

func NewConsumer(queueConsumer queue.Consumer, handler EventHandler, log *zap.Logger) *Consumer {
	return &Consumer{
		receiver: NewReceiver(queueConsumer, ReceiverConfig{
			MaxMessages:     10,
			WaitTimeSeconds: 20,
		}, log),
		parser:      NewParserStage(queueConsumer, NewCaptureParser(), log),
		exportStage: NewExportStage(handler, log),
	}
}

// Start runs all pipeline stages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	messageChan := make(chan types.Message, 100)
	envelopeChan := make(chan *Envelope, 100)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		c.receiver.Start(ctx, messageChan)
	}()

	go func() {
		defer wg.Done()
		c.parser.Start(ctx, messageChan, envelopeChan)
	}()

	go func() {
		defer wg.Done()
		c.exportStage.Start(ctx, envelopeChan)
	}()

	wg.Wait()
	return nil
}
