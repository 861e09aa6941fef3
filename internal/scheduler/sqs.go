package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/PostHog/bigquery-plugin/internal/domain"
	"github.com/PostHog/bigquery-plugin/internal/queue"
)

// maxDelaySeconds is the longest native delay SQS supports. Longer backoffs
// are chained: the job carries its not-before instant and is re-enqueued
// with the remaining delay when it arrives early.
const maxDelaySeconds = 900

// jobMessage is the wire form of a scheduled retry job.
type jobMessage struct {
	NotBefore time.Time    `json:"not_before"`
	Batch     domain.Batch `json:"batch"`
}

// SQSQueue is the durable JobQueue, backed by a dedicated jobs queue.
// Scheduled batches survive a process restart, at the price of at-least-once
// delivery.
type SQSQueue struct {
	consumer  queue.Consumer
	publisher queue.Publisher
	log       *zap.Logger
}

func NewSQSQueue(consumer queue.Consumer, publisher queue.Publisher, log *zap.Logger) *SQSQueue {
	return &SQSQueue{
		consumer:  consumer,
		publisher: publisher,
		log:       log,
	}
}

// Enqueue serializes the batch and sends it with a native SQS delay, capped
// at the service maximum.
func (q *SQSQueue) Enqueue(ctx context.Context, batch domain.Batch, delay time.Duration) error {
	return q.send(ctx, jobMessage{
		NotBefore: time.Now().Add(delay),
		Batch:     batch,
	}, delay)
}

// Start consumes the jobs queue until ctx is cancelled, handing due jobs to
// h and re-enqueueing early arrivals with their remaining delay.
func (q *SQSQueue) Start(ctx context.Context, h Handler) {
	go q.receiveLoop(ctx, h)
}

func (q *SQSQueue) receiveLoop(ctx context.Context, h Handler) {
	for {
		select {
		case <-ctx.Done():
			q.log.Info("Job queue receiver shutting down")
			return
		default:
			result, err := q.consumer.ReceiveMessages(ctx, &awssqs.ReceiveMessageInput{
				QueueUrl:            aws.String(q.consumer.QueueURL()),
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     20,
			})
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				q.log.Error("Error receiving scheduled jobs", zap.Error(err))
				time.Sleep(1 * time.Second)
				continue
			}

			for _, msg := range result.Messages {
				q.handleMessage(ctx, msg, h)
			}
		}
	}
}

func (q *SQSQueue) handleMessage(ctx context.Context, msg types.Message, h Handler) {
	var job jobMessage
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &job); err != nil {
		q.log.Error("Failed to decode scheduled job, deleting",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
		q.deleteMessage(ctx, msg)
		return
	}

	if remaining := time.Until(job.NotBefore); remaining > time.Second {
		// The native delay cap delivered this job early; push it back out
		// with what is left.
		if err := q.send(ctx, job, remaining); err != nil {
			q.log.Error("Failed to re-enqueue early job",
				zap.String("batch_id", job.Batch.ID),
				zap.Error(err))
			// Leave the message; visibility timeout will redeliver it.
			return
		}
		q.deleteMessage(ctx, msg)
		return
	}

	h(ctx, job.Batch)
	q.deleteMessage(ctx, msg)
}

func (q *SQSQueue) send(ctx context.Context, job jobMessage, delay time.Duration) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	delaySeconds := int32(delay / time.Second)
	if delaySeconds > maxDelaySeconds {
		delaySeconds = maxDelaySeconds
	}
	if delaySeconds < 0 {
		delaySeconds = 0
	}

	_, err = q.publisher.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:     aws.String(q.publisher.QueueURL()),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySeconds,
		MessageAttributes: map[string]types.MessageAttributeValue{
			"JobType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("exportRetry"),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.log.Info("Scheduled batch retry job",
		zap.String("batch_id", job.Batch.ID),
		zap.Int("attempt", job.Batch.Attempt),
		zap.Int32("delay_seconds", delaySeconds))
	return nil
}

func (q *SQSQueue) deleteMessage(ctx context.Context, msg types.Message) {
	_, err := q.consumer.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.consumer.QueueURL()),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		q.log.Error("Failed to delete job message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
	}
}
