package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func TestConsumer_Start_PipelineCoordination(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	handler := &recordingHandler{}
	log := zap.NewNop()

	mockConsumer.On("QueueURL").Return("https://sqs.eu-central-1.amazonaws.com/123/events")

	messages := []types.Message{
		testMessage("msg-1", `{"event": "test", "uuid": "u1", "distinct_id": "did1", "team_id": 1}`),
	}
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.AnythingOfType("*sqs.ReceiveMessageInput")).
		Return(&sqs.ReceiveMessageOutput{Messages: messages}, nil).Once()
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.AnythingOfType("*sqs.ReceiveMessageInput")).
		Return(&sqs.ReceiveMessageOutput{Messages: []types.Message{}}, nil).Maybe()
	mockConsumer.On("DeleteMessage", mock.Anything, mock.AnythingOfType("*sqs.DeleteMessageInput")).
		Return(&sqs.DeleteMessageOutput{}, nil)

	c := NewConsumer(mockConsumer, handler, log)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := c.Start(ctx)
	assert.NoError(t, err)

	assert.Equal(t, 1, handler.count())
	assert.Equal(t, "u1", handler.events[0].UUID)
	assert.Equal(t, int64(1), handler.events[0].TeamID)
	mockConsumer.AssertCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestConsumer_Start_GracefulShutdown(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	handler := &recordingHandler{}
	log := zap.NewNop()

	mockConsumer.On("QueueURL").Return("https://sqs.eu-central-1.amazonaws.com/123/events").Maybe()
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.AnythingOfType("*sqs.ReceiveMessageInput")).
		Return(&sqs.ReceiveMessageOutput{Messages: []types.Message{}}, nil).Maybe()

	c := NewConsumer(mockConsumer, handler, log)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		assert.NoError(t, c.Start(ctx))
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("Graceful shutdown took too long")
	}

	assert.Equal(t, 0, handler.count())
}
