package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/telemetry"
)

// Message is one received queue message
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

// EventQueue long-polls an SQS queue. The daemon reads EC2 state-change
// events from one queue; the relay reads SNS-wrapped notifications from
// another. Same plumbing, different queue URL.
type EventQueue struct {
	client   SQSAPI
	queueURL string
	logger   *telemetry.Logger
	tracer   trace.Tracer
}

// NewEventQueue creates a queue reader for the given URL
func NewEventQueue(client SQSAPI, queueURL string) *EventQueue {
	return &EventQueue{
		client:   client,
		queueURL: queueURL,
		logger:   telemetry.NewLogger("event-queue"),
		tracer:   otel.Tracer("event-queue"),
	}
}

// Receive long-polls for up to max messages
func (q *EventQueue) Receive(ctx context.Context, max int32, wait time.Duration) ([]Message, error) {
	ctx, span := q.tracer.Start(ctx, "ReceiveMessages")
	defer span.End()

	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            awssdk.String(q.queueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     int32(wait / time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("receive messages from %s: %w", q.queueURL, err)
	}

	messages := make([]Message, 0, len(output.Messages))
	for _, m := range output.Messages {
		messages = append(messages, Message{
			ID:            awssdk.ToString(m.MessageId),
			Body:          awssdk.ToString(m.Body),
			ReceiptHandle: awssdk.ToString(m.ReceiptHandle),
		})
	}

	span.SetAttributes(attribute.Int("messages.count", len(messages)))

	return messages, nil
}

// Delete acknowledges a handled message
func (q *EventQueue) Delete(ctx context.Context, receiptHandle string) error {
	ctx, span := q.tracer.Start(ctx, "DeleteMessage")
	defer span.End()

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      awssdk.String(q.queueURL),
		ReceiptHandle: awssdk.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("delete message from %s: %w", q.queueURL, err)
	}

	return nil
}
