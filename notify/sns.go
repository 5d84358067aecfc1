package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/types"
)

// SNSAPI is the slice of the SNS client the publisher needs
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPublisher pushes shutdown events to an SNS topic. Subscribers get a
// human-readable subject and the pretty-printed wire message as the body.
type SNSPublisher struct {
	client   SNSAPI
	topicARN string
	logger   *telemetry.Logger
	tracer   trace.Tracer
}

// NewSNSPublisher creates a publisher bound to one topic
func NewSNSPublisher(client SNSAPI, topicARN string) *SNSPublisher {
	return &SNSPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   telemetry.NewLogger("sns-publisher"),
		tracer:   otel.Tracer("sns-publisher"),
	}
}

// Publish sends one shutdown event to the topic
func (p *SNSPublisher) Publish(ctx context.Context, event types.ShutdownEvent) error {
	ctx, span := p.tracer.Start(ctx, "PublishShutdownEvent",
		trace.WithAttributes(
			attribute.String("instance.id", event.ResourceID),
			attribute.String("sns.topic", p.topicARN),
		))
	defer span.End()

	body, err := json.MarshalIndent(ToMessage(event), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal shutdown message: %w", err)
	}

	subject := fmt.Sprintf("EC2 Instance Shutdown: %s (%s)", event.ResourceName, event.ResourceID)

	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("publish to sns: %w", err)
	}

	p.logger.WithContext(ctx).Info().
		Str("instance_id", event.ResourceID).
		Str("topic", p.topicARN).
		Msg("shutdown notification published")

	return nil
}
