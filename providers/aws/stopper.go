package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/telemetry"
)

// InstanceStopper shuts instances down via the EC2 API
type InstanceStopper struct {
	client EC2API
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewInstanceStopper creates a stopper over the given EC2 client
func NewInstanceStopper(client EC2API) *InstanceStopper {
	return &InstanceStopper{
		client: client,
		logger: telemetry.NewLogger("instance-stopper"),
		tracer: otel.Tracer("instance-stopper"),
	}
}

// Stop issues a StopInstances call for a single instance
func (s *InstanceStopper) Stop(ctx context.Context, instanceID string) error {
	ctx, span := s.tracer.Start(ctx, "StopInstance",
		trace.WithAttributes(attribute.String("instance.id", instanceID)))
	defer span.End()

	_, err := s.client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("stop instance %s: %w", instanceID, err)
	}

	s.logger.WithContext(ctx).Info().
		Str("instance_id", instanceID).
		Msg("stop requested")

	return nil
}
