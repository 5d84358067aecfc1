package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/providers"
	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/types"
)

// InstanceDirectory lists and describes EC2 instances
type InstanceDirectory struct {
	client EC2API
	region string
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewInstanceDirectory creates a directory over the given EC2 client
func NewInstanceDirectory(client EC2API, region string) *InstanceDirectory {
	return &InstanceDirectory{
		client: client,
		region: region,
		logger: telemetry.NewLogger("instance-directory"),
		tracer: otel.Tracer("instance-directory"),
	}
}

// ListRunning returns all instances in the running state
func (d *InstanceDirectory) ListRunning(ctx context.Context) ([]types.Instance, error) {
	ctx, span := d.tracer.Start(ctx, "ListRunning")
	defer span.End()

	var instances []types.Instance
	var nextToken *string

	for {
		output, err := d.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
			Filters: []ec2types.Filter{
				{
					Name:   awssdk.String("instance-state-name"),
					Values: []string{string(ec2types.InstanceStateNameRunning)},
				},
			},
			NextToken: nextToken,
		})
		if err != nil {
			return nil, fmt.Errorf("describe running instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				instances = append(instances, d.convertInstance(instance))
			}
		}

		if output.NextToken == nil {
			break
		}
		nextToken = output.NextToken
	}

	span.SetAttributes(attribute.Int("instances.count", len(instances)))

	return instances, nil
}

// Describe returns a single instance with its current tags
func (d *InstanceDirectory) Describe(ctx context.Context, instanceID string) (*types.Instance, error) {
	ctx, span := d.tracer.Start(ctx, "DescribeInstance")
	defer span.End()

	output, err := d.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return nil, fmt.Errorf("describe instance %s: %w", instanceID, err)
	}

	for _, reservation := range output.Reservations {
		for _, instance := range reservation.Instances {
			if awssdk.ToString(instance.InstanceId) == instanceID {
				converted := d.convertInstance(instance)
				return &converted, nil
			}
		}
	}

	return nil, providers.ErrInstanceNotFound
}

// convertInstance converts an SDK instance to the reaper's type
func (d *InstanceDirectory) convertInstance(instance ec2types.Instance) types.Instance {
	tags := make(map[string]string, len(instance.Tags))
	for _, tag := range instance.Tags {
		tags[awssdk.ToString(tag.Key)] = awssdk.ToString(tag.Value)
	}

	state := ""
	if instance.State != nil {
		state = string(instance.State.Name)
	}

	return types.Instance{
		ID:           awssdk.ToString(instance.InstanceId),
		Region:       d.region,
		State:        state,
		InstanceType: string(instance.InstanceType),
		LaunchTime:   awssdk.ToTime(instance.LaunchTime),
		Tags:         types.TagsFromMap(tags),
	}
}
