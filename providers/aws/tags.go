package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/types"
)

// TagStore keeps idle watermarks on the instances themselves, as EC2 tags.
// This is the default backend: no extra infrastructure, and the state is
// visible right in the console next to the instance it describes.
type TagStore struct {
	client EC2API
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewTagStore creates a tag-backed watermark store
func NewTagStore(client EC2API) *TagStore {
	return &TagStore{
		client: client,
		logger: telemetry.NewLogger("tag-store"),
		tracer: otel.Tracer("tag-store"),
	}
}

// Get returns the idle watermark tag for an instance
func (s *TagStore) Get(ctx context.Context, instanceID string) (string, bool, error) {
	return s.readTag(ctx, instanceID, types.TagInactivityStart)
}

// Set records the idle watermark tag on an instance
func (s *TagStore) Set(ctx context.Context, instanceID, mark string) error {
	return s.writeTag(ctx, instanceID, types.TagInactivityStart, mark)
}

// Clear removes the idle watermark tag from an instance
func (s *TagStore) Clear(ctx context.Context, instanceID string) error {
	ctx, span := s.tracer.Start(ctx, "ClearWatermark")
	defer span.End()

	_, err := s.client.DeleteTags(ctx, &ec2.DeleteTagsInput{
		Resources: []string{instanceID},
		Tags: []ec2types.Tag{
			{Key: awssdk.String(types.TagInactivityStart)},
		},
	})
	if err != nil {
		return fmt.Errorf("delete %s tag on %s: %w", types.TagInactivityStart, instanceID, err)
	}

	return nil
}

// Touch refreshes the advisory last-check tag on an instance
func (s *TagStore) Touch(ctx context.Context, instanceID, mark string) error {
	return s.writeTag(ctx, instanceID, types.TagLastActivityCheck, mark)
}

// readTag fetches a single tag value by key
func (s *TagStore) readTag(ctx context.Context, instanceID, key string) (string, bool, error) {
	ctx, span := s.tracer.Start(ctx, "ReadTag")
	defer span.End()

	output, err := s.client.DescribeTags(ctx, &ec2.DescribeTagsInput{
		Filters: []ec2types.Filter{
			{Name: awssdk.String("resource-id"), Values: []string{instanceID}},
			{Name: awssdk.String("key"), Values: []string{key}},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("describe %s tag on %s: %w", key, instanceID, err)
	}

	for _, tag := range output.Tags {
		if awssdk.ToString(tag.Key) == key {
			return awssdk.ToString(tag.Value), true, nil
		}
	}

	return "", false, nil
}

// writeTag creates or overwrites a single tag
func (s *TagStore) writeTag(ctx context.Context, instanceID, key, value string) error {
	ctx, span := s.tracer.Start(ctx, "WriteTag")
	defer span.End()

	_, err := s.client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{instanceID},
		Tags: []ec2types.Tag{
			{Key: awssdk.String(key), Value: awssdk.String(value)},
		},
	})
	if err != nil {
		return fmt.Errorf("create %s tag on %s: %w", key, instanceID, err)
	}

	return nil
}
