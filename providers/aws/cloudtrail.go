package aws

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/telemetry"
)

// launchEventName is the API call that creates EC2 instances
const launchEventName = "RunInstances"

// LaunchRecord describes who created an instance
type LaunchRecord struct {
	EventID   string
	Username  string
	EventTime time.Time
}

// LaunchLookup queries CloudTrail for instance creation events
type LaunchLookup struct {
	client CloudTrailAPI
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewLaunchLookup creates a CloudTrail-backed launch resolver
func NewLaunchLookup(client CloudTrailAPI) *LaunchLookup {
	return &LaunchLookup{
		client: client,
		logger: telemetry.NewLogger("launch-lookup"),
		tracer: otel.Tracer("launch-lookup"),
	}
}

// LookupLaunch finds the RunInstances event for an instance within the
// lookback window. Returns nil when no creation event is found; CloudTrail
// only retains ninety days of management events.
func (l *LaunchLookup) LookupLaunch(ctx context.Context, instanceID string, lookback time.Duration) (*LaunchRecord, error) {
	ctx, span := l.tracer.Start(ctx, "LookupLaunch",
		trace.WithAttributes(attribute.String("instance.id", instanceID)))
	defer span.End()

	endTime := time.Now()
	startTime := endTime.Add(-lookback)

	input := &cloudtrail.LookupEventsInput{
		LookupAttributes: []cttypes.LookupAttribute{
			{
				AttributeKey:   cttypes.LookupAttributeKeyResourceName,
				AttributeValue: awssdk.String(instanceID),
			},
		},
		StartTime:  &startTime,
		EndTime:    &endTime,
		MaxResults: awssdk.Int32(50),
	}

	result, err := l.client.LookupEvents(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("lookup events for %s: %w", instanceID, err)
	}

	for _, event := range result.Events {
		if awssdk.ToString(event.EventName) != launchEventName {
			continue
		}
		return &LaunchRecord{
			EventID:   awssdk.ToString(event.EventId),
			Username:  awssdk.ToString(event.Username),
			EventTime: awssdk.ToTime(event.EventTime),
		}, nil
	}

	return nil, nil
}
