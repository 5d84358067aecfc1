package aws

import (
	"context"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudtrail"
	cttypes "github.com/aws/aws-sdk-go-v2/service/cloudtrail/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCloudTrailClient implements CloudTrailAPI for testing.
type mockCloudTrailClient struct {
	lookupEventsFunc func(ctx context.Context, params *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error)
}

func (m *mockCloudTrailClient) LookupEvents(ctx context.Context, params *cloudtrail.LookupEventsInput, optFns ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
	if m.lookupEventsFunc != nil {
		return m.lookupEventsFunc(ctx, params, optFns...)
	}
	return &cloudtrail.LookupEventsOutput{}, nil
}

func TestLaunchLookup_FindsRunInstances(t *testing.T) {
	launched := time.Date(2026, 2, 14, 16, 30, 0, 0, time.UTC)

	mock := &mockCloudTrailClient{
		lookupEventsFunc: func(_ context.Context, params *cloudtrail.LookupEventsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
			require.Len(t, params.LookupAttributes, 1)
			assert.Equal(t, cttypes.LookupAttributeKeyResourceName, params.LookupAttributes[0].AttributeKey)
			assert.Equal(t, "i-0abc123", awssdk.ToString(params.LookupAttributes[0].AttributeValue))

			return &cloudtrail.LookupEventsOutput{
				Events: []cttypes.Event{
					{
						EventId:   awssdk.String("ev-tag"),
						EventName: awssdk.String("CreateTags"),
						EventTime: awssdk.Time(launched.Add(time.Minute)),
						Username:  awssdk.String("automation"),
					},
					{
						EventId:   awssdk.String("ev-run"),
						EventName: awssdk.String("RunInstances"),
						EventTime: awssdk.Time(launched),
						Username:  awssdk.String("alice"),
					},
				},
			}, nil
		},
	}

	lookup := NewLaunchLookup(mock)
	record, err := lookup.LookupLaunch(context.Background(), "i-0abc123", 90*24*time.Hour)

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "alice", record.Username)
	assert.Equal(t, "ev-run", record.EventID)
	assert.Equal(t, launched, record.EventTime)
}

func TestLaunchLookup_NoCreationEvent(t *testing.T) {
	mock := &mockCloudTrailClient{
		lookupEventsFunc: func(_ context.Context, _ *cloudtrail.LookupEventsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
			return &cloudtrail.LookupEventsOutput{
				Events: []cttypes.Event{
					{EventName: awssdk.String("StopInstances"), Username: awssdk.String("reaper")},
				},
			}, nil
		},
	}

	lookup := NewLaunchLookup(mock)
	record, err := lookup.LookupLaunch(context.Background(), "i-0abc123", 90*24*time.Hour)

	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestLaunchLookup_Error(t *testing.T) {
	mock := &mockCloudTrailClient{
		lookupEventsFunc: func(_ context.Context, _ *cloudtrail.LookupEventsInput, _ ...func(*cloudtrail.Options)) (*cloudtrail.LookupEventsOutput, error) {
			return nil, assert.AnError
		},
	}

	lookup := NewLaunchLookup(mock)
	_, err := lookup.LookupLaunch(context.Background(), "i-0abc123", time.Hour)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup events")
}
