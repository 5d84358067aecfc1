package aws

import (
	"context"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarekm/reaper/providers"
)

// mockCloudWatchClient implements CloudWatchAPI for testing.
type mockCloudWatchClient struct {
	getMetricStatisticsFunc func(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error)
}

func (m *mockCloudWatchClient) GetMetricStatistics(ctx context.Context, params *cloudwatch.GetMetricStatisticsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
	if m.getMetricStatisticsFunc != nil {
		return m.getMetricStatisticsFunc(ctx, params, optFns...)
	}
	return &cloudwatch.GetMetricStatisticsOutput{}, nil
}

func TestMetricFetcher_Query(t *testing.T) {
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := end.Add(-3 * time.Hour)

	mock := &mockCloudWatchClient{
		getMetricStatisticsFunc: func(_ context.Context, params *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
			assert.Equal(t, "AWS/EC2", awssdk.ToString(params.Namespace))
			assert.Equal(t, "CPUUtilization", awssdk.ToString(params.MetricName))
			require.Len(t, params.Dimensions, 1)
			assert.Equal(t, "InstanceId", awssdk.ToString(params.Dimensions[0].Name))
			assert.Equal(t, "i-0abc123", awssdk.ToString(params.Dimensions[0].Value))
			assert.Equal(t, int32(300), awssdk.ToInt32(params.Period))
			assert.Equal(t, []cwtypes.Statistic{cwtypes.StatisticAverage}, params.Statistics)
			assert.Equal(t, start, awssdk.ToTime(params.StartTime))
			assert.Equal(t, end, awssdk.ToTime(params.EndTime))

			// Datapoints deliberately out of order
			return &cloudwatch.GetMetricStatisticsOutput{
				Datapoints: []cwtypes.Datapoint{
					{Timestamp: awssdk.Time(end.Add(-1 * time.Hour)), Average: awssdk.Float64(4.2)},
					{Timestamp: awssdk.Time(end.Add(-3 * time.Hour)), Average: awssdk.Float64(1.1)},
					{Timestamp: awssdk.Time(end.Add(-2 * time.Hour)), Average: awssdk.Float64(2.7)},
				},
			}, nil
		},
	}

	fetcher := NewMetricFetcher(mock)
	samples, err := fetcher.Query(context.Background(), providers.MetricQuery{
		InstanceID: "i-0abc123",
		Metric:     "CPUUtilization",
		Start:      start,
		End:        end,
		Period:     300,
	})

	require.NoError(t, err)
	require.Len(t, samples, 3)

	// Sorted by timestamp
	assert.Equal(t, 1.1, samples[0].Average)
	assert.Equal(t, 2.7, samples[1].Average)
	assert.Equal(t, 4.2, samples[2].Average)
	assert.True(t, samples[0].Timestamp.Before(samples[1].Timestamp))
	assert.True(t, samples[1].Timestamp.Before(samples[2].Timestamp))
}

func TestMetricFetcher_Query_Empty(t *testing.T) {
	mock := &mockCloudWatchClient{}

	fetcher := NewMetricFetcher(mock)
	samples, err := fetcher.Query(context.Background(), providers.MetricQuery{
		InstanceID: "i-0abc123",
		Metric:     "NetworkIn",
		Start:      time.Now().Add(-time.Hour),
		End:        time.Now(),
		Period:     300,
	})

	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestMetricFetcher_Query_Error(t *testing.T) {
	mock := &mockCloudWatchClient{
		getMetricStatisticsFunc: func(_ context.Context, _ *cloudwatch.GetMetricStatisticsInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricStatisticsOutput, error) {
			return nil, assert.AnError
		},
	}

	fetcher := NewMetricFetcher(mock)
	_, err := fetcher.Query(context.Background(), providers.MetricQuery{
		InstanceID: "i-0abc123",
		Metric:     "CPUUtilization",
		Start:      time.Now().Add(-time.Hour),
		End:        time.Now(),
		Period:     300,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CPUUtilization")
	assert.Contains(t, err.Error(), "i-0abc123")
}
