package aws

import (
	"context"
	"fmt"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/providers"
	"github.com/solarekm/reaper/telemetry"
)

const (
	// All instance utilization metrics live in the EC2 namespace
	metricNamespace = "AWS/EC2"

	// Metrics are queried per instance
	dimensionInstanceID = "InstanceId"
)

// MetricFetcher reads aggregated utilization statistics from CloudWatch
type MetricFetcher struct {
	client CloudWatchAPI
	logger *telemetry.Logger
	tracer trace.Tracer
}

// NewMetricFetcher creates a CloudWatch-backed metrics source
func NewMetricFetcher(client CloudWatchAPI) *MetricFetcher {
	return &MetricFetcher{
		client: client,
		logger: telemetry.NewLogger("metric-fetcher"),
		tracer: otel.Tracer("metric-fetcher"),
	}
}

// Query fetches Average datapoints for one metric over the query window.
// Samples come back ordered by timestamp; CloudWatch does not guarantee that.
func (f *MetricFetcher) Query(ctx context.Context, q providers.MetricQuery) ([]providers.Sample, error) {
	ctx, span := f.tracer.Start(ctx, "QueryMetric",
		trace.WithAttributes(
			attribute.String("metric.name", q.Metric),
			attribute.String("instance.id", q.InstanceID),
		))
	defer span.End()

	output, err := f.client.GetMetricStatistics(ctx, &cloudwatch.GetMetricStatisticsInput{
		Namespace:  awssdk.String(metricNamespace),
		MetricName: awssdk.String(q.Metric),
		Dimensions: []cwtypes.Dimension{
			{Name: awssdk.String(dimensionInstanceID), Value: awssdk.String(q.InstanceID)},
		},
		StartTime:  awssdk.Time(q.Start),
		EndTime:    awssdk.Time(q.End),
		Period:     awssdk.Int32(q.Period),
		Statistics: []cwtypes.Statistic{cwtypes.StatisticAverage},
	})
	if err != nil {
		return nil, fmt.Errorf("get %s statistics for %s: %w", q.Metric, q.InstanceID, err)
	}

	samples := make([]providers.Sample, 0, len(output.Datapoints))
	for _, dp := range output.Datapoints {
		samples = append(samples, providers.Sample{
			Timestamp: awssdk.ToTime(dp.Timestamp),
			Average:   awssdk.ToFloat64(dp.Average),
		})
	}

	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Timestamp.Before(samples[j].Timestamp)
	})

	span.SetAttributes(attribute.Int("datapoints.count", len(samples)))

	return samples, nil
}
