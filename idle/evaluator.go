// Package idle decides whether an instance has been doing real work.
// The verdict drives everything downstream, so evaluation fails closed:
// any metrics error means the instance is treated as active.
package idle

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/providers"
	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/types"
)

// EC2 utilization metrics consulted per instance
const (
	metricCPU        = "CPUUtilization"
	metricNetworkIn  = "NetworkIn"
	metricNetworkOut = "NetworkOut"
	metricEBSRead    = "EBSReadBytes"
	metricEBSWrite   = "EBSWriteBytes"
	metricDiskRead   = "DiskReadBytes"
	metricDiskWrite  = "DiskWriteBytes"
)

// Thresholds are the per-class activity floors. A sample at or above its
// threshold marks the class active.
type Thresholds struct {
	CPU     float64 // percent
	Network float64 // bytes per period
	Disk    float64 // bytes per period
}

// Verdict is the outcome of one idleness evaluation
type Verdict struct {
	InstanceID  string
	Idle        bool
	CPUIdle     bool
	NetworkIdle bool
	DiskIdle    bool
	Datapoints  int // CPU plus network datapoints; disk never counts
	NoData      bool
	EvaluatedAt time.Time
}

// Evaluator classifies instances as idle or active from CloudWatch data
type Evaluator struct {
	metrics    providers.MetricsSource
	thresholds Thresholds
	window     time.Duration
	period     int32
	logger     *telemetry.Logger
	tracer     trace.Tracer
}

// NewEvaluator creates an evaluator with the given thresholds and window
func NewEvaluator(metrics providers.MetricsSource, thresholds Thresholds, window time.Duration, period int32) *Evaluator {
	return &Evaluator{
		metrics:    metrics,
		thresholds: thresholds,
		window:     window,
		period:     period,
		logger:     telemetry.NewLogger("idle-evaluator"),
		tracer:     otel.Tracer("idle-evaluator"),
	}
}

// Evaluate classifies one instance over the lookback window.
//
// An instance is idle only when every CPU, network, and disk sample sits
// strictly below its threshold. A class with no samples is vacuously idle,
// but when CPU and network report no data at all the instance is treated
// as active: absence of evidence is not evidence of idleness.
func (e *Evaluator) Evaluate(ctx context.Context, instanceID string) (*Verdict, error) {
	ctx, span := e.tracer.Start(ctx, "EvaluateIdle",
		trace.WithAttributes(attribute.String("instance.id", instanceID)))
	defer span.End()

	now := time.Now()
	start := now.Add(-e.window)

	cpu, err := e.query(ctx, instanceID, metricCPU, start, now)
	if err != nil {
		return nil, err
	}

	netIn, err := e.query(ctx, instanceID, metricNetworkIn, start, now)
	if err != nil {
		return nil, err
	}

	netOut, err := e.query(ctx, instanceID, metricNetworkOut, start, now)
	if err != nil {
		return nil, err
	}

	disk, err := e.diskSamples(ctx, instanceID, start, now)
	if err != nil {
		return nil, err
	}

	network := append(netIn, netOut...)

	verdict := &Verdict{
		InstanceID:  instanceID,
		CPUIdle:     allBelow(cpu, e.thresholds.CPU),
		NetworkIdle: allBelow(network, e.thresholds.Network),
		DiskIdle:    allBelow(disk, e.thresholds.Disk),
		Datapoints:  len(cpu) + len(network),
		EvaluatedAt: now,
	}

	if verdict.Datapoints == 0 {
		verdict.NoData = true
		e.logger.WithContext(ctx).Warn().
			Str("instance_id", instanceID).
			Msg("no metric data, treating instance as active")
		return verdict, nil
	}

	verdict.Idle = verdict.CPUIdle && verdict.NetworkIdle && verdict.DiskIdle

	span.SetAttributes(
		attribute.Bool("verdict.idle", verdict.Idle),
		attribute.Int("verdict.datapoints", verdict.Datapoints),
	)

	return verdict, nil
}

// Summarize builds the cosmetic usage summary for notifications.
// Best effort: any metrics error degrades every field to N/A rather
// than blocking the shutdown that is already decided.
func (e *Evaluator) Summarize(ctx context.Context, instanceID string) types.UsageSummary {
	ctx, span := e.tracer.Start(ctx, "SummarizeUsage",
		trace.WithAttributes(attribute.String("instance.id", instanceID)))
	defer span.End()

	now := time.Now()
	start := now.Add(-e.window)

	cpu, err := e.query(ctx, instanceID, metricCPU, start, now)
	if err != nil {
		return e.unavailable(ctx, instanceID, err)
	}

	netIn, err := e.query(ctx, instanceID, metricNetworkIn, start, now)
	if err != nil {
		return e.unavailable(ctx, instanceID, err)
	}

	netOut, err := e.query(ctx, instanceID, metricNetworkOut, start, now)
	if err != nil {
		return e.unavailable(ctx, instanceID, err)
	}

	summary := types.UsageSummary{
		CPUAverage:     types.SummaryUnavailable,
		NetworkAverage: types.SummaryUnavailable,
	}

	if len(cpu) > 0 {
		summary.CPUAverage = fmt.Sprintf("%.2f", mean(cpu))
	}

	network := append(netIn, netOut...)
	if len(network) > 0 {
		summary.NetworkAverage = fmt.Sprintf("%.0f", mean(network))
	}

	backend, err := e.diskBackend(ctx, instanceID, start, now)
	if err != nil {
		return e.unavailable(ctx, instanceID, err)
	}
	summary.DiskBackend = backend

	return summary
}

// query fetches one metric over the window
func (e *Evaluator) query(ctx context.Context, instanceID, metric string, start, end time.Time) ([]providers.Sample, error) {
	samples, err := e.metrics.Query(ctx, providers.MetricQuery{
		InstanceID: instanceID,
		Metric:     metric,
		Start:      start,
		End:        end,
		Period:     e.period,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s for %s: %w", metric, instanceID, err)
	}
	return samples, nil
}

// diskSamples picks the disk metric family for an instance. EBS-backed
// instances report EBSRead/WriteBytes; instance-store ones report
// DiskRead/WriteBytes. Exactly one family is consulted, never both.
func (e *Evaluator) diskSamples(ctx context.Context, instanceID string, start, end time.Time) ([]providers.Sample, error) {
	ebsRead, err := e.query(ctx, instanceID, metricEBSRead, start, end)
	if err != nil {
		return nil, err
	}

	ebsWrite, err := e.query(ctx, instanceID, metricEBSWrite, start, end)
	if err != nil {
		return nil, err
	}

	if len(ebsRead)+len(ebsWrite) > 0 {
		return append(ebsRead, ebsWrite...), nil
	}

	diskRead, err := e.query(ctx, instanceID, metricDiskRead, start, end)
	if err != nil {
		return nil, err
	}

	diskWrite, err := e.query(ctx, instanceID, metricDiskWrite, start, end)
	if err != nil {
		return nil, err
	}

	return append(diskRead, diskWrite...), nil
}

// diskBackend names the storage family the instance reports metrics for
func (e *Evaluator) diskBackend(ctx context.Context, instanceID string, start, end time.Time) (string, error) {
	ebsRead, err := e.query(ctx, instanceID, metricEBSRead, start, end)
	if err != nil {
		return "", err
	}
	if len(ebsRead) > 0 {
		return types.DiskBackendEBS, nil
	}

	diskRead, err := e.query(ctx, instanceID, metricDiskRead, start, end)
	if err != nil {
		return "", err
	}
	if len(diskRead) > 0 {
		return types.DiskBackendInstanceStore, nil
	}

	return types.DiskBackendNone, nil
}

// unavailable logs a summary failure and degrades all fields
func (e *Evaluator) unavailable(ctx context.Context, instanceID string, err error) types.UsageSummary {
	e.logger.WithContext(ctx).Warn().
		Err(err).
		Str("instance_id", instanceID).
		Msg("usage summary unavailable")
	return types.UnavailableSummary()
}

// allBelow reports whether every sample sits strictly below the threshold.
// An empty series is vacuously idle.
func allBelow(samples []providers.Sample, threshold float64) bool {
	for _, s := range samples {
		if s.Average >= threshold {
			return false
		}
	}
	return true
}

// mean averages the sample values
func mean(samples []providers.Sample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.Average
	}
	return sum / float64(len(samples))
}
