package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the daemon's operational instruments. Sweep outcome
// metrics live in the telemetry package; these cover the daemon's own
// plumbing: loop health, queue intake, WAL maintenance.
type Metrics struct {
	sweeps      metric.Int64Counter
	events      metric.Int64Counter
	queueOps    metric.Int64Counter
	walCleanups metric.Int64Counter
}

// NewMetrics creates daemon metrics on the global meter.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter("reaper.daemon"))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	sweeps, err := meter.Int64Counter(
		"reaper.daemon.sweeps",
		metric.WithDescription("Number of scheduled sweep runs"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, err
	}

	events, err := meter.Int64Counter(
		"reaper.daemon.events",
		metric.WithDescription("Number of state-change events consumed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	queueOps, err := meter.Int64Counter(
		"reaper.daemon.queue.operations",
		metric.WithDescription("Number of SQS receive and delete calls"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	walCleanups, err := meter.Int64Counter(
		"reaper.daemon.wal.cleanups",
		metric.WithDescription("Number of WAL retention passes"),
		metric.WithUnit("{cleanup}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		sweeps:      sweeps,
		events:      events,
		queueOps:    queueOps,
		walCleanups: walCleanups,
	}, nil
}

// RecordSweep records one scheduled sweep with its status.
func (m *Metrics) RecordSweep(ctx context.Context, status string) {
	m.sweeps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
}

// RecordEvent records one consumed state-change event with its outcome.
func (m *Metrics) RecordEvent(ctx context.Context, outcome string) {
	m.events.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("outcome", outcome),
		),
	)
}

// RecordQueueOperation records one SQS call.
func (m *Metrics) RecordQueueOperation(ctx context.Context, operation string, status string) {
	m.queueOps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordWALCleanup records one WAL retention pass.
func (m *Metrics) RecordWALCleanup(ctx context.Context, status string) {
	m.walCleanups.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("status", status),
		),
	)
}
