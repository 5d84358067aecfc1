// Package orchestrator drives the shutdown pipeline: opt-in gate, idle
// evaluation, watermark reconciliation, elapsed-time check, execution
// and notification. One instance's failure never aborts a sweep.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/executor"
	"github.com/solarekm/reaper/providers"
	"github.com/solarekm/reaper/storage"
	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/types"
)

// Orchestrator coordinates evaluate → reconcile → stop → notify
type Orchestrator struct {
	directory  Directory
	evaluator  Evaluator
	tracker    Tracker
	executor   Executor
	publisher  Publisher
	attributor Attributor
	journal    Journal
	limit      time.Duration
	logger     *telemetry.Logger
	tracer     trace.Tracer
}

// New creates an orchestrator with the required collaborators. The
// notification publisher, attribution resolver and journal are optional
// and attached with the With chainers.
func New(directory Directory, evaluator Evaluator, tracker Tracker, exec Executor, limit time.Duration) *Orchestrator {
	return &Orchestrator{
		directory: directory,
		evaluator: evaluator,
		tracker:   tracker,
		executor:  exec,
		limit:     limit,
		logger:    telemetry.NewLogger("orchestrator"),
		tracer:    otel.Tracer("orchestrator"),
	}
}

// WithPublisher sets the notification publisher
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	o.publisher = p
	return o
}

// WithAttributor sets the launched-by resolver
func (o *Orchestrator) WithAttributor(a Attributor) *Orchestrator {
	o.attributor = a
	return o
}

// WithJournal sets the evaluation journal
func (o *Orchestrator) WithJournal(j Journal) *Orchestrator {
	o.journal = j
	return o
}

// ProcessInstance runs the full pipeline for one instance. The returned
// bool reports whether the instance was in scope at all: instances
// without the opt-in tag are left untouched and report false.
func (o *Orchestrator) ProcessInstance(ctx context.Context, inst types.Instance) bool {
	return o.process(ctx, inst).handled
}

// HandleEvent routes one trigger payload. EC2 state-change events are
// processed as a single instance; every other payload shape falls back
// to a full sweep.
func (o *Orchestrator) HandleEvent(ctx context.Context, payload []byte) (*SweepSummary, error) {
	var trigger TriggerEvent
	if err := json.Unmarshal(payload, &trigger); err != nil || trigger.Source != "aws.ec2" || trigger.Detail.ID() == "" {
		o.logger.WithContext(ctx).Info().Msg("payload is not an ec2 state change, sweeping")
		return o.Sweep(ctx)
	}

	return o.handleStateChange(ctx, trigger)
}

// Sweep enumerates every running instance and processes each one
// independently. Only a failure to list at all aborts the sweep.
func (o *Orchestrator) Sweep(ctx context.Context) (*SweepSummary, error) {
	ctx, span := o.tracer.Start(ctx, "Sweep")
	defer span.End()

	start := time.Now()

	instances, err := o.directory.ListRunning(ctx)
	if err != nil {
		return nil, fmt.Errorf("list running instances: %w", err)
	}

	summary := &SweepSummary{Scanned: len(instances)}
	idleCount := 0
	for _, inst := range instances {
		out := o.process(ctx, inst)
		summary.apply(out)
		if out.tracked {
			idleCount++
		}
	}
	summary.Duration = time.Since(start)

	telemetry.InstancesSwept.Add(ctx, int64(summary.Scanned))
	telemetry.SweepDuration.Record(ctx, summary.Duration.Seconds())
	telemetry.IdleWatermarks.Record(ctx, int64(idleCount))

	span.SetAttributes(
		attribute.Int("sweep.scanned", summary.Scanned),
		attribute.Int("sweep.stopped", summary.Stopped),
	)
	o.logger.WithContext(ctx).Info().
		Int("scanned", summary.Scanned).
		Int("handled", summary.Handled).
		Int("stopped", summary.Stopped).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("sweep complete")

	return summary, nil
}

// handleStateChange processes one EC2 state-change trigger. Only the
// running state is actionable; everything else is a deliberate no-op
// so stop and terminate transitions cannot recurse into the pipeline.
func (o *Orchestrator) handleStateChange(ctx context.Context, trigger TriggerEvent) (*SweepSummary, error) {
	ctx, span := o.tracer.Start(ctx, "HandleStateChange",
		trace.WithAttributes(
			attribute.String("instance.id", trigger.Detail.ID()),
			attribute.String("instance.state", trigger.Detail.State),
		))
	defer span.End()

	instanceID := trigger.Detail.ID()
	if trigger.Detail.State != types.StateRunning {
		o.logger.WithContext(ctx).Info().
			Str("instance_id", instanceID).
			Str("state", trigger.Detail.State).
			Msg("ignoring non-running state change")
		return &SweepSummary{}, nil
	}

	inst, err := o.directory.Describe(ctx, instanceID)
	if err != nil {
		if errors.Is(err, providers.ErrInstanceNotFound) {
			o.logger.WithContext(ctx).Warn().
				Str("instance_id", instanceID).
				Msg("instance gone before processing")
			return &SweepSummary{}, nil
		}
		return nil, fmt.Errorf("describe %s: %w", instanceID, err)
	}
	if !inst.IsRunning() {
		o.logger.WithContext(ctx).Info().
			Str("instance_id", instanceID).
			Str("state", inst.State).
			Msg("instance no longer running, skipping")
		return &SweepSummary{}, nil
	}

	summary := &SweepSummary{Scanned: 1}
	summary.apply(o.process(ctx, *inst))
	return summary, nil
}

func (o *Orchestrator) process(ctx context.Context, inst types.Instance) outcome {
	ctx, span := o.tracer.Start(ctx, "ProcessInstance",
		trace.WithAttributes(attribute.String("instance.id", inst.ID)))
	defer span.End()

	if !inst.OptedIn() {
		o.logger.LogInstanceSkipped(ctx, inst.ID, "not opted in")
		return outcome{}
	}

	idleNow := false
	evalFailed := false
	verdict, err := o.evaluator.Evaluate(ctx, inst.ID)
	if err != nil {
		// An unreadable instance counts as active: watermarks clear
		// rather than accrue toward a stop on unknown data.
		o.logger.WithContext(ctx).Warn().
			Err(err).
			Str("instance_id", inst.ID).
			Msg("evaluation failed, treating instance as active")
		telemetry.EvaluationsFailed.Add(ctx, 1)
		evalFailed = true
	} else {
		idleNow = verdict.Idle
	}

	startedAt, tracked := o.tracker.Reconcile(ctx, inst.ID, idleNow)
	o.record(ctx, inst.ID, idleNow, startedAt, tracked)

	out := outcome{handled: true, failed: evalFailed, tracked: tracked}
	if !tracked {
		return out
	}

	elapsed := time.Since(startedAt)
	if elapsed < o.limit {
		o.logger.WithContext(ctx).Debug().
			Str("instance_id", inst.ID).
			Float64("idle_hours", elapsed.Hours()).
			Float64("limit_hours", o.limit.Hours()).
			Msg("idle but not yet due")
		return out
	}

	stopOut := o.stopAndNotify(ctx, inst, elapsed.Hours())
	out.stopped = stopOut.stopped
	out.failed = out.failed || stopOut.failed
	return out
}

// stopAndNotify gathers the notification context, executes the stop,
// drops the watermark and fans the event out
func (o *Orchestrator) stopAndNotify(ctx context.Context, inst types.Instance, idleHours float64) outcome {
	name := inst.DisplayName()
	o.logger.LogShutdown(ctx, inst.ID, name, idleHours)

	summary := o.evaluator.Summarize(ctx, inst.ID)

	launchedBy := ""
	if o.attributor != nil {
		launchedBy = o.attributor.LaunchedBy(ctx, inst.ID)
	}

	decision := types.Decision{
		Action:       types.ActionStop,
		ResourceID:   inst.ID,
		ResourceName: name,
		Reason:       fmt.Sprintf("idle for %.2f hours, limit %.2f", idleHours, o.limit.Hours()),
		IdleHours:    idleHours,
		CreatedAt:    time.Now(),
	}

	result := o.executor.Execute(ctx, decision, inst)
	switch result.Status {
	case executor.StatusFailed:
		return outcome{handled: true, failed: true}
	case executor.StatusSkipped:
		// The watermark stays; a denied or dry-run stop retries next sweep
		return outcome{handled: true}
	}

	telemetry.InstancesStopped.Add(ctx, 1)
	o.tracker.Forget(ctx, inst.ID)

	event := types.ShutdownEvent{
		ResourceID:   inst.ID,
		ResourceName: name,
		IdleHours:    idleHours,
		Summary:      summary,
		LaunchedBy:   launchedBy,
		IssuedAt:     time.Now(),
	}
	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.logger.WithContext(ctx).Error().
				Err(err).
				Str("instance_id", inst.ID).
				Msg("shutdown notification failed")
		}
	}

	return outcome{handled: true, stopped: true}
}

// record journals the evaluation outcome; the journal is advisory and
// write failures only warn
func (o *Orchestrator) record(ctx context.Context, instanceID string, idleNow bool, startedAt time.Time, tracked bool) {
	if o.journal == nil {
		return
	}

	rec := storage.EvaluationRecord{
		ResourceID: instanceID,
		Idle:       idleNow,
		CheckedAt:  time.Now(),
	}
	if tracked {
		rec.IdleSince = startedAt
	}

	if _, err := o.journal.RecordEvaluation(rec); err != nil {
		o.logger.WithContext(ctx).Warn().
			Err(err).
			Str("instance_id", instanceID).
			Msg("journaling evaluation failed")
	}
}
