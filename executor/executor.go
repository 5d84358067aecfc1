// Package executor carries out stop decisions. It is the last line
// before the platform call: every stop re-checks the opt-in tag,
// refuses ASG-managed capacity, consults the policy gate and journals
// the outcome to the WAL.
package executor

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/solarekm/reaper/policy"
	"github.com/solarekm/reaper/telemetry"
	"github.com/solarekm/reaper/types"
	"github.com/solarekm/reaper/wal"
)

// Engine executes stop decisions with safety checks and audit logging
type Engine struct {
	stopper Stopper
	gate    Gate
	wal     *wal.WAL
	dryRun  bool
	logger  *telemetry.Logger
	tracer  trace.Tracer
}

// NewEngine creates an executor. A nil gate disables policy checks.
func NewEngine(stopper Stopper, gate Gate, walInstance *wal.WAL, dryRun bool) *Engine {
	return &Engine{
		stopper: stopper,
		gate:    gate,
		wal:     walInstance,
		dryRun:  dryRun,
		logger:  telemetry.NewLogger("executor"),
		tracer:  otel.Tracer("executor"),
	}
}

// Execute runs one stop decision against the instance it was made for
func (e *Engine) Execute(ctx context.Context, decision types.Decision, inst types.Instance) Result {
	ctx, span := e.tracer.Start(ctx, "ExecuteStop",
		trace.WithAttributes(
			attribute.String("instance.id", decision.ResourceID),
			attribute.String("decision.action", decision.Action),
			attribute.Bool("dry_run", e.dryRun),
		))
	defer span.End()

	telemetry.RecordDecisionEvent(span, decision.Action, decision.ResourceID, decision.IdleHours, decision.Reason)

	result := Result{Decision: decision}

	if err := decision.Validate(); err != nil {
		return e.fail(ctx, result, fmt.Errorf("invalid decision: %w", err))
	}
	if decision.Action != types.ActionStop {
		return e.skip(ctx, result, fmt.Sprintf("action %s is not executable", decision.Action))
	}

	if reason := runSafetyChecks(inst); reason != "" {
		return e.skip(ctx, result, reason)
	}

	if e.dryRun {
		e.logger.WithContext(ctx).Info().
			Str("instance_id", decision.ResourceID).
			Str("reason", decision.Reason).
			Msg("dry run, would stop instance")
		return e.skip(ctx, result, "dry run")
	}

	if e.gate != nil {
		verdict := e.gate.Evaluate(ctx, policy.Input{Resource: inst, Decision: decision})
		if !verdict.Allowed {
			return e.skip(ctx, result, fmt.Sprintf("denied by policy: %s", verdict.Reason))
		}
	}

	if err := e.wal.Append(wal.EntryExecuting, decision.ResourceID, decision); err != nil {
		return e.fail(ctx, result, fmt.Errorf("journal stop intent: %w", err))
	}

	if err := e.stopper.Stop(ctx, decision.ResourceID); err != nil {
		if walErr := e.wal.AppendError(wal.EntryFailed, decision.ResourceID, decision, err); walErr != nil {
			e.logger.WithContext(ctx).Warn().
				Err(walErr).
				Str("instance_id", decision.ResourceID).
				Msg("stop failed and journaling the failure also failed")
		}
		return e.fail(ctx, result, err)
	}

	result.Status = StatusStopped
	telemetry.RecordShutdownEvent(span, decision.ResourceID, decision.ResourceName, decision.IdleHours, string(StatusStopped), "")
	e.logger.WithContext(ctx).Info().
		Str("instance_id", decision.ResourceID).
		Str("reason", decision.Reason).
		Float64("idle_hours", decision.IdleHours).
		Msg("instance stopped")

	if err := e.wal.Append(wal.EntryExecuted, decision.ResourceID, result); err != nil {
		// The stop already happened, an unjournaled success beats a retry
		e.logger.WithContext(ctx).Warn().
			Err(err).
			Str("instance_id", decision.ResourceID).
			Msg("stop succeeded but journaling failed")
	}

	return result
}

func (e *Engine) skip(ctx context.Context, result Result, reason string) Result {
	result.Status = StatusSkipped
	result.SkipReason = reason

	e.logger.WithContext(ctx).Info().
		Str("instance_id", result.Decision.ResourceID).
		Str("skip_reason", reason).
		Msg("stop skipped")

	if err := e.wal.Append(wal.EntrySkipped, result.Decision.ResourceID, result); err != nil {
		e.logger.WithContext(ctx).Warn().
			Err(err).
			Str("instance_id", result.Decision.ResourceID).
			Msg("journaling skip failed")
	}

	return result
}

func (e *Engine) fail(ctx context.Context, result Result, err error) Result {
	result.Status = StatusFailed
	result.Error = err.Error()

	d := result.Decision
	telemetry.RecordShutdownEvent(trace.SpanFromContext(ctx), d.ResourceID, d.ResourceName, d.IdleHours, string(StatusFailed), err.Error())

	e.logger.WithContext(ctx).Error().
		Err(err).
		Str("instance_id", result.Decision.ResourceID).
		Msg("stop failed")

	return result
}
