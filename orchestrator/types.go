package orchestrator

import (
	"context"
	"time"

	"github.com/solarekm/reaper/executor"
	"github.com/solarekm/reaper/idle"
	"github.com/solarekm/reaper/storage"
	"github.com/solarekm/reaper/types"
)

// Evaluator classifies instance activity from platform metrics
type Evaluator interface {
	Evaluate(ctx context.Context, instanceID string) (*idle.Verdict, error)
	Summarize(ctx context.Context, instanceID string) types.UsageSummary
}

// Tracker reconciles the per-instance inactivity watermark
type Tracker interface {
	Reconcile(ctx context.Context, instanceID string, idle bool) (time.Time, bool)
	Forget(ctx context.Context, instanceID string)
}

// Directory enumerates and describes instances
type Directory interface {
	ListRunning(ctx context.Context) ([]types.Instance, error)
	Describe(ctx context.Context, instanceID string) (*types.Instance, error)
}

// Executor carries out stop decisions
type Executor interface {
	Execute(ctx context.Context, decision types.Decision, inst types.Instance) executor.Result
}

// Publisher delivers shutdown notifications
type Publisher interface {
	Publish(ctx context.Context, event types.ShutdownEvent) error
}

// Attributor names who launched an instance, best effort
type Attributor interface {
	LaunchedBy(ctx context.Context, instanceID string) string
}

// Journal records evaluation outcomes for the status report
type Journal interface {
	RecordEvaluation(rec storage.EvaluationRecord) (int64, error)
}

// SweepSummary counts what one sweep did
type SweepSummary struct {
	Scanned  int           `json:"scanned"`
	Handled  int           `json:"handled"`
	Stopped  int           `json:"stopped"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// outcome is the per-instance accounting behind a summary
type outcome struct {
	handled bool
	stopped bool
	failed  bool
	tracked bool
}

func (s *SweepSummary) apply(out outcome) {
	if out.handled {
		s.Handled++
	} else {
		s.Skipped++
	}
	if out.stopped {
		s.Stopped++
	}
	if out.failed {
		s.Failed++
	}
}

// TriggerEvent is the EventBridge EC2 state-change payload shape
type TriggerEvent struct {
	Source string        `json:"source"`
	Detail TriggerDetail `json:"detail"`
}

// TriggerDetail accepts both the platform key and the internal one
type TriggerDetail struct {
	InstanceID string `json:"instance-id"`
	ResourceID string `json:"resource_id"`
	State      string `json:"state"`
}

// ID returns whichever instance id key the payload carried
func (d TriggerDetail) ID() string {
	if d.InstanceID != "" {
		return d.InstanceID
	}
	return d.ResourceID
}
