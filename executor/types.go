package executor

import (
	"context"

	"github.com/solarekm/reaper/policy"
	"github.com/solarekm/reaper/types"
)

// Status of one executed stop decision
type Status string

const (
	StatusStopped Status = "stopped"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result reports what happened to one stop decision. Skips and failures
// are carried here, never raised, so one instance cannot abort a sweep.
type Result struct {
	Decision   types.Decision `json:"decision"`
	Status     Status         `json:"status"`
	SkipReason string         `json:"skip_reason,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Stopped reports whether the instance was actually stopped
func (r Result) Stopped() bool {
	return r.Status == StatusStopped
}

// Stopper issues the stop call against the platform
type Stopper interface {
	Stop(ctx context.Context, instanceID string) error
}

// Gate decides whether a stop decision may proceed
type Gate interface {
	Evaluate(ctx context.Context, input policy.Input) policy.Verdict
}
