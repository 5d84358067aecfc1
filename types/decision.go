package types

import (
	"fmt"
	"time"
)

// Actions the orchestrator can decide on for an instance
const (
	ActionStop = "stop" // idle past the limit, stop the instance
	ActionKeep = "keep" // in scope, evaluated, not yet due
	ActionSkip = "skip" // out of scope (no opt-in) or not processable
)

// Decision represents the outcome of evaluating one instance
type Decision struct {
	Action       string    `json:"action"`
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	Reason       string    `json:"reason"`
	IdleHours    float64   `json:"idle_hours,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate ensures the decision has required fields
func (d *Decision) Validate() error {
	if d.Action == "" {
		return fmt.Errorf("decision action cannot be empty")
	}
	if d.ResourceID == "" {
		return fmt.Errorf("decision resource ID cannot be empty")
	}
	if d.Reason == "" {
		return fmt.Errorf("decision reason cannot be empty")
	}
	return nil
}

// IsDisruptive checks if the action interrupts a running workload
func (d *Decision) IsDisruptive() bool {
	return d.Action == ActionStop
}
