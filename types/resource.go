package types

import "time"

// EC2 instance lifecycle states as reported by the platform
const (
	StatePending      = "pending"
	StateRunning      = "running"
	StateShuttingDown = "shutting-down"
	StateTerminated   = "terminated"
	StateStopping     = "stopping"
	StateStopped      = "stopped"
)

// UnknownName is the display name used when an instance has no Name tag
const UnknownName = "unknown"

// Instance represents one EC2 instance as seen by the reaper
type Instance struct {
	ID           string    `json:"id"`
	Region       string    `json:"region"`
	State        string    `json:"state"`
	InstanceType string    `json:"instance_type,omitempty"`
	LaunchTime   time.Time `json:"launch_time,omitempty"`
	Tags         Tags      `json:"tags"`
}

// IsRunning reports whether the instance is in the running state
func (i *Instance) IsRunning() bool {
	return i.State == StateRunning
}

// OptedIn reports whether the instance carries the auto-shutdown opt-in tag
func (i *Instance) OptedIn() bool {
	return i.Tags.AutoShutdown
}

// DisplayName returns the Name tag or the unknown sentinel
func (i *Instance) DisplayName() string {
	if i.Tags.Name == "" {
		return UnknownName
	}
	return i.Tags.Name
}

// InAutoScalingGroup reports whether the instance is managed by an ASG
func (i *Instance) InAutoScalingGroup() bool {
	return i.Tags.AutoScalingGroup != ""
}
