package providers

import (
	"context"
	"errors"
	"time"

	"github.com/solarekm/reaper/types"
)

// ErrInstanceNotFound is returned when an instance does not exist
var ErrInstanceNotFound = errors.New("instance not found")

// Directory lists and describes EC2 instances
type Directory interface {
	// ListRunning returns all instances in the running state
	ListRunning(ctx context.Context) ([]types.Instance, error)

	// Describe returns a single instance with its current tags.
	// Returns ErrInstanceNotFound when the instance does not exist.
	Describe(ctx context.Context, instanceID string) (*types.Instance, error)
}

// MetricQuery asks for one utilization statistic over a time window
type MetricQuery struct {
	InstanceID string
	Metric     string
	Start      time.Time
	End        time.Time
	Period     int32 // seconds
}

// Sample is one aggregated datapoint
type Sample struct {
	Timestamp time.Time
	Average   float64
}

// MetricsSource fetches aggregated utilization samples
type MetricsSource interface {
	Query(ctx context.Context, q MetricQuery) ([]Sample, error)
}

// WatermarkStore persists idle watermarks between sweeps
type WatermarkStore interface {
	// Get returns the stored watermark for an instance.
	// The bool reports whether a watermark exists.
	Get(ctx context.Context, instanceID string) (string, bool, error)

	// Set records a watermark for an instance
	Set(ctx context.Context, instanceID, mark string) error

	// Clear removes the watermark for an instance
	Clear(ctx context.Context, instanceID string) error

	// Touch refreshes the advisory last-check mark
	Touch(ctx context.Context, instanceID, mark string) error
}

// Stopper shuts instances down
type Stopper interface {
	Stop(ctx context.Context, instanceID string) error
}
