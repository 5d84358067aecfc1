package types

import "time"

// Summary field value when a metric could not be read
const SummaryUnavailable = "N/A"

// Disk backends a summary can report
const (
	DiskBackendEBS           = "EBS"
	DiskBackendInstanceStore = "Instance Store"
	DiskBackendNone          = "None"
)

// UsageSummary carries cosmetic utilization averages for notifications.
// Values are pre-formatted strings so that N/A can stand in for missing data.
type UsageSummary struct {
	CPUAverage     string `json:"cpu_avg"`
	NetworkAverage string `json:"network_avg"`
	DiskBackend    string `json:"disk_type"`
}

// UnavailableSummary is what a failed metrics read reports
func UnavailableSummary() UsageSummary {
	return UsageSummary{
		CPUAverage:     SummaryUnavailable,
		NetworkAverage: SummaryUnavailable,
		DiskBackend:    SummaryUnavailable,
	}
}

// ShutdownEvent describes one instance shutdown for notification fan-out.
// Constructed once per shutdown, handed to publishers, never stored.
type ShutdownEvent struct {
	ResourceID   string       `json:"resource_id"`
	ResourceName string       `json:"resource_name"`
	IdleHours    float64      `json:"idle_hours"`
	Summary      UsageSummary `json:"summary"`
	LaunchedBy   string       `json:"launched_by,omitempty"`
	IssuedAt     time.Time    `json:"issued_at"`
}
