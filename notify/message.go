package notify

import (
	"math"

	"github.com/solarekm/reaper/types"
)

// timestampLayout is the wire format for event timestamps
const timestampLayout = "2006-01-02 15:04:05 UTC"

// ShutdownMessage is the wire form of a shutdown event. The SNS body
// carries it as pretty JSON and the Teams relay reads it back.
type ShutdownMessage struct {
	InstanceID    string  `json:"instance_id"`
	InstanceName  string  `json:"instance_name"`
	IdleTimeHours float64 `json:"idle_time_hours"`
	CPUAvg        string  `json:"cpu_avg"`
	NetworkAvg    string  `json:"network_avg"`
	DiskType      string  `json:"disk_type"`
	LaunchedBy    string  `json:"launched_by,omitempty"`
	Timestamp     string  `json:"timestamp"`
}

// ToMessage flattens a shutdown event into its wire form
func ToMessage(event types.ShutdownEvent) ShutdownMessage {
	return ShutdownMessage{
		InstanceID:    event.ResourceID,
		InstanceName:  event.ResourceName,
		IdleTimeHours: math.Round(event.IdleHours*100) / 100,
		CPUAvg:        event.Summary.CPUAverage,
		NetworkAvg:    event.Summary.NetworkAverage,
		DiskType:      event.Summary.DiskBackend,
		LaunchedBy:    event.LaunchedBy,
		Timestamp:     event.IssuedAt.UTC().Format(timestampLayout),
	}
}
