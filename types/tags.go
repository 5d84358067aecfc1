package types

import "strings"

// Tag keys the reaper reads or writes on instances
const (
	TagAutoShutdownEnabled = "AutoShutdownEnabled"
	TagInactivityStart     = "InactivityStart"
	TagLastActivityCheck   = "LastActivityCheck"
	TagName                = "Name"
	TagAutoScalingGroup    = "aws:autoscaling:groupName"
)

// Tags represents instance tags as a structured type
// No maps! Everything is explicit
type Tags struct {
	// Reaper state tags
	AutoShutdown      bool   `json:"auto_shutdown,omitempty"`
	InactivityStart   string `json:"inactivity_start,omitempty"`
	LastActivityCheck string `json:"last_activity_check,omitempty"`

	// Standard infrastructure tags
	Name        string `json:"name,omitempty"`
	Environment string `json:"environment,omitempty"`
	Team        string `json:"team,omitempty"`

	// Set by the platform when an ASG manages the instance
	AutoScalingGroup string `json:"auto_scaling_group,omitempty"`
}

// HasWatermark reports whether an inactivity watermark is recorded
func (t Tags) HasWatermark() bool {
	return t.InactivityStart != ""
}

// ToMap converts structured tags to map for AWS API compatibility
func (t Tags) ToMap() map[string]string {
	tags := make(map[string]string)

	if t.AutoShutdown {
		tags[TagAutoShutdownEnabled] = "true"
	}
	if t.InactivityStart != "" {
		tags[TagInactivityStart] = t.InactivityStart
	}
	if t.LastActivityCheck != "" {
		tags[TagLastActivityCheck] = t.LastActivityCheck
	}
	if t.Name != "" {
		tags[TagName] = t.Name
	}
	if t.Environment != "" {
		tags["Environment"] = t.Environment
	}
	if t.Team != "" {
		tags["Team"] = t.Team
	}
	if t.AutoScalingGroup != "" {
		tags[TagAutoScalingGroup] = t.AutoScalingGroup
	}

	return tags
}

// TagsFromMap creates structured tags from a map (for AWS API compatibility)
func TagsFromMap(tagMap map[string]string) Tags {
	tags := Tags{}

	if val, ok := tagMap[TagAutoShutdownEnabled]; ok && strings.EqualFold(val, "true") {
		tags.AutoShutdown = true
	}
	if val, ok := tagMap[TagInactivityStart]; ok {
		tags.InactivityStart = val
	}
	if val, ok := tagMap[TagLastActivityCheck]; ok {
		tags.LastActivityCheck = val
	}
	if val, ok := tagMap[TagName]; ok {
		tags.Name = val
	}
	if val, ok := tagMap["Environment"]; ok {
		tags.Environment = val
	}
	if val, ok := tagMap["Team"]; ok {
		tags.Team = val
	}
	if val, ok := tagMap[TagAutoScalingGroup]; ok {
		tags.AutoScalingGroup = val
	}

	return tags
}
