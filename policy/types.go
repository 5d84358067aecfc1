package policy

import "github.com/solarekm/reaper/types"

// Input is the document handed to every policy evaluation
type Input struct {
	Resource types.Instance `json:"resource"`
	Decision types.Decision `json:"decision"`
}

// Verdict is the aggregated outcome across all loaded policies
type Verdict struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason"`
	Policies []string `json:"policies,omitempty"`
}
