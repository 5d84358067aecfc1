package executor

import (
	"fmt"

	"github.com/solarekm/reaper/types"
)

// safetyCheck inspects an instance right before a stop and reports the
// blocking reason, if any
type safetyCheck func(inst types.Instance) (blocked bool, reason string)

var safetyChecks = []safetyCheck{
	checkOptIn,
	checkAutoScaling,
}

// runSafetyChecks returns the first blocking reason, or empty when the
// stop may proceed
func runSafetyChecks(inst types.Instance) string {
	for _, check := range safetyChecks {
		if blocked, reason := check(inst); blocked {
			return reason
		}
	}
	return ""
}

// checkOptIn catches instances whose opt-in tag was removed between
// evaluation and execution
func checkOptIn(inst types.Instance) (bool, string) {
	if !inst.OptedIn() {
		return true, "opt-in tag no longer present"
	}
	return false, ""
}

// checkAutoScaling refuses instances owned by an auto scaling group;
// the group would immediately replace stopped capacity
func checkAutoScaling(inst types.Instance) (bool, string) {
	if inst.InAutoScalingGroup() {
		return true, fmt.Sprintf("managed by auto scaling group %s", inst.Tags.AutoScalingGroup)
	}
	return false, ""
}
