package engine

import "fmt"

// destructiveTaskTypes are the operations that modify workflows or system
// state irreversibly when applied.
var destructiveTaskTypes = map[TaskType]struct{}{
	TaskSystemImprovement: {},
	TaskWorkflowImport:    {},
}

// Decision is the confirmation gate's verdict.
type Decision struct {
	Required bool   `json:"required"`
	Reason   string `json:"reason,omitempty"`
}

// DecideConfirmation is a pure function of (type, parameters): identical
// inputs always yield the identical decision. It must run before any handler
// invocation; a Required decision short-circuits dispatch.
func DecideConfirmation(taskType TaskType, params Parameters) Decision {
	if !params.Apply {
		return Decision{}
	}
	if _, destructive := destructiveTaskTypes[taskType]; destructive {
		return Decision{
			Required: true,
			Reason:   fmt.Sprintf("%s applies irreversible changes", taskType),
		}
	}
	if params.Priority == PriorityCritical {
		return Decision{
			Required: true,
			Reason:   "critical-priority actions must be confirmed before applying",
		}
	}
	return Decision{}
}
