package engine

import "fmt"

// TerminalState names the state a task asks a resource to end up in.
type TerminalState string

const (
	// StatePresent ensures the resource exists and matches the desired attributes.
	StatePresent TerminalState = "present"

	// StateAbsent ensures the resource does not exist.
	StateAbsent TerminalState = "absent"

	// StateTriggered ensures an automation exists and starts a run of it.
	StateTriggered TerminalState = "triggered"

	// StateReloaded ensures an app exists and starts a reload of it.
	StateReloaded TerminalState = "reloaded"
)

// OperationType represents the type of operation performed on a resource.
type OperationType string

const (
	// OperationRead fetches the current state.
	OperationRead OperationType = "read"

	// OperationCreate creates a new resource.
	OperationCreate OperationType = "create"

	// OperationPatch applies a JSON-Patch list to an existing resource.
	OperationPatch OperationType = "patch"

	// OperationUpdate replaces attributes of an existing resource.
	OperationUpdate OperationType = "update"

	// OperationDelete removes an existing resource.
	OperationDelete OperationType = "delete"

	// OperationRecreate deletes a resource and creates it again.
	OperationRecreate OperationType = "recreate"

	// OperationNoop indicates the resource is already in the desired state.
	OperationNoop OperationType = "noop"

	// OperationTrigger starts an asynchronous job (automation run, app reload).
	OperationTrigger OperationType = "trigger"
)

// IsDestructive returns true if the operation removes a resource.
func (o OperationType) IsDestructive() bool {
	return o == OperationDelete || o == OperationRecreate
}

// IsMutating returns true if the operation changes remote state.
func (o OperationType) IsMutating() bool {
	return o != OperationRead && o != OperationNoop
}

// Gerund returns the "-ing" form used in error messages.
func (o OperationType) Gerund() string {
	switch o {
	case OperationCreate:
		return "creating"
	case OperationPatch:
		return "patching"
	case OperationUpdate:
		return "updating"
	case OperationDelete:
		return "deleting"
	case OperationRecreate:
		return "recreating"
	case OperationTrigger:
		return "triggering"
	default:
		return "reading"
	}
}

// UpdatePolicy selects what a reconciler does when a resource differs and the
// differences cannot be expressed as a patch.
type UpdatePolicy int

const (
	// UpdateReplace calls the resource's update handler with the desired
	// state and the map of changed attributes.
	UpdateReplace UpdatePolicy = iota

	// UpdateRecreate deletes the resource and creates it again.
	UpdateRecreate

	// UpdateRecreateIfAllowed recreates only when the task sets
	// allow_recreate; otherwise a warning is recorded and no call is made.
	// The result is still reported as changed.
	UpdateRecreateIfAllowed

	// UpdateReject fails the task.
	UpdateReject

	// UpdateReport leaves the resource alone. Drift is rendered in the diff,
	// recorded as a warning and reported as changed, but never corrected.
	UpdateReport
)

// String returns the policy name.
func (p UpdatePolicy) String() string {
	switch p {
	case UpdateReplace:
		return "replace"
	case UpdateRecreate:
		return "recreate"
	case UpdateRecreateIfAllowed:
		return "recreate-if-allowed"
	case UpdateReject:
		return "reject"
	case UpdateReport:
		return "report"
	default:
		return fmt.Sprintf("UpdatePolicy(%d)", int(p))
	}
}
