package engine

import "encoding/json"

// Result is the outcome of one reconciliation, in the shape reported back to
// the caller: a changed flag, the resource under its kind, and the optional
// diff.
type Result struct {
	// Kind is the resource type and the key the resource is reported under.
	Kind string

	// Changed is true when the resource was (or in check mode would be)
	// modified.
	Changed bool

	// Resource is the final known state of the resource.
	Resource State

	// Diff is set in diff mode.
	Diff *DiffText

	// Patch holds the JSON-Patch list sent, if any.
	Patch []PatchOp

	// Warnings collects non-fatal messages.
	Warnings []string

	// Operations lists the operations performed, in order.
	Operations []OperationType

	// Extra holds additional outputs of extra states (runs, reloads).
	Extra map[string]any
}

// NewResult creates an empty result for a resource kind.
func NewResult(kind string) *Result {
	return &Result{Kind: kind}
}

// Map returns the result as a generic map keyed the way callers consume it.
func (r *Result) Map() map[string]any {
	out := map[string]any{
		"changed": r.Changed,
	}
	resource := r.Resource
	if resource == nil {
		resource = State{}
	}
	out[r.Kind] = map[string]any(resource)
	if r.Diff != nil {
		out["diff"] = r.Diff
	}
	if len(r.Patch) > 0 {
		out["patch"] = r.Patch
	}
	if len(r.Warnings) > 0 {
		out["warnings"] = r.Warnings
	}
	for k, v := range r.Extra {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the result as its map form.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

// LastOperation returns the last operation performed, or OperationNoop.
func (r *Result) LastOperation() OperationType {
	if len(r.Operations) == 0 {
		return OperationNoop
	}
	return r.Operations[len(r.Operations)-1]
}
