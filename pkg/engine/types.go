package engine

import (
	"encoding/json"
	"fmt"
	"sort"
)

// State is a flat view of a remote object keyed by remote attribute name.
// It is used both for the desired attributes built from task parameters and
// for the existing object fetched from the tenant.
type State map[string]any

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Empty reports whether the state holds no attributes.
func (s State) Empty() bool {
	return len(s) == 0
}

// GetString returns the string value of an attribute, or "" when it is missing
// or not a string.
func (s State) GetString(key string) string {
	v, _ := s[key].(string)
	return v
}

// Keys returns the attribute names in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToState normalizes any JSON-encodable value (a struct, a map, decoded JSON)
// into a State. A nil value yields an empty state.
func ToState(v any) (State, error) {
	if v == nil {
		return State{}, nil
	}
	if s, ok := v.(State); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	var out State
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if out == nil {
		out = State{}
	}
	return out, nil
}

// PatchOp is a single JSON-Patch operation.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// DiffText is the rendered before/after view reported in diff mode.
type DiffText struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Options are the host-engine flags that change how a reconciler behaves.
type Options struct {
	// CheckMode suppresses every mutating call. Operations return the
	// state the resource currently has.
	CheckMode bool

	// Diff enables rendering of before/after text for differing attributes.
	Diff bool

	// AllowRecreate permits UpdateRecreateIfAllowed resources to be deleted
	// and recreated when their differences cannot be patched.
	AllowRecreate bool
}
