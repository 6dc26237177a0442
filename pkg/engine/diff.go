package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Difference is the comparison of a desired state against an existing one.
type Difference struct {
	// Differences lists the differing attribute names in sorted order.
	Differences []string

	// Before and After hold the existing and desired values of the
	// differing attributes only.
	Before State
	After  State

	// Patch is set when every differing attribute is patchable.
	Patch []PatchOp

	// Applied is the existing state with the differing attributes
	// overwritten by their desired values. Set together with Patch.
	Applied State

	// Changes maps each differing attribute to its desired value. Set when
	// the differences cannot be patched.
	Changes State
}

// Compare diffs desired against existing. Desired attributes with a nil value
// are skipped. Values are compared after a JSON round trip so that numbers
// decoded from the API and numbers read from task parameters compare equal.
func Compare(existing, desired State, patchable []string) *Difference {
	d := &Difference{
		Before: State{},
		After:  State{},
	}

	for _, attr := range desired.Keys() {
		want := normalize(desired[attr])
		if want == nil {
			continue
		}
		have := normalize(existing[attr])
		if cmp.Equal(have, want) {
			continue
		}
		d.Differences = append(d.Differences, attr)
		d.Before[attr] = existing[attr]
		d.After[attr] = desired[attr]
	}

	if len(d.Differences) == 0 {
		return d
	}

	if canPatch(d.Differences, patchable) {
		d.Patch = make([]PatchOp, 0, len(d.Differences))
		d.Applied = existing.Clone()
		if d.Applied == nil {
			d.Applied = State{}
		}
		for _, attr := range d.Differences {
			d.Patch = append(d.Patch, PatchOp{Op: "replace", Path: "/" + attr, Value: desired[attr]})
			d.Applied[attr] = desired[attr]
		}
		return d
	}

	d.Changes = make(State, len(d.Differences))
	for _, attr := range d.Differences {
		d.Changes[attr] = desired[attr]
	}
	return d
}

// IsDifferent reports whether any attribute differs.
func (d *Difference) IsDifferent() bool {
	return d != nil && len(d.Differences) > 0
}

// CanPatch reports whether the differences can be applied with Patch.
func (d *Difference) CanPatch() bool {
	return d != nil && len(d.Patch) > 0
}

// Render returns the before/after text, one "key - value" line per
// differing attribute sorted by key, each followed by a newline. It returns
// nil when either side is empty.
func (d *Difference) Render() *DiffText {
	if !d.IsDifferent() || d.Before.Empty() || d.After.Empty() {
		return nil
	}
	return &DiffText{
		Before: renderLines(d.Before),
		After:  renderLines(d.After),
	}
}

func renderLines(s State) string {
	var b strings.Builder
	for _, k := range s.Keys() {
		fmt.Fprintf(&b, "%s - %s\n", k, renderValue(s[k]))
	}
	return b.String()
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

func canPatch(differences, patchable []string) bool {
	allowed := make(map[string]bool, len(patchable))
	for _, p := range patchable {
		allowed[p] = true
	}
	for _, attr := range differences {
		if !allowed[attr] {
			return false
		}
	}
	return true
}

// normalize round-trips a value through JSON so that typed values (ints,
// typed slices, structs) and decoded JSON compare structurally.
func normalize(v any) any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
