package engine

import (
	"fmt"
	"sort"
)

// ControlParams are task parameters that steer the reconciler or the
// connection and are never part of the desired remote state.
var ControlParams = []string{"state", "tenant_uri", "api_key"}

// Attribute maps one task parameter onto one remote attribute.
type Attribute struct {
	// Param is the snake_case task parameter name.
	Param string

	// Name is the remote (camelCase) attribute name.
	Name string

	// Patchable marks attributes the tenant accepts in a JSON-Patch
	// replace operation.
	Patchable bool
}

// Schema is the static description of a resource kind: the bidirectional
// table between task parameters and remote attributes, and the fields that
// make up the kind's public representation.
type Schema struct {
	// Kind is the resource type name, used as the result key.
	Kind string

	// Attributes is the parameter/attribute mapping table.
	Attributes []Attribute

	// Ignore lists module parameters that are accepted but never compared
	// (file paths, lookup names resolved elsewhere, allow_recreate, ...).
	Ignore []string

	// Fields lists additional remote fields kept when projecting a fetched
	// object, on top of the attribute names. Empty keeps every field.
	Fields []string
}

// Validate checks the mapping table is a bijection and does not collide with
// control or ignored parameters.
func (s Schema) Validate() error {
	if s.Kind == "" {
		return fmt.Errorf("schema kind is required")
	}

	reserved := make(map[string]bool, len(ControlParams)+len(s.Ignore))
	for _, p := range ControlParams {
		reserved[p] = true
	}
	for _, p := range s.Ignore {
		reserved[p] = true
	}

	params := make(map[string]bool, len(s.Attributes))
	names := make(map[string]bool, len(s.Attributes))
	for i, a := range s.Attributes {
		if a.Param == "" || a.Name == "" {
			return fmt.Errorf("%s: attribute %d has an empty param or name", s.Kind, i)
		}
		if reserved[a.Param] {
			return fmt.Errorf("%s: parameter %q is reserved and cannot be mapped", s.Kind, a.Param)
		}
		if params[a.Param] {
			return fmt.Errorf("%s: parameter %q is mapped twice", s.Kind, a.Param)
		}
		if names[a.Name] {
			return fmt.Errorf("%s: attribute %q is mapped twice", s.Kind, a.Name)
		}
		params[a.Param] = true
		names[a.Name] = true
	}
	return nil
}

// AttributeName returns the remote attribute for a task parameter.
func (s Schema) AttributeName(param string) (string, bool) {
	for _, a := range s.Attributes {
		if a.Param == param {
			return a.Name, true
		}
	}
	return "", false
}

// ParamName returns the task parameter for a remote attribute.
func (s Schema) ParamName(name string) (string, bool) {
	for _, a := range s.Attributes {
		if a.Name == name {
			return a.Param, true
		}
	}
	return "", false
}

// Patchable returns the attribute names accepted by a JSON-Patch call.
func (s Schema) Patchable() []string {
	var out []string
	for _, a := range s.Attributes {
		if a.Patchable {
			out = append(out, a.Name)
		}
	}
	return out
}

// Desired builds the desired state from task parameters. Only mapped
// parameters are considered and nil values are dropped, since a nil
// parameter means the attribute is not managed.
func (s Schema) Desired(params map[string]any) State {
	out := make(State, len(s.Attributes))
	for _, a := range s.Attributes {
		v, ok := params[a.Param]
		if !ok || v == nil {
			continue
		}
		out[a.Name] = v
	}
	return out
}

// Project restricts a fetched remote object to the schema's public fields.
func (s Schema) Project(obj State) State {
	if obj == nil {
		return State{}
	}
	if len(s.Fields) == 0 {
		return obj.Clone()
	}
	out := make(State, len(s.Fields)+len(s.Attributes))
	for _, f := range s.Fields {
		if v, ok := obj[f]; ok {
			out[f] = v
		}
	}
	for _, a := range s.Attributes {
		if v, ok := obj[a.Name]; ok {
			out[a.Name] = v
		}
	}
	return out
}

// Params returns the sorted parameter names of the mapping table.
func (s Schema) Params() []string {
	out := make([]string, 0, len(s.Attributes))
	for _, a := range s.Attributes {
		out = append(out, a.Param)
	}
	sort.Strings(out)
	return out
}
