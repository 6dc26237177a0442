package playbook

import (
	"fmt"
	"strings"
)

// ModulePrefix is accepted in front of module names.
const ModulePrefix = "qlik.cloud."

// Playbook is a parsed, validated playbook.
type Playbook struct {
	// Path is the file the playbook was loaded from.
	Path  string
	Plays []Play
}

// Play runs a list of tasks against the hosts matching a pattern.
type Play struct {
	Name  string         `yaml:"name" json:"name,omitempty"`
	Hosts string         `yaml:"hosts" json:"hosts"`
	Vars  map[string]any `yaml:"vars" json:"vars,omitempty"`
	Tasks []Task         `yaml:"tasks" json:"tasks"`
}

// Task is one module invocation.
type Task struct {
	Name   string         `yaml:"name" json:"name,omitempty"`
	Module string         `yaml:"module" json:"module"`
	Params map[string]any `yaml:"params" json:"params,omitempty"`

	// When is a Starlark expression, a bool, or a list of expressions
	// that must all be true.
	When any `yaml:"when" json:"when,omitempty"`

	// Loop runs the task once per item, exposed as the item variable. A
	// string is rendered as a template naming a list variable.
	Loop any `yaml:"loop" json:"loop,omitempty"`

	// Register stores the task result in a variable of this name.
	Register string `yaml:"register" json:"register,omitempty"`

	IgnoreErrors bool `yaml:"ignore_errors" json:"ignore_errors,omitempty"`
}

// DisplayName returns the task name, or the module name when unnamed.
func (t Task) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Module
}

// Conditions returns the when expressions of a task. A literal bool becomes
// "True" or "False".
func (t Task) Conditions() ([]string, error) {
	switch w := t.When.(type) {
	case nil:
		return nil, nil
	case bool:
		if w {
			return []string{"True"}, nil
		}
		return []string{"False"}, nil
	case string:
		return []string{w}, nil
	case []any:
		out := make([]string, 0, len(w))
		for _, c := range w {
			s, ok := c.(string)
			if !ok {
				return nil, fmt.Errorf("when condition must be a string, got %T", c)
			}
			out = append(out, s)
		}
		return out, nil
	case []string:
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported when condition %T", t.When)
	}
}

// normalizeModule strips the collection prefix from a module name.
func normalizeModule(name string) string {
	return strings.TrimPrefix(name, ModulePrefix)
}

// ValidationError represents a problem found while loading a playbook.
type ValidationError struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors is the list of problems of an invalid playbook.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "\n")
}
