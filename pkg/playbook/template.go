package playbook

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/openfroyo/qlikcloud/pkg/lookup"
)

// Renderer renders templated task parameters.
type Renderer struct {
	funcs template.FuncMap
}

// NewRenderer creates a renderer with the sprig functions and the connection
// string helpers.
func NewRenderer() *Renderer {
	funcs := sprig.TxtFuncMap()
	funcs["connstringToProp"] = lookup.ConnStringProperty
	funcs["connstringProps"] = lookup.ConnStringProperties
	return &Renderer{funcs: funcs}
}

// Render returns a copy of v with every string rendered as a template
// against vars. Maps and lists are rendered recursively.
func (r *Renderer) Render(v any, vars map[string]any) (any, error) {
	switch val := v.(type) {
	case string:
		out, err := r.RenderString(val, vars)
		if err != nil {
			return nil, err
		}
		return structured(val, out), nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			rendered, err := r.Render(item, vars)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			rendered, err := r.Render(item, vars)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return v, nil
	}
}

// structured decodes the output of a template that consists of a single
// action producing a JSON list or object, such as {{ .groups | toJson }}.
func structured(src, out string) any {
	src = strings.TrimSpace(src)
	if !strings.HasPrefix(src, "{{") || !strings.HasSuffix(src, "}}") || strings.Count(src, "{{") != 1 {
		return out
	}
	trimmed := strings.TrimSpace(out)
	if !strings.HasPrefix(trimmed, "[") && !strings.HasPrefix(trimmed, "{") {
		return out
	}
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return out
	}
	return v
}

// RenderMap renders every value of a parameter map.
func (r *Renderer) RenderMap(m map[string]any, vars map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	out, err := r.Render(m, vars)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

// RenderString renders one template. Strings without an action are returned
// unchanged. Missing variables are an error.
func (r *Renderer) RenderString(s string, vars map[string]any) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := template.New("param").Option("missingkey=error").Funcs(r.funcs).Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid template %q: %w", s, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("error rendering %q: %w", s, err)
	}
	return b.String(), nil
}
