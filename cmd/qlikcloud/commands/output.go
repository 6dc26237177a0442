package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, headers ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatUpper
	t.AppendHeader(table.Row(headers))
	return t
}

// statusColor renders a task status the way the terminal recap shows it.
func statusColor(status string) string {
	switch status {
	case "changed":
		return text.FgYellow.Sprint(status)
	case "failed":
		return text.FgRed.Sprint(status)
	case "ok":
		return text.FgGreen.Sprint(status)
	default:
		return text.FgHiBlack.Sprint(status)
	}
}

// parseKeyValues turns repeated key=value arguments into a map. Values are
// decoded as YAML so that numbers, booleans and [a, b] lists keep their
// type. An argument of the form @file merges a YAML or JSON mapping read
// from file.
func parseKeyValues(args []string) (map[string]any, error) {
	out := map[string]any{}
	for _, arg := range args {
		if path, ok := strings.CutPrefix(arg, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
			var m map[string]any
			if err := yaml.Unmarshal(data, &m); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
			for k, v := range m {
				out[k] = v
			}
			continue
		}

		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid argument %q: expected key=value", arg)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
