package playbook_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/qlikcloud/pkg/playbook"
)

func TestEvaluatorHolds(t *testing.T) {
	vars := map[string]any{
		"env":      "prod",
		"replicas": 3,
		"ratio":    float64(2),
		"groups":   []any{"analysts", "admins"},
		"space":    map[string]any{"changed": true, "space": map[string]any{"id": "s1"}},
	}

	tests := []struct {
		name  string
		conds []string
		want  bool
	}{
		{name: "no conditions", want: true},
		{name: "string compare", conds: []string{`env == "prod"`}, want: true},
		{name: "int compare", conds: []string{"replicas > 2"}, want: true},
		{name: "whole float becomes int", conds: []string{"ratio == 2"}, want: true},
		{name: "membership", conds: []string{`"admins" in groups`}, want: true},
		{name: "dict access", conds: []string{`space["changed"] and space["space"]["id"] == "s1"`}, want: true},
		{name: "defined", conds: []string{`defined("env")`, `not defined("missing")`}, want: true},
		{name: "all must hold", conds: []string{"True", "replicas == 1"}, want: false},
		{name: "literal false", conds: []string{"False"}, want: false},
	}
	ev := playbook.NewEvaluator(time.Second)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Holds(context.Background(), tt.conds, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluatorErrors(t *testing.T) {
	ev := playbook.NewEvaluator(time.Second)

	_, err := ev.Holds(context.Background(), []string{"undefined_var == 1"}, nil)
	assert.ErrorContains(t, err, "undefined_var")

	_, err = ev.Holds(context.Background(), []string{"1 +"}, nil)
	assert.Error(t, err)
}

func TestEvaluatorEval(t *testing.T) {
	ev := playbook.NewEvaluator(0)

	got, err := ev.Eval(context.Background(), `[g.upper() for g in groups]`, map[string]any{"groups": []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"A", "B"}, got)

	got, err = ev.Eval(context.Background(), `{"n": n * 2}`, map[string]any{"n": 21})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int64(42)}, got)
}
