package playbook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Evaluator evaluates task conditions as Starlark expressions.
type Evaluator struct {
	timeout  time.Duration
	maxSteps uint64
}

// NewEvaluator creates a condition evaluator.
func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Evaluator{
		timeout:  timeout,
		maxSteps: 1_000_000,
	}
}

// Holds reports whether every condition is true.
func (e *Evaluator) Holds(ctx context.Context, conditions []string, vars map[string]any) (bool, error) {
	if len(conditions) == 0 {
		return true, nil
	}
	env, err := environment(vars)
	if err != nil {
		return false, err
	}
	for _, cond := range conditions {
		v, err := e.eval(ctx, cond, env)
		if err != nil {
			return false, fmt.Errorf("error evaluating condition %q: %w", cond, err)
		}
		if !v.Truth() {
			return false, nil
		}
	}
	return true, nil
}

// Eval evaluates one expression and converts the result to a Go value.
func (e *Evaluator) Eval(ctx context.Context, expr string, vars map[string]any) (any, error) {
	env, err := environment(vars)
	if err != nil {
		return nil, err
	}
	v, err := e.eval(ctx, expr, env)
	if err != nil {
		return nil, err
	}
	return fromStarlarkValue(v)
}

func (e *Evaluator) eval(ctx context.Context, expr string, env starlark.StringDict) (starlark.Value, error) {
	evalCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	thread := &starlark.Thread{
		Name:  "when",
		Print: func(*starlark.Thread, string) {},
	}
	thread.SetMaxExecutionSteps(e.maxSteps)

	type outcome struct {
		val starlark.Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := starlark.Eval(thread, "when", expr, env)
		done <- outcome{v, err}
	}()

	select {
	case <-evalCtx.Done():
		thread.Cancel(evalCtx.Err().Error())
		<-done
		return nil, fmt.Errorf("condition timed out after %v", e.timeout)
	case out := <-done:
		return out.val, out.err
	}
}

// environment converts variables into predeclared Starlark names.
func environment(vars map[string]any) (starlark.StringDict, error) {
	env := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"defined": starlark.NewBuiltin("defined", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var name string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &name); err != nil {
				return nil, err
			}
			_, ok := vars[name]
			return starlark.Bool(ok), nil
		}),
	}
	for key, val := range vars {
		sv, err := toStarlarkValue(val)
		if err != nil {
			return nil, fmt.Errorf("failed to convert variable %s: %w", key, err)
		}
		env[key] = sv
	}
	return env, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		if val == float64(int64(val)) {
			return starlark.MakeInt64(int64(val)), nil
		}
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			list[i] = starlark.String(item)
		}
		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		// named maps and structs go through their JSON form
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("unsupported type: %T", v)
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, err
		}
		return toStarlarkValue(generic)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		list := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			item, err := fromStarlarkValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case starlark.Tuple:
		list := make([]any, len(val))
		for i, el := range val {
			item, err := fromStarlarkValue(el)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return list, nil
	case *starlark.Dict:
		dict := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]any)
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}
