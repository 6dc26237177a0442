package playbook

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/inventory"
	"github.com/openfroyo/qlikcloud/pkg/resources"
	"github.com/openfroyo/qlikcloud/pkg/stores"
)

const tracerName = "github.com/openfroyo/qlikcloud/pkg/playbook"

// LocalHost is the implicit host of plays that pass every connection
// parameter explicitly.
const LocalHost = "localhost"

// Recorder receives one observation per executed task.
type Recorder interface {
	ObserveTask(module, operation, status string, duration time.Duration)
}

// Options control one playbook run.
type Options struct {
	CheckMode bool
	Diff      bool

	// Limit further restricts the hosts of every play.
	Limit string

	// ExtraVars override play and host variables.
	ExtraVars map[string]any
}

// Runner executes playbooks.
type Runner struct {
	Inventory *inventory.Inventory
	Connect   resources.ConnectFunc
	Token     TokenFunc
	Guard     engine.Guard
	Journal   stores.Journal
	Metrics   Recorder
	Logger    zerolog.Logger

	Evaluator *Evaluator
	Renderer  *Renderer
}

// TaskResult is the outcome of one task (or loop item) on one host.
type TaskResult struct {
	Play     string                 `json:"play,omitempty"`
	Host     string                 `json:"host"`
	Task     string                 `json:"task"`
	Module   string                 `json:"module"`
	Item     any                    `json:"item,omitempty"`
	Status   stores.TaskStatus      `json:"status"`
	Result   map[string]any         `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Duration time.Duration          `json:"duration"`
	Ops      []engine.OperationType `json:"operations,omitempty"`
}

// HostStats counts task outcomes per host.
type HostStats struct {
	OK      int `json:"ok"`
	Changed int `json:"changed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Ignored int `json:"ignored"`
}

// Report summarizes a run.
type Report struct {
	RunID   string                `json:"run_id"`
	Results []TaskResult          `json:"results"`
	Stats   map[string]*HostStats `json:"stats"`
}

// Failed reports whether any host failed.
func (r *Report) Failed() bool {
	for _, s := range r.Stats {
		if s.Failed > 0 {
			return true
		}
	}
	return false
}

func (r *Report) add(res TaskResult) {
	r.Results = append(r.Results, res)
	s, ok := r.Stats[res.Host]
	if !ok {
		s = &HostStats{}
		r.Stats[res.Host] = s
	}
	switch res.Status {
	case stores.TaskStatusOK:
		s.OK++
	case stores.TaskStatusChanged:
		s.Changed++
	case stores.TaskStatusFailed:
		s.Failed++
	case stores.TaskStatusSkipped:
		s.Skipped++
	case stores.TaskStatusIgnored:
		s.Ignored++
	}
}

// run is the state of one Run call.
type run struct {
	*Runner
	opts   Options
	report *Report
	tokens *tokenCache
	tracer trace.Tracer
	log    zerolog.Logger
	failed map[string]bool
	seq    int
}

// Run executes every play of a playbook. Task failures are reported in the
// Report; the error is reserved for failures to run at all.
func (r *Runner) Run(ctx context.Context, pb *Playbook, opts Options) (*Report, error) {
	if r.Evaluator == nil {
		r.Evaluator = NewEvaluator(0)
	}
	if r.Renderer == nil {
		r.Renderer = NewRenderer()
	}

	rn := &run{
		Runner: r,
		opts:   opts,
		report: &Report{RunID: uuid.NewString(), Stats: map[string]*HostStats{}},
		tokens: newTokenCache(r.Token),
		tracer: otel.Tracer(tracerName),
		failed: map[string]bool{},
	}
	rn.log = r.Logger.With().Str("component", "playbook").Str("run_id", rn.report.RunID).Logger()

	ctx, span := rn.tracer.Start(ctx, "playbook.run", trace.WithAttributes(
		attribute.String("playbook.path", pb.Path),
		attribute.String("run.id", rn.report.RunID),
		attribute.Bool("run.check_mode", opts.CheckMode),
	))
	defer span.End()

	if r.Journal != nil {
		meta, _ := json.Marshal(map[string]any{"limit": opts.Limit, "diff": opts.Diff})
		err := r.Journal.CreateRun(ctx, &stores.Run{
			ID:        rn.report.RunID,
			Playbook:  pb.Path,
			Status:    stores.RunStatusRunning,
			CheckMode: opts.CheckMode,
			StartedAt: time.Now(),
			Metadata:  string(meta),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to journal run: %w", err)
		}
	}

	rn.log.Info().Str("playbook", pb.Path).Int("plays", len(pb.Plays)).Msg("Starting playbook run")

	var runErr error
	for _, play := range pb.Plays {
		if err := rn.play(ctx, play); err != nil {
			runErr = err
			break
		}
	}

	status := stores.RunStatusCompleted
	var errMsg *string
	switch {
	case runErr != nil:
		status = stores.RunStatusFailed
		msg := runErr.Error()
		errMsg = &msg
		span.RecordError(runErr)
		span.SetStatus(codes.Error, msg)
	case rn.report.Failed():
		status = stores.RunStatusFailed
		msg := "one or more tasks failed"
		errMsg = &msg
		span.SetStatus(codes.Error, msg)
	}

	if r.Journal != nil {
		// the run context may already be cancelled
		if err := r.Journal.FinishRun(context.WithoutCancel(ctx), rn.report.RunID, status, errMsg); err != nil {
			rn.log.Error().Err(err).Msg("Failed to finish journal run")
		}
	}

	rn.log.Info().Str("status", string(status)).Int("results", len(rn.report.Results)).Msg("Playbook run finished")
	return rn.report, runErr
}

func (rn *run) play(ctx context.Context, play Play) error {
	hosts, err := rn.hosts(play.Hosts)
	if err != nil {
		return fmt.Errorf("play %q: %w", play.Name, err)
	}

	ctx, span := rn.tracer.Start(ctx, "playbook.play", trace.WithAttributes(
		attribute.String("play.name", play.Name),
		attribute.Int("play.hosts", len(hosts)),
	))
	defer span.End()

	for _, host := range hosts {
		if rn.failed[host.Name] {
			continue
		}
		vars, err := rn.hostVars(host, play)
		if err != nil {
			return fmt.Errorf("play %q, host %s: %w", play.Name, host.Name, err)
		}
		for _, task := range play.Tasks {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !rn.task(ctx, play, host, task, vars) {
				rn.failed[host.Name] = true
				break
			}
		}
	}
	return nil
}

// hosts resolves the host pattern of a play and applies the run limit.
func (rn *run) hosts(pattern string) ([]inventory.Host, error) {
	if pattern == LocalHost {
		return []inventory.Host{{Name: LocalHost, Vars: map[string]any{}}}, nil
	}
	if rn.Inventory == nil {
		return nil, fmt.Errorf("hosts %q require an inventory", pattern)
	}
	hosts, err := rn.Inventory.Select(pattern)
	if err != nil {
		return nil, err
	}
	if rn.opts.Limit == "" {
		return hosts, nil
	}

	limited, err := rn.Inventory.Select(rn.opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("invalid limit: %w", err)
	}
	allowed := map[string]bool{}
	for _, h := range limited {
		allowed[h.Name] = true
	}
	var out []inventory.Host
	for _, h := range hosts {
		if allowed[h.Name] {
			out = append(out, h)
		}
	}
	return out, nil
}

// hostVars merges host vars, rendered play vars and extra vars.
func (rn *run) hostVars(host inventory.Host, play Play) (map[string]any, error) {
	vars := maps.Clone(host.Vars)
	if vars == nil {
		vars = map[string]any{}
	}
	vars["inventory_hostname"] = host.Name
	vars["group_names"] = []any{host.Group}

	playVars, err := rn.Renderer.RenderMap(play.Vars, vars)
	if err != nil {
		return nil, fmt.Errorf("vars: %w", err)
	}
	maps.Copy(vars, playVars)
	maps.Copy(vars, rn.opts.ExtraVars)
	return vars, nil
}

// task runs one task, once or per loop item, and reports whether the host
// may continue.
func (rn *run) task(ctx context.Context, play Play, host inventory.Host, task Task, vars map[string]any) bool {
	items, err := rn.loopItems(task, vars)
	if err != nil {
		res := rn.failure(play, host, task, nil, err, 0)
		return rn.finish(ctx, task, res)
	}

	if items == nil {
		res := rn.execute(ctx, play, host, task, vars, nil)
		if task.Register != "" {
			vars[task.Register] = res.Result
		}
		return rn.finish(ctx, task, res)
	}

	ok := true
	results := make([]any, 0, len(items))
	for _, item := range items {
		itemVars := maps.Clone(vars)
		itemVars["item"] = item
		res := rn.execute(ctx, play, host, task, itemVars, item)
		results = append(results, res.Result)
		if !rn.finish(ctx, task, res) {
			ok = false
		}
	}
	if task.Register != "" {
		vars[task.Register] = map[string]any{"results": results}
	}
	return ok
}

func (rn *run) loopItems(task Task, vars map[string]any) ([]any, error) {
	switch loop := task.Loop.(type) {
	case nil:
		return nil, nil
	case []any:
		out, err := rn.Renderer.Render(loop, vars)
		if err != nil {
			return nil, fmt.Errorf("loop: %w", err)
		}
		return out.([]any), nil
	case string:
		out, err := rn.Renderer.Render(loop, vars)
		if err != nil {
			return nil, fmt.Errorf("loop: %w", err)
		}
		list, ok := out.([]any)
		if !ok {
			return nil, fmt.Errorf("loop %q did not render to a list", loop)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unsupported loop %T", task.Loop)
	}
}

// execute evaluates the condition, renders the parameters and runs the
// module.
func (rn *run) execute(ctx context.Context, play Play, host inventory.Host, task Task, vars map[string]any, item any) TaskResult {
	start := time.Now()
	log := rn.log.With().Str("host", host.Name).Str("task", task.DisplayName()).Str("module", task.Module).Logger()

	ctx, span := rn.tracer.Start(ctx, "playbook.task", trace.WithAttributes(
		attribute.String("task.name", task.DisplayName()),
		attribute.String("task.module", task.Module),
		attribute.String("host.name", host.Name),
	))
	defer span.End()

	conds, err := task.Conditions()
	if err != nil {
		return rn.failure(play, host, task, item, err, time.Since(start))
	}
	holds, err := rn.Evaluator.Holds(ctx, conds, vars)
	if err != nil {
		return rn.failure(play, host, task, item, err, time.Since(start))
	}
	if !holds {
		log.Debug().Msg("Skipping task, condition is false")
		return TaskResult{
			Play:     play.Name,
			Host:     host.Name,
			Task:     task.DisplayName(),
			Module:   task.Module,
			Item:     item,
			Status:   stores.TaskStatusSkipped,
			Result:   map[string]any{"changed": false, "skipped": true},
			Duration: time.Since(start),
		}
	}

	params, err := rn.Renderer.RenderMap(task.Params, vars)
	if err != nil {
		return rn.failure(play, host, task, item, err, time.Since(start))
	}
	if err := applyConnectionDefaults(ctx, params, host, rn.tokens); err != nil {
		return rn.failure(play, host, task, item, err, time.Since(start))
	}

	env := resources.Env{
		Connect: rn.Connect,
		Options: engine.Options{CheckMode: rn.opts.CheckMode, Diff: rn.opts.Diff},
		Guard:   rn.Guard,
		Logger:  log,
	}
	out, err := resources.Run(ctx, env, task.Module, params)

	res := TaskResult{
		Play:     play.Name,
		Host:     host.Name,
		Task:     task.DisplayName(),
		Module:   task.Module,
		Item:     item,
		Duration: time.Since(start),
	}
	if out != nil {
		res.Ops = out.Operations
		res.Result = resultMap(out)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.Status = stores.TaskStatusFailed
		res.Error = err.Error()
		if res.Result == nil {
			res.Result = map[string]any{}
		}
		res.Result["failed"] = true
		res.Result["msg"] = err.Error()
		return res
	}

	res.Status = stores.TaskStatusOK
	if out.Changed {
		res.Status = stores.TaskStatusChanged
	}
	for _, w := range out.Warnings {
		log.Warn().Msg(w)
	}
	span.SetAttributes(
		attribute.Bool("task.changed", out.Changed),
		attribute.Bool("task.destructive", lastMutation(res.Ops).IsDestructive()),
	)
	return res
}

func (rn *run) failure(play Play, host inventory.Host, task Task, item any, err error, d time.Duration) TaskResult {
	return TaskResult{
		Play:     play.Name,
		Host:     host.Name,
		Task:     task.DisplayName(),
		Module:   task.Module,
		Item:     item,
		Status:   stores.TaskStatusFailed,
		Result:   map[string]any{"changed": false, "failed": true, "msg": err.Error()},
		Error:    err.Error(),
		Duration: d,
	}
}

// finish applies ignore_errors, records the result and reports whether the
// host may continue.
func (rn *run) finish(ctx context.Context, task Task, res TaskResult) bool {
	if res.Status == stores.TaskStatusFailed && task.IgnoreErrors {
		res.Status = stores.TaskStatusIgnored
	}

	ev := rn.log.Info()
	if res.Status == stores.TaskStatusFailed {
		ev = rn.log.Error().Str("error", res.Error)
	}
	ev.Str("host", res.Host).
		Str("task", res.Task).
		Str("status", string(res.Status)).
		Dur("duration", res.Duration).
		Msg("Task finished")

	rn.report.add(res)
	rn.seq++

	if rn.Metrics != nil {
		rn.Metrics.ObserveTask(res.Module, string(lastMutation(res.Ops)), string(res.Status), res.Duration)
	}

	if rn.Journal != nil {
		if err := rn.journal(ctx, res); err != nil {
			rn.log.Error().Err(err).Msg("Failed to journal task result")
		}
	}

	return res.Status != stores.TaskStatusFailed
}

func (rn *run) journal(ctx context.Context, res TaskResult) error {
	ops, err := json.Marshal(res.Ops)
	if err != nil {
		return err
	}
	if res.Ops == nil {
		ops = []byte("[]")
	}
	result, err := json.Marshal(res.Result)
	if err != nil {
		return err
	}
	rec := &stores.TaskRecord{
		ID:         uuid.NewString(),
		RunID:      rn.report.RunID,
		Seq:        rn.seq,
		Play:       res.Play,
		Host:       res.Host,
		Task:       res.Task,
		Module:     res.Module,
		Status:     res.Status,
		Changed:    res.Status == stores.TaskStatusChanged,
		Operations: string(ops),
		Result:     string(result),
		StartedAt:  time.Now().Add(-res.Duration),
		Duration:   res.Duration,
	}
	if res.Error != "" {
		msg := res.Error
		rec.Error = &msg
	}
	return rn.Journal.AppendTask(context.WithoutCancel(ctx), rec)
}

// lastMutation returns the last mutating operation, or noop.
func lastMutation(ops []engine.OperationType) engine.OperationType {
	for i := len(ops) - 1; i >= 0; i-- {
		if ops[i].IsMutating() {
			return ops[i]
		}
	}
	return engine.OperationNoop
}

// resultMap converts a module result into plain JSON values so it can be
// registered and used in later conditions and templates.
func resultMap(res *engine.Result) map[string]any {
	data, err := json.Marshal(res)
	if err != nil {
		return res.Map()
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return res.Map()
	}
	return out
}
