package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Handlers are the per-kind calls a reconciler delegates to. Fetch is
// required; a nil mutating handler makes the matching operation unsupported.
type Handlers struct {
	// Fetch returns the current remote object, or an empty state when it
	// does not exist.
	Fetch func(ctx context.Context) (State, error)

	// Create creates the resource from the desired state.
	Create func(ctx context.Context, desired State) (State, error)

	// Patch applies a JSON-Patch list. Returning nil keeps the locally
	// computed applied state.
	Patch func(ctx context.Context, existing State, ops []PatchOp) (State, error)

	// Update replaces the resource. changes holds only the differing
	// attributes.
	Update func(ctx context.Context, existing, desired, changes State) (State, error)

	// Delete removes the resource.
	Delete func(ctx context.Context, existing State) error
}

// StateHandler converges a reconciler towards one terminal state.
type StateHandler func(ctx context.Context, r *Reconciler) error

// Decision describes a mutating call about to be made.
type Decision struct {
	Kind      string        `json:"kind"`
	Operation OperationType `json:"operation"`
	Name      string        `json:"name,omitempty"`
	Existing  State         `json:"existing"`
	Desired   State         `json:"desired"`
	Changes   State         `json:"changes,omitempty"`
	CheckMode bool          `json:"check_mode"`
}

// Guard vets mutating calls before they are made. It returns warnings to
// attach to the result, or an error to abort the operation.
type Guard interface {
	Check(ctx context.Context, d Decision) ([]string, error)
}

// Config configures a Reconciler.
type Config struct {
	Schema       Schema
	Desired      State
	Handlers     Handlers
	UpdatePolicy UpdatePolicy
	Options      Options

	// Compared restricts diffing to these attributes. Nil compares every
	// desired attribute.
	Compared []string

	// States adds or overrides terminal-state handlers.
	States map[TerminalState]StateHandler

	Guard  Guard
	Logger zerolog.Logger
}

// Reconciler converges one remote resource towards a desired state.
// It is single-use: one instance per task invocation.
type Reconciler struct {
	schema    Schema
	desired   State
	patchable []string
	compared  []string
	handlers  Handlers
	policy    UpdatePolicy
	opts      Options
	states    map[TerminalState]StateHandler
	guard     Guard
	log       zerolog.Logger

	existing State
	present  bool
	fetched  bool
	diff     *Difference
	result   *Result
}

// New creates a reconciler. The desired state and the patchable attributes
// are fixed from here on.
func New(cfg Config) (*Reconciler, error) {
	if err := cfg.Schema.Validate(); err != nil {
		return nil, NewValidationError("invalid resource schema", err)
	}
	if cfg.Handlers.Fetch == nil {
		return nil, NewValidationError(fmt.Sprintf("%s: fetch handler is required", cfg.Schema.Kind), nil)
	}

	desired := cfg.Desired.Clone()
	if desired == nil {
		desired = State{}
	}

	r := &Reconciler{
		schema:    cfg.Schema,
		desired:   desired,
		patchable: cfg.Schema.Patchable(),
		compared:  cfg.Compared,
		handlers:  cfg.Handlers,
		policy:    cfg.UpdatePolicy,
		opts:      cfg.Options,
		guard:     cfg.Guard,
		log:       cfg.Logger.With().Str("kind", cfg.Schema.Kind).Logger(),
		result:    NewResult(cfg.Schema.Kind),
	}

	r.states = map[TerminalState]StateHandler{
		StatePresent: func(ctx context.Context, r *Reconciler) error { return r.EnsurePresent(ctx) },
		StateAbsent:  func(ctx context.Context, r *Reconciler) error { return r.EnsureAbsent(ctx) },
	}
	for state, h := range cfg.States {
		r.states[state] = h
	}

	return r, nil
}

// Kind returns the resource kind.
func (r *Reconciler) Kind() string { return r.schema.Kind }

// Desired returns the desired state.
func (r *Reconciler) Desired() State { return r.desired }

// Options returns the reconciler options.
func (r *Reconciler) Options() Options { return r.opts }

// Result returns the accumulated result.
func (r *Reconciler) Result() *Result { return r.result }

// Logger returns the reconciler's logger.
func (r *Reconciler) Logger() zerolog.Logger { return r.log }

// States returns the terminal states this reconciler accepts.
func (r *Reconciler) States() []TerminalState {
	out := make([]TerminalState, 0, len(r.states))
	for s := range r.states {
		out = append(out, s)
	}
	return out
}

// Existing returns the current remote state, fetching it on first use.
// The fetch happens at most once per reconciliation.
func (r *Reconciler) Existing(ctx context.Context) (State, error) {
	if r.fetched {
		return r.existing, nil
	}

	r.log.Debug().Msg("fetching existing state")
	obj, err := r.handlers.Fetch(ctx)
	if err != nil {
		return nil, r.wrap(OperationRead, err)
	}
	r.existing = r.schema.Project(obj)
	r.present = !obj.Empty()
	r.fetched = true
	r.result.Operations = append(r.result.Operations, OperationRead)
	return r.existing, nil
}

// Exists reports whether the resource exists remotely.
func (r *Reconciler) Exists(ctx context.Context) (bool, error) {
	if _, err := r.Existing(ctx); err != nil {
		return false, err
	}
	return r.present, nil
}

// Difference returns the comparison of desired against existing state,
// computing it once.
func (r *Reconciler) Difference(ctx context.Context) (*Difference, error) {
	if r.diff != nil {
		return r.diff, nil
	}
	existing, err := r.Existing(ctx)
	if err != nil {
		return nil, err
	}
	r.diff = Compare(existing, r.comparable(), r.patchable)
	if r.diff.IsDifferent() {
		r.log.Debug().
			Strs("differences", r.diff.Differences).
			Bool("patchable", r.diff.CanPatch()).
			Msg("resource differs")
		if r.opts.Diff {
			r.result.Diff = r.diff.Render()
		}
	}
	return r.diff, nil
}

// IsDifferent reports whether the existing state differs from the desired
// state.
func (r *Reconciler) IsDifferent(ctx context.Context) (bool, error) {
	d, err := r.Difference(ctx)
	if err != nil {
		return false, err
	}
	return d.IsDifferent(), nil
}

// Create creates the resource. In check mode it returns the current state
// without calling the tenant.
func (r *Reconciler) Create(ctx context.Context) (State, error) {
	existing, err := r.Existing(ctx)
	if err != nil {
		return nil, err
	}
	if r.handlers.Create == nil {
		return nil, NewUnsupportedError(OperationCreate, r.Kind())
	}
	if err := r.check(ctx, OperationCreate, existing, nil); err != nil {
		return nil, err
	}
	r.result.Operations = append(r.result.Operations, OperationCreate)
	if r.opts.CheckMode {
		return existing, nil
	}

	r.log.Info().Msg("creating resource")
	created, err := r.handlers.Create(ctx, r.desired.Clone())
	if err != nil {
		return nil, r.wrap(OperationCreate, err)
	}
	r.settle(created, true)
	return r.existing, nil
}

// Patch sends the JSON-Patch list of the current difference and returns the
// applied state.
func (r *Reconciler) Patch(ctx context.Context) (State, error) {
	d, err := r.Difference(ctx)
	if err != nil {
		return nil, err
	}
	if r.handlers.Patch == nil {
		return nil, NewUnsupportedError(OperationPatch, r.Kind())
	}
	if err := r.check(ctx, OperationPatch, r.existing, d.After); err != nil {
		return nil, err
	}
	r.result.Operations = append(r.result.Operations, OperationPatch)
	r.result.Patch = d.Patch
	if r.opts.CheckMode {
		return r.existing, nil
	}

	r.log.Info().Strs("attributes", d.Differences).Msg("patching resource")
	patched, err := r.handlers.Patch(ctx, r.existing, d.Patch)
	if err != nil {
		return nil, r.wrap(OperationPatch, err)
	}
	if patched == nil {
		patched = d.Applied
	}
	r.settle(patched, true)
	return r.existing, nil
}

// Update converges differences that cannot be patched, following the
// reconciler's update policy.
func (r *Reconciler) Update(ctx context.Context) (State, error) {
	return r.update(ctx)
}

func (r *Reconciler) update(ctx context.Context) (State, error) {
	d, err := r.Difference(ctx)
	if err != nil {
		return nil, err
	}

	switch r.policy {
	case UpdateReject:
		return nil, NewUnsupportedError(OperationUpdate, r.Kind()).
			WithDetail("differences", d.Differences)

	case UpdateReport:
		r.Warn(fmt.Sprintf("%s differs in %s and cannot be changed after creation",
			r.Kind(), strings.Join(d.Differences, ", ")))
		return r.existing, nil

	case UpdateRecreateIfAllowed:
		if !r.opts.AllowRecreate {
			r.Warn(fmt.Sprintf("%s differs in %s which requires recreating it; set allow_recreate to permit this",
				r.Kind(), strings.Join(d.Differences, ", ")))
			return r.existing, nil
		}
		return r.recreate(ctx)

	case UpdateRecreate:
		return r.recreate(ctx)
	}

	if r.handlers.Update == nil {
		return nil, NewUnsupportedError(OperationUpdate, r.Kind())
	}
	if err := r.check(ctx, OperationUpdate, r.existing, d.Changes); err != nil {
		return nil, err
	}
	r.result.Operations = append(r.result.Operations, OperationUpdate)
	if r.opts.CheckMode {
		return r.existing, nil
	}

	r.log.Info().Strs("attributes", d.Differences).Msg("updating resource")
	updated, err := r.handlers.Update(ctx, r.existing, r.desired.Clone(), d.Changes)
	if err != nil {
		return nil, r.wrap(OperationUpdate, err)
	}
	if updated == nil {
		updated = r.existing.Clone()
		for k, v := range d.Changes {
			updated[k] = v
		}
	}
	r.settle(updated, true)
	return r.existing, nil
}

func (r *Reconciler) recreate(ctx context.Context) (State, error) {
	if r.handlers.Create == nil || r.handlers.Delete == nil {
		return nil, NewUnsupportedError(OperationRecreate, r.Kind())
	}
	if err := r.check(ctx, OperationRecreate, r.existing, r.diff.Changes); err != nil {
		return nil, err
	}
	r.result.Operations = append(r.result.Operations, OperationRecreate)
	if r.opts.CheckMode {
		return r.existing, nil
	}

	r.log.Info().Strs("attributes", r.diff.Differences).Msg("recreating resource")
	if err := r.handlers.Delete(ctx, r.existing); err != nil {
		return nil, r.wrap(OperationDelete, err)
	}
	created, err := r.handlers.Create(ctx, r.desired.Clone())
	if err != nil {
		return nil, r.wrap(OperationCreate, err)
	}
	r.settle(created, true)
	return r.existing, nil
}

// Delete removes the resource. It is a no-op in check mode.
func (r *Reconciler) Delete(ctx context.Context) (State, error) {
	existing, err := r.Existing(ctx)
	if err != nil {
		return nil, err
	}
	if r.handlers.Delete == nil {
		return nil, NewUnsupportedError(OperationDelete, r.Kind())
	}
	if err := r.check(ctx, OperationDelete, existing, nil); err != nil {
		return nil, err
	}
	r.result.Operations = append(r.result.Operations, OperationDelete)
	if r.opts.CheckMode {
		return State{}, nil
	}

	r.log.Info().Msg("deleting resource")
	if err := r.handlers.Delete(ctx, existing); err != nil {
		return nil, r.wrap(OperationDelete, err)
	}
	r.settle(State{}, false)
	return State{}, nil
}

// EnsurePresent creates the resource when missing, otherwise patches or
// updates it when it differs.
func (r *Reconciler) EnsurePresent(ctx context.Context) error {
	exists, err := r.Exists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		created, err := r.Create(ctx)
		if err != nil {
			return err
		}
		r.result.Resource = created
		r.result.Changed = true
		return nil
	}

	d, err := r.Difference(ctx)
	if err != nil {
		return err
	}
	if !d.IsDifferent() {
		r.result.Resource = r.existing
		return nil
	}

	if d.CanPatch() {
		patched, err := r.Patch(ctx)
		if err != nil {
			return err
		}
		r.result.Resource = patched
		r.result.Changed = true
		return nil
	}

	updated, err := r.update(ctx)
	if err != nil {
		return err
	}
	r.result.Resource = updated
	r.result.Changed = true
	return nil
}

// EnsureAbsent deletes the resource when it exists.
func (r *Reconciler) EnsureAbsent(ctx context.Context) error {
	exists, err := r.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if _, err := r.Delete(ctx); err != nil {
		return err
	}
	r.result.Resource = State{}
	r.result.Changed = true
	return nil
}

// Execute converges the resource towards the named terminal state and
// returns the accumulated result. The result is returned on failure as well,
// holding whatever was recorded before the error.
func (r *Reconciler) Execute(ctx context.Context, state TerminalState) (*Result, error) {
	if state == "" {
		state = StatePresent
	}

	handler, ok := r.states[state]
	if !ok {
		return r.result, NewValidationError(fmt.Sprintf("unknown state %q for %s", state, r.Kind()), nil).
			WithCode(ErrCodeUnknownState)
	}

	r.log.Debug().Str("state", string(state)).Msg("executing")
	err := handler(ctx, r)

	if r.opts.Diff && r.result.Diff == nil {
		r.result.Diff = &DiffText{}
	}
	return r.result, err
}

// MarkChanged flags the result as changed. Used by extra state handlers.
func (r *Reconciler) MarkChanged() {
	r.result.Changed = true
}

// SetExtra records an additional output under key.
func (r *Reconciler) SetExtra(key string, value any) {
	if r.result.Extra == nil {
		r.result.Extra = make(map[string]any)
	}
	r.result.Extra[key] = value
}

// Warn records a non-fatal warning.
func (r *Reconciler) Warn(msg string) {
	r.log.Warn().Msg(msg)
	r.result.Warnings = append(r.result.Warnings, msg)
}

// Trigger runs a side-effecting call (a reload or an automation run) after
// consulting the guard. It is skipped in check mode.
func (r *Reconciler) Trigger(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if err := r.check(ctx, OperationTrigger, r.existing, nil); err != nil {
		return nil, err
	}
	r.result.Operations = append(r.result.Operations, OperationTrigger)
	r.result.Changed = true
	if r.opts.CheckMode {
		return nil, nil
	}
	out, err := fn(ctx)
	if err != nil {
		return nil, r.wrap(OperationTrigger, err)
	}
	return out, nil
}

func (r *Reconciler) comparable() State {
	if r.compared == nil {
		return r.desired
	}
	out := make(State, len(r.compared))
	for _, attr := range r.compared {
		if v, ok := r.desired[attr]; ok {
			out[attr] = v
		}
	}
	return out
}

// settle replaces the cached existing state after a successful mutation so
// that a repeated EnsurePresent sees the converged resource.
func (r *Reconciler) settle(state State, present bool) {
	r.existing = r.schema.Project(state)
	r.present = present
	r.fetched = true
	r.diff = nil
}

func (r *Reconciler) check(ctx context.Context, op OperationType, existing, changes State) error {
	if r.guard == nil {
		return nil
	}
	name := existing.GetString("name")
	if name == "" {
		name = r.desired.GetString("name")
	}
	warnings, err := r.guard.Check(ctx, Decision{
		Kind:      r.Kind(),
		Operation: op,
		Name:      name,
		Existing:  existing,
		Desired:   r.desired,
		Changes:   changes,
		CheckMode: r.opts.CheckMode,
	})
	for _, w := range warnings {
		r.Warn(w)
	}
	return err
}

func (r *Reconciler) wrap(op OperationType, err error) error {
	var ee *EngineError
	if errors.As(err, &ee) {
		return err
	}
	return NewTransportError(op, r.Kind(), err)
}
