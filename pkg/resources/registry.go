package resources

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

// ConnectFunc creates a tenant client for a task's connection parameters.
type ConnectFunc func(tenantURI, apiKey string) (*tenant.Client, error)

// Env is what a module needs to build a reconciler.
type Env struct {
	// Client is the tenant client. Run fills it from Connect when nil.
	Client  *tenant.Client
	Connect ConnectFunc

	Options engine.Options
	Guard   engine.Guard
	Logger  zerolog.Logger
}

func (e Env) reconciler(cfg engine.Config) (*engine.Reconciler, error) {
	allowRecreate := cfg.Options.AllowRecreate || e.Options.AllowRecreate
	cfg.Options = e.Options
	cfg.Options.AllowRecreate = allowRecreate
	cfg.Guard = e.Guard
	cfg.Logger = e.Logger
	return engine.New(cfg)
}

// BuildFunc turns raw task parameters into a reconciler and the terminal
// state it should converge to.
type BuildFunc func(ctx context.Context, env Env, params map[string]any) (*engine.Reconciler, engine.TerminalState, error)

// Module describes one resource module.
type Module struct {
	Name        string
	Description string
	Schema      engine.Schema
	States      []engine.TerminalState
	Build       BuildFunc
}

var (
	mu      sync.RWMutex
	modules = map[string]Module{}
)

// Register adds a module. It panics on a duplicate name or an invalid
// schema.
func Register(m Module) {
	mu.Lock()
	defer mu.Unlock()

	if m.Name == "" || m.Build == nil {
		panic("resources: module name and build func are required")
	}
	if _, dup := modules[m.Name]; dup {
		panic(fmt.Sprintf("resources: module %s registered twice", m.Name))
	}
	if err := m.Schema.Validate(); err != nil {
		panic(fmt.Sprintf("resources: module %s: %v", m.Name, err))
	}
	if len(m.States) == 0 {
		m.States = []engine.TerminalState{engine.StatePresent, engine.StateAbsent}
	}
	modules[m.Name] = m
}

// Lookup returns a registered module.
func Lookup(name string) (Module, bool) {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := modules[name]
	return m, ok
}

// Names returns the registered module names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(modules))
	for name := range modules {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SupportsState reports whether the module accepts the terminal state.
func (m Module) SupportsState(state engine.TerminalState) bool {
	for _, s := range m.States {
		if s == state {
			return true
		}
	}
	return false
}

// Run builds and executes one module invocation.
func Run(ctx context.Context, env Env, name string, params map[string]any) (*engine.Result, error) {
	m, ok := Lookup(name)
	if !ok {
		return nil, engine.NewValidationError(fmt.Sprintf("unknown module %q", name), nil)
	}

	common, err := DecodeCommon(params)
	if err != nil {
		return engine.NewResult(m.Schema.Kind), err
	}
	if !m.SupportsState(common.TerminalState()) {
		return engine.NewResult(m.Schema.Kind), engine.NewValidationError(
			fmt.Sprintf("module %s does not support state %q", name, common.State), nil).
			WithCode(engine.ErrCodeUnknownState)
	}

	if env.Client == nil {
		if env.Connect == nil {
			return engine.NewResult(m.Schema.Kind), engine.NewValidationError("no tenant connection configured", nil)
		}
		client, err := env.Connect(common.TenantURI, common.APIKey)
		if err != nil {
			return engine.NewResult(m.Schema.Kind), engine.NewAuthError("failed to connect to tenant", err)
		}
		env.Client = client
	}
	env.Logger = env.Logger.With().Str("module", name).Logger()

	r, state, err := m.Build(ctx, env, params)
	if err != nil {
		return engine.NewResult(m.Schema.Kind), err
	}
	res, err := r.Execute(ctx, state)
	if tenant.IsUnauthorized(err) {
		return res, engine.NewAuthError(fmt.Sprintf("credentials rejected by %s", env.Client.Host()), err)
	}
	return res, err
}
