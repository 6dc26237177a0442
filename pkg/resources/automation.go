package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

// StateTriggered converges an automation and then starts a run of it.
const StateTriggered engine.TerminalState = "triggered"

type automationParams struct {
	Common
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	Workspace   any     `json:"workspace,omitempty"`
}

var automationSchema = engine.Schema{
	Kind: "automation",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name"},
		{Param: "description", Name: "description"},
		{Param: "workspace", Name: "workspace"},
	},
	Ignore: []string{"id"},
	Fields: []string{"id", "ownerId", "state", "runMode", "createdAt", "updatedAt", "lastRun"},
}

func init() {
	Register(Module{
		Name:        "automation",
		Description: "Manages automations and starts automation runs.",
		Schema:      automationSchema,
		States:      []engine.TerminalState{engine.StatePresent, engine.StateAbsent, StateTriggered},
		Build:       buildAutomation,
	})
}

func buildAutomation(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p automationParams
	if err := decodeParams(automationSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	// The workspace may be passed as an exported JSON document.
	if s, ok := p.Workspace.(string); ok && s != "" {
		var ws any
		if err := json.Unmarshal([]byte(s), &ws); err != nil {
			return nil, "", engine.NewValidationError("workspace is not valid JSON", err).WithResource("automation")
		}
		p.Workspace = ws
	}
	desired, err := desiredState(automationSchema, p)
	if err != nil {
		return nil, "", err
	}

	c := env.Client
	automations := c.Automations()
	r, err := env.reconciler(engine.Config{
		Schema:  automationSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				id := p.ID
				if id == "" {
					found, err := automations.Page(ctx, url.Values{"filter": {fmt.Sprintf("name eq %q", p.Name)}})
					if err != nil {
						return nil, err
					}
					if len(found) == 0 {
						return nil, nil
					}
					id, _ = found[0]["id"].(string)
				}
				return getOrEmpty(ctx, automations, id)
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				return automations.Create(ctx, desired)
			},
			Update: func(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
				return automations.Update(ctx, existing.GetString("id"), merged(existing, desired))
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return automations.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateReplace,
		States: map[engine.TerminalState]engine.StateHandler{
			StateTriggered: func(ctx context.Context, r *engine.Reconciler) error {
				if err := r.EnsurePresent(ctx); err != nil {
					return err
				}
				existing, err := r.Existing(ctx)
				if err != nil {
					return err
				}
				run, err := r.Trigger(ctx, func(ctx context.Context) (any, error) {
					return c.CreateAutomationRun(ctx, existing.GetString("id"))
				})
				if err != nil {
					return err
				}
				if run != nil {
					r.SetExtra("run", run)
				}
				return nil
			},
		},
	})
	return r, p.TerminalState(), err
}
