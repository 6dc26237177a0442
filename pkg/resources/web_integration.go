package resources

import (
	"context"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

type webIntegrationParams struct {
	Common
	Name         string   `json:"name" validate:"required"`
	ValidOrigins []string `json:"valid_origins,omitempty" validate:"omitempty,dive,url"`
}

var webIntegrationSchema = engine.Schema{
	Kind: "web_integration",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name"},
		{Param: "valid_origins", Name: "validOrigins", Patchable: true},
	},
	Fields: []string{"id", "tenantId", "created", "createdBy", "lastUpdated"},
}

func init() {
	Register(Module{
		Name:        "web_integration",
		Description: "Manages web integrations and their allowed origins.",
		Schema:      webIntegrationSchema,
		Build:       buildWebIntegration,
	})
}

func buildWebIntegration(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p webIntegrationParams
	if err := decodeParams(webIntegrationSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(webIntegrationSchema, p)
	if err != nil {
		return nil, "", err
	}

	integrations := env.Client.WebIntegrations()
	r, err := env.reconciler(engine.Config{
		Schema:  webIntegrationSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				all, err := integrations.List(ctx, nil)
				if err != nil {
					return nil, err
				}
				return findBy(all, "name", p.Name), nil
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				return integrations.Create(ctx, desired)
			},
			Patch: func(ctx context.Context, existing engine.State, ops []engine.PatchOp) (engine.State, error) {
				return nil, integrations.Patch(ctx, existing.GetString("id"), ops)
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return integrations.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateReject,
	})
	return r, p.TerminalState(), err
}
