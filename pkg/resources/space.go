package resources

import (
	"context"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

type spaceParams struct {
	Common
	Name          string  `json:"name" validate:"required"`
	Type          string  `json:"type" validate:"required,oneof=shared managed data"`
	Description   *string `json:"description,omitempty"`
	OwnerID       *string `json:"owner_id,omitempty"`
	AllowRecreate bool    `json:"allow_recreate"`
}

var spaceSchema = engine.Schema{
	Kind: "space",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name", Patchable: true},
		{Param: "type", Name: "type"},
		{Param: "description", Name: "description", Patchable: true},
		{Param: "owner_id", Name: "ownerId", Patchable: true},
	},
	Ignore: []string{"allow_recreate"},
	Fields: []string{"id", "tenantId", "createdAt", "createdBy", "updatedAt"},
}

func init() {
	Register(Module{
		Name:        "space",
		Description: "Manages shared, managed and data spaces.",
		Schema:      spaceSchema,
		Build:       buildSpace,
	})
}

func buildSpace(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p spaceParams
	if err := decodeParams(spaceSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(spaceSchema, p)
	if err != nil {
		return nil, "", err
	}

	spaces := env.Client.Spaces()
	r, err := env.reconciler(engine.Config{
		Schema:  spaceSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				return env.Client.FindSpace(ctx, p.Name)
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				return spaces.Create(ctx, desired)
			},
			Patch: func(ctx context.Context, existing engine.State, ops []engine.PatchOp) (engine.State, error) {
				return nil, spaces.Patch(ctx, existing.GetString("id"), ops)
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return spaces.Delete(ctx, existing.GetString("id"))
			},
		},
		// A type change cannot be patched; the space has to be recreated.
		UpdatePolicy: engine.UpdateRecreateIfAllowed,
		Options:      engine.Options{AllowRecreate: p.AllowRecreate},
	})
	return r, p.TerminalState(), err
}
