package resources

import (
	"context"
	"net/url"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

type identityProviderParams struct {
	Common
	Description       string         `json:"description" validate:"required"`
	TenantIDs         []string       `json:"tenant_ids,omitempty"`
	Protocol          string         `json:"protocol" validate:"required,oneof=jwtAuth OIDC qsefw-local-bearer-token"`
	Provider          string         `json:"provider" validate:"required"`
	Interactive       *bool          `json:"interactive,omitempty"`
	Active            *bool          `json:"active,omitempty"`
	ClockToleranceSec *int           `json:"clock_tolerance_sec,omitempty" validate:"omitempty,min=0"`
	Options           map[string]any `json:"options,omitempty"`
	Meta              map[string]any `json:"meta,omitempty"`
}

var identityProviderSchema = engine.Schema{
	Kind: "identity_provider",
	Attributes: []engine.Attribute{
		{Param: "description", Name: "description", Patchable: true},
		{Param: "tenant_ids", Name: "tenantIds"},
		{Param: "protocol", Name: "protocol"},
		{Param: "provider", Name: "provider"},
		{Param: "interactive", Name: "interactive"},
		{Param: "active", Name: "active", Patchable: true},
		{Param: "clock_tolerance_sec", Name: "clockToleranceSec", Patchable: true},
		{Param: "options", Name: "options", Patchable: true},
		{Param: "meta", Name: "meta", Patchable: true},
	},
	Fields: []string{"id", "createdAt", "lastUpdatedAt", "pendingKid"},
}

func init() {
	Register(Module{
		Name:        "identity_provider",
		Description: "Manages JWT and OIDC identity providers.",
		Schema:      identityProviderSchema,
		Build:       buildIdentityProvider,
	})
}

func buildIdentityProvider(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p identityProviderParams
	if err := decodeParams(identityProviderSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(identityProviderSchema, p)
	if err != nil {
		return nil, "", err
	}

	idps := env.Client.IdentityProviders()
	r, err := env.reconciler(engine.Config{
		Schema:  identityProviderSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			// The description is the only human-facing identifier.
			Fetch: func(ctx context.Context) (engine.State, error) {
				all, err := idps.List(ctx, url.Values{"limit": {"100"}})
				if err != nil {
					return nil, err
				}
				return findBy(all, "description", p.Description), nil
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				return idps.Create(ctx, desired)
			},
			Patch: func(ctx context.Context, existing engine.State, ops []engine.PatchOp) (engine.State, error) {
				return nil, idps.Patch(ctx, existing.GetString("id"), ops)
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return idps.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateRecreate,
	})
	return r, p.TerminalState(), err
}
