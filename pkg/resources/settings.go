package resources

import (
	"context"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

// Tenant-wide settings are singletons: they always exist and cannot be
// created or deleted, so only the present state is offered.

type groupSettingsParams struct {
	Common
	AutoCreateGroups *bool `json:"auto_create_groups" validate:"required"`
	SyncIdpGroups    *bool `json:"sync_idp_groups" validate:"required"`
}

var groupSettingsSchema = engine.Schema{
	Kind: "group_settings",
	Attributes: []engine.Attribute{
		{Param: "auto_create_groups", Name: "autoCreateGroups", Patchable: true},
		{Param: "sync_idp_groups", Name: "syncIdpGroups", Patchable: true},
	},
	Fields: []string{"tenantId", "systemGroups"},
}

type licenseSettingsParams struct {
	Common
	AutoAssignAnalyzer     *bool `json:"auto_assign_analyzer,omitempty"`
	AutoAssignProfessional *bool `json:"auto_assign_professional,omitempty"`
}

var licenseSettingsSchema = engine.Schema{
	Kind: "license_settings",
	Attributes: []engine.Attribute{
		{Param: "auto_assign_analyzer", Name: "autoAssignAnalyzer"},
		{Param: "auto_assign_professional", Name: "autoAssignProfessional"},
	},
}

func init() {
	Register(Module{
		Name:        "group_settings",
		Description: "Manages tenant group creation and IdP group sync settings.",
		Schema:      groupSettingsSchema,
		States:      []engine.TerminalState{engine.StatePresent},
		Build:       buildGroupSettings,
	})
	Register(Module{
		Name:        "license_settings",
		Description: "Manages automatic license assignment.",
		Schema:      licenseSettingsSchema,
		States:      []engine.TerminalState{engine.StatePresent},
		Build:       buildLicenseSettings,
	})
}

func buildGroupSettings(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p groupSettingsParams
	if err := decodeParams(groupSettingsSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(groupSettingsSchema, p)
	if err != nil {
		return nil, "", err
	}

	c := env.Client
	r, err := env.reconciler(engine.Config{
		Schema:  groupSettingsSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				return c.GroupSettings(ctx)
			},
			Patch: func(ctx context.Context, existing engine.State, ops []engine.PatchOp) (engine.State, error) {
				if err := c.PatchGroupSettings(ctx, ops); err != nil {
					return nil, err
				}
				return c.GroupSettings(ctx)
			},
		},
		UpdatePolicy: engine.UpdateReject,
	})
	return r, p.TerminalState(), err
}

func buildLicenseSettings(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p licenseSettingsParams
	if err := decodeParams(licenseSettingsSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(licenseSettingsSchema, p)
	if err != nil {
		return nil, "", err
	}

	c := env.Client
	r, err := env.reconciler(engine.Config{
		Schema:  licenseSettingsSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				return c.LicenseSettings(ctx)
			},
			Update: func(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
				return c.SetLicenseSettings(ctx, merged(existing, desired))
			},
		},
		UpdatePolicy: engine.UpdateReplace,
	})
	return r, p.TerminalState(), err
}
