package resources

import (
	"context"
	"fmt"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

type userParams struct {
	Common
	Subject       string   `json:"subject" validate:"required"`
	Name          *string  `json:"name,omitempty"`
	Email         *string  `json:"email,omitempty" validate:"omitempty,email"`
	Picture       *string  `json:"picture,omitempty"`
	AssignedRoles []string `json:"assigned_roles,omitempty" validate:"omitempty,dive,required"`
	Status        *string  `json:"status,omitempty" validate:"omitempty,oneof=active invited disabled deleted"`
	AllowRecreate bool     `json:"allow_recreate"`
}

var userSchema = engine.Schema{
	Kind: "user",
	Attributes: []engine.Attribute{
		{Param: "subject", Name: "subject"},
		{Param: "name", Name: "name", Patchable: true},
		{Param: "email", Name: "email"},
		{Param: "picture", Name: "picture"},
		{Param: "assigned_roles", Name: "assignedRoles", Patchable: true},
		{Param: "status", Name: "status", Patchable: true},
	},
	Ignore: []string{"allow_recreate"},
	Fields: []string{
		"id", "tenantId", "createdAt", "lastUpdatedAt",
		"inviteExpiry", "preferredZoneInfo", "preferredLocale", "links",
	},
}

func init() {
	Register(Module{
		Name:        "user",
		Description: "Manages tenant users and their assigned roles.",
		Schema:      userSchema,
		Build:       buildUser,
	})
}

func buildUser(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p userParams
	if err := decodeParams(userSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(userSchema, p)
	if err != nil {
		return nil, "", err
	}
	if p.AssignedRoles != nil {
		roles, err := resolveRoles(ctx, env.Client, p.AssignedRoles)
		if err != nil {
			return nil, "", err
		}
		desired["assignedRoles"] = roles
	}

	users := env.Client.Users()
	filter := fmt.Sprintf(`(status eq "active" or status eq "disabled" or status eq "invited") and (subject eq %q)`, p.Subject)

	r, err := env.reconciler(engine.Config{
		Schema:  userSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				found, err := users.Filter(ctx, filter)
				if err != nil || len(found) == 0 {
					return nil, err
				}
				return found[0], nil
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				return users.Create(ctx, desired)
			},
			Patch: func(ctx context.Context, existing engine.State, ops []engine.PatchOp) (engine.State, error) {
				return nil, users.Patch(ctx, existing.GetString("id"), ops)
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return users.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateRecreateIfAllowed,
		Options:      engine.Options{AllowRecreate: p.AllowRecreate},
	})
	return r, p.TerminalState(), err
}

// resolveRoles turns role names into the role references the users API
// expects.
func resolveRoles(ctx context.Context, c *tenant.Client, names []string) ([]any, error) {
	out := make([]any, 0, len(names))
	for _, name := range names {
		role, err := c.FindRole(ctx, name)
		if err != nil {
			return nil, engine.NewTransportError(engine.OperationRead, "role", err)
		}
		if role == nil {
			return nil, engine.NewNotFoundError(fmt.Sprintf("role %q not found", name)).WithResource("user")
		}
		ref := map[string]any{}
		for _, attr := range []string{"id", "name", "level", "type"} {
			if v, ok := role[attr]; ok {
				ref[attr] = v
			}
		}
		out = append(out, ref)
	}
	return out, nil
}
