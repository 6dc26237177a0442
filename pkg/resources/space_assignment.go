package resources

import (
	"context"
	"net/url"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

type spaceAssignmentParams struct {
	Common
	Space      string   `json:"space" validate:"required"`
	Type       string   `json:"type" validate:"required,oneof=user group"`
	AssigneeID string   `json:"assignee_id" validate:"required"`
	Roles      []string `json:"roles" validate:"required,dive,oneof=consumer contributor dataconsumer facilitator operator producer publisher basicconsumer codeveloper"`
}

var spaceAssignmentSchema = engine.Schema{
	Kind: "space_assignment",
	Attributes: []engine.Attribute{
		{Param: "type", Name: "type"},
		{Param: "assignee_id", Name: "assigneeId"},
		{Param: "roles", Name: "roles"},
	},
	Ignore: []string{"space"},
	Fields: []string{"id", "spaceId", "createdAt", "createdBy", "updatedAt"},
}

func init() {
	Register(Module{
		Name:        "space_assignment",
		Description: "Manages user and group role assignments on a space.",
		Schema:      spaceAssignmentSchema,
		Build:       buildSpaceAssignment,
	})
}

func buildSpaceAssignment(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p spaceAssignmentParams
	if err := decodeParams(spaceAssignmentSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(spaceAssignmentSchema, p)
	if err != nil {
		return nil, "", err
	}

	spaceID, err := resolveSpaceID(ctx, env.Client, p.Space)
	if err != nil {
		return nil, "", err
	}
	assignments := env.Client.SpaceAssignments(spaceID)

	r, err := env.reconciler(engine.Config{
		Schema:  spaceAssignmentSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				all, err := assignments.Page(ctx, url.Values{"limit": {"100"}})
				if err != nil {
					return nil, err
				}
				return findAssignment(all, p.Type, p.AssigneeID), nil
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				desired["spaceId"] = spaceID
				return assignments.Create(ctx, desired)
			},
			Update: func(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
				return assignments.Update(ctx, existing.GetString("id"), desired)
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return assignments.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateReplace,
	})
	return r, p.TerminalState(), err
}

func findAssignment(all []tenant.Object, typ, assigneeID string) engine.State {
	for _, a := range all {
		if a["type"] == typ && a["assigneeId"] == assigneeID {
			return a
		}
	}
	return nil
}
