package resources

import (
	"context"
	"net/url"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

type genericLinkParams struct {
	Common
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description,omitempty"`
	Link        string  `json:"link" validate:"required,url"`
	OwnerID     *string `json:"owner_id,omitempty"`
	Space       string  `json:"space,omitempty"`
}

var genericLinkSchema = engine.Schema{
	Kind: "generic_link",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name"},
		{Param: "description", Name: "description"},
		{Param: "link", Name: "link"},
		{Param: "owner_id", Name: "ownerId"},
	},
	Ignore: []string{"space"},
	Fields: []string{"id", "spaceId", "tenantId", "createdAt", "updatedAt", "createdBy", "updatedBy", "thumbnailId"},
}

func init() {
	Register(Module{
		Name:        "generic_link",
		Description: "Manages generic links in the hub.",
		Schema:      genericLinkSchema,
		Build:       buildGenericLink,
	})
}

func buildGenericLink(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p genericLinkParams
	if err := decodeParams(genericLinkSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(genericLinkSchema, p)
	if err != nil {
		return nil, "", err
	}
	spaceID, err := resolveSpaceID(ctx, env.Client, p.Space)
	if err != nil {
		return nil, "", err
	}
	if spaceID != "" {
		desired["spaceId"] = spaceID
	}

	c := env.Client
	links := c.GenericLinks()
	r, err := env.reconciler(engine.Config{
		Schema:  genericLinkSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				q := url.Values{"resourceType": {"genericlink"}, "name": {p.Name}}
				if spaceID != "" {
					q.Set("spaceId", spaceID)
				}
				items, err := c.Items().Page(ctx, q)
				if err != nil {
					return nil, err
				}
				item := findBy(items, "name", p.Name)
				if item == nil {
					return nil, nil
				}
				id, _ := item["resourceId"].(string)
				link, err := links.Get(ctx, id)
				if tenant.IsNotFound(err) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
				return unwrapData(link), nil
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				created, err := links.Create(ctx, desired)
				return unwrapData(created), err
			},
			Update: func(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
				updated, err := links.Update(ctx, existing.GetString("id"), desired)
				return unwrapData(updated), err
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return links.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateReplace,
	})
	return r, p.TerminalState(), err
}

// unwrapData returns the first element of a {"data": [...]} envelope, or the
// object itself when it is not wrapped.
func unwrapData(obj tenant.Object) engine.State {
	if obj == nil {
		return nil
	}
	if data, ok := obj["data"].([]any); ok {
		if len(data) == 0 {
			return nil
		}
		if first, ok := data[0].(map[string]any); ok {
			return first
		}
	}
	return obj
}
