package resources

import (
	"context"
	"net/url"
	"os"
	"path/filepath"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

// StateReloaded converges an app and then starts a reload of it.
const StateReloaded engine.TerminalState = "reloaded"

type appParams struct {
	Common
	ID          string  `json:"id,omitempty"`
	Name        string  `json:"name" validate:"required"`
	Space       string  `json:"space,omitempty"`
	Description *string `json:"description,omitempty"`
	OwnerID     *string `json:"owner_id,omitempty"`
	OriginAppID string  `json:"origin_app_id,omitempty"`
	File        string  `json:"file,omitempty"`
}

var appSchema = engine.Schema{
	Kind: "app",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name"},
		{Param: "description", Name: "description"},
		{Param: "owner_id", Name: "ownerId"},
	},
	Ignore: []string{"id", "space", "origin_app_id", "file"},
	Fields: []string{
		"id", "spaceId", "owner", "publishTime", "published",
		"createdDate", "modifiedDate", "lastReloadTime", "usage",
	},
}

func init() {
	Register(Module{
		Name:        "app",
		Description: "Manages apps: creation, import, publishing, ownership and reloads.",
		Schema:      appSchema,
		States:      []engine.TerminalState{engine.StatePresent, engine.StateAbsent, StateReloaded},
		Build:       buildApp,
	})
}

func buildApp(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p appParams
	if err := decodeParams(appSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(appSchema, p)
	if err != nil {
		return nil, "", err
	}
	if p.File != "" && p.TerminalState() != engine.StateAbsent {
		if err := checkFile(p.File); err != nil {
			return nil, "", err
		}
	}
	spaceID, err := resolveSpaceID(ctx, env.Client, p.Space)
	if err != nil {
		return nil, "", err
	}
	if spaceID != "" {
		desired["spaceId"] = spaceID
	}

	c := env.Client
	apps := c.Apps()
	a := &appHandlers{client: c, params: p, spaceID: spaceID}

	r, err := env.reconciler(engine.Config{
		Schema:  appSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch:  a.fetch,
			Create: a.create,
			Update: a.update,
			Delete: func(ctx context.Context, existing engine.State) error {
				return apps.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateReplace,
		States: map[engine.TerminalState]engine.StateHandler{
			StateReloaded: func(ctx context.Context, r *engine.Reconciler) error {
				if err := r.EnsurePresent(ctx); err != nil {
					return err
				}
				existing, err := r.Existing(ctx)
				if err != nil {
					return err
				}
				reload, err := r.Trigger(ctx, func(ctx context.Context) (any, error) {
					return c.CreateReload(ctx, existing.GetString("id"))
				})
				if err != nil {
					return err
				}
				if reload != nil {
					r.SetExtra("reload", reload)
				}
				return nil
			},
		},
	})
	return r, p.TerminalState(), err
}

type appHandlers struct {
	client  *tenant.Client
	params  appParams
	spaceID string
}

// attributesOf unwraps the attributes object apps are returned in.
func attributesOf(obj tenant.Object) engine.State {
	if attrs, ok := obj["attributes"].(map[string]any); ok {
		return attrs
	}
	return nil
}

func (a *appHandlers) fetch(ctx context.Context) (engine.State, error) {
	id := a.params.ID
	if id == "" {
		q := url.Values{"resourceType": {"app"}, "name": {a.params.Name}}
		if a.spaceID != "" {
			q.Set("spaceId", a.spaceID)
		}
		items, err := a.client.Items().Page(ctx, q)
		if err != nil {
			return nil, err
		}
		item := findBy(items, "name", a.params.Name)
		if item == nil {
			return nil, nil
		}
		id, _ = item["resourceId"].(string)
	}

	app, err := a.client.Apps().Get(ctx, id)
	if tenant.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return attributesOf(app), nil
}

func (a *appHandlers) create(ctx context.Context, desired engine.State) (engine.State, error) {
	var (
		app tenant.Object
		err error
	)
	switch {
	case a.params.File != "":
		app, err = a.importFile(ctx)
	case a.params.OriginAppID != "":
		app, err = a.client.PublishApp(ctx, a.params.OriginAppID, a.spaceID)
	default:
		app, err = a.client.Apps().Create(ctx, map[string]any{"attributes": without(desired, "ownerId")})
	}
	if err != nil {
		return nil, err
	}

	id := attributesOf(app).GetString("id")
	if a.params.OwnerID != nil {
		if app, err = a.client.SetAppOwner(ctx, id, *a.params.OwnerID); err != nil {
			return nil, err
		}
	}
	return attributesOf(app), nil
}

func (a *appHandlers) importFile(ctx context.Context) (tenant.Object, error) {
	f, err := os.Open(a.params.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fileID, err := a.client.UploadTempContent(ctx, filepath.Base(a.params.File), f)
	if err != nil {
		return nil, err
	}
	app, err := a.client.ImportApp(ctx, fileID, a.params.Name, a.spaceID)
	if err != nil {
		return nil, err
	}
	if a.params.Description != nil {
		return a.client.SetAppAttributes(ctx, attributesOf(app).GetString("id"), map[string]any{
			"description": *a.params.Description,
		})
	}
	return app, nil
}

// update issues one call per changed attribute family. The engine merges the
// changes into the existing state afterwards.
func (a *appHandlers) update(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
	id := existing.GetString("id")

	attrs := map[string]any{}
	for _, k := range []string{"name", "description"} {
		if v, ok := changes[k]; ok {
			attrs[k] = v
		}
	}
	if len(attrs) > 0 {
		if _, err := a.client.SetAppAttributes(ctx, id, attrs); err != nil {
			return nil, err
		}
	}
	if owner, ok := changes["ownerId"].(string); ok {
		if _, err := a.client.SetAppOwner(ctx, id, owner); err != nil {
			return nil, err
		}
	}
	if _, ok := changes["spaceId"]; ok {
		if _, err := a.client.SetAppSpace(ctx, id, a.spaceID); err != nil {
			return nil, err
		}
	}
	return nil, nil
}
