package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

// bundleParams are shared by the modules that upload a zipped bundle.
type bundleParams struct {
	Common
	Name string `json:"name" validate:"required"`
	File string `json:"file" validate:"required"`
	Type string `json:"type,omitempty"`
}

var themeSchema = engine.Schema{
	Kind: "theme",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name"},
		{Param: "type", Name: "type"},
		{Param: "file", Name: "file"},
	},
	Fields: []string{"id", "qextFilename", "version", "author", "createdAt", "updatedAt"},
}

var extensionSchema = engine.Schema{
	Kind: "extension",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name"},
		{Param: "type", Name: "type"},
		{Param: "file", Name: "file"},
	},
	Fields: []string{"id", "qextFilename", "version", "author", "createdAt", "updatedAt"},
}

func init() {
	Register(Module{
		Name:        "theme",
		Description: "Uploads and replaces app themes.",
		Schema:      themeSchema,
		Build:       bundleBuilder(themeSchema, "theme", (*tenant.Client).Themes),
	})
	Register(Module{
		Name:        "extension",
		Description: "Uploads and replaces visualization extensions.",
		Schema:      extensionSchema,
		Build:       bundleBuilder(extensionSchema, "visualization", (*tenant.Client).Extensions),
	})
}

// bundleBuilder builds a module for a bundle collection. Drift of the uploaded
// file is detected by comparing the MD5 of the local file with the digest the
// tenant stores.
func bundleBuilder(schema engine.Schema, defaultType string, collection func(*tenant.Client) *tenant.Collection) BuildFunc {
	return func(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
		var p bundleParams
		if err := decodeParams(schema.Kind, raw, &p); err != nil {
			return nil, "", err
		}
		if p.Type == "" {
			p.Type = defaultType
		}
		desired, err := desiredState(schema, p)
		if err != nil {
			return nil, "", err
		}

		present := p.TerminalState() != engine.StateAbsent
		if present {
			if err := checkFile(p.File); err != nil {
				return nil, "", err
			}
			sum, err := fileMD5(p.File)
			if err != nil {
				return nil, "", err
			}
			desired["file"] = sum
		} else {
			delete(desired, "file")
		}

		col := collection(env.Client)
		upload := func(ctx context.Context, method, target string, desired engine.State) (engine.State, error) {
			f, err := os.Open(p.File)
			if err != nil {
				return nil, err
			}
			defer f.Close()

			data, err := json.Marshal(without(desired, "file"))
			if err != nil {
				return nil, err
			}
			obj, err := env.Client.Upload(ctx, method, target, []tenant.Part{
				{Name: "file", Filename: filepath.Base(p.File), ContentType: "application/zip", Content: f},
				{Name: "data", Content: strings.NewReader(string(data))},
			})
			if err != nil {
				return nil, err
			}
			return bundleState(obj), nil
		}

		r, err := env.reconciler(engine.Config{
			Schema:  schema,
			Desired: desired,
			Handlers: engine.Handlers{
				Fetch: func(ctx context.Context) (engine.State, error) {
					all, err := col.List(ctx, nil)
					if err != nil {
						return nil, err
					}
					return bundleState(findBy(all, "name", p.Name)), nil
				},
				Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
					return upload(ctx, http.MethodPost, col.Path(), desired)
				},
				Update: func(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
					return upload(ctx, http.MethodPatch, col.Path(existing.GetString("id")), desired)
				},
				Delete: func(ctx context.Context, existing engine.State) error {
					return col.Delete(ctx, existing.GetString("id"))
				},
			},
			UpdatePolicy: engine.UpdateReplace,
		})
		return r, p.TerminalState(), err
	}
}

// bundleState flattens the stored file descriptor to its MD5 digest.
func bundleState(obj tenant.Object) engine.State {
	if obj == nil {
		return nil
	}
	out := engine.State(obj).Clone()
	if file, ok := obj["file"].(map[string]any); ok {
		out["file"] = file["md5"]
	}
	return out
}
