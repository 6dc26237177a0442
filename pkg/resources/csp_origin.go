package resources

import (
	"context"
	"net/url"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

type cspOriginParams struct {
	Common
	Name           string  `json:"name" validate:"required"`
	Origin         *string `json:"origin,omitempty"`
	ImgSrc         *bool   `json:"img_src,omitempty"`
	FontSrc        *bool   `json:"font_src,omitempty"`
	ChildSrc       *bool   `json:"child_src,omitempty"`
	FrameSrc       *bool   `json:"frame_src,omitempty"`
	MediaSrc       *bool   `json:"media_src,omitempty"`
	StyleSrc       *bool   `json:"style_src,omitempty"`
	ObjectSrc      *bool   `json:"object_src,omitempty"`
	ScriptSrc      *bool   `json:"script_src,omitempty"`
	WorkerSrc      *bool   `json:"worker_src,omitempty"`
	ConnectSrc     *bool   `json:"connect_src,omitempty"`
	FormAction     *bool   `json:"form_action,omitempty"`
	ConnectSrcWSS  *bool   `json:"connect_src_wss,omitempty"`
	FrameAncestors *bool   `json:"frame_ancestors,omitempty"`
}

var cspOriginSchema = engine.Schema{
	Kind: "csp_origin",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name"},
		{Param: "origin", Name: "origin"},
		{Param: "img_src", Name: "imgSrc"},
		{Param: "font_src", Name: "fontSrc"},
		{Param: "child_src", Name: "childSrc"},
		{Param: "frame_src", Name: "frameSrc"},
		{Param: "media_src", Name: "mediaSrc"},
		{Param: "style_src", Name: "styleSrc"},
		{Param: "object_src", Name: "objectSrc"},
		{Param: "script_src", Name: "scriptSrc"},
		{Param: "worker_src", Name: "workerSrc"},
		{Param: "connect_src", Name: "connectSrc"},
		{Param: "form_action", Name: "formAction"},
		{Param: "connect_src_wss", Name: "connectSrcWSS"},
		{Param: "frame_ancestors", Name: "frameAncestors"},
	},
	Fields: []string{"id", "createdDate", "modifiedDate", "directives"},
}

func init() {
	Register(Module{
		Name:        "csp_origin",
		Description: "Manages content security policy origins.",
		Schema:      cspOriginSchema,
		Build:       buildCSPOrigin,
	})
}

func buildCSPOrigin(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p cspOriginParams
	if err := decodeParams(cspOriginSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(cspOriginSchema, p)
	if err != nil {
		return nil, "", err
	}

	origins := env.Client.CSPOrigins()
	r, err := env.reconciler(engine.Config{
		Schema:  cspOriginSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				found, err := origins.Page(ctx, url.Values{"name": {p.Name}})
				if err != nil {
					return nil, err
				}
				return findBy(found, "name", p.Name), nil
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				return origins.Create(ctx, desired)
			},
			Update: func(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
				return origins.Update(ctx, existing.GetString("id"), desired)
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return origins.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateReplace,
	})
	return r, p.TerminalState(), err
}
