package resources

import (
	"context"
	"net/url"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

type dataConnectionParams struct {
	Common
	DataSourceID         string         `json:"data_source_id" validate:"required"`
	ConnectionName       string         `json:"connection_name" validate:"required"`
	Space                string         `json:"space,omitempty"`
	ConnectionProperties map[string]any `json:"connection_properties" validate:"required"`
}

var dataConnectionSchema = engine.Schema{
	Kind: "data_connection",
	Attributes: []engine.Attribute{
		{Param: "data_source_id", Name: "dataSourceId"},
		{Param: "connection_name", Name: "qName"},
		{Param: "connection_properties", Name: "connectionProperties"},
	},
	Ignore: []string{"space", "name"},
	Fields: []string{"id", "qID", "qType", "qConnectStatement", "space", "spaceId", "owner", "created", "updated"},
}

func init() {
	Register(Module{
		Name:        "data_connection",
		Description: "Creates and removes data connections.",
		Schema:      dataConnectionSchema,
		Build:       buildDataConnection,
	})
}

func buildDataConnection(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	// name is accepted as an alias of connection_name.
	if name, ok := raw["name"]; ok {
		raw = without(raw, "name")
		if _, set := raw["connection_name"]; !set {
			raw["connection_name"] = name
		}
	}

	var p dataConnectionParams
	if err := decodeParams(dataConnectionSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(dataConnectionSchema, p)
	if err != nil {
		return nil, "", err
	}
	spaceID, err := resolveSpaceID(ctx, env.Client, p.Space)
	if err != nil {
		return nil, "", err
	}
	desired["spaceId"] = spaceID

	c := env.Client
	connections := c.DataConnections()
	r, err := env.reconciler(engine.Config{
		Schema:  dataConnectionSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch: func(ctx context.Context) (engine.State, error) {
				q := url.Values{"personal": {"true"}}
				if spaceID != "" {
					q = url.Values{"spaceId": {spaceID}}
				}
				all, err := connections.List(ctx, q)
				if err != nil {
					return nil, err
				}
				return findBy(all, "qName", p.ConnectionName), nil
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				return c.CreateDataConnection(ctx, desired)
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return connections.Delete(ctx, existing.GetString("id"))
			},
		},
		// Connection properties hold credentials the tenant never returns,
		// so only the name takes part in the comparison.
		Compared:     []string{"qName"},
		UpdatePolicy: engine.UpdateReport,
	})
	return r, p.TerminalState(), err
}
