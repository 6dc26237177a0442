package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/tenant"
)

type dataFileParams struct {
	Common
	Name              string  `json:"name" validate:"required"`
	File              string  `json:"file" validate:"required"`
	Space             string  `json:"space,omitempty"`
	OwnerID           *string `json:"owner_id,omitempty"`
	AppID             *string `json:"app_id,omitempty"`
	SourceID          *string `json:"source_id,omitempty"`
	TempContentFileID *string `json:"temp_content_file_id,omitempty"`
}

var dataFileSchema = engine.Schema{
	Kind: "data_file",
	Attributes: []engine.Attribute{
		{Param: "name", Name: "name"},
		{Param: "owner_id", Name: "ownerId"},
		{Param: "app_id", Name: "appId"},
		{Param: "source_id", Name: "sourceId"},
		{Param: "temp_content_file_id", Name: "tempContentFileId"},
	},
	Ignore: []string{"file", "space"},
	Fields: []string{"id", "spaceId", "connectionId", "size", "contentUpdatedDate", "createdDate", "modifiedDate"},
}

func init() {
	Register(Module{
		Name:        "data_file",
		Description: "Uploads data files into a space or the personal space.",
		Schema:      dataFileSchema,
		Build:       buildDataFile,
	})
}

func buildDataFile(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p dataFileParams
	if err := decodeParams(dataFileSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(dataFileSchema, p)
	if err != nil {
		return nil, "", err
	}
	if p.TerminalState() != engine.StateAbsent {
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
	d := &dataFileHandlers{client: c, params: p, spaceID: spaceID}
	r, err := env.reconciler(engine.Config{
		Schema:  dataFileSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			Fetch:  d.fetch,
			Create: d.create,
			Update: d.update,
			Delete: func(ctx context.Context, existing engine.State) error {
				return c.DataFiles().Delete(ctx, existing.GetString("id"))
			},
		},
		// The source references are only used when uploading.
		Compared:     []string{"name", "ownerId", "spaceId"},
		UpdatePolicy: engine.UpdateReplace,
	})
	return r, p.TerminalState(), err
}

type dataFileHandlers struct {
	client  *tenant.Client
	params  dataFileParams
	spaceID string
	connID  string
}

// connection returns the DataFiles connection of the target space.
func (d *dataFileHandlers) connection(ctx context.Context) (string, error) {
	if d.connID != "" {
		return d.connID, nil
	}
	conns, err := d.client.DataFileConnections(ctx, d.spaceID)
	if err != nil {
		return "", err
	}
	if len(conns) == 0 {
		return "", engine.NewNotFoundError("data files connection not found").WithResource("data_file")
	}
	d.connID, _ = conns[0]["id"].(string)
	return d.connID, nil
}

func (d *dataFileHandlers) fetch(ctx context.Context) (engine.State, error) {
	connID, err := d.connection(ctx)
	if err != nil {
		return nil, err
	}
	found, err := d.client.DataFiles().Page(ctx, url.Values{
		"connectionId": {connID},
		"name":         {d.params.Name},
	})
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return found[0], nil
}

func (d *dataFileHandlers) create(ctx context.Context, desired engine.State) (engine.State, error) {
	connID, err := d.connection(ctx)
	if err != nil {
		return nil, err
	}

	meta := without(desired, "ownerId", "spaceId")
	meta["connectionId"] = connID
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(d.params.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	created, err := d.client.Upload(ctx, http.MethodPost, d.client.DataFiles().Path(), []tenant.Part{
		{Name: "File", Filename: filepath.Base(d.params.File), Content: f},
		{Name: "Json", Content: strings.NewReader(string(data))},
	})
	if err != nil {
		return nil, err
	}

	if d.params.OwnerID != nil {
		id, _ := created["id"].(string)
		if err := d.client.ChangeDataFileOwner(ctx, id, *d.params.OwnerID); err != nil {
			return nil, fmt.Errorf("failed to change data file owner: %w", err)
		}
		created["ownerId"] = *d.params.OwnerID
	}
	return created, nil
}

func (d *dataFileHandlers) update(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
	id := existing.GetString("id")
	for _, attr := range changes.Keys() {
		switch attr {
		case "ownerId":
			if err := d.client.ChangeDataFileOwner(ctx, id, changes.GetString(attr)); err != nil {
				return nil, err
			}
		case "spaceId":
			if err := d.client.ChangeDataFileSpace(ctx, id, d.spaceID); err != nil {
				return nil, err
			}
		default:
			return nil, engine.NewUnsupportedError(engine.OperationUpdate, "data_file").
				WithDetail("attribute", attr)
		}
	}
	return nil, nil
}
