package resources

import (
	"context"
	"net/url"

	"github.com/openfroyo/qlikcloud/pkg/engine"
)

type reloadTaskParams struct {
	Common
	AppID             string   `json:"app_id" validate:"required"`
	Partial           *bool    `json:"partial,omitempty"`
	TimeZone          *string  `json:"time_zone,omitempty"`
	AutoReload        *bool    `json:"auto_reload,omitempty"`
	Recurrence        []string `json:"recurrence" validate:"required,min=1"`
	EndDateTime       *string  `json:"end_date_time,omitempty"`
	StartDateTime     *string  `json:"start_date_time,omitempty"`
	AutoReloadPartial *bool    `json:"auto_reload_partial,omitempty"`
}

var reloadTaskSchema = engine.Schema{
	Kind: "reload_task",
	Attributes: []engine.Attribute{
		{Param: "app_id", Name: "appId"},
		{Param: "partial", Name: "partial"},
		{Param: "time_zone", Name: "timeZone"},
		{Param: "auto_reload", Name: "autoReload"},
		{Param: "recurrence", Name: "recurrence"},
		{Param: "end_date_time", Name: "endDateTime"},
		{Param: "start_date_time", Name: "startDateTime"},
		{Param: "auto_reload_partial", Name: "autoReloadPartial"},
	},
	Fields: []string{"id", "type", "state", "userId", "spaceId", "tenantId", "lastExecutionTime", "nextExecutionTime"},
}

func init() {
	Register(Module{
		Name:        "reload_task",
		Description: "Manages scheduled reload tasks of an app.",
		Schema:      reloadTaskSchema,
		Build:       buildReloadTask,
	})
}

func buildReloadTask(ctx context.Context, env Env, raw map[string]any) (*engine.Reconciler, engine.TerminalState, error) {
	var p reloadTaskParams
	if err := decodeParams(reloadTaskSchema.Kind, raw, &p); err != nil {
		return nil, "", err
	}
	desired, err := desiredState(reloadTaskSchema, p)
	if err != nil {
		return nil, "", err
	}

	tasks := env.Client.ReloadTasks()
	r, err := env.reconciler(engine.Config{
		Schema:  reloadTaskSchema,
		Desired: desired,
		Handlers: engine.Handlers{
			// An app has at most one scheduled reload task.
			Fetch: func(ctx context.Context) (engine.State, error) {
				found, err := tasks.Page(ctx, url.Values{"appId": {p.AppID}})
				if err != nil || len(found) == 0 {
					return nil, err
				}
				return found[0], nil
			},
			Create: func(ctx context.Context, desired engine.State) (engine.State, error) {
				return tasks.Create(ctx, desired)
			},
			Update: func(ctx context.Context, existing, desired, changes engine.State) (engine.State, error) {
				return tasks.Update(ctx, existing.GetString("id"), merged(existing, desired))
			},
			Delete: func(ctx context.Context, existing engine.State) error {
				return tasks.Delete(ctx, existing.GetString("id"))
			},
		},
		UpdatePolicy: engine.UpdateReplace,
	})
	return r, p.TerminalState(), err
}
