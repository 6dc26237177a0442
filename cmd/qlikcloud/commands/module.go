package commands

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openfroyo/qlikcloud/pkg/engine"
	"github.com/openfroyo/qlikcloud/pkg/playbook"
	"github.com/openfroyo/qlikcloud/pkg/resources"
)

func (a *app) newModuleCommand() *cobra.Command {
	var (
		params        []string
		checkMode     bool
		diff          bool
		allowRecreate bool
	)

	cmd := &cobra.Command{
		Use:   "module [NAME]",
		Short: "Run one resource module ad hoc, or list the modules",
		Long: `Run a single resource module with parameters given on the command line.

Parameters are key=value pairs; values are decoded as YAML, so lists and
booleans keep their type. tenant_uri and api_key default to the tenant
selected with --tenant or --context. The result is printed as JSON.

Without a name the registered modules are listed.`,
		Example: `  qlikcloud module space -p name=Finance -p type=shared --tenant https://example.eu.qlikcloud.com
  qlikcloud module user -p subject=auth0|42 -p 'assigned_roles=[Developer]' --context prod --check --diff`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return a.listModules(cmd)
			}
			ctx := cmd.Context()

			p, err := parseKeyValues(params)
			if err != nil {
				return err
			}
			if p["tenant_uri"] == nil || p["api_key"] == nil {
				uri, key, err := a.target(ctx)
				if err != nil {
					return err
				}
				if p["tenant_uri"] == nil {
					p["tenant_uri"] = uri
				}
				if p["api_key"] == nil {
					p["api_key"] = key
				}
			}

			guard, err := a.guard(ctx)
			if err != nil {
				return err
			}

			res, runErr := resources.Run(ctx, resources.Env{
				Connect: a.connect,
				Options: engine.Options{CheckMode: checkMode, Diff: diff, AllowRecreate: allowRecreate},
				Guard:   guard,
				Logger:  a.logger("module"),
			}, strings.TrimPrefix(args[0], playbook.ModulePrefix), p)

			result := map[string]any{"changed": false}
			if res != nil {
				result = res.Map()
			}
			if runErr != nil {
				result["failed"] = true
				result["msg"] = runErr.Error()
			}
			if err := printJSON(out, result); err != nil {
				return err
			}
			return runErr
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "module parameter as key=value or @file")
	cmd.Flags().BoolVarP(&checkMode, "check", "C", false, "report changes without making them")
	cmd.Flags().BoolVarP(&diff, "diff", "D", false, "include before and after text in the result")
	cmd.Flags().BoolVar(&allowRecreate, "allow-recreate", false, "allow delete and create when a change cannot be patched")

	return cmd
}

func (a *app) listModules(cmd *cobra.Command) error {
	names := resources.Names()
	out := cmd.OutOrStdout()

	if a.settings.JSON {
		type entry struct {
			Name        string   `json:"name"`
			Description string   `json:"description"`
			States      []string `json:"states"`
		}
		entries := make([]entry, 0, len(names))
		for _, name := range names {
			m, _ := resources.Lookup(name)
			entries = append(entries, entry{Name: name, Description: m.Description, States: moduleStates(m)})
		}
		return printJSON(out, entries)
	}

	t := newTable(out, "module", "states", "description")
	for _, name := range names {
		m, _ := resources.Lookup(name)
		t.AppendRow(table.Row{name, strings.Join(moduleStates(m), ", "), m.Description})
	}
	t.Render()
	return nil
}

func moduleStates(m resources.Module) []string {
	states := make([]string, len(m.States))
	for i, s := range m.States {
		states[i] = string(s)
	}
	return states
}
