package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openfroyo/qlikcloud/pkg/inventory"
)

// hostSummary is the printable form of a host; credentials are reduced to
// the kind of authentication configured.
type hostSummary struct {
	Name      string `json:"name"`
	Group     string `json:"group,omitempty"`
	TenantURI string `json:"tenant_uri"`
	Auth      string `json:"auth"`
}

func summarize(h inventory.Host) hostSummary {
	auth := "none"
	switch {
	case hostVar(h, inventory.VarAccessToken) != "":
		auth = "api-key"
	case hostVar(h, inventory.VarClientID) != "" && hostVar(h, inventory.VarClientSecret) != "":
		auth = "oauth-client"
	}
	return hostSummary{Name: h.Name, Group: h.Group, TenantURI: h.TenantURI(), Auth: auth}
}

func (a *app) newInventoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Inspect the contexts inventory",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [PATTERN]",
		Short: "List the hosts matching a pattern of host names, groups or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := a.inventory(true)
			if err != nil {
				return err
			}
			pattern := "all"
			if len(args) == 1 {
				pattern = args[0]
			}
			hosts, err := inv.Select(pattern)
			if err != nil {
				return err
			}

			summaries := make([]hostSummary, len(hosts))
			for i, h := range hosts {
				summaries[i] = summarize(h)
			}

			out := cmd.OutOrStdout()
			if a.settings.JSON {
				return printJSON(out, summaries)
			}
			t := newTable(out, "host", "group", "tenant", "auth")
			for _, s := range summaries {
				t.AppendRow(table.Row{s.Name, s.Group, s.TenantURI, s.Auth})
			}
			t.Render()
			return nil
		},
	})

	return cmd
}
