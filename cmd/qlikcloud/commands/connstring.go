package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openfroyo/qlikcloud/pkg/lookup"
)

func (a *app) newConnstringCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connstring STATEMENT [PROPERTY]",
		Short: "Split a CUSTOM CONNECT statement into its properties",
		Example: `  qlikcloud connstring 'CUSTOM CONNECT TO "provider=QvOdbcConnectorPackage.exe;host=db.example.com;"'
  qlikcloud connstring 'CUSTOM CONNECT TO "provider=x;host=db.example.com;"' host`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 2 {
				v, err := lookup.ConnStringProperty(args[0], args[1])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, v)
				return err
			}

			props, err := lookup.ConnStringProperties(args[0])
			if err != nil {
				return err
			}
			if a.settings.JSON {
				return printJSON(out, props)
			}
			t := newTable(out, "property", "value")
			for _, k := range sortedKeys(props) {
				t.AppendRow(table.Row{k, props[k]})
			}
			t.Render()
			return nil
		},
	}
}
