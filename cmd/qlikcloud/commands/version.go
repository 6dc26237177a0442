package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func (a *app) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":    a.version,
				"commit":     a.commit,
				"build_date": a.buildDate,
				"go":         runtime.Version(),
				"platform":   runtime.GOOS + "/" + runtime.GOARCH,
			}
			out := cmd.OutOrStdout()
			if a.settings.JSON {
				return printJSON(out, info)
			}
			_, err := fmt.Fprintf(out, "qlikcloud %s (commit: %s, built: %s, %s %s)\n",
				a.version, a.commit, a.buildDate, info["go"], info["platform"])
			return err
		},
	}
}
