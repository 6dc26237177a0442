package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openfroyo/qlikcloud/pkg/playbook"
)

type validationReport struct {
	File   string                     `json:"file"`
	Valid  bool                       `json:"valid"`
	Plays  int                        `json:"plays,omitempty"`
	Tasks  int                        `json:"tasks,omitempty"`
	Errors []playbook.ValidationError `json:"errors,omitempty"`
}

func (a *app) newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate PLAYBOOK...",
		Short: "Validate playbooks without running them",
		Long: `Validate playbooks against the playbook schema and the registered modules.

Problems are reported with their file position. The command fails when any
playbook is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, err := playbook.NewLoader()
			if err != nil {
				return err
			}

			reports := make([]validationReport, 0, len(args))
			invalid := 0
			for _, path := range args {
				r := validationReport{File: path}
				pb, err := loader.Load(path)
				var verrs playbook.ValidationErrors
				switch {
				case err == nil:
					r.Valid = true
					r.Plays = len(pb.Plays)
					for _, p := range pb.Plays {
						r.Tasks += len(p.Tasks)
					}
				case errors.As(err, &verrs):
					r.Errors = verrs
				default:
					r.Errors = []playbook.ValidationError{{File: path, Message: err.Error(), Severity: "error"}}
				}
				if !r.Valid {
					invalid++
				}
				reports = append(reports, r)
			}

			out := cmd.OutOrStdout()
			if a.settings.JSON {
				if err := printJSON(out, reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					if r.Valid {
						fmt.Fprintf(out, "%s: ok (%d plays, %d tasks)\n", r.File, r.Plays, r.Tasks)
						continue
					}
					for _, e := range r.Errors {
						fmt.Fprintln(out, e.Error())
					}
				}
			}

			if invalid > 0 {
				return fmt.Errorf("%d of %d playbooks are invalid", invalid, len(args))
			}
			return nil
		},
	}
}
