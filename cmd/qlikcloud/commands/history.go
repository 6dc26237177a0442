package commands

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openfroyo/qlikcloud/pkg/stores"
)

func (a *app) newHistoryCommand() *cobra.Command {
	var (
		limit  int
		offset int
		prune  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "history [RUN-ID]",
		Short: "Show recorded runs, or the task results of one run",
		Long: `Show the runs recorded in the --journal database, newest first. With a run
id the task results of that run are listed. --prune deletes runs that
started longer ago than the given age.`,
		Example: `  qlikcloud history --journal runs.db
  qlikcloud history --journal runs.db 1b4e28ba-2fa1-11d2-883f-0016d3cca427
  qlikcloud history --journal runs.db --prune 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.settings.Journal == "" {
				return fmt.Errorf("--journal is required")
			}
			ctx := cmd.Context()
			journal, err := stores.Open(ctx, a.settings.Journal)
			if err != nil {
				return err
			}
			defer journal.Close()

			out := cmd.OutOrStdout()
			if prune > 0 {
				n, err := journal.DeleteRunsBefore(ctx, time.Now().Add(-prune))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "deleted %d runs\n", n)
				return err
			}

			if len(args) == 1 {
				if _, err := journal.GetRun(ctx, args[0]); err != nil {
					return err
				}
				tasks, err := journal.ListTasks(ctx, args[0])
				if err != nil {
					return err
				}
				if a.settings.JSON {
					return printJSON(out, tasks)
				}
				t := newTable(out, "#", "host", "task", "module", "status", "operations", "duration", "error")
				for _, rec := range tasks {
					errMsg := ""
					if rec.Error != nil {
						errMsg = *rec.Error
					}
					t.AppendRow(table.Row{rec.Seq, rec.Host, rec.Task, rec.Module, statusColor(string(rec.Status)),
						operationsText(rec.Operations), rec.Duration.Round(time.Millisecond), errMsg})
				}
				t.Render()
				return nil
			}

			runs, err := journal.ListRuns(ctx, limit, offset)
			if err != nil {
				return err
			}
			if a.settings.JSON {
				return printJSON(out, runs)
			}
			t := newTable(out, "run", "playbook", "status", "check", "started", "duration")
			for _, r := range runs {
				dur := ""
				if r.CompletedAt != nil {
					dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				t.AppendRow(table.Row{r.ID, r.Playbook, r.Status, r.CheckMode, r.StartedAt.Local().Format(time.RFC3339), dur})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")
	cmd.Flags().DurationVar(&prune, "prune", 0, "delete runs older than this age")

	return cmd
}

// operationsText renders the JSON array of operations stored with a task.
func operationsText(raw string) string {
	var ops []string
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		return raw
	}
	return strings.Join(ops, ",")
}
