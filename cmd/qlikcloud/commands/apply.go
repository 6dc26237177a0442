package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/qlikcloud/pkg/playbook"
	"github.com/openfroyo/qlikcloud/pkg/stores"
	"github.com/openfroyo/qlikcloud/pkg/telemetry"
)

func (a *app) newApplyCommand() *cobra.Command {
	var (
		checkMode bool
		diff      bool
		limit     string
		extraVars []string
	)

	cmd := &cobra.Command{
		Use:   "apply PLAYBOOK",
		Short: "Run a playbook against the inventory",
		Long: `Run every play of a playbook.

Each task reconciles one tenant resource: the current state is read, compared
with the task parameters, and the create, patch, update or delete needed to
converge is performed. Task connection parameters default to the tenant URI
and credentials of the inventory host.`,
		Example: `  # Converge the tenants of an inventory
  qlikcloud apply site.yml -i contexts.yml

  # Report what would change without changing anything
  qlikcloud apply site.yml -i contexts.yml --check --diff

  # Only one host, with an extra variable
  qlikcloud apply site.yml -i contexts.yml --limit prod -e owner=ops@example.com`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := telemetry.FromContext(ctx)

			extra, err := parseKeyValues(extraVars)
			if err != nil {
				return err
			}

			loader, err := playbook.NewLoader()
			if err != nil {
				return err
			}
			pb, err := loader.Load(args[0])
			if err != nil {
				return err
			}

			inv, err := a.inventory(false)
			if err != nil {
				return err
			}

			guard, err := a.guard(ctx)
			if err != nil {
				return err
			}

			runner := &playbook.Runner{
				Inventory: inv,
				Connect:   a.connect,
				Token:     a.token,
				Guard:     guard,
				Metrics:   a.tel.Metrics,
				Logger:    a.logger("runner"),
			}
			if a.settings.Journal != "" {
				journal, err := stores.Open(ctx, a.settings.Journal)
				if err != nil {
					return err
				}
				defer func() {
					if err := journal.Close(); err != nil {
						log.WithError(err).Warn("failed to close journal")
					}
				}()
				runner.Journal = journal
			}

			ctx, span := a.tel.Tracer.Start(ctx, "qlikcloud.apply", trace.WithAttributes(
				attribute.String("playbook", args[0]),
				attribute.Bool("check_mode", checkMode),
			))
			defer span.End()

			if checkMode {
				log.Info("check mode: no changes will be made")
			}
			start := time.Now()
			report, err := runner.Run(ctx, pb, playbook.Options{
				CheckMode: checkMode,
				Diff:      diff,
				Limit:     limit,
				ExtraVars: extra,
			})
			status := string(stores.RunStatusCompleted)
			if err != nil || report.Failed() {
				status = string(stores.RunStatusFailed)
			}
			a.tel.Metrics.ObserveRun(status, time.Since(start), time.Now())
			if err != nil {
				telemetry.RecordError(span, err)
				return err
			}

			log.WithRunID(report.RunID).Infof("playbook %s finished in %s", args[0], time.Since(start).Round(time.Millisecond))

			out := cmd.OutOrStdout()
			if a.settings.JSON {
				if err := printJSON(out, report); err != nil {
					return err
				}
			} else {
				printReport(out, report, diff)
			}

			if report.Failed() {
				for _, host := range sortedKeys(report.Stats) {
					if report.Stats[host].Failed > 0 {
						log.WithRunID(report.RunID).WithHost(host).Warn("host failed")
					}
				}
				err := fmt.Errorf("run %s: one or more hosts failed", report.RunID)
				telemetry.RecordError(span, err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&checkMode, "check", "C", false, "report changes without making them")
	cmd.Flags().BoolVarP(&diff, "diff", "D", false, "show before and after of changed resources")
	cmd.Flags().StringVarP(&limit, "limit", "l", "", "further limit the hosts of every play")
	cmd.Flags().StringArrayVarP(&extraVars, "extra-vars", "e", nil, "extra variables as key=value or @file")

	return cmd
}

func printReport(w io.Writer, report *playbook.Report, showDiff bool) {
	t := newTable(w, "host", "task", "module", "status", "operations", "duration")
	for _, res := range report.Results {
		task := res.Task
		if res.Item != nil {
			task = fmt.Sprintf("%s (item=%v)", task, res.Item)
		}
		ops := ""
		for i, op := range res.Ops {
			if i > 0 {
				ops += ","
			}
			ops += string(op)
		}
		t.AppendRow(table.Row{res.Host, task, res.Module, statusColor(string(res.Status)), ops, res.Duration.Round(time.Millisecond)})
	}
	t.Render()

	for _, res := range report.Results {
		if res.Error != "" {
			fmt.Fprintf(w, "%s: %s [%s]: %s\n", statusColor(string(res.Status)), res.Host, res.Task, res.Error)
		}
		if !showDiff {
			continue
		}
		if d, ok := res.Result["diff"].(map[string]any); ok {
			fmt.Fprintf(w, "--- %s [%s] before\n%v\n+++ %s [%s] after\n%v\n", res.Host, res.Task, d["before"], res.Host, res.Task, d["after"])
		}
	}

	recap := newTable(w, "host", "ok", "changed", "failed", "skipped", "ignored")
	for _, host := range sortedKeys(report.Stats) {
		s := report.Stats[host]
		recap.AppendRow(table.Row{host, s.OK, s.Changed, s.Failed, s.Skipped, s.Ignored})
	}
	recap.Render()
}
