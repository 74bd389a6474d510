package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shaiso/Orchestra/internal/orchestrator"
	"github.com/shaiso/Orchestra/internal/scheduler"
)

func newScheduleCmd(app *App) *cobra.Command {
	var (
		cronExpr    string
		timezone    string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "schedule FILE",
		Short: "Run a workflow on a cron schedule until interrupted",
		Long: `Run a workflow on a cron schedule until interrupted.

The file is parsed again on every tick, so edits are picked up without a
restart. A tick that fires while the previous execution is still running
is skipped.

Examples:
  workflow schedule nightly.yaml --cron "0 3 * * *"
  workflow schedule checks.yaml --cron "@every 10m" --metrics-addr :9090`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)
			ctx := cmd.Context()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			reg, err := app.newRegistry()
			if err != nil {
				return err
			}
			parser := app.newParser(reg)

			// Проверяем файл сразу, чтобы не ждать первого срабатывания
			if _, err := parser.Parse(path); err != nil {
				return reportConfigError(out, err)
			}

			if metricsAddr == "" {
				metricsAddr = app.Config.Metrics.Addr
			}
			sinks, cleanup, err := app.sinks(ctx, metricsAddr)
			defer cleanup()
			if err != nil {
				return err
			}

			eng := orchestrator.New(orchestrator.Config{
				Invoker: reg,
				Sinks:   sinks,
				Logger:  app.Logger,
			})

			sched, err := scheduler.New(scheduler.Config{
				Path:     path,
				CronExpr: cronExpr,
				Timezone: timezone,
				Loader:   parser,
				Runner:   eng,
				Logger:   app.Logger,
			})
			if err != nil {
				return err
			}

			if next := sched.Schedule().NextDueAt; next != nil {
				out.Info(fmt.Sprintf("Scheduled %s (%s), next run at %s",
					filepath.Base(path), cronExpr, next.Local().Format("2006-01-02 15:04:05")))
			}

			if err := sched.Run(ctx); err != nil {
				return err
			}

			final := sched.Schedule()
			if out.JSONMode() {
				out.JSON(final)
				return nil
			}
			out.Printf("\nRuns: %d, skipped ticks: %d\n", final.Runs, final.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", `Cron expression ("*/5 * * * *", "@hourly")`)
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Timezone for the cron expression")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve /metrics and /healthz on this address")
	cmd.MarkFlagRequired("cron")

	return cmd
}
