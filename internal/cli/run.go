package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shaiso/Orchestra/internal/domain"
	"github.com/shaiso/Orchestra/internal/engine"
	"github.com/shaiso/Orchestra/internal/orchestrator"
)

func newRunCmd(app *App) *cobra.Command {
	var (
		verbose     bool
		dryRun      bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a workflow file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)
			ctx := cmd.Context()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			out.Info(fmt.Sprintf("Loading workflow from: %s", path))

			reg, err := app.newRegistry()
			if err != nil {
				return err
			}

			wf, err := app.newParser(reg).Parse(path)
			if err != nil {
				return reportConfigError(out, err)
			}

			out.Success("Workflow validated successfully")
			out.WorkflowDetails(wf)

			if dryRun {
				out.Warn("\nDry run mode - execution plan:")
				if out.JSONMode() {
					out.JSON(wf)
					return nil
				}
				out.Println()
				out.Println(engine.GenerateDependencyGraph(wf))
				return nil
			}

			if metricsAddr == "" {
				metricsAddr = app.Config.Metrics.Addr
			}
			sinks, cleanup, err := app.sinks(ctx, metricsAddr)
			defer cleanup()
			if err != nil {
				return err
			}
			if !out.JSONMode() {
				sinks = append(sinks, NewConsoleReporter(cmd.OutOrStdout(), verbose))
			}

			eng := orchestrator.New(orchestrator.Config{
				Invoker: reg,
				Sinks:   sinks,
				Logger:  app.Logger,
			})

			summary, err := eng.Execute(ctx, wf)
			if err != nil {
				return reportConfigError(out, err)
			}

			out.Summary(summary)

			if summary.Status != domain.OverallStatusSuccess {
				return fmt.Errorf("%w: status %s", ErrWorkflowFailed, summary.Status)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show every task event")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "Validate and show the execution plan without running")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	return cmd
}

// reportConfigError печатает все дефекты ConfigurationError.
func reportConfigError(out *Output, err error) error {
	var cfgErr *engine.ConfigurationError
	if errors.As(err, &cfgErr) {
		out.ConfigurationError(cfgErr)
		return fmt.Errorf("%w: %d problem(s) in %s", ErrInvalidWorkflow, len(cfgErr.Errors), cfgErr.Source)
	}
	return err
}
