package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/shaiso/Orchestra/internal/domain"
	"github.com/shaiso/Orchestra/internal/mq"
)

// ErrNoBroker — events.amqp_url не задан.
var ErrNoBroker = errors.New("events.amqp_url is not configured")

func newEventsCmd(app *App) *cobra.Command {
	var (
		keys  []string
		queue string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail execution events from RabbitMQ",
		Long: `Tail execution events from RabbitMQ until interrupted.

Routing keys match event types, so --keys accepts topic patterns:
  workflow events --keys "task.failed" --keys "workflow.*"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := app.output(cmd)
			ctx := cmd.Context()

			url := app.Config.Events.AMQPURL
			if url == "" {
				return ErrNoBroker
			}

			conn, err := mq.Dial(ctx, mq.ConnectionConfig{URL: url, Logger: app.Logger})
			if err != nil {
				return err
			}
			defer conn.Close()

			consumer := mq.NewConsumer(conn, mq.ConsumerConfig{
				Binding: mq.Binding{
					Exchange: app.Config.Events.Exchange,
					Queue:    queue,
					Keys:     keys,
				},
				Handler: func(_ context.Context, ev domain.Event) error {
					printEvent(out, ev)
					return nil
				},
				Logger: app.Logger,
			})

			out.Info(fmt.Sprintf("Listening for events on %s (Ctrl+C to stop)", app.Config.Events.Exchange))

			err = consumer.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&keys, "keys", "k", nil, `Routing key patterns (default "#")`)
	cmd.Flags().StringVar(&queue, "queue", "", "Durable queue name (default: temporary queue)")

	return cmd
}

// printEvent выводит событие одной строкой или JSON.
func printEvent(out *Output, ev domain.Event) {
	if out.JSONMode() {
		out.JSON(ev)
		return
	}

	ts := ev.Time.Local().Format(time.TimeOnly)
	exec := ev.ExecutionID.String()[:8]

	switch ev.Type {
	case domain.EventWorkflowStarted:
		out.Printf("%s %s %s %s tasks=%d\n", ts, exec, color.BlueString(ev.Type.String()), ev.Workflow, ev.TaskCount)
	case domain.EventWorkflowCompleted, domain.EventWorkflowError:
		status := ""
		if ev.Summary != nil {
			status = colorOverall(ev.Summary.Status)
		}
		out.Printf("%s %s %s %s %s\n", ts, exec, color.BlueString(ev.Type.String()), ev.Workflow, status)
	case domain.EventTaskFailed, domain.EventTaskSkipped:
		out.Printf("%s %s %s %s/%s: %s\n", ts, exec, color.YellowString(ev.Type.String()), ev.Workflow, ev.TaskID, ev.Error)
	default:
		out.Printf("%s %s %s %s/%s [%s]\n", ts, exec, ev.Type, ev.Workflow, ev.TaskID, ev.Agent)
	}
}
