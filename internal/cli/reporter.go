package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/shaiso/Orchestra/internal/domain"
)

// ConsoleReporter печатает ход выполнения. Реализует orchestrator.EventSink.
//
// В обычном режиме выводятся только начало и итог workflow,
// в verbose — каждое событие задачи.
type ConsoleReporter struct {
	w       io.Writer
	verbose bool

	mu sync.Mutex
}

// NewConsoleReporter создаёт ConsoleReporter.
func NewConsoleReporter(w io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{w: w, verbose: verbose}
}

// HandleEvent печатает событие.
func (r *ConsoleReporter) HandleEvent(_ context.Context, ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case domain.EventWorkflowStarted:
		fmt.Fprintln(r.w, color.BlueString("\nExecuting workflow: %s (%d tasks)", ev.Workflow, ev.TaskCount))
	case domain.EventWorkflowCompleted:
		fmt.Fprintln(r.w, color.GreenString("\nWorkflow completed successfully"))
	case domain.EventWorkflowError:
		fmt.Fprintln(r.w, color.RedString("\nWorkflow failed: %s", ev.Error))
	}

	if !r.verbose || ev.Type.IsWorkflowEvent() {
		return
	}

	ts := ev.Time.Format(time.TimeOnly)
	switch ev.Type {
	case domain.EventTaskStarted:
		fmt.Fprintf(r.w, "%s  %s %s [%s]\n", ts, color.CyanString("start"), ev.TaskID, ev.Agent)
	case domain.EventTaskSucceeded:
		fmt.Fprintf(r.w, "%s  %s %s (%s)\n", ts, color.GreenString("done "), ev.TaskID, ev.Duration.Round(time.Millisecond))
	case domain.EventTaskFailed:
		fmt.Fprintf(r.w, "%s  %s %s: %s\n", ts, color.RedString("fail "), ev.TaskID, ev.Error)
	case domain.EventTaskSkipped:
		fmt.Fprintf(r.w, "%s  %s %s: %s\n", ts, color.YellowString("skip "), ev.TaskID, ev.Error)
	}
}
