package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/shaiso/Orchestra/internal/domain"
	"github.com/shaiso/Orchestra/internal/engine"
)

// Output управляет форматированием вывода CLI.
type Output struct {
	jsonMode bool
	w        io.Writer // stdout для данных
	errW     io.Writer // stderr для сообщений
}

// NewOutput создаёт Output. Если jsonMode=true, данные выводятся в JSON.
func NewOutput(w, errW io.Writer, jsonMode bool) *Output {
	return &Output{
		jsonMode: jsonMode,
		w:        w,
		errW:     errW,
	}
}

// JSONMode возвращает true, если включён вывод в JSON.
func (o *Output) JSONMode() bool {
	return o.jsonMode
}

// Print выводит данные: таблицу или JSON в зависимости от режима.
func (o *Output) Print(headers []string, rows [][]string, jsonData any) {
	if o.jsonMode {
		o.JSON(jsonData)
		return
	}
	o.Table(headers, rows)
}

// Table выводит данные в виде таблицы через tabwriter.
func (o *Output) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(o.w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	dashes := make([]string, len(headers))
	for i, h := range headers {
		dashes[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	tw.Flush()
}

// JSON выводит данные в формате JSON с отступами.
func (o *Output) JSON(v any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// Println выводит строку данных (игнорируется в JSON режиме).
func (o *Output) Println(a ...any) {
	if o.jsonMode {
		return
	}
	fmt.Fprintln(o.w, a...)
}

// Printf выводит форматированные данные (игнорируется в JSON режиме).
func (o *Output) Printf(format string, a ...any) {
	if o.jsonMode {
		return
	}
	fmt.Fprintf(o.w, format, a...)
}

// Info выводит информационное сообщение в stderr.
func (o *Output) Info(msg string) {
	fmt.Fprintln(o.errW, color.BlueString(msg))
}

// Success выводит сообщение об успехе в stderr.
func (o *Output) Success(msg string) {
	fmt.Fprintln(o.errW, color.GreenString(msg))
}

// Warn выводит предупреждение в stderr.
func (o *Output) Warn(msg string) {
	fmt.Fprintln(o.errW, color.YellowString(msg))
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	fmt.Fprintln(o.errW, color.RedString("Error: "+msg))
}

// ConfigurationError выводит все дефекты workflow.
func (o *Output) ConfigurationError(err *engine.ConfigurationError) {
	if o.jsonMode {
		o.JSON(map[string]any{
			"valid":  false,
			"source": err.Source,
			"errors": err.Messages(),
		})
		return
	}
	fmt.Fprintln(o.errW, color.RedString("Validation failed: %s", err.Source))
	for _, msg := range err.Messages() {
		fmt.Fprintf(o.errW, "  - %s\n", msg)
	}
}

// WorkflowDetails выводит основные сведения о workflow.
func (o *Output) WorkflowDetails(wf *domain.Workflow) {
	o.Printf("  Name: %s\n", wf.Name)
	o.Printf("  Version: %s\n", wf.Version)
	if wf.Description != "" {
		o.Printf("  Description: %s\n", wf.Description)
	}
	o.Printf("  Tasks: %d\n", len(wf.Tasks))
	o.Printf("  Timeout: %ds\n", wf.Settings.Timeout)
	o.Printf("  On Failure: %s\n", wf.Settings.OnFailure)
}

// TaskList выводит задачи workflow с зависимостями.
func (o *Output) TaskList(wf *domain.Workflow) {
	o.Println("\nTasks:")
	for _, t := range wf.Tasks {
		o.Printf("  - %s (%s)\n", t.ID, t.Agent)
		if len(t.Dependencies) > 0 {
			o.Printf("    Dependencies: %s\n", strings.Join(t.Dependencies, ", "))
		}
	}
}

// Summary выводит итог выполнения.
func (o *Output) Summary(s *domain.ExecutionSummary) {
	if o.jsonMode {
		o.JSON(s)
		return
	}

	o.Println()
	headers := []string{"TASK", "AGENT", "STATUS", "DURATION", "ERROR"}
	rows := make([][]string, len(s.Tasks))
	for i, t := range s.Tasks {
		rows[i] = []string{t.ID, t.Agent, colorStatus(t.Status), formatDuration(t), t.Error}
	}
	o.Table(headers, rows)

	o.Printf("\nSummary:\n")
	o.Printf("  Success rate: %d/%d tasks\n", s.SuccessCount, s.SuccessCount+s.FailureCount)
	if s.SkippedCount > 0 {
		o.Printf("  Skipped: %d\n", s.SkippedCount)
	}
	o.Printf("  Duration: %s\n", s.Duration().Round(time.Millisecond))
	o.Printf("  Status: %s\n", colorOverall(s.Status))
}

func formatDuration(t domain.TaskState) string {
	d := t.Duration()
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

// colorStatus раскрашивает статус задачи.
func colorStatus(s domain.TaskStatus) string {
	switch s {
	case domain.TaskStatusSucceeded:
		return color.GreenString(s.String())
	case domain.TaskStatusFailed:
		return color.RedString(s.String())
	case domain.TaskStatusSkipped:
		return color.YellowString(s.String())
	default:
		return s.String()
	}
}

// colorOverall раскрашивает итоговый статус.
func colorOverall(s domain.OverallStatus) string {
	switch s {
	case domain.OverallStatusSuccess:
		return color.GreenString(s.String())
	case domain.OverallStatusFailure:
		return color.RedString(s.String())
	default:
		return color.YellowString(s.String())
	}
}

func colorInvalid() string {
	return color.RedString("(invalid)")
}
