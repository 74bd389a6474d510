package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shaiso/Orchestra/internal/domain"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "INFO", Output: &buf})

	logger = WithWorkflow(WithExecutionID(logger, "exec-1"), "feature")
	WithTaskID(logger, "plan").Info("task started")
	logger.Debug("hidden")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if rec["execution_id"] != "exec-1" || rec["workflow"] != "feature" || rec["task_id"] != "plan" {
		t.Errorf("missing attributes: %v", rec)
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(LogConfig{Level: "debug", Format: "text", Output: &buf}).Debug("hello", "k", "v")

	if !strings.Contains(buf.String(), "msg=hello") || !strings.Contains(buf.String(), "k=v") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}

func TestLoggerContext(t *testing.T) {
	logger := DiscardLogger()
	ctx := WithLogger(context.Background(), logger)

	if FromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger")
	}
}

func TestMetrics_HandleEvent(t *testing.T) {
	m := NewMetrics()
	ctx := context.Background()

	events := []domain.Event{
		{Type: domain.EventWorkflowStarted, TaskCount: 3},
		{Type: domain.EventTaskStarted, TaskID: "a", Agent: "planner"},
		{Type: domain.EventTaskStarted, TaskID: "b", Agent: "coder"},
		{Type: domain.EventTaskSucceeded, TaskID: "a", Agent: "planner", Duration: 2 * time.Second},
		{Type: domain.EventTaskFailed, TaskID: "b", Agent: "coder", Error: "boom", Duration: time.Second},
		{Type: domain.EventTaskSkipped, TaskID: "c", Agent: "tester"},
		{Type: domain.EventWorkflowError, Summary: &domain.ExecutionSummary{Status: domain.OverallStatusPartial}},
	}
	for _, ev := range events {
		m.HandleEvent(ctx, ev)
	}

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"planner succeeded", testutil.ToFloat64(m.tasksTotal.WithLabelValues("planner", "succeeded")), 1},
		{"coder failed", testutil.ToFloat64(m.tasksTotal.WithLabelValues("coder", "failed")), 1},
		{"tester skipped", testutil.ToFloat64(m.tasksTotal.WithLabelValues("tester", "skipped")), 1},
		{"partial executions", testutil.ToFloat64(m.executionsTotal.WithLabelValues("partial")), 1},
		{"running", testutil.ToFloat64(m.tasksRunning), 0},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if n := testutil.CollectAndCount(m.taskDuration); n != 2 {
		t.Errorf("expected 2 duration series, got %d", n)
	}
}

func TestMetrics_FailedBeforeStart(t *testing.T) {
	m := NewMetrics()

	// Неразрешённый параметр: task.failed без task.started
	m.HandleEvent(context.Background(), domain.Event{Type: domain.EventTaskFailed, TaskID: "x", Agent: "coder"})

	if got := testutil.ToFloat64(m.tasksRunning); got != 0 {
		t.Errorf("running gauge = %v, want 0", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.HandleEvent(context.Background(), domain.Event{
		Type:    domain.EventWorkflowCompleted,
		Summary: &domain.ExecutionSummary{Status: domain.OverallStatusSuccess},
	})

	srv := httptest.NewServer(m.NewServeMux())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), `workflow_executions_total{status="success"} 1`) {
		t.Errorf("metrics output missing executions counter:\n%s", body)
	}

	resp, err = srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}
}
