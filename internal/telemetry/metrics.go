package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/Orchestra/internal/domain"
)

const namespace = "workflow"

// Metrics — Prometheus метрики выполнения workflow.
//
// Metrics реализует orchestrator.EventSink: счётчики обновляются
// по событиям жизненного цикла. Каждый экземпляр имеет собственный
// реестр, поэтому несколько экземпляров не конфликтуют.
type Metrics struct {
	registry *prometheus.Registry

	tasksTotal      *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	executionsTotal *prometheus.CounterVec
	tasksRunning    prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		tasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_total",
				Help:      "Total number of finished tasks by agent and status",
			},
			[]string{"agent", "status"}, // status: succeeded, failed, skipped
		),

		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Histogram of task execution duration in seconds",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"agent"},
		),

		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of workflow executions by overall status",
			},
			[]string{"status"}, // status: success, partial, failure
		),

		tasksRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tasks_running",
				Help:      "Number of currently running tasks",
			},
		),
	}

	m.registry.MustRegister(
		m.tasksTotal,
		m.taskDuration,
		m.executionsTotal,
		m.tasksRunning,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// HandleEvent обновляет метрики по событию.
func (m *Metrics) HandleEvent(_ context.Context, ev domain.Event) {
	switch ev.Type {
	case domain.EventTaskStarted:
		m.tasksRunning.Inc()

	case domain.EventTaskSucceeded:
		m.tasksRunning.Dec()
		m.tasksTotal.WithLabelValues(ev.Agent, string(domain.TaskStatusSucceeded)).Inc()
		m.taskDuration.WithLabelValues(ev.Agent).Observe(ev.Duration.Seconds())

	case domain.EventTaskFailed:
		// Задача с неразрешённым параметром падает, не стартовав.
		if ev.Duration > 0 {
			m.tasksRunning.Dec()
			m.taskDuration.WithLabelValues(ev.Agent).Observe(ev.Duration.Seconds())
		}
		m.tasksTotal.WithLabelValues(ev.Agent, string(domain.TaskStatusFailed)).Inc()

	case domain.EventTaskSkipped:
		m.tasksTotal.WithLabelValues(ev.Agent, string(domain.TaskStatusSkipped)).Inc()

	case domain.EventWorkflowCompleted, domain.EventWorkflowError:
		if ev.Summary != nil {
			m.executionsTotal.WithLabelValues(string(ev.Summary.Status)).Inc()
		}
	}
}

// Registry возвращает реестр метрик.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP handler для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NewServeMux создаёт HTTP mux: /healthz + /metrics.
func (m *Metrics) NewServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", m.Handler())
	return mux
}
