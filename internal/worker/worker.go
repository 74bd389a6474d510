package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"
)

// Invoker — вызов агента по виду.
//
// Реализуется agents.Registry.
type Invoker interface {
	Invoke(ctx context.Context, kind, taskID string, params map[string]any) (any, error)
}

// Job — одна задача для выполнения.
type Job struct {
	// TaskID — идентификатор задачи в workflow.
	TaskID string

	// Agent — вид агента.
	Agent string

	// Parameters — уже интерполированные параметры.
	Parameters map[string]any

	// Timeout — ограничение времени выполнения; 0 — без ограничения.
	Timeout time.Duration
}

// Result — результат выполнения Job.
type Result struct {
	TaskID     string
	Output     any
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration возвращает длительность выполнения.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Worker выполняет отдельные задачи.
//
// Worker не хранит состояние между вызовами Run и может вызываться
// из нескольких горутин одновременно.
type Worker struct {
	invoker Invoker
	logger  *slog.Logger
	now     func() time.Time
}

// Config — конфигурация Worker.
type Config struct {
	// Invoker — реестр агентов.
	Invoker Invoker

	// Logger (опционально; если nil — slog.Default()).
	Logger *slog.Logger

	// Now — источник времени (опционально, для тестов).
	Now func() time.Time
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Worker{
		invoker: cfg.Invoker,
		logger:  logger,
		now:     now,
	}
}

// Run выполняет задачу и возвращает результат.
//
// Run возвращается, как только агент завершился или истёк таймаут,
// в зависимости от того, что произошло раньше. Агент, не реагирующий
// на отмену контекста, продолжает работать в фоне; его результат
// отбрасывается. Паника агента превращается в ErrExecutionFailed.
func (w *Worker) Run(ctx context.Context, job Job) Result {
	res := Result{TaskID: job.TaskID, StartedAt: w.now()}

	if w.invoker == nil {
		res.Err = ErrNoInvoker
		res.FinishedAt = w.now()
		return res
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if job.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, job.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error("agent panicked",
					"task_id", job.TaskID,
					"agent", job.Agent,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				done <- outcome{err: fmt.Errorf("%w: agent panicked: %v", ErrExecutionFailed, r)}
			}
		}()

		output, err := w.invoker.Invoke(runCtx, job.Agent, job.TaskID, job.Parameters)
		done <- outcome{output: output, err: err}
	}()

	select {
	case out := <-done:
		res.Output = out.output
		res.Err = w.classify(ctx, runCtx, job, out.err)
	case <-runCtx.Done():
		res.Err = w.classify(ctx, runCtx, job, runCtx.Err())
	}

	res.FinishedAt = w.now()
	if res.Err != nil {
		res.Output = nil
	}
	return res
}

// classify приводит ошибку агента к ошибкам воркера.
func (w *Worker) classify(parent, runCtx context.Context, job Job, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case parent.Err() != nil:
		return fmt.Errorf("%w: %v", ErrExecutionCancelled, parent.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: task %s exceeded %s", ErrExecutionTimeout, job.TaskID, job.Timeout)
	default:
		return err
	}
}
