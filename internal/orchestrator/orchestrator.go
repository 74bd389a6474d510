package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Orchestra/internal/domain"
	"github.com/shaiso/Orchestra/internal/engine"
	"github.com/shaiso/Orchestra/internal/worker"
)

// Invoker — вызов агента по виду. Реализуется agents.Registry.
type Invoker = worker.Invoker

// Engine выполняет workflow.
//
// Engine — центральный компонент системы, который:
//   - Строит граф зависимостей
//   - Запускает готовые задачи параллельно через worker.Worker
//   - Записывает выходы в ContextStore и интерполирует параметры
//   - Применяет политику отказа (stop/continue)
//   - Собирает ExecutionSummary и рассылает события
//
// Один Engine выполняет не более одного workflow одновременно.
type Engine struct {
	worker *worker.Worker
	sink   EventSink
	logger *slog.Logger
	now    func() time.Time

	busy atomic.Bool
}

// Config — конфигурация Engine.
type Config struct {
	// Invoker — реестр агентов.
	Invoker Invoker

	// Sinks — получатели событий (опционально).
	Sinks []EventSink

	// Logger (опционально; если nil — slog.Default()).
	Logger *slog.Logger

	// Now — источник времени (опционально, для тестов).
	Now func() time.Time
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		worker: worker.New(worker.Config{
			Invoker: cfg.Invoker,
			Logger:  logger,
			Now:     now,
		}),
		sink:   MultiSink(cfg.Sinks),
		logger: logger,
		now:    now,
	}
}

// Execute выполняет workflow и возвращает итог.
//
// Если граф не строится, возвращается *engine.ConfigurationError,
// ни одна задача не запускается и события не отправляются.
// Иначе Execute всегда возвращает итог: ошибки задач отражаются
// в их состояниях, а не в error. Отмена ctx действует как политика
// stop: новые задачи не запускаются, выполняющиеся получают отмену.
func (e *Engine) Execute(ctx context.Context, wf *domain.Workflow) (*domain.ExecutionSummary, error) {
	if wf == nil {
		return nil, ErrNilWorkflow
	}

	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrEngineBusy
	}
	defer e.busy.Store(false)

	graph, err := engine.BuildGraph(wf.Tasks)
	if err != nil {
		return nil, engine.NewConfigurationError(wf.Name, err)
	}

	state := NewRunState(uuid.New(), wf, graph, e.now())
	logger := e.logger.With(
		"execution_id", state.ExecutionID,
		"workflow", wf.Name,
	)

	logger.Info("workflow started",
		"tasks", len(wf.Tasks),
		"on_failure", wf.Settings.OnFailure,
	)
	e.emit(ctx, domain.Event{
		Type:      domain.EventWorkflowStarted,
		TaskCount: len(wf.Tasks),
	}, state)

	r := &run{
		engine:      e,
		state:       state,
		logger:      logger,
		completions: make(chan worker.Result, len(wf.Tasks)),
	}
	r.loop(ctx)

	summary := state.Summary(e.now())

	evType := domain.EventWorkflowCompleted
	if summary.Status != domain.OverallStatusSuccess {
		evType = domain.EventWorkflowError
	}

	logger.Info("workflow finished",
		"status", summary.Status,
		"succeeded", summary.SuccessCount,
		"failed", summary.FailureCount,
		"skipped", summary.SkippedCount,
		"duration", summary.Duration(),
	)
	ev := domain.Event{Type: evType, Summary: summary}
	if evType == domain.EventWorkflowError {
		ev.Error = failureMessage(summary)
	}
	e.emit(ctx, ev, state)

	return summary, nil
}

// emit дополняет событие полями выполнения и рассылает его.
func (e *Engine) emit(ctx context.Context, ev domain.Event, state *RunState) {
	ev.ExecutionID = state.ExecutionID
	ev.Workflow = state.Workflow.Name
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	e.sink.HandleEvent(context.WithoutCancel(ctx), ev)
}

// run — одно выполнение. Все поля меняет только горутина loop.
type run struct {
	engine      *Engine
	state       *RunState
	logger      *slog.Logger
	completions chan worker.Result
}

// loop — управляющий цикл: запуск готовых задач, ожидание
// первого завершения, применение результата.
func (r *run) loop(ctx context.Context) {
	done := ctx.Done()

	for {
		if ctx.Err() != nil {
			r.cancel(ctx)
			done = nil
		}

		if !r.state.Halted() {
			r.dispatchReady(ctx)
		}

		if r.state.Running() == 0 {
			break
		}

		select {
		case res := <-r.completions:
			r.handleResult(ctx, res)
		case <-done:
			r.cancel(ctx)
			done = nil
		}
	}

	// Оставшиеся задачи не могут быть запущены: либо выполнение
	// остановлено, либо их зависимости не выполнены.
	reason := r.state.HaltReason()
	if reason == "" {
		reason = "upstream dependency did not succeed"
	}
	for _, id := range r.state.SkipRemaining(reason) {
		r.emitSkipped(ctx, id)
	}
}

// cancel останавливает запуск новых задач после отмены ctx.
func (r *run) cancel(ctx context.Context) {
	if r.state.Halted() {
		return
	}
	r.logger.Warn("execution cancelled", "error", ctx.Err())
	r.state.Halt(fmt.Sprintf("%v: %v", ErrExecutionHalted, ctx.Err()))
}

// dispatchReady запускает все готовые задачи в порядке объявления.
func (r *run) dispatchReady(ctx context.Context) {
	for _, id := range r.state.ReadySteps() {
		if r.state.Halted() {
			return
		}
		r.dispatch(ctx, id)
	}
}

// dispatch переводит задачу в running и запускает агента в отдельной горутине.
// Ошибка интерполяции параметров — отказ задачи без вызова агента.
// Токены разрешаются только по outputs транзитивных зависимостей задачи.
func (r *run) dispatch(ctx context.Context, id string) {
	spec, _ := r.state.Workflow.Task(id)
	r.state.MarkReady(id)

	scope := r.state.Context.Restrict(r.state.Graph.Ancestors(id))
	params, err := scope.InterpolateParameters(spec.Parameters, id)
	if err != nil {
		r.fail(ctx, id, r.engine.now(), err.Error())
		return
	}

	r.state.MarkRunning(id, r.engine.now())
	r.logger.Info("task started", "task_id", id, "agent", spec.Agent)
	r.engine.emit(ctx, domain.Event{
		Type:   domain.EventTaskStarted,
		TaskID: id,
		Agent:  spec.Agent,
	}, r.state)

	job := worker.Job{
		TaskID:     id,
		Agent:      spec.Agent,
		Parameters: params,
		Timeout:    r.state.Workflow.TimeoutFor(spec),
	}
	go func() {
		r.completions <- r.engine.worker.Run(ctx, job)
	}()
}

// handleResult применяет результат задачи к состоянию.
func (r *run) handleResult(ctx context.Context, res worker.Result) {
	task := r.state.Task(res.TaskID)
	if task == nil || r.state.Status(res.TaskID) != domain.TaskStatusRunning {
		r.logger.Error("unexpected completion", "task_id", res.TaskID)
		return
	}

	if res.Err != nil {
		r.fail(ctx, res.TaskID, res.FinishedAt, res.Err.Error())
		return
	}

	if err := r.state.MarkSucceeded(res.TaskID, res.FinishedAt, res.Output); err != nil {
		r.logger.Error("failed to record task output", "task_id", res.TaskID, "error", err)
	}

	r.logger.Info("task succeeded",
		"task_id", res.TaskID,
		"agent", task.Agent,
		"duration", task.Duration(),
	)
	r.engine.emit(ctx, domain.Event{
		Type:     domain.EventTaskSucceeded,
		TaskID:   res.TaskID,
		Agent:    task.Agent,
		Output:   res.Output,
		Duration: task.Duration(),
	}, r.state)
}

// fail помечает задачу failed, рассылает событие и применяет политику отказа.
func (r *run) fail(ctx context.Context, id string, at time.Time, errMsg string) {
	r.state.MarkFailed(id, at, errMsg)
	task := r.state.Task(id)

	r.logger.Warn("task failed",
		"task_id", id,
		"agent", task.Agent,
		"error", errMsg,
	)
	r.engine.emit(ctx, domain.Event{
		Type:     domain.EventTaskFailed,
		TaskID:   id,
		Agent:    task.Agent,
		Error:    errMsg,
		Duration: task.Duration(),
	}, r.state)

	for _, d := range r.state.SkipDescendants(id, fmt.Sprintf("dependency %s failed", id)) {
		r.emitSkipped(ctx, d)
	}

	if r.state.Workflow.Settings.OnFailure != domain.FailurePolicyContinue {
		r.state.Halt(fmt.Sprintf("%v: task %s failed", ErrExecutionHalted, id))
	}
}

func (r *run) emitSkipped(ctx context.Context, id string) {
	task := r.state.Task(id)
	r.logger.Info("task skipped", "task_id", id, "reason", task.Error)
	r.engine.emit(ctx, domain.Event{
		Type:   domain.EventTaskSkipped,
		TaskID: id,
		Agent:  task.Agent,
		Error:  task.Error,
	}, r.state)
}

// failureMessage описывает неуспешное выполнение для события workflow.error.
func failureMessage(s *domain.ExecutionSummary) string {
	var failed []string
	for _, t := range s.Tasks {
		if t.Status == domain.TaskStatusFailed {
			failed = append(failed, t.ID)
		}
	}
	if len(failed) == 0 {
		return fmt.Sprintf("%d task(s) skipped", s.SkippedCount)
	}
	return fmt.Sprintf("%d task(s) failed: %v, %d skipped", len(failed), failed, s.SkippedCount)
}
