package orchestrator

import (
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Orchestra/internal/domain"
	"github.com/shaiso/Orchestra/internal/engine"
)

// RunState — состояние одного выполнения в памяти.
//
// RunState принадлежит управляющей горутине Execute и не защищён
// мьютексом: все переходы статусов выполняются только ею.
type RunState struct {
	// ExecutionID — идентификатор выполнения.
	ExecutionID uuid.UUID

	// Workflow — выполняемый workflow.
	Workflow *domain.Workflow

	// Graph — граф зависимостей задач.
	Graph *engine.Graph

	// Context — выходы завершённых задач.
	Context *engine.ContextStore

	// StartedAt — время начала выполнения.
	StartedAt time.Time

	tasks    map[string]*domain.TaskState
	statuses map[string]domain.TaskStatus
	running  int

	// halted — новые задачи больше не запускаются.
	halted     bool
	haltReason string
}

// NewRunState создаёт состояние, в котором все задачи в статусе pending.
func NewRunState(id uuid.UUID, wf *domain.Workflow, graph *engine.Graph, now time.Time) *RunState {
	s := &RunState{
		ExecutionID: id,
		Workflow:    wf,
		Graph:       graph,
		Context:     engine.NewContextStore(),
		StartedAt:   now,
		tasks:       make(map[string]*domain.TaskState, len(wf.Tasks)),
		statuses:    make(map[string]domain.TaskStatus, len(wf.Tasks)),
	}
	for _, spec := range wf.Tasks {
		s.tasks[spec.ID] = domain.NewTaskState(spec)
		s.statuses[spec.ID] = domain.TaskStatusPending
	}
	return s
}

// ReadySteps возвращает задачи, готовые к запуску, в порядке объявления.
func (s *RunState) ReadySteps() []string {
	return s.Graph.ReadySet(s.statuses)
}

// Task возвращает состояние задачи.
func (s *RunState) Task(id string) *domain.TaskState {
	return s.tasks[id]
}

// Status возвращает текущий статус задачи.
func (s *RunState) Status(id string) domain.TaskStatus {
	return s.statuses[id]
}

// Running возвращает количество выполняющихся задач.
func (s *RunState) Running() int {
	return s.running
}

// Halted возвращает true, если новые задачи больше не запускаются.
func (s *RunState) Halted() bool {
	return s.halted
}

// Halt запрещает запуск новых задач. Повторный вызов сохраняет первую причину.
func (s *RunState) Halt(reason string) {
	if s.halted {
		return
	}
	s.halted = true
	s.haltReason = reason
}

// HaltReason возвращает причину остановки.
func (s *RunState) HaltReason() string {
	return s.haltReason
}

// MarkReady переводит задачу pending → ready.
func (s *RunState) MarkReady(id string) {
	s.tasks[id].MarkReady()
	s.statuses[id] = domain.TaskStatusReady
}

// MarkRunning переводит задачу ready → running.
func (s *RunState) MarkRunning(id string, now time.Time) {
	s.tasks[id].MarkRunning(now)
	s.statuses[id] = domain.TaskStatusRunning
	s.running++
}

// MarkSucceeded записывает выход задачи в контекст и переводит её в succeeded.
// Ошибка записи в контекст не меняет перехода и возвращается для логирования.
func (s *RunState) MarkSucceeded(id string, now time.Time, output any) error {
	if s.statuses[id] == domain.TaskStatusRunning {
		s.running--
	}
	err := s.Context.Record(id, output)
	s.tasks[id].MarkSucceeded(now, output)
	s.statuses[id] = domain.TaskStatusSucceeded
	return err
}

// MarkFailed переводит задачу в failed.
func (s *RunState) MarkFailed(id string, now time.Time, errMsg string) {
	if s.statuses[id] == domain.TaskStatusRunning {
		s.running--
	}
	s.tasks[id].MarkFailed(now, errMsg)
	s.statuses[id] = domain.TaskStatusFailed
}

// SkipDescendants помечает skipped все нефинальные задачи, зависящие от id
// (транзитивно). Возвращает пропущенные задачи в порядке объявления.
func (s *RunState) SkipDescendants(id, reason string) []string {
	var skipped []string
	for _, d := range s.Graph.Descendants(id) {
		if s.skip(d, reason) {
			skipped = append(skipped, d)
		}
	}
	return skipped
}

// SkipRemaining помечает skipped все задачи, которые так и не были запущены.
func (s *RunState) SkipRemaining(reason string) []string {
	var skipped []string
	for _, spec := range s.Workflow.Tasks {
		if s.skip(spec.ID, reason) {
			skipped = append(skipped, spec.ID)
		}
	}
	return skipped
}

// skip пропускает задачу, если она ещё не запущена.
// Выполняющиеся задачи не прерываются.
func (s *RunState) skip(id, reason string) bool {
	switch s.statuses[id] {
	case domain.TaskStatusPending, domain.TaskStatusReady:
		s.tasks[id].MarkSkipped(reason)
		s.statuses[id] = domain.TaskStatusSkipped
		return true
	default:
		return false
	}
}

// IsComplete проверяет, что все задачи в финальном статусе.
func (s *RunState) IsComplete() bool {
	for _, st := range s.statuses {
		if !st.IsTerminal() {
			return false
		}
	}
	return true
}

// Stats возвращает статистику выполнения.
func (s *RunState) Stats() RunStats {
	var stats RunStats
	stats.TotalTasks = len(s.statuses)
	for _, st := range s.statuses {
		switch st {
		case domain.TaskStatusSucceeded:
			stats.SucceededTasks++
		case domain.TaskStatusFailed:
			stats.FailedTasks++
		case domain.TaskStatusSkipped:
			stats.SkippedTasks++
		case domain.TaskStatusRunning:
			stats.RunningTasks++
		default:
			stats.PendingTasks++
		}
	}
	return stats
}

// Summary собирает итог выполнения; задачи в порядке объявления.
func (s *RunState) Summary(now time.Time) *domain.ExecutionSummary {
	stats := s.Stats()

	tasks := make([]domain.TaskState, 0, len(s.Workflow.Tasks))
	for _, spec := range s.Workflow.Tasks {
		tasks = append(tasks, *s.tasks[spec.ID])
	}

	return &domain.ExecutionSummary{
		ExecutionID:  s.ExecutionID,
		Workflow:     s.Workflow.Name,
		SuccessCount: stats.SucceededTasks,
		FailureCount: stats.FailedTasks,
		SkippedCount: stats.SkippedTasks,
		Status:       domain.ComputeOverallStatus(stats.SucceededTasks, stats.FailedTasks, stats.SkippedTasks),
		Tasks:        tasks,
		StartedAt:    s.StartedAt,
		FinishedAt:   now,
	}
}

// RunStats — статистика выполнения.
type RunStats struct {
	TotalTasks     int
	SucceededTasks int
	FailedTasks    int
	SkippedTasks   int
	RunningTasks   int
	PendingTasks   int
}
