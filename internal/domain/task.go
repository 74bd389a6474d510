package domain

import "time"

// TaskState — состояние задачи в рамках одного выполнения.
//
// Создаётся движком для каждой задачи workflow в статусе pending
// и изменяется только управляющей горутиной движка.
type TaskState struct {
	// ID — ID задачи (соответствует TaskSpec.ID).
	ID string `json:"id"`

	// Agent — вид агента.
	Agent string `json:"agent"`

	// Status — текущий статус задачи.
	Status TaskStatus `json:"status"`

	// Output — результат агента (только для succeeded).
	Output any `json:"output,omitempty"`

	// Error — текст ошибки для failed или причина пропуска для skipped.
	Error string `json:"error,omitempty"`

	// StartedAt — время запуска агента.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewTaskState создаёт состояние задачи в статусе pending.
func NewTaskState(spec TaskSpec) *TaskState {
	return &TaskState{
		ID:     spec.ID,
		Agent:  spec.Agent,
		Status: TaskStatusPending,
	}
}

// Duration возвращает продолжительность выполнения.
func (t *TaskState) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если задача в финальном статусе.
func (t *TaskState) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkReady переводит задачу в статус ready.
func (t *TaskState) MarkReady() {
	t.Status = TaskStatusReady
}

// MarkRunning переводит задачу в статус running.
func (t *TaskState) MarkRunning(now time.Time) {
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkSucceeded переводит задачу в статус succeeded с результатом.
func (t *TaskState) MarkSucceeded(now time.Time, output any) {
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
	t.Output = output
}

// MarkFailed переводит задачу в статус failed с ошибкой.
func (t *TaskState) MarkFailed(now time.Time, err string) {
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// MarkSkipped переводит задачу в статус skipped с причиной.
func (t *TaskState) MarkSkipped(reason string) {
	t.Status = TaskStatusSkipped
	t.Error = reason
}
