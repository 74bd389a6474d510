package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события жизненного цикла.
//
// Значение используется как routing key при публикации в RabbitMQ.
type EventType string

const (
	// EventWorkflowStarted — выполнение началось.
	EventWorkflowStarted EventType = "workflow.started"

	// EventWorkflowCompleted — все задачи завершились успешно.
	EventWorkflowCompleted EventType = "workflow.completed"

	// EventWorkflowError — выполнение завершилось с падениями или пропусками.
	EventWorkflowError EventType = "workflow.error"

	// EventTaskStarted — агент задачи запущен.
	EventTaskStarted EventType = "task.started"

	// EventTaskSucceeded — задача завершилась успешно.
	EventTaskSucceeded EventType = "task.succeeded"

	// EventTaskFailed — задача упала.
	EventTaskFailed EventType = "task.failed"

	// EventTaskSkipped — задача пропущена.
	EventTaskSkipped EventType = "task.skipped"
)

// String возвращает строковое представление EventType.
func (t EventType) String() string {
	return string(t)
}

// IsWorkflowEvent возвращает true для событий уровня workflow.
func (t EventType) IsWorkflowEvent() bool {
	switch t {
	case EventWorkflowStarted, EventWorkflowCompleted, EventWorkflowError:
		return true
	default:
		return false
	}
}

// Event — событие жизненного цикла выполнения.
type Event struct {
	// Type — тип события.
	Type EventType `json:"type"`

	// ExecutionID — идентификатор выполнения.
	ExecutionID uuid.UUID `json:"execution_id"`

	// Workflow — имя workflow.
	Workflow string `json:"workflow"`

	// TaskID — ID задачи (только для task.*).
	TaskID string `json:"task_id,omitempty"`

	// Agent — вид агента (только для task.*).
	Agent string `json:"agent,omitempty"`

	// Output — результат задачи (только для task.succeeded).
	Output any `json:"output,omitempty"`

	// Error — ошибка задачи или причина пропуска.
	Error string `json:"error,omitempty"`

	// Duration — длительность задачи (для task.succeeded и task.failed).
	Duration time.Duration `json:"duration,omitempty"`

	// TaskCount — количество задач (только для workflow.started).
	TaskCount int `json:"task_count,omitempty"`

	// Summary — итог (только для workflow.completed и workflow.error).
	Summary *ExecutionSummary `json:"summary,omitempty"`

	// Time — время события.
	Time time.Time `json:"time"`
}
