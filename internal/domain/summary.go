package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionSummary — итог одного выполнения workflow.
//
// Возвращается движком всегда, когда граф построен успешно,
// независимо от того, сколько задач упало.
type ExecutionSummary struct {
	// ExecutionID — идентификатор выполнения.
	ExecutionID uuid.UUID `json:"execution_id"`

	// Workflow — имя выполненного workflow.
	Workflow string `json:"workflow"`

	// SuccessCount — количество задач в статусе succeeded.
	SuccessCount int `json:"success_count"`

	// FailureCount — количество задач в статусе failed.
	FailureCount int `json:"failure_count"`

	// SkippedCount — количество задач в статусе skipped.
	SkippedCount int `json:"skipped_count"`

	// Status — итоговый статус.
	Status OverallStatus `json:"status"`

	// Tasks — финальные состояния задач в порядке объявления.
	Tasks []TaskState `json:"tasks"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность выполнения.
func (s *ExecutionSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Total возвращает количество задач.
func (s *ExecutionSummary) Total() int {
	return s.SuccessCount + s.FailureCount + s.SkippedCount
}

// SuccessRate возвращает долю успешных среди запущенных задач (0..1).
// Пропущенные задачи не учитываются. Если ничего не запускалось, возвращает 0.
func (s *ExecutionSummary) SuccessRate() float64 {
	ran := s.SuccessCount + s.FailureCount
	if ran == 0 {
		return 0
	}
	return float64(s.SuccessCount) / float64(ran)
}

// Task возвращает финальное состояние задачи по ID.
func (s *ExecutionSummary) Task(id string) (TaskState, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskState{}, false
}
