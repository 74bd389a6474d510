package domain

// TaskStatus — статус задачи в рамках одного выполнения.
//
// Жизненный цикл:
//
//	pending → ready → running → succeeded
//	                          ↘ failed
//	pending → skipped (упала зависимость или выполнение остановлено)
type TaskStatus string

const (
	// TaskStatusPending — задача ждёт своих зависимостей.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusReady — зависимости выполнены, задача выбрана к запуску.
	TaskStatusReady TaskStatus = "ready"

	// TaskStatusRunning — агент выполняет задачу.
	TaskStatusRunning TaskStatus = "running"

	// TaskStatusSucceeded — задача успешно завершена, output записан.
	TaskStatusSucceeded TaskStatus = "succeeded"

	// TaskStatusFailed — агент вернул ошибку или истёк таймаут.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusSkipped — задача не запускалась.
	TaskStatusSkipped TaskStatus = "skipped"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// OverallStatus — итоговый статус выполнения workflow.
type OverallStatus string

const (
	// OverallStatusSuccess — все задачи завершились успешно.
	OverallStatusSuccess OverallStatus = "success"

	// OverallStatusPartial — часть задач успешна, часть нет.
	OverallStatusPartial OverallStatus = "partial"

	// OverallStatusFailure — ни одна задача не завершилась успешно.
	OverallStatusFailure OverallStatus = "failure"
)

// String возвращает строковое представление OverallStatus.
func (s OverallStatus) String() string {
	return string(s)
}

// ComputeOverallStatus вычисляет итоговый статус по счётчикам.
//
//	success — нет ни падений, ни пропусков
//	failure — нет ни одного успеха
//	partial — всё остальное
func ComputeOverallStatus(succeeded, failed, skipped int) OverallStatus {
	switch {
	case failed == 0 && skipped == 0:
		return OverallStatusSuccess
	case succeeded == 0:
		return OverallStatusFailure
	default:
		return OverallStatusPartial
	}
}
