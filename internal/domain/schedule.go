package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание периодического запуска workflow из файла.
//
// На каждом срабатывании файл читается заново, поэтому правки
// workflow подхватываются без перезапуска планировщика.
type Schedule struct {
	// Path — путь к файлу workflow.
	Path string `json:"path"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "0 9 * * *"     — каждый день в 9:00
	//   "*/5 * * * *"   — каждые 5 минут
	CronExpr string `json:"cron_expr"`

	// Timezone — часовой пояс для вычисления времени.
	// По умолчанию: "UTC".
	Timezone string `json:"timezone"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastExecutionID — ID последнего выполнения.
	LastExecutionID *uuid.UUID `json:"last_execution_id,omitempty"`

	// LastStatus — итоговый статус последнего выполнения.
	LastStatus OverallStatus `json:"last_status,omitempty"`

	// LastError — ошибка последнего запуска (файл не разобран, граф не построен).
	LastError string `json:"last_error,omitempty"`

	// Runs — количество запусков.
	Runs int `json:"runs"`

	// Skipped — количество срабатываний, пропущенных из-за незавершённого запуска.
	Skipped int `json:"skipped"`
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(executionID uuid.UUID, status OverallStatus, now time.Time) {
	s.LastRunAt = &now
	s.LastExecutionID = &executionID
	s.LastStatus = status
	s.LastError = ""
	s.Runs++
}

// RecordError записывает запуск, который не дошёл до выполнения задач.
func (s *Schedule) RecordError(err error, now time.Time) {
	s.LastRunAt = &now
	s.LastExecutionID = nil
	s.LastStatus = ""
	s.LastError = err.Error()
	s.Runs++
}
