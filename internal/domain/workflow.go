package domain

import (
	"math"
	"time"
)

// Значения по умолчанию для settings.
const (
	// DefaultTimeoutSec — таймаут выполнения одной задачи по умолчанию (секунды).
	DefaultTimeoutSec = 300

	// DefaultOnFailure — политика при падении задачи по умолчанию.
	DefaultOnFailure = FailurePolicyStop
)

// FailurePolicy — реакция движка на падение задачи.
type FailurePolicy string

const (
	// FailurePolicyStop — пропустить потомков и прекратить запуск новых задач.
	// Уже выполняющиеся задачи дорабатывают, их результаты записываются.
	FailurePolicyStop FailurePolicy = "stop"

	// FailurePolicyContinue — пропустить только транзитивных потомков упавшей задачи.
	FailurePolicyContinue FailurePolicy = "continue"
)

// IsValid возвращает true для известной политики.
func (p FailurePolicy) IsValid() bool {
	return p == FailurePolicyStop || p == FailurePolicyContinue
}

// Workflow — декларативное описание рабочего процесса.
//
// Workflow — это "программа" для движка: набор задач, каждая из которых
// привязана к виду агента, с явными зависимостями между задачами.
// Порядок Tasks (порядок объявления) значим: он определяет порядок
// запуска готовых задач и порядок в отчётах.
type Workflow struct {
	// Version — версия формата описания.
	Version string `json:"version" yaml:"version"`

	// Name — имя workflow.
	Name string `json:"name" yaml:"name"`

	// Description — описание назначения workflow.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Tasks — задачи в порядке объявления.
	Tasks []TaskSpec `json:"tasks" yaml:"tasks"`

	// Settings — настройки выполнения.
	Settings Settings `json:"settings" yaml:"settings"`
}

// Task возвращает задачу по ID.
func (w *Workflow) Task(id string) (TaskSpec, bool) {
	for _, t := range w.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskSpec{}, false
}

// TimeoutFor возвращает таймаут для задачи с учётом переопределения.
func (w *Workflow) TimeoutFor(t TaskSpec) time.Duration {
	if t.Timeout > 0 {
		return secondsToDuration(t.Timeout)
	}
	return w.Settings.TaskTimeout()
}

// Settings — настройки выполнения workflow.
type Settings struct {
	// Timeout — таймаут одной задачи в секундах.
	Timeout int `json:"timeout" yaml:"timeout"`

	// OnFailure — политика при падении задачи.
	OnFailure FailurePolicy `json:"on_failure" yaml:"on_failure"`
}

// TaskTimeout возвращает Timeout как time.Duration.
func (s Settings) TaskTimeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultTimeoutSec * time.Second
	}
	return secondsToDuration(s.Timeout)
}

// maxTimeoutSec — наибольшее число секунд, представимое в time.Duration.
const maxTimeoutSec = math.MaxInt64 / int64(time.Second)

// secondsToDuration переводит секунды в time.Duration без переполнения.
// Значения больше maxTimeoutSec ограничиваются сверху.
func secondsToDuration(sec int) time.Duration {
	if int64(sec) > maxTimeoutSec {
		return time.Duration(maxTimeoutSec) * time.Second
	}
	return time.Duration(sec) * time.Second
}

// TaskSpec — определение задачи в workflow.
type TaskSpec struct {
	// ID — уникальный идентификатор задачи в рамках workflow.
	// Используется в dependencies и в токенах ${id.output}.
	ID string `json:"id" yaml:"id"`

	// Agent — вид агента, который выполняет задачу (например, "planner", "coder").
	Agent string `json:"agent" yaml:"agent"`

	// Parameters — параметры агента. Строки могут содержать ${id.output}.
	Parameters map[string]any `json:"parameters" yaml:"parameters"`

	// Dependencies — ID задач, которые должны успешно завершиться раньше.
	Dependencies []string `json:"dependencies" yaml:"dependencies"`

	// Timeout — таймаут этой задачи в секундах.
	// Переопределяет settings.timeout, если > 0.
	Timeout int `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}
