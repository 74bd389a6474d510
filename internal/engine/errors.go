package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки валидации workflow.
var (
	// ErrSchemaViolation — документ не соответствует структурной схеме.
	ErrSchemaViolation = errors.New("workflow does not match schema")

	// ErrEmptyTasks — workflow не содержит задач.
	ErrEmptyTasks = errors.New("workflow has no tasks")

	// ErrEmptyTaskID — задача не имеет ID.
	ErrEmptyTaskID = errors.New("task has empty ID")

	// ErrDuplicateTaskID — несколько задач с одинаковым ID.
	ErrDuplicateTaskID = errors.New("duplicate task ID")

	// ErrUnknownAgent — вид агента не зарегистрирован.
	ErrUnknownAgent = errors.New("unknown agent kind")

	// ErrMissingDependency — задача зависит от необъявленной задачи.
	ErrMissingDependency = errors.New("task depends on unknown task")

	// ErrSelfDependency — задача зависит от самой себя.
	ErrSelfDependency = errors.New("task depends on itself")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrUnknownReference — параметр ссылается на output необъявленной задачи.
	ErrUnknownReference = errors.New("parameter references unknown task")

	// ErrUndeclaredReference — параметр ссылается на задачу вне транзитивных зависимостей.
	ErrUndeclaredReference = errors.New("parameter references task outside its dependencies")
)

// Ошибки чтения workflow.
var (
	// ErrReadFile — файл не найден или не читается.
	ErrReadFile = errors.New("cannot read workflow file")

	// ErrDecode — содержимое не является корректным YAML/JSON.
	ErrDecode = errors.New("cannot decode workflow")
)

// Ошибки контекста выполнения.
var (
	// ErrOutputAlreadyRecorded — output задачи уже записан.
	ErrOutputAlreadyRecorded = errors.New("task output already recorded")

	// ErrUnresolvedReference — токен ссылается на задачу без записанного output.
	ErrUnresolvedReference = errors.New("unresolved output reference")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	TaskID  string // ID задачи, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.TaskID != "" {
		return "task " + e.TaskID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(taskID, field, message string, err error) *ValidationError {
	return &ValidationError{
		TaskID:  taskID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// ConfigurationError — workflow нельзя выполнить.
//
// Содержит полный список найденных дефектов, а не только первый.
type ConfigurationError struct {
	Source string  // путь к файлу или "<input>"
	Errors []error // все найденные дефекты
}

// Error реализует интерфейс error.
func (e *ConfigurationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid workflow %s", e.Source)
	if len(e.Errors) == 1 {
		b.WriteString(": ")
		b.WriteString(e.Errors[0].Error())
		return b.String()
	}
	fmt.Fprintf(&b, ": %d errors", len(e.Errors))
	for _, err := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap возвращает все дефекты для errors.Is/errors.As.
func (e *ConfigurationError) Unwrap() []error {
	return e.Errors
}

// Messages возвращает тексты всех дефектов.
func (e *ConfigurationError) Messages() []string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// NewConfigurationError создаёт ConfigurationError для источника source.
func NewConfigurationError(source string, errs ...error) *ConfigurationError {
	return &ConfigurationError{Source: source, Errors: errs}
}

// CycleError — цикл в зависимостях.
type CycleError struct {
	Path []string // ID задач цикла в порядке обхода
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return ErrCyclicDependency.Error()
	}
	return fmt.Sprintf("%s: %s -> %s", ErrCyclicDependency, strings.Join(e.Path, " -> "), e.Path[0])
}

// Unwrap возвращает ErrCyclicDependency.
func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// UnknownDependencyError — зависимость на необъявленную задачу.
type UnknownDependencyError struct {
	TaskID     string // задача с некорректной зависимостью
	Dependency string // отсутствующий ID
}

// Error реализует интерфейс error.
func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %s: depends on unknown task %q", e.TaskID, e.Dependency)
}

// Unwrap возвращает ErrMissingDependency.
func (e *UnknownDependencyError) Unwrap() error {
	return ErrMissingDependency
}

// UnresolvedReferenceError — токен ${id.output} не удалось разрешить.
type UnresolvedReferenceError struct {
	TaskID    string // задача, чьи параметры интерполируются
	Reference string // ID задачи из токена
	Field     string // путь внутри output (для ${id.output.a.b})
	Token     string // исходный токен
}

// Error реализует интерфейс error.
func (e *UnresolvedReferenceError) Error() string {
	reason := fmt.Sprintf("task %q has no recorded output", e.Reference)
	if e.Field != "" {
		reason = fmt.Sprintf("output of task %q has no field %q", e.Reference, e.Field)
	}
	msg := fmt.Sprintf("%s %s: %s", ErrUnresolvedReference, e.Token, reason)
	if e.TaskID != "" {
		return "task " + e.TaskID + ": " + msg
	}
	return msg
}

// Unwrap возвращает ErrUnresolvedReference.
func (e *UnresolvedReferenceError) Unwrap() error {
	return ErrUnresolvedReference
}
