package worker

import "errors"

// Ошибки воркера.
var (
	// ErrExecutionTimeout — выполнение задачи превысило таймаут.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrExecutionFailed — агент паниковал или вернул ошибку.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrExecutionCancelled — выполнение отменено вызывающим.
	ErrExecutionCancelled = errors.New("execution cancelled")

	// ErrNoInvoker — воркер создан без Invoker.
	ErrNoInvoker = errors.New("worker has no invoker")
)
