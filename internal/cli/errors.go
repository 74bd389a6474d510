package cli

import "errors"

var (
	// ErrWorkflowFailed — выполнение завершилось не со статусом success.
	ErrWorkflowFailed = errors.New("workflow did not succeed")

	// ErrInvalidWorkflow — файл workflow не прошёл валидацию.
	// Подробности уже выведены в stderr.
	ErrInvalidWorkflow = errors.New("invalid workflow")
)
