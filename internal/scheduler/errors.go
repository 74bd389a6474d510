package scheduler

import "errors"

var (
	// ErrInvalidCronExpr — cron-выражение не разбирается.
	ErrInvalidCronExpr = errors.New("invalid cron expression")

	// ErrInvalidTimezone — неизвестный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone")

	// ErrMissingPath — не указан файл workflow.
	ErrMissingPath = errors.New("workflow path is required")

	// ErrStillRunning — предыдущий запуск ещё не завершился.
	ErrStillRunning = errors.New("previous execution still running")
)
