package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrEngineBusy — Engine уже выполняет другой workflow.
	ErrEngineBusy = errors.New("engine is already executing a workflow")

	// ErrNilWorkflow — передан nil вместо workflow.
	ErrNilWorkflow = errors.New("workflow is nil")

	// ErrExecutionHalted — задача не запущена, потому что выполнение остановлено.
	ErrExecutionHalted = errors.New("execution halted")
)
