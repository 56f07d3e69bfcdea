package orchestrator

import "errors"

// Ошибки движка.
var (
	// ErrWorkflowNotFound — workflow не зарегистрирован.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrInvalidWorkflow — определение workflow не прошло валидацию.
	ErrInvalidWorkflow = errors.New("invalid workflow definition")

	// ErrExecutionNotFound — execution не найден ни в реестре, ни в архиве.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionFinished — execution уже в финальном статусе.
	ErrExecutionFinished = errors.New("execution already finished")

	// ErrExecutionCancelled — execution отменён через Cancel.
	ErrExecutionCancelled = errors.New("execution cancelled")

	// ErrWorkflowStalled — готовых задач нет, но workflow не завершён.
	ErrWorkflowStalled = errors.New("workflow stalled: no task can become ready")

	// ErrWorkflowTimeout — превышен таймаут workflow.
	ErrWorkflowTimeout = errors.New("workflow timeout exceeded")

	// ErrTaskPanic — dispatch channel запаниковал при отправке задачи.
	ErrTaskPanic = errors.New("task dispatch panicked")

	// ErrEngineStopped — движок остановлен.
	ErrEngineStopped = errors.New("engine stopped")
)
