package worker

import "errors"

// Ошибки агента.
var (
	// ErrUnknownTarget — для target не зарегистрирован executor.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrExecutionTimeout — исполнитель не ответил за таймаут target.
	ErrExecutionTimeout = errors.New("execution timeout")

	// ErrWorkerStopped — агент остановлен.
	ErrWorkerStopped = errors.New("worker stopped")
)
