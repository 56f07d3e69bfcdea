package engine

import "errors"

// Ошибки валидации WorkflowDefinition.
var (
	// ErrEmptyWorkflowID — workflow не имеет ID.
	ErrEmptyWorkflowID = errors.New("workflow has empty ID")

	// ErrEmptyTasks — workflow не содержит задач.
	ErrEmptyTasks = errors.New("workflow has no tasks")

	// ErrEmptyTaskID — задача не имеет ID.
	ErrEmptyTaskID = errors.New("task has empty ID")

	// ErrDuplicateTaskID — несколько задач с одинаковым ID.
	ErrDuplicateTaskID = errors.New("duplicate task ID")

	// ErrEmptyTarget — у задачи не указан target.
	ErrEmptyTarget = errors.New("task has empty target")

	// ErrEmptyOperation — у задачи не указана операция.
	ErrEmptyOperation = errors.New("task has empty operation")

	// ErrMissingDependency — задача зависит от несуществующей задачи.
	ErrMissingDependency = errors.New("task depends on unknown task")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — задача зависит сама от себя.
	ErrSelfDependency = errors.New("task depends on itself")

	// ErrNegativeValue — отрицательный таймаут или число попыток.
	ErrNegativeValue = errors.New("negative timeout or retry value")
)

// Ошибки загрузки и подстановки.
var (
	// ErrEmptyDefinition — пустой файл/тело с определением workflow.
	ErrEmptyDefinition = errors.New("workflow definition payload is empty")

	// ErrDecodeDefinition — не удалось распарсить определение.
	ErrDecodeDefinition = errors.New("decode workflow definition")

	// ErrUnresolvedReference — ссылку ${...} не удалось разрешить.
	ErrUnresolvedReference = errors.New("unresolved reference")
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
