package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskExecution — выполнение одной задачи в рамках одного execution.
//
// Создаётся в момент первой попытки запуска задачи. После перехода
// в финальный статус не изменяется.
type TaskExecution struct {
	// TaskID — ID задачи из WorkflowDefinition.
	TaskID string `json:"task_id"`

	// Target — исполнитель (копия TaskDefinition.Target).
	Target string `json:"target"`

	// Operation — операция (копия TaskDefinition.Operation).
	Operation string `json:"operation"`

	// Status — текущий статус задачи.
	Status TaskStatus `json:"status"`

	// StartedAt — время отправки задачи.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Result — результат, который вернул исполнитель.
	Result Value `json:"result"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// RetryCount — сколько повторных попыток сделал dispatch channel.
	RetryCount int `json:"retry_count"`

	// Def — определение задачи.
	Def *TaskDefinition `json:"-"`
}

// NewTaskExecution создаёт TaskExecution в статусе PENDING.
func NewTaskExecution(def *TaskDefinition) *TaskExecution {
	return &TaskExecution{
		TaskID:    def.ID,
		Target:    def.Target,
		Operation: def.Operation,
		Status:    TaskStatusPending,
		Def:       def,
	}
}

// MarkRunning переводит задачу в RUNNING.
func (t *TaskExecution) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkCompleted переводит задачу в COMPLETED с результатом.
func (t *TaskExecution) MarkCompleted(result Value) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.FinishedAt = &now
	t.Result = result
}

// MarkFailed переводит задачу в FAILED с ошибкой.
func (t *TaskExecution) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// IsFinished возвращает true, если задача завершена.
func (t *TaskExecution) IsFinished() bool {
	return t.Status.IsTerminal()
}

// Duration возвращает продолжительность выполнения.
func (t *TaskExecution) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// WorkflowExecution — экземпляр выполнения WorkflowDefinition.
type WorkflowExecution struct {
	// ID — уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// WorkflowID — ID выполняемого workflow.
	WorkflowID string `json:"workflow_id"`

	// WorkflowName — имя workflow (для удобства).
	WorkflowName string `json:"workflow_name,omitempty"`

	// Status — текущий статус.
	Status ExecutionStatus `json:"status"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время перехода в финальный статус.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Tasks — выполнения задач (task_id → TaskExecution). Только растёт.
	Tasks map[string]*TaskExecution `json:"tasks"`

	// Variables — пространство переменных: входы execution
	// и выходы задач в виде "<task_id>.<output>".
	Variables map[string]any `json:"variables"`

	// Error — ошибка, с которой execution завершился.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// NewWorkflowExecution создаёт execution в статусе PENDING.
// Входные переменные копируются в пространство переменных.
func NewWorkflowExecution(def *WorkflowDefinition, inputs map[string]any) *WorkflowExecution {
	variables := make(map[string]any, len(inputs))
	for k, v := range inputs {
		variables[k] = v
	}
	return &WorkflowExecution{
		ID:           uuid.New(),
		WorkflowID:   def.ID,
		WorkflowName: def.Name,
		Status:       ExecutionStatusPending,
		Tasks:        make(map[string]*TaskExecution),
		Variables:    variables,
		CreatedAt:    time.Now(),
	}
}

// MarkRunning переводит execution в RUNNING.
func (e *WorkflowExecution) MarkRunning() {
	now := time.Now()
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now
}

// MarkCompleted переводит execution в COMPLETED.
func (e *WorkflowExecution) MarkCompleted() {
	now := time.Now()
	e.Status = ExecutionStatusCompleted
	e.FinishedAt = &now
}

// MarkFailed переводит execution в FAILED с ошибкой.
func (e *WorkflowExecution) MarkFailed(err string) {
	now := time.Now()
	e.Status = ExecutionStatusFailed
	e.FinishedAt = &now
	e.Error = err
}

// MarkCancelled переводит execution в CANCELLED.
func (e *WorkflowExecution) MarkCancelled() {
	now := time.Now()
	e.Status = ExecutionStatusCancelled
	e.FinishedAt = &now
}

// IsFinished возвращает true, если execution завершён.
func (e *WorkflowExecution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// Duration возвращает продолжительность выполнения.
func (e *WorkflowExecution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

// TaskResults возвращает результаты успешно завершённых задач.
func (e *WorkflowExecution) TaskResults() map[string]Value {
	results := make(map[string]Value, len(e.Tasks))
	for id, task := range e.Tasks {
		if task.Status == TaskStatusCompleted {
			results[id] = task.Result
		}
	}
	return results
}

// Clone возвращает копию execution, безопасную для чтения снаружи.
// Значения результатов и переменных не копируются глубоко.
func (e *WorkflowExecution) Clone() WorkflowExecution {
	c := *e

	c.Tasks = make(map[string]*TaskExecution, len(e.Tasks))
	for id, task := range e.Tasks {
		t := *task
		c.Tasks[id] = &t
	}

	c.Variables = make(map[string]any, len(e.Variables))
	for k, v := range e.Variables {
		c.Variables[k] = v
	}

	return c
}
