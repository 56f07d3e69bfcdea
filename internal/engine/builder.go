package engine

import (
	"fmt"

	"github.com/shaiso/Relay/internal/domain"
)

// TaskOption настраивает задачу, добавляемую через Builder.
type TaskOption func(*domain.TaskDefinition)

// WithInputs задаёт входы задачи.
func WithInputs(inputs map[string]any) TaskOption {
	return func(t *domain.TaskDefinition) {
		t.Inputs = inputs
	}
}

// WithOutputs задаёт имена выходов задачи.
func WithOutputs(outputs ...string) TaskOption {
	return func(t *domain.TaskDefinition) {
		t.Outputs = outputs
	}
}

// WithDependsOn задаёт зависимости задачи.
func WithDependsOn(ids ...string) TaskOption {
	return func(t *domain.TaskDefinition) {
		t.DependsOn = ids
	}
}

// WithTimeout задаёт таймаут задачи в секундах.
func WithTimeout(sec int) TaskOption {
	return func(t *domain.TaskDefinition) {
		t.TimeoutSec = sec
	}
}

// WithRetry задаёт количество повторов и задержку между ними.
func WithRetry(attempts, delayMs int) TaskOption {
	return func(t *domain.TaskDefinition) {
		t.RetryAttempts = &attempts
		t.RetryDelayMs = delayMs
	}
}

// Builder собирает WorkflowDefinition программно.
//
// Задачи получают ID вида task_0, task_1, ... в порядке добавления.
// После Build состояние сбрасывается, и Builder можно использовать снова.
type Builder struct {
	tasks []domain.TaskDefinition
	count int
}

// NewBuilder создаёт пустой Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddTask добавляет задачу и возвращает Builder для цепочки вызовов.
func (b *Builder) AddTask(target, operation string, opts ...TaskOption) *Builder {
	retries := domain.DefaultRetryAttempts
	task := domain.TaskDefinition{
		ID:            fmt.Sprintf("task_%d", b.count),
		Target:        target,
		Operation:     operation,
		Inputs:        make(map[string]any),
		Outputs:       make([]string, 0),
		DependsOn:     make([]string, 0),
		TimeoutSec:    int(domain.DefaultTaskTimeout.Seconds()),
		RetryAttempts: &retries,
		RetryDelayMs:  int(domain.DefaultRetryDelay.Milliseconds()),
	}
	b.count++

	for _, opt := range opts {
		opt(&task)
	}

	b.tasks = append(b.tasks, task)
	return b
}

// LastID возвращает ID последней добавленной задачи ("" если задач нет).
func (b *Builder) LastID() string {
	if len(b.tasks) == 0 {
		return ""
	}
	return b.tasks[len(b.tasks)-1].ID
}

// Build собирает определение и сбрасывает состояние Builder.
// Валидация не выполняется: она происходит при регистрации.
func (b *Builder) Build(id, name, description string) *domain.WorkflowDefinition {
	tasks := make([]domain.TaskDefinition, len(b.tasks))
	copy(tasks, b.tasks)

	def := &domain.WorkflowDefinition{
		ID:          id,
		Name:        name,
		Description: description,
		Tasks:       tasks,
		TimeoutSec:  int(domain.DefaultWorkflowTimeout.Seconds()),
	}

	b.tasks = nil
	b.count = 0

	return def
}
