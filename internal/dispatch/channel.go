package dispatch

import (
	"context"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/protocol"
)

// Request — задача, отправляемая исполнителю.
type Request struct {
	// Target — имя исполнителя.
	Target string

	// Operation — операция на стороне исполнителя.
	Operation string

	// Inputs — входы после подстановки ссылок.
	Inputs map[string]any

	// TaskID и ExecutionID — для логов и корреляции на стороне исполнителя.
	TaskID      string
	ExecutionID string

	// Timeout, RetryAttempts, RetryDelay — из TaskDefinition.
	// Применяются Retrying. Нулевой Timeout/RetryDelay и nil RetryAttempts
	// означают значение target по умолчанию; RetryAttempts = 0 — без повторов.
	Timeout       time.Duration
	RetryAttempts *int
	RetryDelay    time.Duration

	// Attempts — сколько попыток сделал канал. Заполняет канал.
	Attempts int
}

// NewRequest создаёт Request из определения задачи и подставленных входов.
func NewRequest(task *domain.TaskDefinition, inputs map[string]any, executionID string) *Request {
	req := &Request{
		Target:      task.Target,
		Operation:   task.Operation,
		Inputs:      inputs,
		TaskID:      task.ID,
		ExecutionID: executionID,
		Timeout:     task.Timeout(),
		RetryDelay:  task.RetryDelay(),
	}
	if n, ok := task.Retries(); ok {
		req.RetryAttempts = &n
	}
	return req
}

// retries возвращает количество повторов (0, если не задано).
func (r *Request) retries() int {
	if r.RetryAttempts == nil {
		return 0
	}
	return *r.RetryAttempts
}

// Content возвращает содержимое task_request для конверта.
func (r *Request) Content() protocol.TaskContent {
	return protocol.TaskContent{
		Operation:   r.Operation,
		Inputs:      r.Inputs,
		TaskID:      r.TaskID,
		ExecutionID: r.ExecutionID,
		Attempt:     r.Attempts,
	}
}

// Channel отправляет задачу исполнителю и ждёт результат.
//
// Отмена ctx — сигнал прекратить ожидание; исполнитель может
// его проигнорировать, результат тогда отбрасывается.
type Channel interface {
	Send(ctx context.Context, req *Request) (domain.Value, error)
}

// ChannelFunc — адаптер функции к Channel.
type ChannelFunc func(ctx context.Context, req *Request) (domain.Value, error)

// Send вызывает f.
func (f ChannelFunc) Send(ctx context.Context, req *Request) (domain.Value, error) {
	return f(ctx, req)
}
