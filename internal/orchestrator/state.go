package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
)

// executionState — execution в памяти движка.
//
// Изменяет состояние только управляющая горутина execution (и Cancel).
// Мьютекс нужен для согласованных снимков из GetStatus/GetResult.
// После перехода в финальный статус задачи не меняются: результаты,
// пришедшие после Cancel, отбрасываются.
type executionState struct {
	def  *domain.WorkflowDefinition
	exec *domain.WorkflowExecution

	// cancel — отмена контекста execution с причиной.
	cancel context.CancelCauseFunc

	// done закрывается при переходе в финальный статус.
	done chan struct{}

	mu sync.RWMutex
}

// newExecutionState создаёт состояние для нового execution.
func newExecutionState(def *domain.WorkflowDefinition, exec *domain.WorkflowExecution, cancel context.CancelCauseFunc) *executionState {
	return &executionState{
		def:    def,
		exec:   exec,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID возвращает ID execution.
func (s *executionState) ID() uuid.UUID {
	return s.exec.ID
}

// snapshot возвращает копию execution.
func (s *executionState) snapshot() domain.WorkflowExecution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exec.Clone()
}

// status возвращает текущий статус.
func (s *executionState) status() domain.ExecutionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exec.Status
}

// finishedBefore проверяет, что execution завершён раньше t.
func (s *executionState) finishedBefore(t time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exec.FinishedAt != nil && s.exec.FinishedAt.Before(t)
}

// markRunning переводит execution в RUNNING.
func (s *executionState) markRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exec.IsFinished() {
		return false
	}
	s.exec.MarkRunning()
	return true
}

// readyTasks возвращает задачи, готовые к отправке.
func (s *executionState) readyTasks() []*domain.TaskDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return engine.ReadyTasks(s.def, s.exec.Tasks)
}

// isComplete проверяет, что все задачи COMPLETED или SKIPPED.
func (s *executionState) isComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return engine.IsComplete(s.def, s.exec.Tasks)
}

// pendingTasks возвращает ID задач без TaskExecution, в порядке объявления.
func (s *executionState) pendingTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for i := range s.def.Tasks {
		if _, ok := s.exec.Tasks[s.def.Tasks[i].ID]; !ok {
			ids = append(ids, s.def.Tasks[i].ID)
		}
	}
	return ids
}

// startTask создаёт TaskExecution в статусе RUNNING.
// Для завершённого (отменённого) execution возвращает false.
func (s *executionState) startTask(task *domain.TaskDefinition) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exec.IsFinished() {
		return false
	}

	te := domain.NewTaskExecution(task)
	te.MarkRunning()
	s.exec.Tasks[task.ID] = te
	return true
}

// resolve подставляет ссылки во входы задачи по текущему состоянию.
func (s *executionState) resolve(task *domain.TaskDefinition) engine.Resolution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return engine.Resolve(task, engine.Scope{
		Variables: s.exec.Variables,
		Tasks:     s.exec.Tasks,
	})
}

// completeTask сохраняет результат задачи и публикует объявленные
// выходы в переменные как "<task_id>.<output>".
// Возвращает false, если execution уже завершён и результат отброшен.
func (s *executionState) completeTask(task *domain.TaskDefinition, result domain.Value, attempts int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	te, ok := s.exec.Tasks[task.ID]
	if !ok || s.exec.IsFinished() || te.IsFinished() {
		return false
	}

	te.RetryCount = max(attempts-1, 0)
	te.MarkCompleted(result)

	for _, out := range task.Outputs {
		if v, ok := result.Field(out); ok {
			s.exec.Variables[task.ID+"."+out] = v
		}
	}
	return true
}

// failTask сохраняет ошибку задачи.
// Возвращает false, если execution уже завершён.
func (s *executionState) failTask(task *domain.TaskDefinition, errMsg string, attempts int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	te, ok := s.exec.Tasks[task.ID]
	if !ok || s.exec.IsFinished() || te.IsFinished() {
		return false
	}

	te.RetryCount = max(attempts-1, 0)
	te.MarkFailed(errMsg)
	return true
}

// finish переводит execution в финальный статус.
// Возвращает false, если execution уже завершён.
func (s *executionState) finish(status domain.ExecutionStatus, errMsg string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exec.IsFinished() {
		return false
	}

	switch status {
	case domain.ExecutionStatusCompleted:
		s.exec.MarkCompleted()
	case domain.ExecutionStatusCancelled:
		s.exec.MarkCancelled()
	default:
		s.exec.MarkFailed(errMsg)
	}

	close(s.done)
	return true
}

// result возвращает переменные и результаты задач COMPLETED execution.
func (s *executionState) result() (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.exec.Status != domain.ExecutionStatusCompleted {
		return Result{}, false
	}

	variables := make(map[string]any, len(s.exec.Variables))
	for k, v := range s.exec.Variables {
		variables[k] = v
	}

	return Result{
		ExecutionID: s.exec.ID,
		Variables:   variables,
		TaskResults: s.exec.TaskResults(),
	}, true
}

// Result — итог успешно завершённого execution.
type Result struct {
	ExecutionID uuid.UUID               `json:"execution_id"`
	Variables   map[string]any          `json:"variables"`
	TaskResults map[string]domain.Value `json:"task_results"`
}
