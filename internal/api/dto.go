package api

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/domain"
)

// Workflow DTOs

// WorkflowResponse — ответ с определением workflow.
type WorkflowResponse struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Tasks       []domain.TaskDefinition `json:"tasks"`
	StartTasks  []string                `json:"start_tasks"`
	EndTasks    []string                `json:"end_tasks"`
	TimeoutSec  int                     `json:"timeout_sec,omitempty"`
	Metadata    map[string]any          `json:"metadata,omitempty"`
}

// WorkflowFromDomain конвертирует domain.WorkflowDefinition в WorkflowResponse.
func WorkflowFromDomain(d *domain.WorkflowDefinition) WorkflowResponse {
	return WorkflowResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Tasks:       d.Tasks,
		StartTasks:  d.StartTasks,
		EndTasks:    d.EndTasks,
		TimeoutSec:  d.TimeoutSec,
		Metadata:    d.Metadata,
	}
}

// WorkflowSummary — элемент списка workflow.
type WorkflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TaskCount   int    `json:"task_count"`
}

// Execution DTOs

// StartExecutionRequest — запрос на запуск workflow.
type StartExecutionRequest struct {
	Inputs map[string]any `json:"inputs,omitempty"`
}

// StartExecutionResponse — ответ на запуск: execution принят в работу.
type StartExecutionResponse struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	WorkflowID  string    `json:"workflow_id"`
	Status      string    `json:"status"`
}

// TaskExecutionResponse — выполнение задачи.
type TaskExecutionResponse struct {
	TaskID     string       `json:"task_id"`
	Target     string       `json:"target"`
	Operation  string       `json:"operation"`
	Status     string       `json:"status"`
	Result     domain.Value `json:"result"`
	Error      string       `json:"error,omitempty"`
	RetryCount int          `json:"retry_count"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// ExecutionResponse — execution со всеми задачами и переменными.
type ExecutionResponse struct {
	ID           uuid.UUID               `json:"id"`
	WorkflowID   string                  `json:"workflow_id"`
	WorkflowName string                  `json:"workflow_name,omitempty"`
	Status       string                  `json:"status"`
	Tasks        []TaskExecutionResponse `json:"tasks"`
	Variables    map[string]any          `json:"variables"`
	Error        string                  `json:"error,omitempty"`
	StartedAt    *time.Time              `json:"started_at,omitempty"`
	FinishedAt   *time.Time              `json:"finished_at,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	DurationMs   int64                   `json:"duration_ms"`
}

// ExecutionFromDomain конвертирует domain.WorkflowExecution в ExecutionResponse.
// Задачи сортируются по времени старта, затем по ID.
func ExecutionFromDomain(e domain.WorkflowExecution) ExecutionResponse {
	tasks := make([]TaskExecutionResponse, 0, len(e.Tasks))
	for _, t := range e.Tasks {
		tasks = append(tasks, TaskExecutionResponse{
			TaskID:     t.TaskID,
			Target:     t.Target,
			Operation:  t.Operation,
			Status:     string(t.Status),
			Result:     t.Result,
			Error:      t.Error,
			RetryCount: t.RetryCount,
			StartedAt:  t.StartedAt,
			FinishedAt: t.FinishedAt,
			DurationMs: t.Duration().Milliseconds(),
		})
	}
	sort.Slice(tasks, func(i, j int) bool {
		a, b := tasks[i].StartedAt, tasks[j].StartedAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		return tasks[i].TaskID < tasks[j].TaskID
	})

	variables := e.Variables
	if variables == nil {
		variables = map[string]any{}
	}

	return ExecutionResponse{
		ID:           e.ID,
		WorkflowID:   e.WorkflowID,
		WorkflowName: e.WorkflowName,
		Status:       string(e.Status),
		Tasks:        tasks,
		Variables:    variables,
		Error:        e.Error,
		StartedAt:    e.StartedAt,
		FinishedAt:   e.FinishedAt,
		CreatedAt:    e.CreatedAt,
		DurationMs:   e.Duration().Milliseconds(),
	}
}

// ExecutionSummary — элемент списка executions.
type ExecutionSummary struct {
	ID         uuid.UUID  `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	TaskCount  int        `json:"task_count"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// ExecutionSummaryFromDomain конвертирует domain.WorkflowExecution в ExecutionSummary.
func ExecutionSummaryFromDomain(e domain.WorkflowExecution) ExecutionSummary {
	return ExecutionSummary{
		ID:         e.ID,
		WorkflowID: e.WorkflowID,
		Status:     string(e.Status),
		Error:      e.Error,
		TaskCount:  len(e.Tasks),
		CreatedAt:  e.CreatedAt,
		FinishedAt: e.FinishedAt,
	}
}

// Target DTOs

// redactedToken заменяет токен target в ответах.
const redactedToken = "***"

// TargetResponse — target и действующая политика доставки.
type TargetResponse struct {
	Name          string `json:"name"`
	Mode          string `json:"mode"`
	Endpoint      string `json:"endpoint,omitempty"`
	AuthToken     string `json:"auth_token,omitempty"`
	TimeoutMs     int64  `json:"timeout_ms"`
	RetryAttempts int    `json:"retry_attempts"`
	RetryDelayMs  int64  `json:"retry_delay_ms"`
}

// TargetFromDispatch конвертирует dispatch.TargetInfo в TargetResponse.
func TargetFromDispatch(t dispatch.TargetInfo) TargetResponse {
	resp := TargetResponse{
		Name:          t.Name,
		Mode:          t.Mode,
		Endpoint:      t.Endpoint,
		TimeoutMs:     t.Timeout.Milliseconds(),
		RetryAttempts: t.RetryAttempts,
		RetryDelayMs:  t.RetryDelay.Milliseconds(),
	}
	if t.Authenticated {
		resp.AuthToken = redactedToken
	}
	return resp
}
