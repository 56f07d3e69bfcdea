package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Relay/internal/domain"
)

const defaultListLimit = 50

const schema = `
	CREATE TABLE IF NOT EXISTS executions (
		id            uuid PRIMARY KEY,
		workflow_id   text NOT NULL,
		workflow_name text,
		status        text NOT NULL,
		variables     jsonb NOT NULL DEFAULT '{}',
		tasks         jsonb NOT NULL DEFAULT '{}',
		error         text,
		started_at    timestamptz,
		finished_at   timestamptz,
		created_at    timestamptz NOT NULL
	);
	CREATE INDEX IF NOT EXISTS executions_workflow_created_idx
		ON executions (workflow_id, created_at DESC);
`

const selectColumns = `
	SELECT id, workflow_id, workflow_name, status, variables, tasks,
	       error, started_at, finished_at, created_at
	FROM executions
`

// ExecutionRepo — архив завершённых executions.
//
// Движок пишет сюда снимок каждого execution при переходе в финальный
// статус. Переменные и выполнения задач хранятся в JSONB.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// EnsureSchema создаёт таблицу executions, если её нет.
func (r *ExecutionRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure executions schema: %w", err)
	}
	return nil
}

// Save сохраняет снимок execution. Повторное сохранение перезаписывает запись.
func (r *ExecutionRepo) Save(ctx context.Context, exec *domain.WorkflowExecution) error {
	variablesJSON, tasksJSON, err := encodeExecution(exec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO executions (id, workflow_id, workflow_name, status, variables, tasks,
		                        error, started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    variables = EXCLUDED.variables,
		    tasks = EXCLUDED.tasks,
		    error = EXCLUDED.error,
		    started_at = EXCLUDED.started_at,
		    finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		exec.ID,
		exec.WorkflowID,
		nullString(exec.WorkflowName),
		string(exec.Status),
		variablesJSON,
		tasksJSON,
		nullString(exec.Error),
		exec.StartedAt,
		exec.FinishedAt,
		exec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert execution: %w", err)
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowExecution, error) {
	exec, err := scanExecution(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return exec, err
}

// List возвращает executions с фильтрацией, новые первыми.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.WorkflowExecution, error) {
	query := selectColumns + `
		WHERE ($1::text IS NULL OR workflow_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	limit, offset := filter.page()

	rows, err := r.pool.Query(ctx, query,
		nullString(filter.WorkflowID),
		nullString(string(filter.Status)),
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	execs := make([]domain.WorkflowExecution, 0)
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		execs = append(execs, *exec)
	}
	return execs, rows.Err()
}

// --- Helpers ---

// ExecutionFilter — параметры фильтрации executions.
type ExecutionFilter struct {
	WorkflowID string
	Status     domain.ExecutionStatus
	Limit      int
	Offset     int
}

// page возвращает limit/offset с учётом значений по умолчанию.
func (f ExecutionFilter) page() (int, int) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	return limit, max(f.Offset, 0)
}

// encodeExecution сериализует переменные и задачи в JSON для JSONB колонок.
func encodeExecution(exec *domain.WorkflowExecution) ([]byte, []byte, error) {
	variables := exec.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal variables: %w", err)
	}

	tasks := exec.Tasks
	if tasks == nil {
		tasks = map[string]*domain.TaskExecution{}
	}
	tasksJSON, err := json.Marshal(tasks)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal tasks: %w", err)
	}

	return variablesJSON, tasksJSON, nil
}

// decodeExecution восстанавливает переменные и задачи из JSONB колонок.
func decodeExecution(exec *domain.WorkflowExecution, variablesJSON, tasksJSON []byte) error {
	exec.Variables = make(map[string]any)
	if len(variablesJSON) > 0 {
		if err := json.Unmarshal(variablesJSON, &exec.Variables); err != nil {
			return fmt.Errorf("unmarshal variables: %w", err)
		}
	}

	exec.Tasks = make(map[string]*domain.TaskExecution)
	if len(tasksJSON) > 0 {
		if err := json.Unmarshal(tasksJSON, &exec.Tasks); err != nil {
			return fmt.Errorf("unmarshal tasks: %w", err)
		}
	}
	return nil
}

// scanExecution сканирует одну строку в WorkflowExecution.
// pgx.ErrNoRows возвращается как есть.
func scanExecution(row pgx.Row) (*domain.WorkflowExecution, error) {
	var exec domain.WorkflowExecution
	var status string
	var workflowName, execError *string
	var variablesJSON, tasksJSON []byte

	err := row.Scan(
		&exec.ID,
		&exec.WorkflowID,
		&workflowName,
		&status,
		&variablesJSON,
		&tasksJSON,
		&execError,
		&exec.StartedAt,
		&exec.FinishedAt,
		&exec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	exec.Status = domain.ExecutionStatus(status)
	if workflowName != nil {
		exec.WorkflowName = *workflowName
	}
	if execError != nil {
		exec.Error = *execError
	}

	if err := decodeExecution(&exec, variablesJSON, tasksJSON); err != nil {
		return nil, err
	}
	return &exec, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
