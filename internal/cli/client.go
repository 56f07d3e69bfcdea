package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrWaitTimeout — execution не завершился за время ожидания.
var ErrWaitTimeout = errors.New("timed out waiting for execution")

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskDefinition — задача workflow из API.
type TaskDefinition struct {
	ID        string         `json:"id"`
	Target    string         `json:"target"`
	Operation string         `json:"operation"`
	Inputs    map[string]any `json:"inputs,omitempty"`
	Outputs   []string       `json:"outputs,omitempty"`
	DependsOn []string       `json:"depends_on,omitempty"`
}

// TargetResponse — target и его политика доставки из API.
type TargetResponse struct {
	Name          string `json:"name"`
	Mode          string `json:"mode"`
	Endpoint      string `json:"endpoint,omitempty"`
	AuthToken     string `json:"auth_token,omitempty"`
	TimeoutMs     int64  `json:"timeout_ms"`
	RetryAttempts int    `json:"retry_attempts"`
	RetryDelayMs  int64  `json:"retry_delay_ms"`
}

// WorkflowResponse — workflow из API.
type WorkflowResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Tasks       []TaskDefinition `json:"tasks"`
	StartTasks  []string         `json:"start_tasks"`
	EndTasks    []string         `json:"end_tasks"`
	TimeoutSec  int              `json:"timeout_sec,omitempty"`
}

// WorkflowSummary — элемент списка workflow.
type WorkflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TaskCount   int    `json:"task_count"`
}

// StartExecutionResponse — ответ на запуск workflow.
type StartExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	WorkflowID  string `json:"workflow_id"`
	Status      string `json:"status"`
}

// TaskExecutionResponse — выполнение задачи из API.
type TaskExecutionResponse struct {
	TaskID     string `json:"task_id"`
	Target     string `json:"target"`
	Operation  string `json:"operation"`
	Status     string `json:"status"`
	Result     any    `json:"result"`
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	DurationMs int64  `json:"duration_ms"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID           string                  `json:"id"`
	WorkflowID   string                  `json:"workflow_id"`
	WorkflowName string                  `json:"workflow_name,omitempty"`
	Status       string                  `json:"status"`
	Tasks        []TaskExecutionResponse `json:"tasks"`
	Variables    map[string]any          `json:"variables"`
	Error        string                  `json:"error,omitempty"`
	StartedAt    string                  `json:"started_at,omitempty"`
	FinishedAt   string                  `json:"finished_at,omitempty"`
	CreatedAt    string                  `json:"created_at"`
	DurationMs   int64                   `json:"duration_ms"`
}

// IsFinished сообщает, что execution в финальном статусе.
func (e *ExecutionResponse) IsFinished() bool {
	switch e.Status {
	case "COMPLETED", "FAILED", "CANCELLED":
		return true
	default:
		return false
	}
}

// ExecutionSummary — элемент списка executions.
type ExecutionSummary struct {
	ID         string `json:"id"`
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	TaskCount  int    `json:"task_count"`
	CreatedAt  string `json:"created_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// ResultResponse — итог COMPLETED execution.
type ResultResponse struct {
	ExecutionID string         `json:"execution_id"`
	Variables   map[string]any `json:"variables"`
	TaskResults map[string]any `json:"task_results"`
}

// ListExecutionsOpts — параметры фильтрации executions.
type ListExecutionsOpts struct {
	WorkflowID string
	Status     string
	Archive    bool
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Relay API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// pollInterval — период опроса статуса в WaitExecution.
	pollInterval time.Duration
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		pollInterval: 500 * time.Millisecond,
	}
}

// --- Workflows ---

// RegisterWorkflow регистрирует workflow из YAML или JSON определения.
func (c *Client) RegisterWorkflow(definition []byte) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.doData(http.MethodPost, "/api/v1/workflows", bytes.NewReader(definition), "application/yaml", &wf)
	return &wf, err
}

// ListWorkflows возвращает зарегистрированные workflow.
func (c *Client) ListWorkflows() ([]WorkflowSummary, error) {
	var workflows []WorkflowSummary
	err := c.list("/api/v1/workflows", nil, &workflows)
	return workflows, err
}

// ListTargets возвращает target движка.
func (c *Client) ListTargets() ([]TargetResponse, error) {
	var targets []TargetResponse
	err := c.list("/api/v1/targets", nil, &targets)
	return targets, err
}

// GetWorkflow возвращает workflow по ID.
func (c *Client) GetWorkflow(id string) (*WorkflowResponse, error) {
	var wf WorkflowResponse
	err := c.get("/api/v1/workflows/"+url.PathEscape(id), &wf)
	return &wf, err
}

// --- Executions ---

// StartExecution запускает workflow.
func (c *Client) StartExecution(workflowID string, inputs map[string]any) (*StartExecutionResponse, error) {
	body := map[string]any{"inputs": inputs}
	var started StartExecutionResponse
	err := c.post("/api/v1/workflows/"+url.PathEscape(workflowID)+"/executions", body, &started)
	return &started, err
}

// ListExecutions возвращает executions с фильтрацией.
func (c *Client) ListExecutions(opts ListExecutionsOpts) ([]ExecutionSummary, error) {
	params := url.Values{}
	if opts.WorkflowID != "" {
		params.Set("workflow_id", opts.WorkflowID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Archive {
		params.Set("source", "archive")
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var execs []ExecutionSummary
	err := c.list("/api/v1/executions", params, &execs)
	return execs, err
}

// GetExecution возвращает execution по ID.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/executions/"+url.PathEscape(id), &exec)
	return &exec, err
}

// GetResult возвращает итог COMPLETED execution.
func (c *Client) GetResult(id string) (*ResultResponse, error) {
	var result ResultResponse
	err := c.get("/api/v1/executions/"+url.PathEscape(id)+"/result", &result)
	return &result, err
}

// CancelExecution отменяет execution.
func (c *Client) CancelExecution(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.post("/api/v1/executions/"+url.PathEscape(id)+"/cancel", nil, &exec)
	return &exec, err
}

// GetHistory возвращает execution из памяти движка или из архива.
func (c *Client) GetHistory(id string) (*ExecutionResponse, error) {
	var exec ExecutionResponse
	err := c.get("/api/v1/executions/"+url.PathEscape(id)+"/history", &exec)
	return &exec, err
}

// WaitExecution опрашивает статус, пока execution не завершится.
// timeout 0 — ждать без ограничения.
func (c *Client) WaitExecution(id string, timeout time.Duration) (*ExecutionResponse, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		exec, err := c.GetExecution(id)
		if err != nil {
			return nil, err
		}
		if exec.IsFinished() {
			return exec, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return exec, fmt.Errorf("%w %s (status %s)", ErrWaitTimeout, id, exec.Status)
		}
		time.Sleep(c.pollInterval)
	}
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, "", result)
}

func (c *Client) post(path string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	return c.doData(http.MethodPost, path, reader, "application/json", result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body io.Reader, contentType string, result any) error {
	resp, err := c.do(method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
