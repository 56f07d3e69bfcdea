package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/repo"
)

const sourceArchive = "archive"

// StartExecution запускает workflow и сразу возвращает ID execution.
// POST /api/v1/workflows/{id}/executions
func (h *Handler) StartExecution(w http.ResponseWriter, r *http.Request) {
	var req StartExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	workflowID := r.PathValue("id")
	id, err := h.engine.Execute(r.Context(), workflowID, req.Inputs)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	status := domain.ExecutionStatusPending
	if exec, ok := h.engine.GetStatus(id); ok {
		status = exec.Status
	}

	Accepted(w, StartExecutionResponse{
		ExecutionID: id,
		WorkflowID:  workflowID,
		Status:      string(status),
	})
}

// ListExecutions возвращает executions с фильтрацией.
// По умолчанию — executions в памяти движка, source=archive — из архива.
// GET /api/v1/executions?workflow_id=...&status=...&source=archive&limit=...&offset=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repo.ExecutionFilter{WorkflowID: q.Get("workflow_id")}
	if s := q.Get("status"); s != "" {
		status, ok := domain.ParseExecutionStatus(s)
		if !ok {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit"), 0); err != nil {
		BadRequest(w, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		BadRequest(w, "invalid offset")
		return
	}

	var execs []domain.WorkflowExecution
	if q.Get("source") == sourceArchive {
		if h.archive == nil {
			BadRequest(w, "execution archive is not configured")
			return
		}
		execs, err = h.archive.List(r.Context(), filter)
		if HandleEngineError(w, h.logger, err) {
			return
		}
	} else {
		execs = filterExecutions(h.engine.Executions(), filter)
	}

	result := make([]ExecutionSummary, len(execs))
	for i, e := range execs {
		result[i] = ExecutionSummaryFromDomain(e)
	}

	List(w, result, len(result))
}

// GetExecution возвращает текущее состояние execution.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := executionID(w, r)
	if !ok {
		return
	}

	exec, ok := h.engine.GetStatus(id)
	if !ok {
		NotFound(w, "execution not found")
		return
	}

	Success(w, ExecutionFromDomain(exec))
}

// GetResult возвращает переменные и результаты задач COMPLETED execution.
// GET /api/v1/executions/{id}/result
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := executionID(w, r)
	if !ok {
		return
	}

	exec, ok := h.engine.GetStatus(id)
	if !ok {
		NotFound(w, "execution not found")
		return
	}

	result, ok := h.engine.GetResult(id)
	if !ok {
		InvalidState(w, "execution is "+string(exec.Status)+", result is available only for COMPLETED")
		return
	}

	Success(w, result)
}

// CancelExecution отменяет execution.
// POST /api/v1/executions/{id}/cancel
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := executionID(w, r)
	if !ok {
		return
	}

	if HandleEngineError(w, h.logger, h.engine.Cancel(id)) {
		return
	}

	h.logger.Info("execution cancelled via api", "execution_id", id)

	exec, ok := h.engine.GetStatus(id)
	if !ok {
		// Retention 0: execution уже удалён из памяти
		Success(w, StartExecutionResponse{ExecutionID: id, Status: string(domain.ExecutionStatusCancelled)})
		return
	}
	Success(w, ExecutionFromDomain(exec))
}

// GetHistory возвращает execution из памяти или из архива.
// GET /api/v1/executions/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := executionID(w, r)
	if !ok {
		return
	}

	exec, err := h.engine.History(r.Context(), id)
	if HandleEngineError(w, h.logger, err) {
		return
	}

	Success(w, ExecutionFromDomain(*exec))
}

// --- Helpers ---

// executionID парсит {id} из пути; при ошибке отвечает 400.
func executionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return uuid.Nil, false
	}
	return id, true
}

// intParam парсит неотрицательное целое query параметра.
func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

// filterExecutions применяет фильтр к executions в памяти.
func filterExecutions(execs []domain.WorkflowExecution, f repo.ExecutionFilter) []domain.WorkflowExecution {
	matched := make([]domain.WorkflowExecution, 0, len(execs))
	for _, e := range execs {
		if f.WorkflowID != "" && e.WorkflowID != f.WorkflowID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		matched = append(matched, e)
	}

	if f.Offset >= len(matched) {
		return matched[:0]
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}
	return matched
}
