package api

import (
	"io"
	"net/http"

	"github.com/shaiso/Relay/internal/engine"
)

// maxDefinitionSize — ограничение размера тела с определением workflow.
const maxDefinitionSize = 1 << 20

// ListWorkflows возвращает зарегистрированные workflow.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	defs := h.engine.Workflows()

	result := make([]WorkflowSummary, len(defs))
	for i, d := range defs {
		result[i] = WorkflowSummary{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			TaskCount:   len(d.Tasks),
		}
	}

	List(w, result, len(result))
}

// RegisterWorkflow регистрирует workflow из тела запроса.
// Тело — JSON или YAML. Повторная регистрация заменяет определение.
// POST /api/v1/workflows
func (h *Handler) RegisterWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDefinitionSize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	// Любая ошибка разбора или валидации — ошибка клиента
	def, err := engine.ParseDefinition(body)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if HandleEngineError(w, h.logger, h.engine.RegisterWorkflow(def)) {
		return
	}

	stored, _ := h.engine.Workflow(def.ID)
	Created(w, WorkflowFromDomain(stored))
}

// GetWorkflow возвращает определение workflow.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	def, ok := h.engine.Workflow(r.PathValue("id"))
	if !ok {
		NotFound(w, "workflow not found")
		return
	}

	Success(w, WorkflowFromDomain(def))
}
