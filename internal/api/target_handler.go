package api

import "net/http"

// ListTargets возвращает target, до которых движок доставляет задачи:
// режим доставки, endpoint и политику таймаута/повторов.
// GET /api/v1/targets
func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	result := make([]TargetResponse, 0)
	if h.targets != nil {
		for _, t := range h.targets.Describe() {
			result = append(result, TargetFromDispatch(t))
		}
	}
	List(w, result, len(result))
}
