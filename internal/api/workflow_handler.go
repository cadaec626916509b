package api

import (
	"encoding/json"
	"net/http"
)

// SubmitWorkflow запускает workflow.
// POST /api/v1/workflows
func (h *Handler) SubmitWorkflow(w http.ResponseWriter, r *http.Request) {
	var req SubmitWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	id, err := h.orch.Submit(req.Steps)
	if HandleError(w, h.logger, err) {
		return
	}

	Accepted(w, SubmitWorkflowResponse{
		WorkflowID: id,
		Status:     "started",
		StepsCount: len(req.Steps),
	})
}

// PlanWorkflow возвращает порядок выполнения без запуска.
// POST /api/v1/workflows/plan
func (h *Handler) PlanWorkflow(w http.ResponseWriter, r *http.Request) {
	var req SubmitWorkflowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	batches, err := h.orch.Plan(req.Steps)
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, PlanResponse{Batches: batches})
}

// ListWorkflows возвращает все известные workflows.
// GET /api/v1/workflows
func (h *Handler) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows := h.orch.List()
	List(w, workflows, len(workflows))
}

// GetWorkflow возвращает состояние workflow.
// GET /api/v1/workflows/{id}
func (h *Handler) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	snap, err := h.orch.Status(r.PathValue("id"))
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, snap)
}

// CancelWorkflow отменяет workflow.
// POST /api/v1/workflows/{id}/cancel
func (h *Handler) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	cancelled, err := h.orch.Cancel(id)
	if HandleError(w, h.logger, err) {
		return
	}

	Success(w, CancelResponse{WorkflowID: id, Cancelled: cancelled})
}

// GetStats возвращает статистику orchestrator.
// GET /api/v1/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	Success(w, h.orch.Stats(r.Context()))
}
