package api

import (
	"encoding/json"
	"net/http"
)

// ListServices возвращает зарегистрированные сервисы.
// GET /api/v1/services
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services := h.orch.Services()
	List(w, services, len(services))
}

// RegisterService создаёт сервис по типу, запускает и регистрирует его.
// POST /api/v1/services
func (h *Handler) RegisterService(w http.ResponseWriter, r *http.Request) {
	var req RegisterServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.ServiceType == "" {
		BadRequest(w, "service_type is required")
		return
	}

	reg, err := h.orch.RegisterService(r.Context(), req.ServiceType, req.Config)
	if HandleError(w, h.logger, err) {
		return
	}

	Created(w, reg)
}

// RestartService перезапускает сервис.
// POST /api/v1/services/{id}/restart
func (h *Handler) RestartService(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reg := h.orch.Registry()

	if err := reg.Restart(r.Context(), id); HandleError(w, h.logger, err) {
		return
	}

	info, err := reg.Info(id)
	if HandleError(w, h.logger, err) {
		return
	}
	Success(w, RestartResponse{ServiceID: id, Status: info.Status})
}

// RemoveService останавливает сервис и удаляет его из реестра.
// DELETE /api/v1/services/{id}
func (h *Handler) RemoveService(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.Registry().Unregister(r.Context(), r.PathValue("id")); HandleError(w, h.logger, err) {
		return
	}
	NoContent(w)
}
