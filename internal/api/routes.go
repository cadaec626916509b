package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes возвращает http.Handler со всеми маршрутами и middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	return Chain(
		Recovery(h.logger),
		Logging(h.logger),
		CountRequests(h.metrics),
	)(mux)
}

// RegisterRoutes регистрирует маршруты в mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Workflows
	mux.HandleFunc("POST /api/v1/workflows", h.SubmitWorkflow)
	mux.HandleFunc("POST /api/v1/workflows/plan", h.PlanWorkflow)
	mux.HandleFunc("GET /api/v1/workflows", h.ListWorkflows)
	mux.HandleFunc("GET /api/v1/workflows/{id}", h.GetWorkflow)
	mux.HandleFunc("POST /api/v1/workflows/{id}/cancel", h.CancelWorkflow)

	// Services
	mux.HandleFunc("GET /api/v1/services", h.ListServices)
	mux.HandleFunc("POST /api/v1/services", h.RegisterService)
	mux.HandleFunc("POST /api/v1/services/{id}/restart", h.RestartService)
	mux.HandleFunc("DELETE /api/v1/services/{id}", h.RemoveService)

	// Stats
	mux.HandleFunc("GET /api/v1/stats", h.GetStats)
}

// Health отвечает 200, пока процесс жив.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok %s", time.Since(h.startedAt).Round(time.Second))
}
