package api

import (
	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
)

// Workflow DTOs

// SubmitWorkflowRequest — запрос на запуск или планирование workflow.
type SubmitWorkflowRequest struct {
	Steps []domain.Step `json:"steps"`
}

// SubmitWorkflowResponse — ответ на запуск workflow.
type SubmitWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	Status     string `json:"status"`
	StepsCount int    `json:"steps_count"`
}

// PlanResponse — порядок выполнения шагов.
type PlanResponse struct {
	Batches []engine.Batch `json:"batches"`
}

// CancelResponse — результат отмены.
type CancelResponse struct {
	WorkflowID string `json:"workflow_id"`
	Cancelled  bool   `json:"cancelled"`
}

// Service DTOs

// RegisterServiceRequest — регистрация сервиса по типу.
type RegisterServiceRequest struct {
	ServiceType string         `json:"service_type"`
	Config      map[string]any `json:"config,omitempty"`
}

// RestartResponse — результат перезапуска.
type RestartResponse struct {
	ServiceID string               `json:"service_id"`
	Status    domain.ServiceStatus `json:"status"`
}
