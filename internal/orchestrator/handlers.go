package orchestrator

import (
	"context"
	"fmt"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/service"
)

// Операции оркестратора как сервиса.
const (
	OpExecuteWorkflow   = "execute_workflow"
	OpGetWorkflowStatus = "get_workflow_status"
	OpCancelWorkflow    = "cancel_workflow"
	OpGetServices       = "get_services"
	OpRegisterService   = "register_service"
	OpGetStats          = "get_stats"
	OpPlanWorkflow      = "plan_workflow"
)

// Handle выполняет операцию оркестратора.
func (o *Orchestrator) Handle(ctx context.Context, op string, data map[string]any) (any, error) {
	switch op {
	case OpExecuteWorkflow:
		return o.handleExecuteWorkflow(data)
	case OpGetWorkflowStatus:
		return o.handleWorkflowStatus(data)
	case OpCancelWorkflow:
		return o.handleCancelWorkflow(data)
	case OpGetServices:
		return map[string]any{"services": o.Services()}, nil
	case OpRegisterService:
		return o.handleRegisterService(ctx, data)
	case OpGetStats:
		return o.Stats(ctx), nil
	case OpPlanWorkflow:
		return o.handlePlanWorkflow(data)
	default:
		return nil, service.UnknownOperation(op)
	}
}

func (o *Orchestrator) handleExecuteWorkflow(data map[string]any) (any, error) {
	steps, err := domain.DecodeSteps(data["steps"])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	id, err := o.Submit(steps)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"workflow_id": id,
		"status":      "started",
		"steps_count": len(steps),
	}, nil
}

func (o *Orchestrator) handleWorkflowStatus(data map[string]any) (any, error) {
	id, err := stringArg(data, "workflow_id")
	if err != nil {
		return nil, err
	}
	return o.Status(id)
}

func (o *Orchestrator) handleCancelWorkflow(data map[string]any) (any, error) {
	id, err := stringArg(data, "workflow_id")
	if err != nil {
		return nil, err
	}

	cancelled, err := o.Cancel(id)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"workflow_id": id,
		"cancelled":   cancelled,
	}, nil
}

func (o *Orchestrator) handleRegisterService(ctx context.Context, data map[string]any) (any, error) {
	typ, err := stringArg(data, "service_type")
	if err != nil {
		return nil, err
	}
	cfg, _ := data["config"].(map[string]any)

	reg, err := o.RegisterService(ctx, typ, cfg)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (o *Orchestrator) handlePlanWorkflow(data map[string]any) (any, error) {
	steps, err := domain.DecodeSteps(data["steps"])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	batches, err := o.Plan(steps)
	if err != nil {
		return nil, err
	}
	return map[string]any{"batches": batches}, nil
}

// ServiceSummary — сервис в ответе get_services.
type ServiceSummary struct {
	ID           string               `json:"service_id"`
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	Version      string               `json:"version"`
	Status       domain.ServiceStatus `json:"status"`
	Tags         []string             `json:"tags"`
	Dependencies []string             `json:"dependencies"`
	Metrics      SummaryMetrics       `json:"metrics"`
}

// SummaryMetrics — краткие метрики сервиса.
type SummaryMetrics struct {
	TotalRequests     int64   `json:"total_requests"`
	SuccessRate       float64 `json:"success_rate"`
	AverageResponseMs float64 `json:"average_response_ms"`
}

// Services возвращает краткую информацию о зарегистрированных сервисах.
func (o *Orchestrator) Services() []ServiceSummary {
	infos := o.registry.AllInfo()
	out := make([]ServiceSummary, 0, len(infos))
	for _, info := range infos {
		out = append(out, ServiceSummary{
			ID:           info.ID,
			Name:         info.Name,
			Description:  info.Description,
			Version:      info.Version,
			Status:       info.Status,
			Tags:         info.Tags,
			Dependencies: info.Dependencies,
			Metrics: SummaryMetrics{
				TotalRequests:     info.Metrics.TotalRequests,
				SuccessRate:       info.Metrics.SuccessRate(),
				AverageResponseMs: info.Metrics.AverageResponseMs,
			},
		})
	}
	return out
}

// Registration — результат register_service.
type Registration struct {
	ServiceID      string   `json:"service_id"`
	ServiceName    string   `json:"service_name"`
	Registered     bool     `json:"registered"`
	DependenciesOK bool     `json:"dependencies_ok"`
	Missing        []string `json:"missing_dependencies,omitempty"`
}

// RegisterService создаёт сервис через фабрику и регистрирует его.
func (o *Orchestrator) RegisterService(ctx context.Context, serviceType string, config map[string]any) (Registration, error) {
	if o.factory == nil || !o.factory.Supports(serviceType) {
		return Registration{}, fmt.Errorf("%w: %s", ErrUnknownServiceType, serviceType)
	}

	svc, err := o.factory.Create(ctx, serviceType, config)
	if err != nil {
		return Registration{}, fmt.Errorf("create %s service: %w", serviceType, err)
	}

	if err := o.registry.Register(ctx, svc); err != nil {
		return Registration{}, err
	}

	missing, err := o.registry.ValidateDependencies(svc.ID())
	if err != nil {
		return Registration{}, err
	}

	o.logger.Info("service registered via orchestrator",
		"service", svc.Name(),
		"service_type", serviceType,
		"dependencies_ok", len(missing) == 0,
	)

	return Registration{
		ServiceID:      svc.ID(),
		ServiceName:    svc.Name(),
		Registered:     true,
		DependenciesOK: len(missing) == 0,
		Missing:        missing,
	}, nil
}

func stringArg(data map[string]any, key string) (string, error) {
	v, ok := data[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgument, key)
	}
	return v, nil
}
