package orchestrator

import (
	"context"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/service"
)

// ServiceName — имя оркестратора как сервиса.
const ServiceName = "orchestrator-service"

// AsService оборачивает оркестратор в service.Service.
//
// Пустые Name, Description и Tags в cfg заполняются значениями оркестратора.
func (o *Orchestrator) AsService(cfg service.Config) *service.Service {
	if cfg.Name == "" {
		cfg.Name = ServiceName
	}
	if cfg.Description == "" {
		cfg.Description = "Coordinates multi-service workflows"
	}
	if len(cfg.Tags) == 0 {
		cfg.Tags = []string{"orchestration", "workflow", "coordination"}
	}
	if cfg.Logger == nil {
		cfg.Logger = o.logger
	}
	if cfg.Metrics == nil {
		cfg.Metrics = o.metrics
	}
	return service.New(o, cfg)
}

// OnStart запускает реестр и подписывается на его события.
func (o *Orchestrator) OnStart(ctx context.Context) error {
	o.registry.Start(context.WithoutCancel(ctx))

	o.subMu.Lock()
	if !o.subscribed {
		o.subID = o.registry.Subscribe(o.handleRegistryEvent)
		o.subscribed = true
	}
	o.subMu.Unlock()

	o.logger.Info("orchestrator started")
	return nil
}

// OnStop отменяет все workflows, ждёт их и останавливает реестр.
func (o *Orchestrator) OnStop(ctx context.Context) error {
	err := o.Shutdown(ctx)

	o.subMu.Lock()
	if o.subscribed {
		o.registry.Unsubscribe(o.subID)
		o.subscribed = false
	}
	o.subMu.Unlock()

	o.registry.Stop(ctx)

	o.logger.Info("orchestrator stopped")
	return err
}

// HealthProbe возвращает true, пока реестр запущен.
func (o *Orchestrator) HealthProbe(ctx context.Context) (bool, error) {
	return o.registry.IsRunning(), nil
}

// handleRegistryEvent логирует событие реестра и пересылает его в шину.
func (o *Orchestrator) handleRegistryEvent(ctx context.Context, event domain.Event) error {
	logger := o.logger.With("event_type", event.Type, "service", event.ServiceName)

	switch event.Type {
	case domain.EventServiceHealthCheckFailed:
		logger.Warn("service health check failed", "metadata", event.Metadata)
	default:
		logger.Info("registry event", "service_id", event.ServiceID)
	}

	if o.publisher == nil {
		return nil
	}
	return o.publisher.PublishRegistryEvent(ctx, event)
}
