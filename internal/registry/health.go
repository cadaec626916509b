package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/service"
)

// healthLoop проверяет здоровье сервисов каждые healthInterval.
//
// Ошибка одного сервиса не останавливает цикл. Цикл завершается
// только при отмене ctx, в том числе во время ожидания.
func (r *Registry) healthLoop(ctx context.Context) {
	for {
		wait := r.healthInterval

		var pc panics.Catcher
		pc.Try(func() { r.CheckHealth(ctx) })
		if rec := pc.Recovered(); rec != nil {
			r.logger.Error("health check loop error", "error", rec.AsError())
			wait = r.errorBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// probe — обработчик task health check'а: ID task совпадает с ID сервиса.
func (r *Registry) probe(ctx context.Context, task *domain.Task) (any, error) {
	svc, ok := r.Get(task.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, task.ID)
	}
	return nil, svc.HealthCheck(ctx)
}

// CheckHealth выполняет один раунд проверки всех RUNNING сервисов.
//
// Сервисы проверяются параллельно, по одной task на сервис.
// Для каждой неудачной проверки публикуется service_health_check_failed.
// Возвращает число неудачных проверок; раунд, прерванный отменой ctx,
// возвращает 0 без событий.
func (r *Registry) CheckHealth(ctx context.Context) int {
	running := r.Running()
	if len(running) == 0 {
		return 0
	}

	tasks := make([]*domain.Task, 0, len(running))
	byID := make(map[string]*service.Service, len(running))
	for _, svc := range running {
		tasks = append(tasks, domain.NewTask(svc.ID(), svc.Name(), nil))
		byID[svc.ID()] = svc
	}

	results := r.checker.Run(ctx, tasks)

	// При остановке реестра проверки прерываются отменой ctx:
	// это не отказ сервисов, события не публикуются.
	if ctx.Err() != nil {
		r.logger.Debug("health check interrupted", "checked", len(tasks))
		return 0
	}

	var failed int
	for _, task := range tasks {
		svc := byID[task.ID]
		r.refreshInfo(svc)

		if results[task.ID].Succeeded() {
			continue
		}
		failed++

		r.logger.Warn("health check failed", "service", svc.Name(), "error", task.Err)
		r.emit(ctx, domain.NewEvent(domain.EventServiceHealthCheckFailed, svc.ID(), svc.Name(), map[string]any{
			"health_status": "failed",
			"error":         task.ErrorMessage(),
		}))
	}

	r.logger.Debug("health check completed", "checked", len(tasks), "failed", failed)
	return failed
}
