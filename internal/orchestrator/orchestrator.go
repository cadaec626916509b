package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
	"github.com/shaiso/Maestro/internal/registry"
	"github.com/shaiso/Maestro/internal/service"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// Default configuration values.
const (
	DefaultRetryBaseDelay = time.Second
	publishTimeout        = 5 * time.Second
)

// ServiceFactory создаёт сервисы по типу для register_service.
type ServiceFactory interface {
	// Supports сообщает, известен ли фабрике тип сервиса.
	Supports(serviceType string) bool

	// Create создаёт (но не запускает) сервис.
	Create(ctx context.Context, serviceType string, config map[string]any) (*service.Service, error)
}

// EventPublisher публикует события во внешнюю шину.
type EventPublisher interface {
	PublishWorkflowEvent(ctx context.Context, wf domain.WorkflowSnapshot) error
	PublishRegistryEvent(ctx context.Context, event domain.Event) error
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Registry — реестр сервисов, в котором ищутся сервисы шагов.
	Registry *registry.Registry

	// Factory — фабрика сервисов для register_service (опционально).
	Factory ServiceFactory

	// Publisher — публикация событий (опционально).
	Publisher EventPublisher

	// RetryBaseDelay — задержка перед повтором = RetryBaseDelay × номер попытки
	// (default: 1s).
	RetryBaseDelay time.Duration

	// CancelSiblingsOnFailure — отменять остальные шаги parallel batch,
	// когда один из них исчерпал повторы (default: false).
	CancelSiblingsOnFailure bool

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Orchestrator выполняет workflows.
//
// Каждый workflow выполняется в своей горутине и может быть отменён
// по ID. Состояние workflows хранится только в памяти.
type Orchestrator struct {
	registry       *registry.Registry
	factory        ServiceFactory
	publisher      EventPublisher
	retryBaseDelay time.Duration
	cancelSiblings bool

	logger  *slog.Logger
	metrics *telemetry.Metrics

	// mu защищает workflows, active, счётчики и сами Workflow.
	mu        sync.RWMutex
	workflows map[string]*domain.Workflow
	active    map[string]*execution
	succeeded int
	failed    int

	// Lifecycle
	wg         sync.WaitGroup
	subMu      sync.Mutex
	subID      int
	subscribed bool
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Registry == nil {
		cfg.Registry = registry.New(registry.Config{Logger: cfg.Logger, Metrics: cfg.Metrics})
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}

	return &Orchestrator{
		registry:       cfg.Registry,
		factory:        cfg.Factory,
		publisher:      cfg.Publisher,
		retryBaseDelay: cfg.RetryBaseDelay,
		cancelSiblings: cfg.CancelSiblingsOnFailure,
		logger:         telemetry.OrDefault(cfg.Logger).With("component", "orchestrator"),
		metrics:        cfg.Metrics,
		workflows:      make(map[string]*domain.Workflow),
		active:         make(map[string]*execution),
	}
}

// Registry возвращает реестр сервисов оркестратора.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Submit принимает workflow и запускает его выполнение.
//
// Возвращает ID сразу; статус нужно запрашивать через Status.
// Ошибка возвращается только при невалидном списке шагов.
func (o *Orchestrator) Submit(steps []domain.Step) (string, error) {
	prepared, err := engine.Prepare(steps)
	if err != nil {
		return "", err
	}

	wf := domain.NewWorkflow(uuid.New().String(), prepared)

	ctx, cancel := context.WithCancel(context.Background())
	exec := &execution{cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	o.workflows[wf.ID] = wf
	o.active[wf.ID] = exec
	o.mu.Unlock()

	o.logger.Info("workflow submitted", "workflow_id", wf.ID, "steps", len(prepared))

	o.wg.Add(1)
	go o.run(ctx, wf, exec)

	return wf.ID, nil
}

// run выполняет workflow от RUNNING до финального статуса.
func (o *Orchestrator) run(ctx context.Context, wf *domain.Workflow, exec *execution) {
	defer o.wg.Done()
	defer close(exec.done)
	defer exec.cancel()

	o.mu.Lock()
	started := wf.MarkRunning()
	o.mu.Unlock()

	o.metrics.WorkflowStarted()

	var err error
	if started {
		o.logger.Info("workflow started", "workflow_id", wf.ID)
		err = o.execute(ctx, wf, newRunState(wf))
	}

	o.finish(ctx, wf, err)
}

// finish переводит workflow в финальный статус и убирает его из активных.
func (o *Orchestrator) finish(ctx context.Context, wf *domain.Workflow, err error) {
	o.mu.Lock()
	switch {
	case wf.IsFinished():
		// Отменён через Cancel.
	case ctx.Err() != nil:
		wf.MarkCancelled()
	case err != nil:
		wf.MarkFailed(err.Error())
		o.failed++
	default:
		wf.MarkCompleted()
		o.succeeded++
	}
	delete(o.active, wf.ID)
	snap := wf.Snapshot()
	o.mu.Unlock()

	o.metrics.WorkflowFinished(string(snap.Status))

	logger := telemetry.WithWorkflowID(o.logger, wf.ID)
	switch snap.Status {
	case domain.WorkflowStatusFailed:
		logger.Error("workflow failed", "error", err, "steps_completed", snap.StepsCompleted)
	default:
		logger.Info("workflow finished",
			"status", snap.Status,
			"steps_completed", snap.StepsCompleted,
			"steps_total", snap.StepsTotal,
		)
	}

	o.publishWorkflow(snap)
}

func (o *Orchestrator) publishWorkflow(snap domain.WorkflowSnapshot) {
	if o.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := o.publisher.PublishWorkflowEvent(ctx, snap); err != nil {
		o.logger.Warn("failed to publish workflow event", "workflow_id", snap.ID, "error", err)
	}
}

// Cancel отменяет workflow.
//
// Возвращает true, если было найдено живое выполнение.
// Для неизвестного ID возвращает ErrWorkflowNotFound.
func (o *Orchestrator) Cancel(id string) (bool, error) {
	o.mu.Lock()
	wf, ok := o.workflows[id]
	if !ok {
		o.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}

	exec, live := o.active[id]
	if !live || wf.IsFinished() {
		o.mu.Unlock()
		return false, nil
	}
	wf.MarkCancelled()
	o.mu.Unlock()

	exec.cancel()

	o.logger.Info("workflow cancelled", "workflow_id", id)
	return true, nil
}

// Status возвращает снимок состояния workflow.
func (o *Orchestrator) Status(id string) (domain.WorkflowSnapshot, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	wf, ok := o.workflows[id]
	if !ok {
		return domain.WorkflowSnapshot{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}
	return wf.Snapshot(), nil
}

// List возвращает снимки всех workflows в порядке создания.
func (o *Orchestrator) List() []domain.WorkflowSnapshot {
	o.mu.RLock()
	snaps := make([]domain.WorkflowSnapshot, 0, len(o.workflows))
	for _, wf := range o.workflows {
		snaps = append(snaps, wf.Snapshot())
	}
	o.mu.RUnlock()

	slices.SortFunc(snaps, func(a, b domain.WorkflowSnapshot) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return snaps
}

// Wait ждёт завершения workflow и возвращает его финальный снимок.
func (o *Orchestrator) Wait(ctx context.Context, id string) (domain.WorkflowSnapshot, error) {
	o.mu.RLock()
	_, known := o.workflows[id]
	exec, live := o.active[id]
	o.mu.RUnlock()

	if !known {
		return domain.WorkflowSnapshot{}, fmt.Errorf("%w: %s", ErrWorkflowNotFound, id)
	}

	if live {
		select {
		case <-exec.done:
		case <-ctx.Done():
			return domain.WorkflowSnapshot{}, ctx.Err()
		}
	}
	return o.Status(id)
}

// Plan возвращает порядок выполнения шагов без их запуска.
func (o *Orchestrator) Plan(steps []domain.Step) ([]engine.Batch, error) {
	prepared, err := engine.Prepare(steps)
	if err != nil {
		return nil, err
	}
	return engine.Plan(prepared)
}

// Shutdown отменяет все живые workflows и ждёт их завершения.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.RLock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	o.mu.RUnlock()

	for _, id := range ids {
		if _, err := o.Cancel(id); err != nil {
			o.logger.Warn("failed to cancel workflow", "workflow_id", id, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.logger.Info("all workflows stopped", "cancelled", len(ids))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workflows: %w", ctx.Err())
	}
}
