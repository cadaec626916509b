package registry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/runner"
	"github.com/shaiso/Maestro/internal/service"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// Default configuration values.
const (
	DefaultHealthInterval    = 30 * time.Second
	DefaultErrorBackoff      = 5 * time.Second
	DefaultHealthConcurrency = 10
)

// Config — конфигурация Registry.
type Config struct {
	// HealthInterval — интервал health check (default: 30s).
	HealthInterval time.Duration

	// ErrorBackoff — пауза после ошибки цикла health check (default: 5s).
	ErrorBackoff time.Duration

	// HealthConcurrency — сколько сервисов проверяется одновременно (default: 10).
	HealthConcurrency int

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Registry — реестр сервисов.
type Registry struct {
	healthInterval time.Duration
	errorBackoff   time.Duration
	checker        *runner.Runner

	logger  *slog.Logger
	metrics *telemetry.Metrics

	// mu защищает services, order, infos, detach и pending.
	mu       sync.RWMutex
	services map[string]*service.Service
	order    []string
	infos    map[string]domain.ServiceInfo
	detach   map[string]func()
	pending  map[string]struct{}

	// handlersMu защищает handlers.
	handlersMu sync.Mutex
	handlers   []subscription
	nextSubID  int

	// Lifecycle
	lifecycleMu sync.Mutex
	running     bool
	cancelFunc  context.CancelFunc
	wg          sync.WaitGroup
}

// New создаёт Registry.
func New(cfg Config) *Registry {
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = DefaultHealthInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.HealthConcurrency <= 0 {
		cfg.HealthConcurrency = DefaultHealthConcurrency
	}

	logger := telemetry.OrDefault(cfg.Logger).With("component", "registry")

	r := &Registry{
		healthInterval: cfg.HealthInterval,
		errorBackoff:   cfg.ErrorBackoff,
		logger:         logger,
		metrics:        cfg.Metrics,
		services:       make(map[string]*service.Service),
		infos:          make(map[string]domain.ServiceInfo),
		detach:         make(map[string]func()),
		pending:        make(map[string]struct{}),
	}

	r.checker = runner.New(runner.Config{
		Name:           "health-check",
		MaxConcurrency: cfg.HealthConcurrency,
		Process:        r.probe,
		Logger:         logger,
	})

	return r
}

// Register регистрирует сервис.
//
// Если сервис не запущен, он запускается; ошибка запуска
// возвращается как ошибка регистрации.
func (r *Registry) Register(ctx context.Context, svc *service.Service) error {
	id := svc.ID()

	// 1. Резервируем ID
	r.mu.Lock()
	_, exists := r.services[id]
	_, inFlight := r.pending[id]
	if exists || inFlight {
		r.mu.Unlock()
		r.logger.Warn("service already registered", "service", svc.Name(), "service_id", id)
		return fmt.Errorf("%w: %s (%s)", ErrAlreadyRegistered, svc.Name(), id)
	}
	r.pending[id] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	// 2. Запускаем сервис
	if !svc.IsRunning() {
		if err := svc.Start(ctx); err != nil {
			r.logger.Error("failed to start service", "service", svc.Name(), "error", err)
			return fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	// 3. Сохраняем
	detach := svc.OnStatusChange(r.statusChanged)

	r.mu.Lock()
	r.services[id] = svc
	r.order = append(r.order, id)
	r.infos[id] = svc.Info()
	r.detach[id] = detach
	r.mu.Unlock()

	// 4. Уведомляем подписчиков
	r.emit(ctx, domain.NewEvent(domain.EventServiceRegistered, id, svc.Name(), map[string]any{
		"version": svc.Info().Version,
		"tags":    svc.Info().Tags,
	}))

	r.logger.Info("service registered", "service", svc.Name(), "service_id", id)
	return nil
}

// Unregister останавливает сервис и удаляет его из реестра.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	svc, ok := r.Get(id)
	if !ok {
		r.logger.Warn("service is not registered", "service_id", id)
		return fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}

	if svc.IsRunning() {
		if err := svc.Stop(ctx); err != nil {
			r.logger.Error("failed to stop service", "service", svc.Name(), "error", err)
			return fmt.Errorf("unregister %s: %w", svc.Name(), err)
		}
	}

	r.remove(id)

	r.emit(ctx, domain.NewEvent(domain.EventServiceUnregistered, id, svc.Name(), nil))

	r.logger.Info("service unregistered", "service", svc.Name(), "service_id", id)
	return nil
}

// remove удаляет сервис из всех структур реестра.
func (r *Registry) remove(id string) {
	r.mu.Lock()
	detach := r.detach[id]
	delete(r.services, id)
	delete(r.infos, id)
	delete(r.detach, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
	r.mu.Unlock()

	if detach != nil {
		detach()
	}
}

// Restart перезапускает зарегистрированный сервис.
func (r *Registry) Restart(ctx context.Context, id string) error {
	svc, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}

	from := svc.Status()
	err := svc.Restart(ctx)
	r.refreshInfo(svc)

	info := svc.Info()
	r.emitStatusChanged(ctx, info, from, info.Status, "restart")

	if err != nil {
		return fmt.Errorf("restart %s: %w", svc.Name(), err)
	}
	return nil
}

// Get возвращает сервис по ID.
func (r *Registry) Get(id string) (*service.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[id]
	return svc, ok
}

// FindByName возвращает первый сервис с именем name
// в порядке регистрации.
func (r *Registry) FindByName(name string) (*service.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if svc := r.services[id]; svc.Name() == name {
			return svc, true
		}
	}
	return nil, false
}

// FindByTag возвращает все сервисы с тегом tag.
func (r *Registry) FindByTag(tag string) []*service.Service {
	return r.filter(func(svc *service.Service) bool {
		info := svc.Info()
		return info.HasTag(tag)
	})
}

// All возвращает все сервисы в порядке регистрации.
func (r *Registry) All() []*service.Service {
	return r.filter(func(*service.Service) bool { return true })
}

// Running возвращает сервисы в статусе RUNNING.
func (r *Registry) Running() []*service.Service {
	return r.filter((*service.Service).IsRunning)
}

func (r *Registry) filter(keep func(*service.Service) bool) []*service.Service {
	r.mu.RLock()
	services := make([]*service.Service, 0, len(r.order))
	for _, id := range r.order {
		services = append(services, r.services[id])
	}
	r.mu.RUnlock()

	return slices.DeleteFunc(services, func(svc *service.Service) bool {
		return !keep(svc)
	})
}

// Info возвращает актуальную информацию о сервисе и обновляет кэш.
func (r *Registry) Info(id string) (domain.ServiceInfo, error) {
	svc, ok := r.Get(id)
	if !ok {
		return domain.ServiceInfo{}, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}
	return r.refreshInfo(svc), nil
}

// AllInfo возвращает актуальную информацию обо всех сервисах.
func (r *Registry) AllInfo() []domain.ServiceInfo {
	services := r.All()
	infos := make([]domain.ServiceInfo, 0, len(services))
	for _, svc := range services {
		infos = append(infos, r.refreshInfo(svc))
	}
	return infos
}

// CachedInfo возвращает последний сохранённый снимок без обращения к сервису.
func (r *Registry) CachedInfo(id string) (domain.ServiceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.infos[id]
	return info, ok
}

func (r *Registry) refreshInfo(svc *service.Service) domain.ServiceInfo {
	info := svc.Info()

	r.mu.Lock()
	if _, ok := r.services[info.ID]; ok {
		r.infos[info.ID] = info
	}
	r.mu.Unlock()

	return info
}

// Dependencies возвращает объявленные зависимости сервиса.
func (r *Registry) Dependencies(id string) ([]string, error) {
	svc, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
	}
	return svc.Info().Dependencies, nil
}

// ValidateDependencies возвращает зависимости сервиса,
// для которых нет RUNNING сервиса с таким именем.
func (r *Registry) ValidateDependencies(id string) ([]string, error) {
	deps, err := r.Dependencies(id)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range deps {
		dep, ok := r.FindByName(name)
		if !ok || !dep.IsRunning() {
			r.logger.Warn("dependency not available", "service_id", id, "dependency", name)
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// statusChanged обновляет кэш info зарегистрированного сервиса.
// service_status_changed публикуется только для перехода RUNNING → ERROR,
// который вызывает неудачный health check.
func (r *Registry) statusChanged(info domain.ServiceInfo, from, to domain.ServiceStatus) {
	r.mu.Lock()
	if _, ok := r.services[info.ID]; ok {
		r.infos[info.ID] = info
	}
	r.mu.Unlock()

	if from != domain.ServiceStatusRunning || to != domain.ServiceStatusError {
		return
	}
	r.emitStatusChanged(context.Background(), info, from, to, "health_check")
}

func (r *Registry) emitStatusChanged(ctx context.Context, info domain.ServiceInfo, from, to domain.ServiceStatus, reason string) {
	r.emit(ctx, domain.NewEvent(domain.EventServiceStatusChanged, info.ID, info.Name, map[string]any{
		"from":   from.String(),
		"to":     to.String(),
		"reason": reason,
	}))
}

// Start запускает цикл health check.
func (r *Registry) Start(ctx context.Context) {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()

	if r.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel
	r.running = true

	r.logger.Info("starting service registry", "health_interval", r.healthInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.healthLoop(ctx)
	}()
}

// IsRunning возвращает true, если цикл health check запущен.
func (r *Registry) IsRunning() bool {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	return r.running
}

// Stop останавливает цикл health check, затем останавливает
// все сервисы (продолжая после ошибок) и очищает реестр.
func (r *Registry) Stop(ctx context.Context) {
	r.lifecycleMu.Lock()
	if r.running {
		r.logger.Info("stopping service registry")
		r.cancelFunc()
		r.running = false
	}
	r.lifecycleMu.Unlock()

	r.wg.Wait()

	for _, svc := range r.All() {
		if svc.Status() == domain.ServiceStatusStopped {
			continue
		}
		if err := svc.Stop(ctx); err != nil {
			r.logger.Error("failed to stop service", "service", svc.Name(), "error", err)
		}
	}

	r.mu.Lock()
	detach := r.detach
	r.services = make(map[string]*service.Service)
	r.infos = make(map[string]domain.ServiceInfo)
	r.detach = make(map[string]func())
	r.order = nil
	r.mu.Unlock()

	for _, fn := range detach {
		fn()
	}

	r.logger.Info("service registry stopped")
}
