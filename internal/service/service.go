package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/runner"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// Default configuration values.
const (
	DefaultMaxConcurrentRequests = 10
	DefaultRequestTimeout        = 30 * time.Second
	DefaultRestartDelay          = time.Second

	responseWindowSize = 100
)

// StatusListener вызывается после каждой смены статуса сервиса.
type StatusListener func(info domain.ServiceInfo, from, to domain.ServiceStatus)

// Config — конфигурация Service.
type Config struct {
	// ID — идентификатор (если пусто — генерируется UUID).
	ID string

	Name        string
	Description string
	Version     string

	// Tags — метки для поиска по возможностям.
	Tags []string

	// Dependencies — имена сервисов, которые должны быть здоровы.
	Dependencies []string

	// Configuration — произвольные настройки сервиса.
	// Ключи max_concurrent_requests и request_timeout (секунды)
	// используются, если соответствующие поля Config не заданы.
	Configuration map[string]any

	// MaxConcurrentRequests — лимит одновременных запросов (default: 10).
	MaxConcurrentRequests int

	// RequestTimeout — верхняя граница времени запроса (default: 30s).
	RequestTimeout time.Duration

	// RestartDelay — пауза между stop и start в Restart (default: 1s).
	RestartDelay time.Duration

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Service — сервис с жизненным циклом, health check и
// ограниченной по времени и параллелизму обработкой запросов.
type Service struct {
	hooks  Hooks
	runner *runner.Runner

	requestTimeout time.Duration
	restartDelay   time.Duration

	logger  *slog.Logger
	metrics *telemetry.Metrics

	// lifecycleMu сериализует Start/Stop.
	lifecycleMu sync.Mutex

	// mu защищает info, startedAt, window и listeners.
	mu        sync.RWMutex
	info      domain.ServiceInfo
	startedAt *time.Time
	window    *responseWindow
	listeners []statusSub
	nextSub   int
}

type statusSub struct {
	id int
	fn StatusListener
}

// New создаёт остановленный сервис.
func New(hooks Hooks, cfg Config) *Service {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.Configuration == nil {
		cfg.Configuration = make(map[string]any)
	}
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = intSetting(cfg.Configuration, "max_concurrent_requests", DefaultMaxConcurrentRequests)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = secondsSetting(cfg.Configuration, "request_timeout", DefaultRequestTimeout)
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.Tags == nil {
		cfg.Tags = []string{}
	}
	if cfg.Dependencies == nil {
		cfg.Dependencies = []string{}
	}

	logger := telemetry.WithServiceName(telemetry.OrDefault(cfg.Logger), cfg.Name)

	return &Service{
		hooks: hooks,
		runner: runner.New(runner.Config{
			Name:           cfg.Name,
			MaxConcurrency: cfg.MaxConcurrentRequests,
			Logger:         logger,
		}),
		requestTimeout: cfg.RequestTimeout,
		restartDelay:   cfg.RestartDelay,
		logger:         logger,
		metrics:        cfg.Metrics,
		info: domain.ServiceInfo{
			ID:            cfg.ID,
			Name:          cfg.Name,
			Description:   cfg.Description,
			Version:       cfg.Version,
			Status:        domain.ServiceStatusStopped,
			CreatedAt:     time.Now(),
			Tags:          cfg.Tags,
			Dependencies:  cfg.Dependencies,
			Configuration: cfg.Configuration,
		},
		window: newResponseWindow(responseWindowSize),
	}
}

// ID возвращает идентификатор сервиса.
func (s *Service) ID() string {
	return s.info.ID
}

// Name возвращает имя сервиса.
func (s *Service) Name() string {
	return s.info.Name
}

// Hooks возвращает реализацию сервиса.
func (s *Service) Hooks() Hooks {
	return s.hooks
}

// Status возвращает текущий статус.
func (s *Service) Status() domain.ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Status
}

// IsRunning возвращает true, если сервис в статусе RUNNING.
func (s *Service) IsRunning() bool {
	return s.Status() == domain.ServiceStatusRunning
}

// RequestTimeout возвращает верхнюю границу времени запроса.
func (s *Service) RequestTimeout() time.Duration {
	return s.requestTimeout
}

// MaxConcurrentRequests возвращает лимит одновременных запросов.
func (s *Service) MaxConcurrentRequests() int {
	return s.runner.Limit()
}

// Info возвращает снимок информации о сервисе с актуальным uptime.
func (s *Service) Info() domain.ServiceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := s.info.Clone()
	if s.startedAt != nil && info.Status == domain.ServiceStatusRunning {
		info.Metrics.UptimeSec = time.Since(*s.startedAt).Seconds()
	}
	return info
}

// OnStatusChange подписывает listener на смены статуса.
// Возвращает функцию отписки.
func (s *Service) OnStatusChange(l StatusListener) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSub++
	id := s.nextSub
	s.listeners = append(s.listeners, statusSub{id: id, fn: l})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.listeners = slices.DeleteFunc(s.listeners, func(sub statusSub) bool {
			return sub.id == id
		})
	}
}

// Start запускает сервис.
//
// Допустим только из STOPPED. При ошибке OnStart сервис переходит в ERROR.
func (s *Service) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if status := s.Status(); status != domain.ServiceStatusStopped {
		s.logger.Warn("service already running or starting", "status", status)
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, status)
	}

	s.logger.Info("starting service")
	s.setStatus(domain.ServiceStatusStarting)

	if err := callHook(func() error { return s.hooks.OnStart(ctx) }); err != nil {
		s.setStatus(domain.ServiceStatusError)
		s.logger.Error("failed to start service", "error", err)
		return fmt.Errorf("%w: %w", ErrStartupFailure, err)
	}

	now := time.Now()
	s.mu.Lock()
	s.startedAt = &now
	s.mu.Unlock()
	s.setStatus(domain.ServiceStatusRunning)

	s.logger.Info("service started")
	return nil
}

// Stop останавливает сервис. Для уже остановленного сервиса — no-op.
func (s *Service) Stop(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.Status() == domain.ServiceStatusStopped {
		s.logger.Debug("service already stopped")
		return nil
	}

	s.logger.Info("stopping service")
	s.setStatus(domain.ServiceStatusStopping)

	if err := callHook(func() error { return s.hooks.OnStop(ctx) }); err != nil {
		s.setStatus(domain.ServiceStatusError)
		s.logger.Error("failed to stop service", "error", err)
		return fmt.Errorf("%w: %w", ErrShutdownFailure, err)
	}

	s.mu.Lock()
	s.startedAt = nil
	s.mu.Unlock()
	s.setStatus(domain.ServiceStatusStopped)

	s.logger.Info("service stopped")
	return nil
}

// Restart выполняет Stop, паузу RestartDelay и Start.
func (s *Service) Restart(ctx context.Context) error {
	s.logger.Info("restarting service")

	if err := s.Stop(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.restartDelay):
	}

	return s.Start(ctx)
}

// SetMaintenance переводит RUNNING сервис в MAINTENANCE и обратно.
func (s *Service) SetMaintenance(on bool) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	from, to := domain.ServiceStatusRunning, domain.ServiceStatusMaintenance
	if !on {
		from, to = to, from
	}

	if status := s.Status(); status != from {
		return fmt.Errorf("%w: cannot switch maintenance from %s", ErrInvalidTransition, status)
	}

	s.setStatus(to)
	return nil
}

// HealthCheck вызывает probe сервиса.
//
// Время проверки фиксируется всегда, кроме проверки, прерванной
// отменой ctx: тогда возвращается ошибка контекста и статус не меняется.
// Если probe вернул false или ошибку для RUNNING сервиса, статус
// становится ERROR. Ошибка probe не пробрасывается: возвращается
// ErrHealthCheckFailure.
func (s *Service) HealthCheck(ctx context.Context) error {
	var (
		healthy  bool
		probeErr error
		pc       panics.Catcher
	)
	pc.Try(func() {
		healthy, probeErr = s.hooks.HealthProbe(ctx)
	})
	if rec := pc.Recovered(); rec != nil {
		probeErr = rec.AsError()
	}

	// Прерванная проверка ничего не говорит о здоровье сервиса
	if err := ctx.Err(); err != nil && probeErr != nil {
		return err
	}

	now := time.Now()
	s.mu.Lock()
	s.info.LastHealthCheck = &now
	status := s.info.Status
	s.mu.Unlock()

	if probeErr == nil && healthy {
		return nil
	}

	if status == domain.ServiceStatusRunning {
		s.setStatus(domain.ServiceStatusError)
	}
	s.metrics.RecordHealthCheckFailure(s.Name())

	if probeErr != nil {
		s.logger.Error("health check error", "error", probeErr)
		return fmt.Errorf("%w: %w", ErrHealthCheckFailure, probeErr)
	}

	s.logger.Error("health check failed")
	return ErrHealthCheckFailure
}

// ProcessRequest обрабатывает запрос.
//
// Занимает слот сервиса, затем выполняет Handle с deadline
// min(req.Timeout, RequestTimeout). Ошибки не пробрасываются,
// а превращаются в Response с кодом TIMEOUT, UNKNOWN_OPERATION
// или INTERNAL_ERROR. Метрики обновляются ровно один раз.
func (s *Service) ProcessRequest(ctx context.Context, req *domain.Request) *domain.Response {
	start := time.Now()
	timeout := s.effectiveTimeout(req.Timeout)

	task := domain.NewTask(req.ID, req.Operation, req.Data)
	release, err := s.runner.Acquire(ctx)
	if err == nil {
		var value any
		value, err = s.invoke(ctx, timeout, release, task.Name, task.Data)
		if err == nil {
			task.MarkSucceeded(value)
		}
	}
	if err != nil {
		task.MarkFailed(err)
	}

	elapsed := time.Since(start)
	resp := &domain.Response{
		RequestID:   req.ID,
		Success:     task.Err == nil,
		ExecutionMs: float64(elapsed.Microseconds()) / 1000,
		CompletedAt: time.Now(),
		Metadata: map[string]any{
			"service": s.Name(),
		},
	}

	if task.Err == nil {
		resp.Data = task.Result
	} else {
		resp.ErrorCode, resp.ErrorMessage = classify(task.Err)
		s.logger.Warn("request failed",
			"request_id", req.ID,
			"operation", req.Operation,
			"error_code", resp.ErrorCode,
			"error", task.Err,
		)
	}

	s.recordRequest(resp.Success, elapsed)
	return resp
}

// invoke выполняет Handle под deadline. При истечении deadline
// возвращает ErrRequestTimeout, не дожидаясь обработчика.
//
// release вызывается, когда Handle фактически вернулся: обработчик,
// игнорирующий ctx, держит слот сервиса до своего завершения.
func (s *Service) invoke(ctx context.Context, timeout time.Duration, release func(), op string, data map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value any
		err   error
	}

	done := make(chan result, 1)
	go func() {
		defer release()

		var (
			r  result
			pc panics.Catcher
		)
		pc.Try(func() {
			r.value, r.err = s.hooks.Handle(ctx, op, data)
		})
		if rec := pc.Recovered(); rec != nil {
			r.err = rec.AsError()
			s.logger.Error("handler panicked", "operation", op, "panic", rec.Value)
		}
		done <- r
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrRequestTimeout, timeout)
		}
		return r.value, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrRequestTimeout, timeout)
		}
		return nil, ctx.Err()
	}
}

func (s *Service) effectiveTimeout(requested time.Duration) time.Duration {
	if requested <= 0 || requested > s.requestTimeout {
		return s.requestTimeout
	}
	return requested
}

func (s *Service) recordRequest(success bool, elapsed time.Duration) {
	now := time.Now()

	s.mu.Lock()
	m := &s.info.Metrics
	m.TotalRequests++
	if success {
		m.SuccessfulRequests++
	} else {
		m.FailedRequests++
	}
	m.LastRequestAt = &now
	m.AverageResponseMs = s.window.add(float64(elapsed.Microseconds()) / 1000)
	s.mu.Unlock()

	s.metrics.RecordServiceRequest(s.Name(), success, elapsed)
}

// setStatus меняет статус и уведомляет listeners вне блокировки.
func (s *Service) setStatus(to domain.ServiceStatus) {
	s.mu.Lock()
	from := s.info.Status
	if from == to {
		s.mu.Unlock()
		return
	}
	s.info.Status = to
	listeners := slices.Clone(s.listeners)
	info := s.info.Clone()
	s.mu.Unlock()

	s.logger.Debug("service status changed", "from", from, "to", to)

	for _, l := range listeners {
		l.fn(info, from, to)
	}
}

// classify переводит ошибку обработки в код и сообщение ответа.
func classify(err error) (domain.ErrorCode, string) {
	switch {
	case errors.Is(err, ErrRequestTimeout):
		return domain.ErrorCodeTimeout, "Request timeout"
	case errors.Is(err, ErrUnknownOperation):
		return domain.ErrorCodeUnknownOperation, err.Error()
	default:
		return domain.ErrorCodeInternal, err.Error()
	}
}

// callHook вызывает hook, превращая panic в ошибку.
func callHook(fn func() error) error {
	var (
		err error
		pc  panics.Catcher
	)
	pc.Try(func() { err = fn() })
	if rec := pc.Recovered(); rec != nil {
		return rec.AsError()
	}
	return err
}

func intSetting(cfg map[string]any, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}

func secondsSetting(cfg map[string]any, key string, def time.Duration) time.Duration {
	switch v := cfg[key].(type) {
	case int:
		if v > 0 {
			return time.Duration(v) * time.Second
		}
	case float64:
		if v > 0 {
			return time.Duration(v * float64(time.Second))
		}
	}
	return def
}
