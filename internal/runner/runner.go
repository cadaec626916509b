package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// DefaultMaxConcurrency — ограничение параллелизма по умолчанию.
const DefaultMaxConcurrency = 10

// ErrNoProcess — runner создан без функции обработки.
var ErrNoProcess = errors.New("runner has no process function")

// ProcessFunc — обработка одной task.
type ProcessFunc func(ctx context.Context, task *domain.Task) (any, error)

// Config — конфигурация Runner.
type Config struct {
	// Name — имя runner'а для логов.
	Name string

	// MaxConcurrency — максимум одновременно выполняемых tasks (default: 10).
	MaxConcurrency int

	// Process — функция обработки по умолчанию для Run и RunOne.
	Process ProcessFunc

	// Logger
	Logger *slog.Logger
}

// Runner выполняет tasks с ограничением параллелизма.
type Runner struct {
	name    string
	limit   int
	sem     *semaphore.Weighted
	process ProcessFunc
	logger  *slog.Logger

	inFlight atomic.Int64
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}

	logger := telemetry.OrDefault(cfg.Logger)
	if cfg.Name != "" {
		logger = logger.With("runner", cfg.Name)
	}

	return &Runner{
		name:    cfg.Name,
		limit:   cfg.MaxConcurrency,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		process: cfg.Process,
		logger:  logger,
	}
}

// Limit возвращает ограничение параллелизма.
func (r *Runner) Limit() int {
	return r.limit
}

// InFlight возвращает число выполняющихся сейчас tasks.
func (r *Runner) InFlight() int {
	return int(r.inFlight.Load())
}

// Run выполняет все tasks и возвращает их по ID.
//
// Возвращается только после того, как каждая task завершена.
func (r *Runner) Run(ctx context.Context, tasks []*domain.Task) map[string]*domain.Task {
	results := make(map[string]*domain.Task, len(tasks))

	var wg conc.WaitGroup
	for _, task := range tasks {
		results[task.ID] = task
		wg.Go(func() {
			r.Do(ctx, task, r.process)
		})
	}
	wg.Wait()

	return results
}

// RunOne выполняет одну task с теми же гарантиями, что и Run.
func (r *Runner) RunOne(ctx context.Context, task *domain.Task) *domain.Task {
	return r.Do(ctx, task, r.process)
}

// Acquire занимает один слот runner'а и возвращает функцию его
// освобождения. Повторный вызов release ничего не делает.
//
// Нужен, когда работа переживает вызывающего: слот держит тот,
// кто фактически выполняет работу.
func (r *Runner) Acquire(ctx context.Context) (release func(), err error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for runner slot: %w", err)
	}
	r.inFlight.Add(1)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.inFlight.Add(-1)
			r.sem.Release(1)
		})
	}, nil
}

// Do выполняет task функцией fn, заняв один слот runner'а.
//
// Если ctx отменён во время ожидания слота, task завершается
// с ошибкой контекста.
func (r *Runner) Do(ctx context.Context, task *domain.Task, fn ProcessFunc) *domain.Task {
	if fn == nil {
		task.MarkFailed(ErrNoProcess)
		return task
	}

	// 1. Ждём свободный слот
	release, err := r.Acquire(ctx)
	if err != nil {
		task.MarkFailed(err)
		return task
	}
	defer release()

	// 2. Выполняем, перехватывая panic
	var (
		result any
		pc     panics.Catcher
	)
	pc.Try(func() {
		result, err = fn(ctx, task)
	})
	if rec := pc.Recovered(); rec != nil {
		err = rec.AsError()
		r.logger.Error("task panicked",
			"task_id", task.ID,
			"task", task.Name,
			"panic", rec.Value,
		)
	}

	// 3. Фиксируем результат
	if err != nil {
		task.MarkFailed(err)
		r.logger.Debug("task failed", "task_id", task.ID, "error", err)
	} else {
		task.MarkSucceeded(result)
	}

	return task
}
