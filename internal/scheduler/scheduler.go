package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// DefaultPollInterval — период тика планировщика.
const DefaultPollInterval = 10 * time.Second

// Ошибки планировщика.
var (
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrDuplicateSchedule = errors.New("schedule already exists")
)

// Submitter принимает workflow на выполнение.
type Submitter interface {
	Submit(steps []domain.Step) (string, error)
}

// Config — конфигурация Scheduler.
type Config struct {
	Submitter Submitter

	// PollInterval — период тика (default: 10s).
	PollInterval time.Duration

	Logger *slog.Logger

	// Now — источник времени (подменяется в тестах).
	Now func() time.Time
}

// Scheduler запускает повторяющиеся workflows по cron или интервалу.
// Расписания хранятся только в памяти.
type Scheduler struct {
	submitter    Submitter
	pollInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu        sync.Mutex
	schedules map[string]*domain.Schedule
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Scheduler{
		submitter:    cfg.Submitter,
		pollInterval: cfg.PollInterval,
		logger:       telemetry.OrDefault(cfg.Logger).With("component", "scheduler"),
		now:          cfg.Now,
		schedules:    make(map[string]*domain.Schedule),
	}
}

// Add проверяет расписание и вычисляет первый запуск.
func (s *Scheduler) Add(sched domain.Schedule) error {
	if sched.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	if len(sched.Steps) == 0 {
		return fmt.Errorf("%w: %s has no steps", ErrInvalidSchedule, sched.Name)
	}
	if sched.IsCron() {
		if err := ValidateCronExpr(sched.CronExpr); err != nil {
			return err
		}
	}
	if sched.Timezone == "" {
		sched.Timezone = "UTC"
	}

	next, err := NextDue(&sched, s.now())
	if err != nil {
		return err
	}
	sched.NextDueAt = &next

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[sched.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSchedule, sched.Name)
	}
	s.schedules[sched.Name] = &sched

	s.logger.Info("schedule added",
		"schedule", sched.Name,
		"enabled", sched.Enabled,
		"next_due_at", next,
	)
	return nil
}

// List возвращает копии расписаний, отсортированные по имени.
func (s *Scheduler) List() []domain.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Schedule, 0, len(s.schedules))
	for _, sched := range s.schedules {
		out = append(out, *sched)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tick запускает все due расписания и возвращает число отправленных workflows.
// Ошибка одного расписания не мешает остальным.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	submitted := 0
	for _, sched := range s.schedules {
		if ctx.Err() != nil {
			break
		}
		if !sched.IsDue(now) {
			continue
		}

		next, err := NextDue(sched, now)
		if err != nil {
			s.logger.Error("failed to calculate next due, disabling schedule",
				"schedule", sched.Name,
				"error", err,
			)
			sched.Enabled = false
			continue
		}

		id, err := s.submitter.Submit(sched.Steps)
		if err != nil {
			s.logger.Error("failed to submit scheduled workflow",
				"schedule", sched.Name,
				"error", err,
			)
			sched.NextDueAt = &next
			continue
		}

		sched.RecordRun(id, now, next)
		submitted++

		telemetry.WithWorkflowID(s.logger, id).Info("scheduled workflow submitted",
			"schedule", sched.Name,
			"next_due_at", next,
		)
	}

	if submitted > 0 {
		s.logger.Debug("scheduler tick completed", "submitted", submitted)
	}
	return submitted
}

// Run тикает каждые PollInterval до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "poll_interval", s.pollInterval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
