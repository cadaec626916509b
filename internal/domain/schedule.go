package domain

import (
	"time"
)

// Schedule — расписание повторяющегося запуска workflow.
//
// Schedule позволяет запускать workflow:
//   - По cron-выражению: "0 9 * * *" (каждый день в 9:00)
//   - По интервалу: каждые N секунд
//
// Расписания задаются в конфигурации и живут только в памяти процесса.
type Schedule struct {
	// Name — уникальное имя расписания.
	Name string `json:"name"`

	// CronExpr — cron-выражение из 5 полей:
	// "минуты часы дни месяцы дни_недели".
	// Если задан CronExpr, IntervalSec игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// IntervalSec — интервал в секундах между запусками.
	IntervalSec int `json:"interval_sec,omitempty"`

	// Timezone — часовой пояс для cron. По умолчанию "UTC".
	Timezone string `json:"timezone"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled"`

	// Steps — шаги workflow, который отправляется при каждом запуске.
	Steps []Step `json:"steps"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastWorkflowID — ID последнего созданного workflow.
	LastWorkflowID string `json:"last_workflow_id,omitempty"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.IntervalSec > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled {
		return false
	}
	if s.NextDueAt == nil {
		return false
	}
	return now.After(*s.NextDueAt) || now.Equal(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(workflowID string, at, nextDue time.Time) {
	s.LastRunAt = &at
	s.LastWorkflowID = workflowID
	s.NextDueAt = &nextDue
}
