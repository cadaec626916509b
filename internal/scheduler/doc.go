// Package scheduler запускает повторяющиеся workflows.
//
// Расписания ({name, cron_expr | interval_sec, timezone, enabled, steps})
// берутся из конфигурации и хранятся в памяти. Каждый тик (по умолчанию
// раз в 10 секунд) due расписания отправляются в orchestrator, после чего
// вычисляется следующее время запуска.
//
//	sched := scheduler.New(scheduler.Config{Submitter: orch, Logger: logger})
//	for _, s := range cfg.Schedules {
//	    if err := sched.Add(s); err != nil { ... }
//	}
//	go sched.Run(ctx)
//
// Структура:
//   - scheduler.go — Scheduler (Add, List, Tick, Run)
//   - cron.go      — cron-выражения и вычисление следующего запуска
package scheduler
