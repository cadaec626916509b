// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog (JSON или tint)
//   - metrics.go — Prometheus метрики сервисов, реестра и workflow
//
// Все компоненты используют единый формат логирования,
// метрики экспортируются на /metrics endpoint.
package telemetry
