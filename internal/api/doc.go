// Package api содержит HTTP API maestro-server.
//
// Структура:
//   - handler.go          — Handler и его зависимости (orchestrator, metrics, logger)
//   - routes.go           — регистрация маршрутов, /healthz, /metrics
//   - middleware.go       — recovery, logging, счётчик запросов
//   - response.go         — JSON ответы {data} / {error:{code,message}} и маппинг ошибок
//   - dto.go              — Data Transfer Objects
//   - workflow_handler.go — /api/v1/workflows, /api/v1/stats
//   - service_handler.go  — /api/v1/services
package api
