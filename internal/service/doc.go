// Package service — lifecycle абстракция над одной backend возможностью.
//
// Service хранит только состояние (статус, метрики, время старта)
// и делегирует всю конкретную работу интерфейсу Hooks:
//
//	STOPPED → STARTING → RUNNING → STOPPING → STOPPED
//	              ↓          ↓
//	            ERROR ←── health check
//
// Запросы выполняются через runner.Runner, ограничивающий число
// одновременно обрабатываемых запросов одного сервиса.
package service
