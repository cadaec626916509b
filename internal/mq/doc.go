// Package mq связывает Maestro с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением (backoff 1s..30s)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — события реестра и workflows, отправка workflow.submit
//   - consumer.go   — приём workflow.submit и передача в orchestrator
//
// Exchanges:
//   - maestro.events    (topic)  — registry.<event_type>, workflow.<status>
//   - maestro.workflows (direct) — очередь workflows.submit
//   - maestro.dlq       (direct) — dlq.workflows для некорректных сообщений
package mq
