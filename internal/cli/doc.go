// Package cli реализует инструмент командной строки Maestro.
//
// # Обзор
//
// CLI — клиентская утилита для Maestro HTTP API.
// Не импортирует внутренние пакеты: типы ответов продублированы в client.go.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент. Разбирает конверты ответов ({data}, {data, total}, {error})
// и превращает ошибки API в error вида "CODE: message".
//
//	client := cli.NewClient("http://localhost:8080")
//	resp, err := client.SubmitWorkflow(steps)
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные идут в stdout, сообщения в stderr:
//
//	maestro workflow list --json | jq .
//
// ## Commands
//
//   - workflow: submit, plan, list, status, cancel
//   - service: list, register, restart, remove
//   - stats
//
// Файл шагов — JSON-массив или объект {"steps": [...]}; "-" читает stdin.
package cli
