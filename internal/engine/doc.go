// Package engine содержит логику разбора и упорядочивания шагов workflow.
//
// Включает:
//   - parser.go   — нормализация и валидация шагов
//   - dag.go      — ready set, разбиение на parallel/sequential, план и граф зависимостей
//   - template.go — рендеринг Go templates ({{ .Steps.id.Data.x }})
//
// Engine не обращается к сервисам: он определяет, какие шаги
// могут выполняться, а исполнение остаётся за orchestrator.
package engine
