// Package runner выполняет пачки независимых tasks с ограничением
// параллелизма.
//
// Runner — базовый примитив, на котором построены остальные слои:
// Service выполняет через него обработчики запросов, Registry —
// параллельные health checks.
//
// Гарантии:
//   - одновременно выполняется не более MaxConcurrency tasks
//   - ошибка или panic одной task не прерывает соседние
//   - все tasks пачки завершены (CompletedAt задан) до возврата Run
package runner
