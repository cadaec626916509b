// Package orchestrator выполняет workflows поверх реестра сервисов.
//
// Orchestrator отвечает за:
//   - Приём workflow (список шагов) и запуск его в отдельной горутине
//   - Итеративный поиск готовых шагов (ready set) и обнаружение deadlock
//   - Параллельное выполнение parallel шагов и последовательное — остальных
//   - Повторы шага с линейной задержкой
//   - Отмену, запрос статуса и агрегированную статистику
//
// Orchestrator сам реализует service.Hooks и может работать
// как сервис "orchestrator-service".
package orchestrator
