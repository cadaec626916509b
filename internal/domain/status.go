package domain

// ServiceStatus — состояние жизненного цикла сервиса.
//
// Жизненный цикл:
//
//	STOPPED → STARTING → RUNNING → STOPPING → STOPPED
//	            ↘ ERROR     ↘ ERROR (ошибка запуска, провал health check)
//
// MAINTENANCE зарезервирован для оператора.
type ServiceStatus string

const (
	// ServiceStatusStopped — сервис остановлен (начальное состояние).
	ServiceStatusStopped ServiceStatus = "STOPPED"

	// ServiceStatusStarting — выполняется OnStart.
	ServiceStatusStarting ServiceStatus = "STARTING"

	// ServiceStatusRunning — сервис принимает запросы.
	ServiceStatusRunning ServiceStatus = "RUNNING"

	// ServiceStatusStopping — выполняется OnStop.
	ServiceStatusStopping ServiceStatus = "STOPPING"

	// ServiceStatusError — запуск или health check завершились неудачей.
	ServiceStatusError ServiceStatus = "ERROR"

	// ServiceStatusMaintenance — сервис выведен на обслуживание оператором.
	ServiceStatusMaintenance ServiceStatus = "MAINTENANCE"
)

// String возвращает строковое представление ServiceStatus.
func (s ServiceStatus) String() string {
	return string(s)
}

// WorkflowStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	        (или) → CANCELLED (из PENDING или RUNNING)
type WorkflowStatus string

const (
	// WorkflowStatusPending — workflow принят, но ещё не начал выполняться.
	WorkflowStatusPending WorkflowStatus = "PENDING"

	// WorkflowStatusRunning — workflow в процессе выполнения.
	WorkflowStatusRunning WorkflowStatus = "RUNNING"

	// WorkflowStatusCompleted — все шаги выполнены успешно.
	WorkflowStatusCompleted WorkflowStatus = "COMPLETED"

	// WorkflowStatusFailed — шаг исчерпал retry или обнаружен deadlock.
	WorkflowStatusFailed WorkflowStatus = "FAILED"

	// WorkflowStatusCancelled — workflow отменён вызывающей стороной.
	WorkflowStatusCancelled WorkflowStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (workflow завершён).
func (s WorkflowStatus) IsTerminal() bool {
	switch s {
	case WorkflowStatusCompleted, WorkflowStatusFailed, WorkflowStatusCancelled:
		return true
	default:
		return false
	}
}

// ErrorCode — код ошибки в ответе сервиса.
type ErrorCode string

const (
	// ErrorCodeTimeout — превышен дедлайн запроса.
	ErrorCodeTimeout ErrorCode = "TIMEOUT"

	// ErrorCodeInternal — любая другая ошибка обработчика.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"

	// ErrorCodeUnknownOperation — сервис не знает запрошенную операцию.
	ErrorCodeUnknownOperation ErrorCode = "UNKNOWN_OPERATION"
)

// IsRetryable сообщает, имеет ли смысл повторять запрос с таким кодом.
func (c ErrorCode) IsRetryable() bool {
	return c != ErrorCodeUnknownOperation
}
