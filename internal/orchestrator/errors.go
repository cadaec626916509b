package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrServiceNotFound — шаг ссылается на сервис, которого нет в реестре.
	ErrServiceNotFound = errors.New("service not found")

	// ErrServiceNotRunning — сервис шага зарегистрирован, но не RUNNING.
	ErrServiceNotRunning = errors.New("service not running")

	// ErrStepRetriesExhausted — шаг не выполнился после всех повторов.
	ErrStepRetriesExhausted = errors.New("step retries exhausted")

	// ErrWorkflowDeadlock — нет готовых шагов, хотя невыполненные остались.
	ErrWorkflowDeadlock = errors.New("workflow deadlock detected")

	// ErrWorkflowNotFound — workflow с таким ID не существует.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrUnknownServiceType — фабрика не умеет создавать сервис такого типа.
	ErrUnknownServiceType = errors.New("unknown service type")

	// ErrInvalidArgument — некорректные данные запроса к оркестратору.
	ErrInvalidArgument = errors.New("invalid argument")
)
