package service

import (
	"errors"
	"fmt"
)

// Ошибки жизненного цикла.
var (
	// ErrInvalidTransition — операция недопустима в текущем статусе.
	ErrInvalidTransition = errors.New("invalid service state transition")

	// ErrStartupFailure — OnStart вернул ошибку.
	ErrStartupFailure = errors.New("service startup failed")

	// ErrShutdownFailure — OnStop вернул ошибку.
	ErrShutdownFailure = errors.New("service shutdown failed")

	// ErrHealthCheckFailure — probe вернул false или ошибку.
	ErrHealthCheckFailure = errors.New("health check failed")
)

// Ошибки обработки запросов.
var (
	// ErrRequestTimeout — истёк deadline запроса.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrInternalRequest — обработчик вернул ошибку.
	ErrInternalRequest = errors.New("internal request error")

	// ErrUnknownOperation — обработчик не знает операцию.
	ErrUnknownOperation = errors.New("unknown operation")
)

// UnknownOperation возвращает ошибку для нераспознанной операции.
// Конкретные сервисы обязаны возвращать её из Handle.
func UnknownOperation(op string) error {
	return fmt.Errorf("%w: %s", ErrUnknownOperation, op)
}
