package services

import "errors"

// Ошибки сервисов.
var (
	// ErrInvalidInput — некорректные данные запроса.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotConfigured — сервису не хватает конфигурации для запуска.
	ErrNotConfigured = errors.New("service not configured")

	// ErrNotStarted — запрос к сервису, который не был запущен.
	ErrNotStarted = errors.New("service not started")

	// ErrUnknownType — фабрика не знает такого типа сервиса.
	ErrUnknownType = errors.New("unknown service type")
)
