package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput — запись не может быть сохранена.
	ErrInvalidInput = errors.New("invalid input")
)
