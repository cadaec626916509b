package registry

import "errors"

var (
	// ErrServiceNotFound — сервис с таким ID не зарегистрирован.
	ErrServiceNotFound = errors.New("service not found")

	// ErrAlreadyRegistered — сервис с таким ID уже зарегистрирован.
	ErrAlreadyRegistered = errors.New("service already registered")
)
