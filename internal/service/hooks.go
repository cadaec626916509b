package service

import "context"

// Hooks — контракт конкретного сервиса (LLM, database, HTTP...).
type Hooks interface {
	// OnStart — подготовка ресурсов. Ошибка прерывает запуск.
	OnStart(ctx context.Context) error

	// OnStop — освобождение ресурсов. Ошибка прерывает остановку.
	OnStop(ctx context.Context) error

	// HealthProbe — проверка работоспособности, безопасная для повторов.
	HealthProbe(ctx context.Context) (bool, error)

	// Handle выполняет операцию op.
	// Для неизвестной операции возвращает UnknownOperation(op).
	Handle(ctx context.Context, op string, data map[string]any) (any, error)
}

// HooksFunc — набор функций, реализующий Hooks.
// Незаданные функции считаются успешными no-op.
type HooksFunc struct {
	Start   func(ctx context.Context) error
	Stop    func(ctx context.Context) error
	Probe   func(ctx context.Context) (bool, error)
	Handler func(ctx context.Context, op string, data map[string]any) (any, error)
}

// OnStart реализует Hooks.
func (h HooksFunc) OnStart(ctx context.Context) error {
	if h.Start == nil {
		return nil
	}
	return h.Start(ctx)
}

// OnStop реализует Hooks.
func (h HooksFunc) OnStop(ctx context.Context) error {
	if h.Stop == nil {
		return nil
	}
	return h.Stop(ctx)
}

// HealthProbe реализует Hooks.
func (h HooksFunc) HealthProbe(ctx context.Context) (bool, error) {
	if h.Probe == nil {
		return true, nil
	}
	return h.Probe(ctx)
}

// Handle реализует Hooks.
func (h HooksFunc) Handle(ctx context.Context, op string, data map[string]any) (any, error) {
	if h.Handler == nil {
		return nil, UnknownOperation(op)
	}
	return h.Handler(ctx, op, data)
}
