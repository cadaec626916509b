package domain

import (
	"time"
)

// Task — единица работы для Task Runner.
//
// Создаётся вызывающей стороной, изменяется ровно один раз runner'ом,
// который её выполняет (Result/Err/CompletedAt). После завершения
// task только читается.
type Task struct {
	// ID — идентификатор task (ключ в результате Runner.Run).
	ID string `json:"id"`

	// Name — отображаемое имя.
	Name string `json:"name"`

	// Data — входные данные.
	Data map[string]any `json:"data,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// CompletedAt — время завершения (nil, пока task не выполнена).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Result — результат успешного выполнения.
	Result any `json:"result,omitempty"`

	// Err — ошибка выполнения. Result и Err никогда не заданы одновременно.
	Err error `json:"-"`
}

// NewTask создаёт task с текущим временем создания.
func NewTask(id, name string, data map[string]any) *Task {
	if data == nil {
		data = make(map[string]any)
	}
	return &Task{
		ID:        id,
		Name:      name,
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// IsFinished возвращает true, если task завершена.
func (t *Task) IsFinished() bool {
	return t.CompletedAt != nil
}

// Succeeded возвращает true, если task завершилась без ошибки.
func (t *Task) Succeeded() bool {
	return t.IsFinished() && t.Err == nil
}

// MarkSucceeded сохраняет результат и время завершения.
func (t *Task) MarkSucceeded(result any) {
	if t.IsFinished() {
		return
	}
	now := time.Now()
	t.Result = result
	t.CompletedAt = &now
}

// MarkFailed сохраняет ошибку и время завершения.
func (t *Task) MarkFailed(err error) {
	if t.IsFinished() {
		return
	}
	now := time.Now()
	t.Result = nil
	t.Err = err
	t.CompletedAt = &now
}

// ErrorMessage возвращает текст ошибки или пустую строку.
func (t *Task) ErrorMessage() string {
	if t.Err == nil {
		return ""
	}
	return t.Err.Error()
}
