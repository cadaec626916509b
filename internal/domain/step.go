package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultStepTimeoutSec — таймаут шага по умолчанию.
const DefaultStepTimeoutSec = 30.0

// Step — шаг workflow.
//
// Пример JSON:
//
//	{
//	    "step_id": "answer",
//	    "service_name": "rag-service",
//	    "operation": "question",
//	    "data": {"question": "{{ .Steps.fetch.Data.text }}"},
//	    "depends_on": ["fetch"],
//	    "timeout": 30,
//	    "retry_count": 2,
//	    "parallel": false
//	}
type Step struct {
	// ID — уникальный в пределах workflow идентификатор шага.
	ID string `json:"step_id"`

	// ServiceName — имя сервиса в реестре.
	ServiceName string `json:"service_name"`

	// Operation — операция сервиса.
	Operation string `json:"operation"`

	// Data — входные данные запроса.
	Data map[string]any `json:"data,omitempty"`

	// DependsOn — ID шагов, которые должны завершиться до старта.
	DependsOn []string `json:"depends_on,omitempty"`

	// TimeoutSec — таймаут запроса в секундах (по умолчанию 30).
	TimeoutSec float64 `json:"timeout"`

	// RetryCount — количество повторов после первой неудачи.
	RetryCount int `json:"retry_count"`

	// Parallel — шаг может выполняться параллельно с соседями по batch.
	// По умолчанию true.
	Parallel bool `json:"parallel"`
}

// UnmarshalJSON применяет значения по умолчанию для отсутствующих полей.
func (s *Step) UnmarshalJSON(b []byte) error {
	type alias Step
	a := alias{
		TimeoutSec: DefaultStepTimeoutSec,
		Parallel:   true,
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*s = Step(a)
	return nil
}

// Timeout возвращает таймаут шага как time.Duration.
func (s *Step) Timeout() time.Duration {
	if s.TimeoutSec <= 0 {
		return time.Duration(DefaultStepTimeoutSec * float64(time.Second))
	}
	return time.Duration(s.TimeoutSec * float64(time.Second))
}

// DecodeSteps преобразует произвольные данные (например, data["steps"]
// из запроса или список из конфигурации) в шаги с учётом значений по умолчанию.
func DecodeSteps(raw any) ([]Step, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal steps: %w", err)
	}
	var steps []Step
	if err := json.Unmarshal(b, &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	return steps, nil
}
