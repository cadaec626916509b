package engine

import (
	"fmt"
	"slices"

	"github.com/shaiso/Maestro/internal/domain"
)

// Normalize возвращает копию шагов со значениями по умолчанию:
//   - пустой ID заменяется на step_<index>
//   - нулевой timeout заменяется на 30 секунд
//   - nil Data и DependsOn заменяются пустыми коллекциями
func Normalize(steps []domain.Step) []domain.Step {
	out := make([]domain.Step, len(steps))
	for i, step := range steps {
		if step.ID == "" {
			step.ID = fmt.Sprintf("step_%d", i)
		}
		if step.TimeoutSec == 0 {
			step.TimeoutSec = domain.DefaultStepTimeoutSec
		}
		if step.Data == nil {
			step.Data = make(map[string]any)
		}
		step.DependsOn = slices.Clone(step.DependsOn)
		if step.DependsOn == nil {
			step.DependsOn = []string{}
		}
		out[i] = step
	}
	return out
}

// Validate проверяет шаги, принятые к выполнению.
//
// Проверяет:
//   - наличие шагов
//   - уникальность ID шагов
//   - наличие service_name и operation
//   - неотрицательные retry_count и timeout
//
// Циклы и ссылки на неизвестные шаги здесь не отклоняются:
// такие workflow завершаются ошибкой deadlock при выполнении.
// До запуска их находит Plan.
func Validate(steps []domain.Step) error {
	if len(steps) == 0 {
		return ErrEmptySteps
	}

	stepIDs := make(map[string]bool, len(steps))
	for i := range steps {
		if err := ValidateStep(&steps[i], stepIDs); err != nil {
			return err
		}
	}

	return nil
}

// ValidateStep валидирует один шаг.
// stepIDs — уже встреченные ID шагов (для проверки уникальности).
func ValidateStep(step *domain.Step, stepIDs map[string]bool) error {
	// Проверка уникальности ID
	if step.ID != "" {
		if stepIDs[step.ID] {
			return NewValidationError(step.ID, "step_id",
				fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
		}
		stepIDs[step.ID] = true
	}

	if step.ServiceName == "" {
		return NewValidationError(step.ID, "service_name",
			"step has empty service name", ErrEmptyServiceName)
	}

	if step.Operation == "" {
		return NewValidationError(step.ID, "operation",
			"step has empty operation", ErrEmptyOperation)
	}

	if step.RetryCount < 0 {
		return NewValidationError(step.ID, "retry_count",
			fmt.Sprintf("retry count must be non-negative, got %d", step.RetryCount), ErrNegativeRetry)
	}

	if step.TimeoutSec < 0 {
		return NewValidationError(step.ID, "timeout",
			fmt.Sprintf("timeout must be non-negative, got %v", step.TimeoutSec), ErrNegativeTimeout)
	}

	return nil
}

// Prepare нормализует и валидирует шаги.
func Prepare(steps []domain.Step) ([]domain.Step, error) {
	if len(steps) == 0 {
		return nil, ErrEmptySteps
	}
	normalized := Normalize(steps)
	if err := Validate(normalized); err != nil {
		return nil, err
	}
	return normalized, nil
}
