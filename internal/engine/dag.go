package engine

import (
	"fmt"

	"github.com/shaiso/Maestro/internal/domain"
)

// ReadySet возвращает шаги из pending, все зависимости которых
// уже есть в completed. Порядок шагов сохраняется.
//
// Пустой результат при непустом pending означает deadlock:
// цикл или зависимость, которая никогда не будет выполнена.
func ReadySet(pending []domain.Step, completed map[string]bool) []domain.Step {
	ready := make([]domain.Step, 0, len(pending))

	for _, step := range pending {
		allDepsCompleted := true
		for _, dep := range step.DependsOn {
			if !completed[dep] {
				allDepsCompleted = false
				break
			}
		}

		if allDepsCompleted {
			ready = append(ready, step)
		}
	}

	return ready
}

// Partition делит ready set на parallel и последовательные шаги,
// сохраняя порядок внутри каждой группы.
func Partition(ready []domain.Step) (parallel, sequential []domain.Step) {
	for _, step := range ready {
		if step.Parallel {
			parallel = append(parallel, step)
		} else {
			sequential = append(sequential, step)
		}
	}
	return parallel, sequential
}

// Batch — одна итерация выполнения workflow.
type Batch struct {
	// Parallel — шаги, выполняемые одновременно.
	Parallel []string `json:"parallel"`

	// Sequential — шаги, выполняемые по одному после parallel.
	Sequential []string `json:"sequential"`
}

// Plan возвращает порядок выполнения без обращения к сервисам:
// тот же итеративный поиск ready set, что и при реальном запуске,
// при условии, что все шаги успешны.
//
// Ссылка на неизвестный шаг возвращает ErrMissingDependency до
// построения batches; цикл — ErrCyclicDependency вместе с batches,
// которые успеют выполниться.
func Plan(steps []domain.Step) ([]Batch, error) {
	if len(steps) == 0 {
		return nil, ErrEmptySteps
	}
	if err := checkDependencies(steps); err != nil {
		return nil, err
	}

	pending := steps
	completed := make(map[string]bool, len(steps))
	batches := make([]Batch, 0)

	for len(pending) > 0 {
		ready := ReadySet(pending, completed)
		if len(ready) == 0 {
			return batches, fmt.Errorf("%w: %d steps can never run", ErrCyclicDependency, len(pending))
		}

		parallel, sequential := Partition(ready)
		batch := Batch{
			Parallel:   make([]string, 0, len(parallel)),
			Sequential: make([]string, 0, len(sequential)),
		}
		for _, s := range parallel {
			batch.Parallel = append(batch.Parallel, s.ID)
		}
		for _, s := range sequential {
			batch.Sequential = append(batch.Sequential, s.ID)
		}
		batches = append(batches, batch)

		for _, s := range ready {
			completed[s.ID] = true
		}

		remaining := make([]domain.Step, 0, len(pending)-len(ready))
		for _, s := range pending {
			if !completed[s.ID] {
				remaining = append(remaining, s)
			}
		}
		pending = remaining
	}

	return batches, nil
}

// checkDependencies проверяет, что каждая зависимость ссылается
// на шаг того же workflow.
func checkDependencies(steps []domain.Step) error {
	known := make(map[string]bool, len(steps))
	for _, step := range steps {
		known[step.ID] = true
	}

	for _, step := range steps {
		for _, depID := range step.DependsOn {
			if !known[depID] {
				return NewValidationError(step.ID, "depends_on",
					fmt.Sprintf("depends on unknown step: %s", depID), ErrMissingDependency)
			}
		}
	}
	return nil
}
