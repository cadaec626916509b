package orchestrator

import (
	"context"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
)

// execution — живое выполнение workflow.
type execution struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// runState — состояние выполнения одного workflow.
//
// Используется только горутиной, которая выполняет workflow.
// Во время parallel batch шаги только читают tmpl.
type runState struct {
	pending   []domain.Step
	completed map[string]bool
	tmpl      *engine.Context
}

// newRunState создаёт состояние, в котором ни один шаг ещё не выполнен.
func newRunState(wf *domain.Workflow) *runState {
	pending := make([]domain.Step, len(wf.Steps))
	copy(pending, wf.Steps)

	return &runState{
		pending:   pending,
		completed: make(map[string]bool, len(wf.Steps)),
		tmpl:      engine.NewContext(wf.ID),
	}
}

// remaining возвращает количество невыполненных шагов.
func (s *runState) remaining() int {
	return len(s.pending)
}

// ready возвращает шаги, все зависимости которых выполнены.
func (s *runState) ready() []domain.Step {
	return engine.ReadySet(s.pending, s.completed)
}

// markCompleted переносит шаги из pending в completed и добавляет
// их результаты в контекст шаблонов.
func (s *runState) markCompleted(results []*domain.StepResult) {
	for _, r := range results {
		s.completed[r.StepID] = true

		var data any
		if r.Response != nil {
			data = r.Response.Data
		}
		s.tmpl.AddStepResult(r.StepID, data, true)
	}

	remaining := s.pending[:0]
	for _, step := range s.pending {
		if !s.completed[step.ID] {
			remaining = append(remaining, step)
		}
	}
	s.pending = remaining
}
