package domain

import (
	"slices"
	"time"
)

// StepResult — результат выполненного шага.
type StepResult struct {
	StepID     string    `json:"step_id"`
	Response   *Response `json:"response"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Attempts — количество попыток (1 — без повторов).
	Attempts int `json:"attempts"`
}

// Workflow — выполнение workflow.
//
// Создаётся при submit, изменяется только горутиной, которая его выполняет
// (и Cancel), после перехода в финальный статус не меняется.
type Workflow struct {
	ID          string                 `json:"workflow_id"`
	Steps       []Step                 `json:"steps"`
	Status      WorkflowStatus         `json:"status"`
	CreatedAt   time.Time              `json:"created_at"`
	StartedAt   *time.Time             `json:"started_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	Results     map[string]*StepResult `json:"results"`
	Errors      []string               `json:"errors"`
}

// NewWorkflow создаёт workflow в статусе PENDING.
func NewWorkflow(id string, steps []Step) *Workflow {
	return &Workflow{
		ID:        id,
		Steps:     steps,
		Status:    WorkflowStatusPending,
		CreatedAt: time.Now(),
		Results:   make(map[string]*StepResult),
		Errors:    []string{},
	}
}

// IsFinished возвращает true, если workflow в финальном статусе.
func (w *Workflow) IsFinished() bool {
	return w.Status.IsTerminal()
}

// MarkRunning переводит workflow в RUNNING.
func (w *Workflow) MarkRunning() bool {
	if w.Status != WorkflowStatusPending {
		return false
	}
	now := time.Now()
	w.Status = WorkflowStatusRunning
	w.StartedAt = &now
	return true
}

// MarkCompleted переводит workflow в COMPLETED.
func (w *Workflow) MarkCompleted() bool {
	return w.finish(WorkflowStatusCompleted)
}

// MarkFailed переводит workflow в FAILED и добавляет ошибку.
func (w *Workflow) MarkFailed(errMsg string) bool {
	if !w.finish(WorkflowStatusFailed) {
		return false
	}
	if errMsg != "" {
		w.Errors = append(w.Errors, errMsg)
	}
	return true
}

// MarkCancelled переводит workflow в CANCELLED.
func (w *Workflow) MarkCancelled() bool {
	return w.finish(WorkflowStatusCancelled)
}

// finish устанавливает финальный статус, если workflow ещё не завершён.
func (w *Workflow) finish(status WorkflowStatus) bool {
	if w.IsFinished() {
		return false
	}
	now := time.Now()
	w.Status = status
	w.CompletedAt = &now
	return true
}

// RecordResult сохраняет результат шага.
func (w *Workflow) RecordResult(r *StepResult) {
	w.Results[r.StepID] = r
}

// Duration возвращает продолжительность выполнения.
func (w *Workflow) Duration() time.Duration {
	if w.StartedAt == nil || w.CompletedAt == nil {
		return 0
	}
	return w.CompletedAt.Sub(*w.StartedAt)
}

// WorkflowSnapshot — состояние workflow для запроса статуса.
type WorkflowSnapshot struct {
	ID             string                 `json:"workflow_id"`
	Status         WorkflowStatus         `json:"status"`
	CreatedAt      time.Time              `json:"created_at"`
	StartedAt      *time.Time             `json:"started_at,omitempty"`
	CompletedAt    *time.Time             `json:"completed_at,omitempty"`
	StepsTotal     int                    `json:"steps_total"`
	StepsCompleted int                    `json:"steps_completed"`
	Errors         []string               `json:"errors"`
	Results        map[string]*StepResult `json:"results,omitempty"`
}

// Snapshot возвращает копию состояния workflow.
func (w *Workflow) Snapshot() WorkflowSnapshot {
	results := make(map[string]*StepResult, len(w.Results))
	for id, r := range w.Results {
		c := *r
		results[id] = &c
	}
	return WorkflowSnapshot{
		ID:             w.ID,
		Status:         w.Status,
		CreatedAt:      w.CreatedAt,
		StartedAt:      w.StartedAt,
		CompletedAt:    w.CompletedAt,
		StepsTotal:     len(w.Steps),
		StepsCompleted: len(w.Results),
		Errors:         slices.Clone(w.Errors),
		Results:        results,
	}
}
