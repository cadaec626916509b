package engine

import (
	"errors"
	"testing"

	"github.com/shaiso/Maestro/internal/domain"
)

func step(id, service string, deps ...string) domain.Step {
	return domain.Step{
		ID:          id,
		ServiceName: service,
		Operation:   "run",
		DependsOn:   deps,
		TimeoutSec:  domain.DefaultStepTimeoutSec,
		Parallel:    true,
	}
}

func TestValidate_EmptySteps(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrEmptySteps) {
		t.Errorf("expected ErrEmptySteps, got %v", err)
	}
	if _, err := Prepare([]domain.Step{}); !errors.Is(err, ErrEmptySteps) {
		t.Errorf("expected ErrEmptySteps, got %v", err)
	}
}

func TestValidate_DuplicateStepID(t *testing.T) {
	err := Validate([]domain.Step{step("a", "svc"), step("a", "svc")})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if !errors.Is(err, ErrDuplicateStepID) {
		t.Errorf("expected ErrDuplicateStepID, got %v", err)
	}
	if vErr.StepID != "a" {
		t.Errorf("expected step a, got %s", vErr.StepID)
	}
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *domain.Step)
		want   error
	}{
		{"empty service", func(s *domain.Step) { s.ServiceName = "" }, ErrEmptyServiceName},
		{"empty operation", func(s *domain.Step) { s.Operation = "" }, ErrEmptyOperation},
		{"negative retry", func(s *domain.Step) { s.RetryCount = -1 }, ErrNegativeRetry},
		{"negative timeout", func(s *domain.Step) { s.TimeoutSec = -5 }, ErrNegativeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := step("a", "svc")
			tt.mutate(&s)
			if err := Validate([]domain.Step{s}); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_CyclesAccepted(t *testing.T) {
	// Циклы обнаруживаются при выполнении, а не при приёме
	steps := []domain.Step{step("a", "svc", "b"), step("b", "svc", "a")}
	if err := Validate(steps); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNormalize_Defaults(t *testing.T) {
	steps := Normalize([]domain.Step{
		{ServiceName: "svc", Operation: "op"},
		{ID: "named", ServiceName: "svc", Operation: "op", TimeoutSec: 5},
	})

	if steps[0].ID != "step_0" {
		t.Errorf("expected default id step_0, got %s", steps[0].ID)
	}
	if steps[0].TimeoutSec != domain.DefaultStepTimeoutSec {
		t.Errorf("expected default timeout, got %v", steps[0].TimeoutSec)
	}
	if steps[0].Data == nil || steps[0].DependsOn == nil {
		t.Error("expected non-nil data and depends_on")
	}
	if steps[1].ID != "named" || steps[1].TimeoutSec != 5 {
		t.Errorf("explicit values must be kept, got %+v", steps[1])
	}
}

func TestDecodeSteps_Defaults(t *testing.T) {
	raw := []any{
		map[string]any{"step_id": "a", "service_name": "svc", "operation": "op"},
		map[string]any{"step_id": "b", "service_name": "svc", "operation": "op", "parallel": false, "timeout": 10},
	}

	steps, err := domain.DecodeSteps(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !steps[0].Parallel || steps[0].TimeoutSec != 30 || steps[0].RetryCount != 0 {
		t.Errorf("expected defaults for a, got %+v", steps[0])
	}
	if steps[1].Parallel || steps[1].TimeoutSec != 10 {
		t.Errorf("expected explicit values for b, got %+v", steps[1])
	}
}
