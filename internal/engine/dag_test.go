package engine

import (
	"errors"
	"slices"
	"testing"

	"github.com/shaiso/Maestro/internal/domain"
)

func ids(steps []domain.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.ID)
	}
	return out
}

// --- ReadySet Tests ---

func TestReadySet(t *testing.T) {
	steps := []domain.Step{
		step("A", "svc"),
		step("B", "svc"),
		step("C", "svc", "A", "B"),
		step("D", "svc", "A"),
	}

	ready := ReadySet(steps, map[string]bool{})
	if got := ids(ready); !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("expected [A B], got %v", got)
	}

	ready = ReadySet(steps[2:], map[string]bool{"A": true})
	if got := ids(ready); !slices.Equal(got, []string{"D"}) {
		t.Errorf("expected [D], got %v", got)
	}
}

func TestReadySet_Deadlock(t *testing.T) {
	steps := []domain.Step{step("A", "svc", "B"), step("B", "svc", "A")}
	if ready := ReadySet(steps, map[string]bool{}); len(ready) != 0 {
		t.Errorf("expected empty ready set, got %v", ids(ready))
	}
}

func TestPartition_KeepsOrder(t *testing.T) {
	a, b, c, d := step("A", "s"), step("B", "s"), step("C", "s"), step("D", "s")
	b.Parallel = false
	d.Parallel = false

	parallel, sequential := Partition([]domain.Step{a, b, c, d})

	if got := ids(parallel); !slices.Equal(got, []string{"A", "C"}) {
		t.Errorf("expected parallel [A C], got %v", got)
	}
	if got := ids(sequential); !slices.Equal(got, []string{"B", "D"}) {
		t.Errorf("expected sequential [B D], got %v", got)
	}
}

// --- Plan Tests ---

func TestPlan(t *testing.T) {
	c := step("C", "svc", "A", "B")
	c.Parallel = false

	batches, err := Plan([]domain.Step{step("A", "svc"), step("B", "svc"), c})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}
	if !slices.Equal(batches[0].Parallel, []string{"A", "B"}) {
		t.Errorf("expected first batch parallel [A B], got %v", batches[0].Parallel)
	}
	if !slices.Equal(batches[1].Sequential, []string{"C"}) {
		t.Errorf("expected second batch sequential [C], got %v", batches[1].Sequential)
	}
}

func TestPlan_Cycle(t *testing.T) {
	batches, err := Plan([]domain.Step{
		step("root", "svc"),
		step("A", "svc", "B"),
		step("B", "svc", "A"),
	})

	if !errors.Is(err, ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
	if len(batches) != 1 {
		t.Errorf("expected the runnable prefix to be returned, got %d batches", len(batches))
	}
}

func TestPlan_MissingDependency(t *testing.T) {
	batches, err := Plan([]domain.Step{
		step("A", "svc"),
		step("B", "svc", "A", "ghost"),
	})

	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.StepID != "B" {
		t.Errorf("expected validation error for step B, got %v", err)
	}
	if batches != nil {
		t.Errorf("expected no batches, got %+v", batches)
	}
}

func TestPlan_DuplicateDependency(t *testing.T) {
	batches, err := Plan([]domain.Step{step("A", "svc"), step("B", "svc", "A", "A")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 {
		t.Errorf("expected 2 batches, got %d", len(batches))
	}
}
