package runner

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Maestro/internal/domain"
)

func makeTasks(n int) []*domain.Task {
	tasks := make([]*domain.Task, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, domain.NewTask(fmt.Sprintf("task-%d", i), "test", map[string]any{"i": i}))
	}
	return tasks
}

// --- Run Tests ---

func TestRunner_RespectsConcurrencyBound(t *testing.T) {
	const limit = 3

	var current, peak atomic.Int64
	r := New(Config{
		MaxConcurrency: limit,
		Process: func(ctx context.Context, task *domain.Task) (any, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			current.Add(-1)
			return task.ID, nil
		},
	})

	results := r.Run(context.Background(), makeTasks(12))

	if len(results) != 12 {
		t.Fatalf("expected 12 results, got %d", len(results))
	}
	if p := peak.Load(); p > limit {
		t.Errorf("expected at most %d concurrent tasks, observed %d", limit, p)
	}
	if p := peak.Load(); p < 2 {
		t.Errorf("expected tasks to run concurrently, observed peak %d", p)
	}
}

func TestRunner_FailureIsolation(t *testing.T) {
	r := New(Config{
		MaxConcurrency: 4,
		Process: func(ctx context.Context, task *domain.Task) (any, error) {
			switch task.ID {
			case "task-1":
				return nil, errors.New("boom")
			case "task-2":
				panic("unexpected")
			}
			return "ok", nil
		},
	})

	results := r.Run(context.Background(), makeTasks(5))

	for id, task := range results {
		if !task.IsFinished() {
			t.Errorf("task %s: expected CompletedAt to be set", id)
		}
		if task.Result != nil && task.Err != nil {
			t.Errorf("task %s: result and error both set", id)
		}
	}

	if results["task-1"].Err == nil || results["task-1"].Err.Error() != "boom" {
		t.Errorf("task-1: expected error boom, got %v", results["task-1"].Err)
	}
	if results["task-2"].Err == nil {
		t.Error("task-2: expected panic to be stored as error")
	}
	for _, id := range []string{"task-0", "task-3", "task-4"} {
		if !results[id].Succeeded() {
			t.Errorf("%s: expected success, got %v", id, results[id].Err)
		}
		if results[id].Result != "ok" {
			t.Errorf("%s: expected result ok, got %v", id, results[id].Result)
		}
	}
}

func TestRunner_EmptyBatch(t *testing.T) {
	r := New(Config{Process: func(ctx context.Context, task *domain.Task) (any, error) { return nil, nil }})

	results := r.Run(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected empty result, got %d", len(results))
	}
}

// --- RunOne Tests ---

func TestRunner_RunOne(t *testing.T) {
	r := New(Config{
		Process: func(ctx context.Context, task *domain.Task) (any, error) {
			return task.Data["x"], nil
		},
	})

	task := r.RunOne(context.Background(), domain.NewTask("one", "single", map[string]any{"x": 42}))

	if !task.Succeeded() {
		t.Fatalf("unexpected error: %v", task.Err)
	}
	if task.Result != 42 {
		t.Errorf("expected 42, got %v", task.Result)
	}
}

func TestRunner_RunOne_CancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	r := New(Config{
		MaxConcurrency: 1,
		Process: func(ctx context.Context, task *domain.Task) (any, error) {
			<-release
			return nil, nil
		},
	})

	started := make(chan struct{})
	go func() {
		close(started)
		r.RunOne(context.Background(), domain.NewTask("blocker", "b", nil))
	}()
	<-started

	// Ждём, пока первая task займёт слот
	deadline := time.Now().Add(time.Second)
	for r.InFlight() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	task := r.RunOne(ctx, domain.NewTask("waiter", "w", nil))
	close(release)

	if task.Err == nil {
		t.Fatal("expected error for task cancelled while waiting")
	}
	if !errors.Is(task.Err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", task.Err)
	}
	if !task.IsFinished() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestRunner_AcquireHoldsSlotUntilRelease(t *testing.T) {
	r := New(Config{MaxConcurrency: 1})

	release, err := r.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.InFlight() != 1 {
		t.Errorf("expected 1 in flight, got %d", r.InFlight())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded while slot is held, got %v", err)
	}

	release()
	release()
	if r.InFlight() != 0 {
		t.Errorf("expected 0 in flight, got %d", r.InFlight())
	}

	again, err := r.Acquire(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again()
}

func TestRunner_NoProcess(t *testing.T) {
	r := New(Config{})

	task := r.RunOne(context.Background(), domain.NewTask("x", "x", nil))
	if !errors.Is(task.Err, ErrNoProcess) {
		t.Errorf("expected ErrNoProcess, got %v", task.Err)
	}
}

func TestNew_Defaults(t *testing.T) {
	r := New(Config{})
	if r.Limit() != DefaultMaxConcurrency {
		t.Errorf("expected limit %d, got %d", DefaultMaxConcurrency, r.Limit())
	}
}
