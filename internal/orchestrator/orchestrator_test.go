package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/registry"
	"github.com/shaiso/Maestro/internal/service"
)

type handlerFunc func(ctx context.Context, op string, data map[string]any) (any, error)

func newTestOrchestrator(t *testing.T, cfg Config) *Orchestrator {
	t.Helper()
	if cfg.Registry == nil {
		cfg.Registry = registry.New(registry.Config{HealthInterval: time.Hour})
	}
	o := New(cfg)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Shutdown(ctx)
	})
	return o
}

func registerStub(t *testing.T, o *Orchestrator, name string, h handlerFunc) *service.Service {
	t.Helper()
	svc := service.New(service.HooksFunc{Handler: h}, service.Config{Name: name})
	if err := o.Registry().Register(context.Background(), svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func okHandler(delay time.Duration) handlerFunc {
	return func(ctx context.Context, op string, data map[string]any) (any, error) {
		select {
		case <-time.After(delay):
			return map[string]any{"op": op}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func waitWorkflow(t *testing.T, o *Orchestrator, id string) domain.WorkflowSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := o.Wait(ctx, id)
	if err != nil {
		t.Fatalf("waiting for workflow: %v", err)
	}
	return snap
}

func step(id, serviceName string, parallel bool, deps ...string) domain.Step {
	return domain.Step{
		ID:          id,
		ServiceName: serviceName,
		Operation:   "run",
		Data:        map[string]any{},
		DependsOn:   deps,
		TimeoutSec:  5,
		Parallel:    parallel,
	}
}

// --- Execution Tests ---

func TestOrchestrator_DependencyOrdering(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "svc-a", okHandler(30*time.Millisecond))
	registerStub(t, o, "svc-b", okHandler(50*time.Millisecond))
	registerStub(t, o, "svc-c", okHandler(10*time.Millisecond))

	id, err := o.Submit([]domain.Step{
		step("A", "svc-a", true),
		step("B", "svc-b", true),
		step("C", "svc-c", false, "A", "B"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := waitWorkflow(t, o, id)
	if snap.Status != domain.WorkflowStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (errors: %v)", snap.Status, snap.Errors)
	}
	if snap.StepsCompleted != 3 || snap.StepsTotal != 3 {
		t.Errorf("expected 3/3 steps, got %d/%d", snap.StepsCompleted, snap.StepsTotal)
	}

	a, b, c := snap.Results["A"], snap.Results["B"], snap.Results["C"]
	if !c.StartedAt.After(a.FinishedAt) || !c.StartedAt.After(b.FinishedAt) {
		t.Errorf("C started at %v before dependencies finished (A %v, B %v)",
			c.StartedAt, a.FinishedAt, b.FinishedAt)
	}
	if b.StartedAt.After(a.FinishedAt) {
		t.Error("expected A and B to run concurrently")
	}
	if snap.StartedAt == nil || snap.CompletedAt == nil {
		t.Error("expected start and completion timestamps")
	}
}

func TestOrchestrator_SequentialOrder(t *testing.T) {
	o := newTestOrchestrator(t, Config{})

	var (
		mu    sync.Mutex
		order []string
	)
	registerStub(t, o, "seq", func(ctx context.Context, op string, data map[string]any) (any, error) {
		mu.Lock()
		order = append(order, data["name"].(string))
		mu.Unlock()
		return nil, nil
	})

	steps := make([]domain.Step, 0, 3)
	for _, name := range []string{"first", "second", "third"} {
		s := step(name, "seq", false)
		s.Data = map[string]any{"name": name}
		steps = append(steps, s)
	}

	id, err := o.Submit(steps)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap := waitWorkflow(t, o, id); snap.Status != domain.WorkflowStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", snap.Status)
	}

	if strings.Join(order, ",") != "first,second,third" {
		t.Errorf("expected discovery order, got %v", order)
	}
}

func TestOrchestrator_Deadlock(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "svc", okHandler(0))

	id, err := o.Submit([]domain.Step{
		step("A", "svc", true, "B"),
		step("B", "svc", true, "A"),
	})
	if err != nil {
		t.Fatalf("cycles must not be rejected at submit: %v", err)
	}

	start := time.Now()
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if time.Since(start) > time.Second {
		t.Error("deadlock detection took too long")
	}
	if len(snap.Errors) != 1 || !strings.Contains(snap.Errors[0], "deadlock") {
		t.Errorf("expected deadlock error, got %v", snap.Errors)
	}
}

func TestOrchestrator_DeadlockAfterProgress(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "svc", okHandler(0))

	id, err := o.Submit([]domain.Step{
		step("root", "svc", true),
		step("orphan", "svc", true, "root", "missing"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := waitWorkflow(t, o, id)
	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if snap.StepsCompleted != 1 {
		t.Errorf("expected root to complete, got %d steps", snap.StepsCompleted)
	}
}

// --- Retry Tests ---

func TestOrchestrator_RetryThenSuccess(t *testing.T) {
	o := newTestOrchestrator(t, Config{})

	var calls atomic.Int32
	registerStub(t, o, "flaky", func(ctx context.Context, op string, data map[string]any) (any, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("temporary failure")
		}
		return "ok", nil
	})

	s := step("flaky-step", "flaky", true)
	s.RetryCount = 2

	start := time.Now()
	id, err := o.Submit([]domain.Step{s})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := waitWorkflow(t, o, id)
	elapsed := time.Since(start)

	if snap.Status != domain.WorkflowStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (errors: %v)", snap.Status, snap.Errors)
	}
	if elapsed < 3*time.Second {
		t.Errorf("expected cumulative backoff >= 3s, got %s", elapsed)
	}
	if got := snap.Results["flaky-step"].Attempts; got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if got := snap.Results["flaky-step"].Response.Metadata["attempt"]; got != 3 {
		t.Errorf("expected attempt metadata 3, got %v", got)
	}
}

func TestOrchestrator_RetriesExhausted(t *testing.T) {
	o := newTestOrchestrator(t, Config{RetryBaseDelay: time.Millisecond})

	var calls atomic.Int32
	registerStub(t, o, "broken", func(ctx context.Context, op string, data map[string]any) (any, error) {
		calls.Add(1)
		return nil, errors.New("boom")
	})

	s := step("s", "broken", true)
	s.RetryCount = 2

	id, _ := o.Submit([]domain.Step{s})
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
	if len(snap.Errors) != 1 || !strings.Contains(snap.Errors[0], "step s failed") {
		t.Errorf("unexpected errors: %v", snap.Errors)
	}
}

func TestOrchestrator_UnknownOperationNotRetried(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "limited", nil)

	s := step("s", "limited", true)
	s.RetryCount = 3

	start := time.Now()
	id, _ := o.Submit([]domain.Step{s})
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("unknown operation must not be retried")
	}
	if !strings.Contains(snap.Errors[0], "unknown operation") {
		t.Errorf("expected unknown operation error, got %v", snap.Errors)
	}
}

func TestOrchestrator_ServiceNotFound(t *testing.T) {
	o := newTestOrchestrator(t, Config{})

	s := step("s", "ghost-service", true)
	s.RetryCount = 5

	start := time.Now()
	id, _ := o.Submit([]domain.Step{s})
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("missing service must fail without retries")
	}
	if len(snap.Errors) != 1 || !strings.Contains(snap.Errors[0], ErrServiceNotFound.Error()) {
		t.Errorf("expected service not found error, got %v", snap.Errors)
	}
}

func TestOrchestrator_ServiceNotRunning(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	svc := registerStub(t, o, "paused", okHandler(0))
	if err := svc.SetMaintenance(true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, _ := o.Submit([]domain.Step{step("s", "paused", true)})
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if !strings.Contains(snap.Errors[0], ErrServiceNotRunning.Error()) {
		t.Errorf("expected service not running error, got %v", snap.Errors)
	}
}

// --- Cancel Tests ---

func TestOrchestrator_CancelMidExecution(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "fast", okHandler(0))

	started := make(chan struct{})
	registerStub(t, o, "slow", func(ctx context.Context, op string, data map[string]any) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	id, _ := o.Submit([]domain.Step{
		step("A", "fast", true),
		step("C", "slow", false, "A"),
	})

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("step C never started")
	}

	cancelled, err := o.Cancel(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cancelled {
		t.Fatal("expected live execution to be cancelled")
	}

	snap := waitWorkflow(t, o, id)
	if snap.Status != domain.WorkflowStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", snap.Status)
	}
	if snap.StepsCompleted != 1 {
		t.Errorf("expected 1 completed step, got %d", snap.StepsCompleted)
	}
	if snap.CompletedAt == nil {
		t.Error("expected completion time")
	}

	again, err := o.Cancel(id)
	if err != nil || again {
		t.Errorf("second cancel: expected (false, nil), got (%v, %v)", again, err)
	}

	if stats := o.Stats(context.Background()); stats.FailedWorkflows != 0 {
		t.Errorf("cancel must not count as failure, got %d", stats.FailedWorkflows)
	}
}

func TestOrchestrator_CancelKeepsFinishedParallelSteps(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "fast", okHandler(10*time.Millisecond))
	registerStub(t, o, "slow", func(ctx context.Context, op string, data map[string]any) (any, error) {
		time.Sleep(500 * time.Millisecond)
		return "late", nil
	})
	registerStub(t, o, "final", okHandler(0))

	id, _ := o.Submit([]domain.Step{
		step("A", "fast", true),
		step("B", "slow", true),
		step("C", "final", false, "A", "B"),
	})

	deadline := time.Now().Add(5 * time.Second)
	for {
		snap, err := o.Status(id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if snap.StepsCompleted == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("step A was never recorded")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := o.Cancel(id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := waitWorkflow(t, o, id)
	if snap.Status != domain.WorkflowStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", snap.Status)
	}
	if snap.StepsCompleted != 1 {
		t.Errorf("expected 1 completed step, got %d", snap.StepsCompleted)
	}
	if _, ok := snap.Results["A"]; !ok {
		t.Error("expected result of step A")
	}

	// B завершается после отмены и не должен попасть в результаты.
	time.Sleep(600 * time.Millisecond)
	if snap, _ := o.Status(id); snap.StepsCompleted != 1 {
		t.Errorf("results after cancel must be dropped, got %d", snap.StepsCompleted)
	}
}

func TestOrchestrator_FailureKeepsEarlierSteps(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "fast", okHandler(0))

	id, _ := o.Submit([]domain.Step{
		step("A", "fast", true),
		step("S", "missing", false),
	})
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if snap.StepsCompleted != 1 {
		t.Errorf("expected 1 completed step, got %d", snap.StepsCompleted)
	}
	if _, ok := snap.Results["A"]; !ok {
		t.Error("expected result of step A")
	}
}

func TestOrchestrator_UnknownWorkflow(t *testing.T) {
	o := newTestOrchestrator(t, Config{})

	if _, err := o.Status("missing"); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("Status: expected ErrWorkflowNotFound, got %v", err)
	}
	if _, err := o.Cancel("missing"); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("Cancel: expected ErrWorkflowNotFound, got %v", err)
	}
}

func TestOrchestrator_SubmitValidation(t *testing.T) {
	o := newTestOrchestrator(t, Config{})

	if _, err := o.Submit(nil); err == nil {
		t.Error("expected error for empty workflow")
	}

	bad := step("s", "svc", true)
	bad.RetryCount = -1
	if _, err := o.Submit([]domain.Step{bad}); err == nil {
		t.Error("expected error for negative retry count")
	}

	if n := len(o.List()); n != 0 {
		t.Errorf("invalid workflows must not be stored, got %d", n)
	}
}

// --- Sibling Policy Tests ---

func siblingSteps() []domain.Step {
	return []domain.Step{
		step("fail", "failing", true),
		step("slow", "slow", true),
	}
}

func registerSiblings(t *testing.T, o *Orchestrator) *atomic.Bool {
	t.Helper()

	interrupted := &atomic.Bool{}
	registerStub(t, o, "failing", func(ctx context.Context, op string, data map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	registerStub(t, o, "slow", func(ctx context.Context, op string, data map[string]any) (any, error) {
		select {
		case <-time.After(300 * time.Millisecond):
			return "done", nil
		case <-ctx.Done():
			interrupted.Store(true)
			return nil, ctx.Err()
		}
	})
	return interrupted
}

func TestOrchestrator_SiblingsRunToCompletion(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	interrupted := registerSiblings(t, o)

	id, _ := o.Submit(siblingSteps())
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if interrupted.Load() {
		t.Error("sibling must not be cancelled by default")
	}
	if snap.StepsCompleted != 1 {
		t.Errorf("expected finished sibling to be kept, got %d", snap.StepsCompleted)
	}
	if _, ok := snap.Results["slow"]; !ok {
		t.Error("expected result of step slow")
	}
	if !strings.Contains(snap.Errors[0], "step fail failed") {
		t.Errorf("expected failure of step fail, got %v", snap.Errors)
	}
}

func TestOrchestrator_CancelSiblingsOnFailure(t *testing.T) {
	o := newTestOrchestrator(t, Config{CancelSiblingsOnFailure: true})
	interrupted := registerSiblings(t, o)

	start := time.Now()
	id, _ := o.Submit(siblingSteps())
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusFailed {
		t.Fatalf("expected FAILED, got %s", snap.Status)
	}
	if !interrupted.Load() {
		t.Error("expected sibling to be cancelled")
	}
	if time.Since(start) >= 300*time.Millisecond {
		t.Error("workflow should not wait for the cancelled sibling")
	}
}

// --- Template Tests ---

func TestOrchestrator_StepDataTemplating(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "source", func(ctx context.Context, op string, data map[string]any) (any, error) {
		return map[string]any{"text": "hello"}, nil
	})
	registerStub(t, o, "echo", func(ctx context.Context, op string, data map[string]any) (any, error) {
		return data, nil
	})

	consumer := step("consumer", "echo", true, "producer")
	consumer.Data = map[string]any{"msg": "{{ .Steps.producer.Data.text }} world"}

	id, _ := o.Submit([]domain.Step{step("producer", "source", true), consumer})
	snap := waitWorkflow(t, o, id)

	if snap.Status != domain.WorkflowStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (errors: %v)", snap.Status, snap.Errors)
	}

	data, ok := snap.Results["consumer"].Response.Data.(map[string]any)
	if !ok || data["msg"] != "hello world" {
		t.Errorf("expected rendered msg, got %v", snap.Results["consumer"].Response.Data)
	}
}

// --- Publisher Tests ---

type recordingPublisher struct {
	mu        sync.Mutex
	workflows []domain.WorkflowSnapshot
	events    []domain.Event
}

func (p *recordingPublisher) PublishWorkflowEvent(ctx context.Context, wf domain.WorkflowSnapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.workflows = append(p.workflows, wf)
	return nil
}

func (p *recordingPublisher) PublishRegistryEvent(ctx context.Context, ev domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func TestOrchestrator_PublishesWorkflowEvents(t *testing.T) {
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, Config{Publisher: pub})
	registerStub(t, o, "svc", okHandler(0))

	id, _ := o.Submit([]domain.Step{step("s", "svc", true)})
	waitWorkflow(t, o, id)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.workflows) != 1 || pub.workflows[0].Status != domain.WorkflowStatusCompleted {
		t.Errorf("expected one COMPLETED event, got %+v", pub.workflows)
	}
}

// --- Service Hooks Tests ---

type fakeFactory struct{}

func (fakeFactory) Supports(typ string) bool { return typ == "echo" }

func (fakeFactory) Create(ctx context.Context, typ string, cfg map[string]any) (*service.Service, error) {
	return service.New(service.HooksFunc{}, service.Config{
		Name:         "echo-service",
		Dependencies: []string{"database-service"},
	}), nil
}

func TestOrchestrator_AsServiceLifecycle(t *testing.T) {
	pub := &recordingPublisher{}
	o := newTestOrchestrator(t, Config{Publisher: pub, Factory: fakeFactory{}})
	svc := o.AsService(service.Config{})

	if svc.Name() != ServiceName {
		t.Errorf("expected name %s, got %s", ServiceName, svc.Name())
	}

	ctx := context.Background()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !o.Registry().IsRunning() {
		t.Error("expected registry to be started")
	}
	if err := svc.HealthCheck(ctx); err != nil {
		t.Errorf("unexpected health check error: %v", err)
	}

	resp := svc.ProcessRequest(ctx, domain.NewRequest(OpRegisterService, map[string]any{
		"service_type": "echo",
	}, 0))
	if !resp.Success {
		t.Fatalf("register_service failed: %s", resp.ErrorMessage)
	}
	reg := resp.Data.(Registration)
	if !reg.Registered || reg.DependenciesOK || len(reg.Missing) != 1 {
		t.Errorf("unexpected registration: %+v", reg)
	}

	pub.mu.Lock()
	forwarded := len(pub.events)
	pub.mu.Unlock()
	if forwarded == 0 {
		t.Error("expected registry events to be forwarded")
	}

	if err := svc.Stop(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Registry().IsRunning() {
		t.Error("expected registry to be stopped")
	}
}

func TestOrchestrator_HandleOperations(t *testing.T) {
	o := newTestOrchestrator(t, Config{})
	registerStub(t, o, "svc", okHandler(0))
	ctx := context.Background()

	out, err := o.Handle(ctx, OpExecuteWorkflow, map[string]any{
		"steps": []any{
			map[string]any{"step_id": "s", "service_name": "svc", "operation": "run"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	started := out.(map[string]any)
	if started["status"] != "started" || started["steps_count"] != 1 {
		t.Errorf("unexpected response: %v", started)
	}
	id := started["workflow_id"].(string)
	waitWorkflow(t, o, id)

	out, err = o.Handle(ctx, OpGetWorkflowStatus, map[string]any{"workflow_id": id})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap := out.(domain.WorkflowSnapshot); snap.Status != domain.WorkflowStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", snap.Status)
	}

	out, err = o.Handle(ctx, OpCancelWorkflow, map[string]any{"workflow_id": id})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.(map[string]any)["cancelled"] != false {
		t.Error("finished workflow must not be cancelled")
	}

	out, err = o.Handle(ctx, OpGetServices, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	services := out.(map[string]any)["services"].([]ServiceSummary)
	if len(services) != 1 || services[0].Metrics.TotalRequests != 1 {
		t.Errorf("unexpected services: %+v", services)
	}

	if _, err := o.Handle(ctx, OpGetWorkflowStatus, map[string]any{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := o.Handle(ctx, OpRegisterService, map[string]any{"service_type": "llm"}); !errors.Is(err, ErrUnknownServiceType) {
		t.Errorf("expected ErrUnknownServiceType, got %v", err)
	}
	if _, err := o.Handle(ctx, "explode", nil); !errors.Is(err, service.ErrUnknownOperation) {
		t.Errorf("expected ErrUnknownOperation, got %v", err)
	}
}

func TestOrchestrator_Plan(t *testing.T) {
	o := newTestOrchestrator(t, Config{})

	batches, err := o.Plan([]domain.Step{
		step("A", "svc", true),
		step("B", "svc", true),
		step("C", "svc", false, "A", "B"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batches) != 2 || len(batches[0].Parallel) != 2 || batches[1].Sequential[0] != "C" {
		t.Errorf("unexpected plan: %+v", batches)
	}
}

// --- Stats Tests ---

func TestOrchestrator_Stats(t *testing.T) {
	o := newTestOrchestrator(t, Config{RetryBaseDelay: time.Millisecond})
	registerStub(t, o, "good", okHandler(0))
	registerStub(t, o, "bad", func(ctx context.Context, op string, data map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	for _, name := range []string{"good", "bad"} {
		id, err := o.Submit([]domain.Step{step("s", name, true)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		waitWorkflow(t, o, id)
	}

	stats := o.Stats(context.Background())
	if stats.TotalWorkflows != 2 || stats.SuccessfulWorkflows != 1 || stats.FailedWorkflows != 1 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.SuccessRate != 50 {
		t.Errorf("expected success rate 50, got %v", stats.SuccessRate)
	}
	if stats.ActiveWorkflows != 0 {
		t.Errorf("expected no active workflows, got %d", stats.ActiveWorkflows)
	}
	if stats.RegisteredServices != 2 || stats.RunningServices != 2 {
		t.Errorf("unexpected service counts: %+v", stats)
	}
	if stats.ServiceHealth["good"] != domain.ServiceStatusRunning {
		t.Errorf("expected good RUNNING, got %v", stats.ServiceHealth)
	}
}
