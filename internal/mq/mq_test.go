package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/shaiso/Maestro/internal/domain"
)

// --- Routing Tests ---

func TestRoutingKeys(t *testing.T) {
	if got := WorkflowRoutingKey(domain.WorkflowStatusCompleted); got != "workflow.completed" {
		t.Errorf("unexpected workflow key: %s", got)
	}
	if got := WorkflowRoutingKey(domain.WorkflowStatusCancelled); got != "workflow.cancelled" {
		t.Errorf("unexpected workflow key: %s", got)
	}
	if got := RegistryRoutingKey(domain.EventServiceRegistered); got != "registry.service_registered" {
		t.Errorf("unexpected registry key: %s", got)
	}
}

func TestTopology(t *testing.T) {
	exchanges, queues, bindings := topology()

	kinds := make(map[Exchange]string)
	for _, ex := range exchanges {
		kinds[ex.name] = ex.kind
	}
	if kinds[ExchangeEvents] != "topic" {
		t.Errorf("events exchange should be topic, got %q", kinds[ExchangeEvents])
	}
	if kinds[ExchangeWorkflows] != "direct" {
		t.Errorf("workflows exchange should be direct, got %q", kinds[ExchangeWorkflows])
	}

	var submit *queueDecl
	for i := range queues {
		if queues[i].name == QueueWorkflowsSubmit {
			submit = &queues[i]
		}
	}
	if submit == nil {
		t.Fatal("workflows.submit queue not declared")
	}
	if submit.args["x-dead-letter-exchange"] != string(ExchangeDLQ) {
		t.Errorf("submit queue should dead-letter to %s", ExchangeDLQ)
	}

	for _, b := range bindings {
		if _, ok := kinds[b.exchange]; !ok {
			t.Errorf("binding to undeclared exchange %s", b.exchange)
		}
	}
}

// --- Consumer Tests ---

type fakeSubmitter struct {
	steps []domain.Step
	err   error
}

func (f *fakeSubmitter) Submit(steps []domain.Step) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.steps = steps
	return "wf-1", nil
}

func encode(t *testing.T, msg *Message) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b
}

func TestSubmitHandler(t *testing.T) {
	s := &fakeSubmitter{}
	c := NewConsumer(nil, nil, ConsumerConfig{Queue: QueueWorkflowsSubmit, Handler: SubmitHandler(s, nil)})

	body := []byte(`{"id":"m1","type":"workflow.submit","payload":{"steps":[
		{"step_id":"a","service_name":"utility-service","operation":"echo"},
		{"step_id":"b","service_name":"utility-service","operation":"echo","depends_on":["a"],"parallel":false}
	]}}`)

	if err := c.dispatch(context.Background(), body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(s.steps))
	}
	if !s.steps[0].Parallel || s.steps[1].Parallel {
		t.Errorf("parallel defaults not applied: %+v", s.steps)
	}
	if s.steps[0].TimeoutSec != domain.DefaultStepTimeoutSec {
		t.Errorf("expected default timeout, got %v", s.steps[0].TimeoutSec)
	}
}

func TestSubmitHandler_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body []byte
		err  error
	}{
		{"invalid json", []byte("{"), nil},
		{"wrong type", encode(t, NewMessage(MessageTypeRegistryEvent, nil)), nil},
		{"bad payload", []byte(`{"type":"workflow.submit","payload":{"steps":"nope"}}`), nil},
		{"rejected", encode(t, NewMessage(MessageTypeWorkflowSubmit, SubmitPayload{})), errors.New("no steps")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &fakeSubmitter{err: tt.err}
			c := NewConsumer(nil, nil, ConsumerConfig{Queue: QueueWorkflowsSubmit, Handler: SubmitHandler(s, nil)})

			err := c.dispatch(context.Background(), tt.body)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestDispatch_HandlerErrorNotMalformed(t *testing.T) {
	boom := errors.New("temporary")
	c := NewConsumer(nil, nil, ConsumerConfig{
		Queue:   QueueWorkflowsSubmit,
		Handler: func(ctx context.Context, msg *Message) error { return boom },
	})

	err := c.dispatch(context.Background(), encode(t, NewMessage(MessageTypeWorkflowSubmit, nil)))
	if !errors.Is(err, boom) || errors.Is(err, ErrMalformed) {
		t.Errorf("expected handler error to pass through, got %v", err)
	}
}

func TestParsePayload(t *testing.T) {
	msg := NewMessage(MessageTypeWorkflowEvent, map[string]any{"workflow_id": "w", "status": "FAILED"})

	snap, err := ParsePayload[domain.WorkflowSnapshot](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ID != "w" || snap.Status != domain.WorkflowStatusFailed {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestWithChannel_NoChannel(t *testing.T) {
	c := &Connection{}
	err := c.WithChannel(context.Background(), nil)
	if !errors.Is(err, ErrNoChannel) {
		t.Errorf("expected ErrNoChannel, got %v", err)
	}
}
