package telemetry

import (
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// --- Metrics Tests ---

func TestMetrics_RecordServiceRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordServiceRequest("llm-service", true, 10*time.Millisecond)
	m.RecordServiceRequest("llm-service", true, 20*time.Millisecond)
	m.RecordServiceRequest("llm-service", false, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.ServiceRequestsTotal.WithLabelValues("llm-service", "success")); got != 2 {
		t.Errorf("expected 2 successful requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.ServiceRequestsTotal.WithLabelValues("llm-service", "failure")); got != 1 {
		t.Errorf("expected 1 failed request, got %v", got)
	}
}

func TestMetrics_WorkflowLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.WorkflowStarted()
	m.WorkflowStarted()
	m.WorkflowFinished("COMPLETED")

	if got := testutil.ToFloat64(m.WorkflowsActive); got != 1 {
		t.Errorf("expected 1 active workflow, got %v", got)
	}
	if got := testutil.ToFloat64(m.WorkflowsTotal.WithLabelValues("COMPLETED")); got != 1 {
		t.Errorf("expected 1 completed workflow, got %v", got)
	}
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHealthCheckFailure("svc")
	m.RecordRegistryEvent("service_registered")
	m.RecordStepRetry("svc")

	if n := testutil.CollectAndCount(m.RegistryEventsTotal); n != 1 {
		t.Errorf("expected 1 registry event series, got %d", n)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"maestro_service_health_check_failures_total",
		"maestro_registry_events_total",
		"maestro_workflow_step_retries_total",
		"maestro_workflows_active",
	} {
		if !names[want] {
			t.Errorf("metric %q not registered", want)
		}
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.RecordServiceRequest("svc", true, time.Second)
	m.RecordHealthCheckFailure("svc")
	m.RecordRegistryEvent("x")
	m.WorkflowStarted()
	m.WorkflowFinished("FAILED")
	m.RecordStep("svc", false, time.Second)
	m.RecordStepRetry("svc")
	m.RecordHTTPRequest("GET", "200")
}

// --- Logging Tests ---

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) == nil {
		t.Fatal("expected default logger")
	}
	l := slog.New(slog.NewTextHandler(nil, nil))
	if OrDefault(l) != l {
		t.Error("expected the same logger back")
	}
}
