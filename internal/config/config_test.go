package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
server:
  addr: ":9090"
registry:
  health_check_interval: 15s
orchestrator:
  cancel_siblings_on_failure: true
services:
  - type: utility
    name: glue
    config:
      request_timeout: 5
  - type: http
schedules:
  - name: nightly
    cron_expr: "0 3 * * *"
    enabled: true
    steps:
      - step_id: ping
        service_name: http-service
        operation: request
        data:
          url: https://example.com
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "maestro.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

// --- Load Tests ---

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Registry.HealthCheckInterval != 30*time.Second || cfg.Registry.LoopErrorBackoff != 5*time.Second {
		t.Errorf("unexpected registry config: %+v", cfg.Registry)
	}
	if cfg.Orchestrator.RetryBaseDelay != time.Second || cfg.Orchestrator.CancelSiblingsOnFailure {
		t.Errorf("unexpected orchestrator config: %+v", cfg.Orchestrator)
	}
	if cfg.Runner.MaxConcurrency != 10 {
		t.Errorf("unexpected runner config: %+v", cfg.Runner)
	}
	if cfg.Anthropic.MaxTokens != 1000 || cfg.Anthropic.Temperature != 0.7 {
		t.Errorf("unexpected anthropic config: %+v", cfg.Anthropic)
	}
	if cfg.RabbitMQ.Enabled {
		t.Error("rabbitmq should be disabled by default")
	}
}

func TestLoad_File(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Registry.HealthCheckInterval != 15*time.Second {
		t.Errorf("unexpected interval: %v", cfg.Registry.HealthCheckInterval)
	}
	if !cfg.Orchestrator.CancelSiblingsOnFailure {
		t.Error("expected cancel_siblings_on_failure")
	}

	if len(cfg.Services) != 2 || cfg.Services[0].Type != "utility" || cfg.Services[0].Name != "glue" {
		t.Fatalf("unexpected services: %+v", cfg.Services)
	}
	settings := cfg.Services[0].ServiceSettings(cfg.Runner.MaxConcurrency)
	if settings["name"] != "glue" || settings["max_concurrent_requests"] != 10 {
		t.Errorf("unexpected settings: %v", settings)
	}

	if len(cfg.Schedules) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(cfg.Schedules))
	}
	sched, err := cfg.Schedules[0].Schedule()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sched.CronExpr != "0 3 * * *" || len(sched.Steps) != 1 {
		t.Errorf("unexpected schedule: %+v", sched)
	}
	if step := sched.Steps[0]; step.ID != "ping" || !step.Parallel || step.Data["url"] != "https://example.com" {
		t.Errorf("unexpected step: %+v", step)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_URL", "postgres://env/db")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("API_PORT", "7000")
	t.Setenv("MAESTRO_RABBITMQ_ENABLED", "true")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Database.URL != "postgres://env/db" {
		t.Errorf("unexpected db url: %s", cfg.Database.URL)
	}
	if cfg.Anthropic.APIKey != "sk-test" {
		t.Errorf("unexpected api key: %s", cfg.Anthropic.APIKey)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("API_PORT should override addr, got %s", cfg.Server.Addr)
	}
	if !cfg.RabbitMQ.Enabled {
		t.Error("MAESTRO_RABBITMQ_ENABLED should enable rabbitmq")
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}
