package api

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Maestro/internal/orchestrator"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// Handler — HTTP API над orchestrator.
type Handler struct {
	orch      *orchestrator.Orchestrator
	metrics   *telemetry.Metrics
	gatherer  prometheus.Gatherer
	logger    *slog.Logger
	startedAt time.Time
}

// Config — зависимости Handler.
type Config struct {
	Orchestrator *orchestrator.Orchestrator

	// Metrics — счётчик HTTP запросов (опционально).
	Metrics *telemetry.Metrics

	// Gatherer — источник /metrics (default: prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		orch:      cfg.Orchestrator,
		metrics:   cfg.Metrics,
		gatherer:  cfg.Gatherer,
		logger:    telemetry.OrDefault(cfg.Logger).With("component", "api"),
		startedAt: time.Now(),
	}
}
