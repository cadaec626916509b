package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var durationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics — набор Prometheus метрик Maestro.
//
// Все методы Record* безопасны для nil-получателя:
// компоненты, созданные без метрик, просто ничего не пишут.
type Metrics struct {
	ServiceRequestsTotal       *prometheus.CounterVec
	ServiceRequestDuration     *prometheus.HistogramVec
	ServiceHealthCheckFailures *prometheus.CounterVec

	RegistryEventsTotal *prometheus.CounterVec

	WorkflowsTotal    *prometheus.CounterVec
	WorkflowsActive   prometheus.Gauge
	StepDuration      *prometheus.HistogramVec
	StepRetriesTotal  *prometheus.CounterVec
	HTTPRequestsTotal *prometheus.CounterVec
}

// NewMetrics создаёт и регистрирует метрики в reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ServiceRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_service_requests_total",
			Help: "Total number of service requests.",
		}, []string{"service", "outcome"}),
		ServiceRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maestro_service_request_duration_seconds",
			Help:    "Service request duration in seconds.",
			Buckets: durationBuckets,
		}, []string{"service"}),
		ServiceHealthCheckFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_service_health_check_failures_total",
			Help: "Total number of failed health checks.",
		}, []string{"service"}),
		RegistryEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_registry_events_total",
			Help: "Total number of registry events emitted.",
		}, []string{"type"}),
		WorkflowsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_workflows_total",
			Help: "Total number of finished workflows by status.",
		}, []string{"status"}),
		WorkflowsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maestro_workflows_active",
			Help: "Number of workflows currently running.",
		}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maestro_workflow_step_duration_seconds",
			Help:    "Workflow step duration in seconds.",
			Buckets: durationBuckets,
		}, []string{"service", "outcome"}),
		StepRetriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_workflow_step_retries_total",
			Help: "Total number of step retry attempts.",
		}, []string{"service"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_api_http_requests_total",
			Help: "Total number of API HTTP requests.",
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		m.ServiceRequestsTotal,
		m.ServiceRequestDuration,
		m.ServiceHealthCheckFailures,
		m.RegistryEventsTotal,
		m.WorkflowsTotal,
		m.WorkflowsActive,
		m.StepDuration,
		m.StepRetriesTotal,
		m.HTTPRequestsTotal,
	)

	return m
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// RecordServiceRequest фиксирует обработанный запрос сервиса.
func (m *Metrics) RecordServiceRequest(service string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.ServiceRequestsTotal.WithLabelValues(service, outcome(success)).Inc()
	m.ServiceRequestDuration.WithLabelValues(service).Observe(d.Seconds())
}

// RecordHealthCheckFailure фиксирует неудачную проверку здоровья.
func (m *Metrics) RecordHealthCheckFailure(service string) {
	if m == nil {
		return
	}
	m.ServiceHealthCheckFailures.WithLabelValues(service).Inc()
}

// RecordRegistryEvent фиксирует событие реестра.
func (m *Metrics) RecordRegistryEvent(eventType string) {
	if m == nil {
		return
	}
	m.RegistryEventsTotal.WithLabelValues(eventType).Inc()
}

// WorkflowStarted увеличивает число активных workflow.
func (m *Metrics) WorkflowStarted() {
	if m == nil {
		return
	}
	m.WorkflowsActive.Inc()
}

// WorkflowFinished фиксирует завершение workflow с итоговым статусом.
func (m *Metrics) WorkflowFinished(status string) {
	if m == nil {
		return
	}
	m.WorkflowsActive.Dec()
	m.WorkflowsTotal.WithLabelValues(status).Inc()
}

// RecordStep фиксирует выполнение шага (все попытки).
func (m *Metrics) RecordStep(service string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.StepDuration.WithLabelValues(service, outcome(success)).Observe(d.Seconds())
}

// RecordStepRetry фиксирует повторную попытку шага.
func (m *Metrics) RecordStepRetry(service string) {
	if m == nil {
		return
	}
	m.StepRetriesTotal.WithLabelValues(service).Inc()
}

// RecordHTTPRequest фиксирует HTTP запрос к API.
func (m *Metrics) RecordHTTPRequest(method, status string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
}
