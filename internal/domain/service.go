package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Приоритеты запросов. Приоритет носит рекомендательный характер.
const (
	PriorityHigh   = 1
	PriorityNormal = 2
	PriorityLow    = 3
)

// ServiceMetrics — метрики обработки запросов сервисом.
type ServiceMetrics struct {
	// TotalRequests — общее количество обработанных запросов.
	TotalRequests int64 `json:"total_requests"`

	// SuccessfulRequests — количество успешных запросов.
	SuccessfulRequests int64 `json:"successful_requests"`

	// FailedRequests — количество неуспешных запросов.
	FailedRequests int64 `json:"failed_requests"`

	// AverageResponseMs — скользящее среднее времени ответа
	// по последним 100 запросам, в миллисекундах.
	AverageResponseMs float64 `json:"average_response_ms"`

	// LastRequestAt — время последнего запроса.
	LastRequestAt *time.Time `json:"last_request_at,omitempty"`

	// UptimeSec — время работы с последнего успешного старта.
	UptimeSec float64 `json:"uptime_sec"`
}

// SuccessRate возвращает долю успешных запросов в процентах.
func (m ServiceMetrics) SuccessRate() float64 {
	if m.TotalRequests == 0 {
		return 0
	}
	return float64(m.SuccessfulRequests) / float64(m.TotalRequests) * 100
}

// ErrorRate возвращает долю неуспешных запросов в процентах.
func (m ServiceMetrics) ErrorRate() float64 {
	return 100 - m.SuccessRate()
}

// ServiceInfo — снимок состояния сервиса.
type ServiceInfo struct {
	ID              string         `json:"service_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	Version         string         `json:"version"`
	Status          ServiceStatus  `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	LastHealthCheck *time.Time     `json:"last_health_check,omitempty"`
	Metrics         ServiceMetrics `json:"metrics"`

	// Tags — теги для поиска по возможностям.
	Tags []string `json:"tags"`

	// Dependencies — имена сервисов, которые должны быть RUNNING.
	Dependencies []string `json:"dependencies"`

	// Configuration — произвольная конфигурация.
	Configuration map[string]any `json:"configuration,omitempty"`
}

// HasTag проверяет наличие тега.
func (i *ServiceInfo) HasTag(tag string) bool {
	return slices.Contains(i.Tags, tag)
}

// Clone возвращает копию, не разделяющую слайсы и map с оригиналом.
func (i ServiceInfo) Clone() ServiceInfo {
	c := i
	c.Tags = slices.Clone(i.Tags)
	c.Dependencies = slices.Clone(i.Dependencies)
	if i.Configuration != nil {
		c.Configuration = make(map[string]any, len(i.Configuration))
		for k, v := range i.Configuration {
			c.Configuration[k] = v
		}
	}
	if i.LastHealthCheck != nil {
		t := *i.LastHealthCheck
		c.LastHealthCheck = &t
	}
	if i.Metrics.LastRequestAt != nil {
		t := *i.Metrics.LastRequestAt
		c.Metrics.LastRequestAt = &t
	}
	return c
}

// Request — запрос к сервису. Не сохраняется.
type Request struct {
	ID            string         `json:"request_id"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Operation     string         `json:"operation"`
	Data          map[string]any `json:"data,omitempty"`

	// Timeout — запрошенный таймаут. Фактический дедлайн —
	// min(Timeout, таймаут сервиса). 0 — таймаут сервиса.
	Timeout time.Duration `json:"-"`

	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRequest создаёт запрос с новым ID и нормальным приоритетом.
func NewRequest(operation string, data map[string]any, timeout time.Duration) *Request {
	if data == nil {
		data = make(map[string]any)
	}
	return &Request{
		ID:        uuid.New().String(),
		Operation: operation,
		Data:      data,
		Timeout:   timeout,
		Priority:  PriorityNormal,
		CreatedAt: time.Now(),
	}
}

// Response — ответ сервиса.
type Response struct {
	RequestID    string         `json:"request_id"`
	Success      bool           `json:"success"`
	Data         any            `json:"data,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	ErrorCode    ErrorCode      `json:"error_code,omitempty"`
	ExecutionMs  float64        `json:"execution_ms"`
	CompletedAt  time.Time      `json:"completed_at"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}
