package domain

import "time"

// EventType — тип события реестра сервисов.
type EventType string

const (
	EventServiceRegistered        EventType = "service_registered"
	EventServiceUnregistered      EventType = "service_unregistered"
	EventServiceStatusChanged     EventType = "service_status_changed"
	EventServiceHealthCheckFailed EventType = "service_health_check_failed"
)

// Event — событие реестра. Доставляется подписчикам и не хранится.
type Event struct {
	Type        EventType      `json:"event_type"`
	ServiceID   string         `json:"service_id"`
	ServiceName string         `json:"service_name"`
	Timestamp   time.Time      `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewEvent создаёт событие с текущим временем.
func NewEvent(typ EventType, serviceID, serviceName string, metadata map[string]any) Event {
	return Event{
		Type:        typ,
		ServiceID:   serviceID,
		ServiceName: serviceName,
		Timestamp:   time.Now(),
		Metadata:    metadata,
	}
}
