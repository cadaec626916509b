package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeWorkflowSubmit MessageType = "workflow.submit"
	MessageTypeWorkflowEvent  MessageType = "workflow.event"
	MessageTypeRegistryEvent  MessageType = "registry.event"
)

// Message — конверт всех сообщений.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage создаёт сообщение с новым ID.
func NewMessage(typ MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// SubmitPayload — payload сообщения workflow.submit.
type SubmitPayload struct {
	Steps []domain.Step `json:"steps"`
}

// Publisher публикует сообщения в RabbitMQ.
// Реализует orchestrator.EventPublisher.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: telemetry.OrDefault(logger).With("component", "mq_publisher"),
	}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, string(exchange), string(routingKey), false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishWorkflowEvent публикует итог workflow с ключом workflow.<status>.
func (p *Publisher) PublishWorkflowEvent(ctx context.Context, snap domain.WorkflowSnapshot) error {
	return p.Publish(ctx, ExchangeEvents, WorkflowRoutingKey(snap.Status),
		NewMessage(MessageTypeWorkflowEvent, snap))
}

// PublishRegistryEvent публикует событие реестра с ключом registry.<event_type>.
func (p *Publisher) PublishRegistryEvent(ctx context.Context, event domain.Event) error {
	return p.Publish(ctx, ExchangeEvents, RegistryRoutingKey(event.Type),
		NewMessage(MessageTypeRegistryEvent, event))
}

// PublishSubmit отправляет workflow на выполнение через очередь.
func (p *Publisher) PublishSubmit(ctx context.Context, steps []domain.Step) (string, error) {
	msg := NewMessage(MessageTypeWorkflowSubmit, SubmitPayload{Steps: steps})
	if err := p.Publish(ctx, ExchangeWorkflows, RoutingKeySubmit, msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// WorkflowRoutingKey — workflow.completed, workflow.failed, ...
func WorkflowRoutingKey(status domain.WorkflowStatus) RoutingKey {
	return RoutingKey(workflowKeyPrefix + strings.ToLower(string(status)))
}

// RegistryRoutingKey — registry.service_registered, ...
func RegistryRoutingKey(typ domain.EventType) RoutingKey {
	return RoutingKey(registryKeyPrefix + string(typ))
}
