package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// ErrMalformed — сообщение нельзя обработать ни при каком повторе.
// Такие сообщения уходят в DLQ, остальные ошибки возвращают сообщение в очередь.
var ErrMalformed = errors.New("malformed message")

// Handler обрабатывает сообщение.
type Handler func(ctx context.Context, msg *Message) error

// Consumer потребляет сообщения из очереди.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	handler  Handler
	prefetch int
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	Queue   Queue
	Handler Handler

	// Prefetch — сообщений без ack одновременно (default: 1).
	Prefetch int
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		logger:   telemetry.OrDefault(logger).With("component", "mq_consumer", "queue", cfg.Queue),
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: cfg.Prefetch,
	}
}

// Run потребляет сообщения до отмены ctx, переживая переподключения.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		deliveries, err := c.setup()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
		} else {
			c.logger.Info("consumer started")
			if err := c.process(ctx, deliveries); ctx.Err() != nil {
				return ctx.Err()
			} else if err != nil {
				c.logger.Warn("deliveries channel closed, waiting for reconnect")
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
			c.logger.Info("reconnected, restarting consumer")
		}
	}
}

func (c *Consumer) setup() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(string(c.queue), "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

func (c *Consumer) process(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, raw)
		}
	}
}

// handle: успех — ack; ErrMalformed — в DLQ; прочие ошибки — обратно в очередь.
func (c *Consumer) handle(ctx context.Context, raw amqp.Delivery) {
	var ackErr error
	switch err := c.dispatch(ctx, raw.Body); {
	case err == nil:
		ackErr = raw.Ack(false)
	case errors.Is(err, ErrMalformed):
		c.logger.Error("dead-lettering message", "error", err, "message_id", raw.MessageId)
		ackErr = raw.Nack(false, false)
	default:
		c.logger.Error("handler failed, requeueing", "error", err, "message_id", raw.MessageId)
		ackErr = raw.Nack(false, true)
	}
	if ackErr != nil {
		c.logger.Warn("failed to acknowledge message", "error", ackErr)
	}
}

func (c *Consumer) dispatch(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c.logger.Debug("received message", "message_id", msg.ID, "type", msg.Type)
	return c.handler(ctx, &msg)
}

// ParsePayload декодирует payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	b, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}
	return result, nil
}

// Submitter принимает workflow на выполнение.
type Submitter interface {
	Submit(steps []domain.Step) (string, error)
}

// SubmitHandler возвращает Handler очереди workflows.submit.
// Неверный тип, payload или отклонённый набор шагов — ErrMalformed.
func SubmitHandler(s Submitter, logger *slog.Logger) Handler {
	logger = telemetry.OrDefault(logger)

	return func(ctx context.Context, msg *Message) error {
		if msg.Type != MessageTypeWorkflowSubmit {
			return fmt.Errorf("%w: unexpected type %q", ErrMalformed, msg.Type)
		}

		payload, err := ParsePayload[SubmitPayload](msg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		id, err := s.Submit(payload.Steps)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		telemetry.WithWorkflowID(logger, id).Info("workflow submitted from queue",
			"message_id", msg.ID,
			"steps", len(payload.Steps),
		)
		return nil
	}
}
