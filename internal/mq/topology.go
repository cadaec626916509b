package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — имя обменника.
type Exchange string

// Queue — имя очереди.
type Queue string

// RoutingKey — ключ маршрутизации.
type RoutingKey string

// Обменники.
const (
	// ExchangeEvents — topic: registry.<event_type>, workflow.<status>.
	ExchangeEvents Exchange = "maestro.events"

	// ExchangeWorkflows — direct: приём workflows на выполнение.
	ExchangeWorkflows Exchange = "maestro.workflows"

	ExchangeDLQ Exchange = "maestro.dlq"
)

// Очереди.
const (
	QueueWorkflowsSubmit Queue = "workflows.submit"
	QueueDLQWorkflows    Queue = "dlq.workflows"
)

// Ключи маршрутизации.
const (
	RoutingKeySubmit       RoutingKey = "submit"
	RoutingKeyDLQWorkflows RoutingKey = "workflows"
)

// Префиксы ключей событий в ExchangeEvents.
const (
	registryKeyPrefix = "registry."
	workflowKeyPrefix = "workflow."
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topology — полное описание обменников, очередей и привязок.
func topology() ([]exchangeDecl, []queueDecl, []bindingDecl) {
	exchanges := []exchangeDecl{
		{ExchangeEvents, amqp.ExchangeTopic},
		{ExchangeWorkflows, amqp.ExchangeDirect},
		{ExchangeDLQ, amqp.ExchangeDirect},
	}

	queues := []queueDecl{
		// workflows.submit — некорректные сообщения уходят в DLQ
		{QueueWorkflowsSubmit, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQWorkflows),
		}},
		{QueueDLQWorkflows, nil},
	}

	bindings := []bindingDecl{
		{QueueWorkflowsSubmit, RoutingKeySubmit, ExchangeWorkflows},
		{QueueDLQWorkflows, RoutingKeyDLQWorkflows, ExchangeDLQ},
	}

	return exchanges, queues, bindings
}

// SetupTopology объявляет обменники, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	exchanges, queues, bindings := topology()

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		for _, q := range queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Maestro RabbitMQ Topology:

    maestro.events (topic)
        registry.<event_type>, workflow.<status>

    maestro.workflows (direct)
    └── workflows.submit [routing: submit]
            Consumer: maestro-server
            DLQ: dlq.workflows

    maestro.dlq (direct)
    └── dlq.workflows [routing: workflows]
            Manual processing
`
}
