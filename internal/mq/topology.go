package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeTasks Exchange = "relay.tasks"
	ExchangeDLQ   Exchange = "relay.dlq"

	// ExchangeDefault — default exchange, маршрутизирует по имени очереди.
	// Через него отправляются ответы в очередь ReplyTo.
	ExchangeDefault Exchange = ""
)

// Queues — имена очередей.
const (
	QueueTaskRequests Queue = "tasks.requests"
	QueueDLQTasks     Queue = "dlq.tasks"
)

// Routing keys.
const (
	RoutingKeyRequestPrefix = "request."
	RoutingKeyAllRequests   RoutingKey = "request.#"
	RoutingKeyDLQTasks      RoutingKey = "tasks"
)

// RequestRoutingKey возвращает routing key запроса для target.
func RequestRoutingKey(target string) RoutingKey {
	return RoutingKey(RoutingKeyRequestPrefix + target)
}

// TargetFromRoutingKey извлекает target из routing key запроса.
func TargetFromRoutingKey(key string) (string, bool) {
	target, ok := strings.CutPrefix(key, RoutingKeyRequestPrefix)
	if !ok || target == "" {
		return "", false
	}
	return target, true
}

// SetupTopology объявляет exchanges, очереди и привязки Relay.
// Операция идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeTasks, "topic"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQTasks),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// tasks.requests — с DLQ (некорректные запросы уходят в DLQ)
		{QueueTaskRequests, dlqArgs},
		{QueueDLQTasks, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTaskRequests, RoutingKeyAllRequests, ExchangeTasks},
		{QueueDLQTasks, RoutingKeyDLQTasks, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Relay RabbitMQ Topology:

    relay.tasks (topic)
    └── tasks.requests [routing: request.#]
            Consumer: relay-agent
            DLQ: dlq.tasks

    (default exchange)
    └── amq.gen-* [exclusive reply queue per relay-engine]
            Consumer: AMQP dispatch channel

    relay.dlq (direct)
    └── dlq.tasks [routing: tasks]
            Manual processing
  `
}
