package mq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/protocol"
)

// Publisher публикует protocol.Message в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *protocol.Message, persistent bool) error {
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		publishing := buildPublishing(msg, body)
		if persistent {
			// сообщение переживёт рестарт RabbitMQ
			publishing.DeliveryMode = amqp.Persistent
		}

		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			publishing,
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
			"correlation_id", msg.CorrelationID,
		)

		return nil
	})
}

// PublishRequest публикует task_request в relay.tasks с ключом request.<target>.
// Потребитель: relay-agent.
func (p *Publisher) PublishRequest(ctx context.Context, msg *protocol.Message) error {
	return p.Publish(ctx, ExchangeTasks, RequestRoutingKey(msg.Target), msg, true)
}

// PublishReply отправляет ответ в очередь replyTo через default exchange.
// Потребитель: AMQP dispatch channel, ожидающий ответ.
func (p *Publisher) PublishReply(ctx context.Context, replyTo string, msg *protocol.Message) error {
	if replyTo == "" {
		return ErrEmptyReplyTo
	}
	return p.Publish(ctx, ExchangeDefault, RoutingKey(replyTo), msg, false)
}

// buildPublishing формирует AMQP сообщение из конверта.
func buildPublishing(msg *protocol.Message, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:   "application/json",
		MessageId:     msg.ID.String(),
		CorrelationId: msg.CorrelationID,
		ReplyTo:       msg.ReplyTo,
		Timestamp:     msg.Timestamp,
		Type:          string(msg.Type),
		Body:          body,
	}
}
