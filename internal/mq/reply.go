package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReplyQueue — эксклюзивная очередь ответов с именем, выданным сервером.
// Живёт, пока живёт соединение; после reconnect объявляется заново.
type ReplyQueue struct {
	Name       string
	Deliveries <-chan amqp.Delivery
}

// DeclareReplyQueue объявляет очередь ответов и подписывается на неё с auto-ack.
func DeclareReplyQueue(ctx context.Context, conn *Connection) (*ReplyQueue, error) {
	var rq ReplyQueue

	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		q, err := ch.QueueDeclare(
			"",    // name (server-named)
			false, // durable
			true,  // delete when unused
			true,  // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare reply queue: %w", err)
		}

		deliveries, err := ch.Consume(
			q.Name, // queue
			"",     // consumer tag
			true,   // auto-ack (ответ либо ждут, либо он уже не нужен)
			true,   // exclusive
			false,  // no-local
			false,  // no-wait
			nil,    // args
		)
		if err != nil {
			return fmt.Errorf("consume reply queue %s: %w", q.Name, err)
		}

		rq = ReplyQueue{Name: q.Name, Deliveries: deliveries}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &rq, nil
}
