package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/protocol"
)

// requestPublisher — часть mq.Publisher, нужная AMQPChannel.
type requestPublisher interface {
	PublishRequest(ctx context.Context, msg *protocol.Message) error
}

// AMQPChannel — RPC через RabbitMQ.
//
// Запрос публикуется в relay.tasks с ключом request.<target>, ReplyTo
// указывает на эксклюзивную очередь этого процесса. Ответ сопоставляется
// с ожидающим Send по CorrelationID; ответы без ожидающего отбрасываются.
type AMQPChannel struct {
	conn      *mq.Connection
	publisher requestPublisher
	source    string
	logger    *slog.Logger
	targets   []string

	mu         sync.Mutex
	replyQueue string
	pending    map[string]chan *protocol.Message

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// AMQPConfig — конфигурация AMQPChannel.
type AMQPConfig struct {
	Conn      *mq.Connection
	Publisher *mq.Publisher
	Source    string
	Logger    *slog.Logger

	// Targets — target, которые обслуживают агенты. Только для Describe:
	// отправка в очередь возможна для любого target.
	Targets []string
}

// NewAMQPChannel создаёт AMQPChannel. До Start отправка возвращает ErrChannelClosed.
func NewAMQPChannel(cfg AMQPConfig) *AMQPChannel {
	c := newAMQPChannel(cfg.Publisher, cfg.Source, cfg.Logger)
	c.conn = cfg.Conn
	c.targets = append([]string(nil), cfg.Targets...)
	return c
}

func newAMQPChannel(publisher requestPublisher, source string, logger *slog.Logger) *AMQPChannel {
	if source == "" {
		source = "relay"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPChannel{
		publisher: publisher,
		source:    source,
		logger:    logger,
		pending:   make(map[string]chan *protocol.Message),
	}
}

// Start объявляет очередь ответов и запускает её чтение.
func (c *AMQPChannel) Start(ctx context.Context) error {
	epoch := c.conn.Epoch()
	rq, err := mq.DeclareReplyQueue(ctx, c.conn)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	c.setReplyQueue(rq.Name)

	c.logger.Info("amqp dispatch channel started", "reply_queue", rq.Name)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.listen(ctx, rq.Deliveries, epoch)
	}()

	return nil
}

// Stop останавливает чтение ответов. Ожидающие Send завершатся по своему ctx.
func (c *AMQPChannel) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	c.setReplyQueue("")
}

// listen читает ответы из очереди, объявленной в эпоху epoch.
//
// Эксклюзивная очередь живёт, пока живо соединение. После разрыва
// ожидающие Send получают ErrReplyQueueLost (их ответы уже некуда
// доставить), а после переподключения очередь объявляется заново.
func (c *AMQPChannel) listen(ctx context.Context, deliveries <-chan amqp.Delivery, epoch uint64) {
	for {
		select {
		case <-ctx.Done():
			return

		case d, ok := <-deliveries:
			if ok {
				c.deliver(d.Body)
				continue
			}

			c.logger.Warn("reply queue closed, waiting for reconnect", "epoch", epoch)
			c.setReplyQueue("")
			c.failPending()

			deliveries, epoch = c.redeclare(ctx, epoch)
			if deliveries == nil {
				return
			}
		}
	}
}

// redeclare ждёт соединения новее epoch и объявляет очередь ответов.
// Возвращает nil, если ctx отменён или соединение закрыто.
func (c *AMQPChannel) redeclare(ctx context.Context, epoch uint64) (<-chan amqp.Delivery, uint64) {
	for {
		if err := c.conn.AwaitReconnect(ctx, epoch); err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Error("reply queue listener stopped", "error", err)
			}
			return nil, epoch
		}

		epoch = c.conn.Epoch()
		rq, err := mq.DeclareReplyQueue(ctx, c.conn)
		if err != nil {
			c.logger.Error("failed to redeclare reply queue", "epoch", epoch, "error", err)
			continue
		}

		c.setReplyQueue(rq.Name)
		c.logger.Info("reply queue redeclared", "reply_queue", rq.Name, "epoch", epoch)
		return rq.Deliveries, epoch
	}
}

// failPending будит все ожидающие Send пустым ответом.
func (c *AMQPChannel) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, waiter := range c.pending {
		select {
		case waiter <- nil:
		default:
		}
	}
}

func (c *AMQPChannel) setReplyQueue(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replyQueue = name
}

// deliver передаёт ответ ожидающему Send.
func (c *AMQPChannel) deliver(body []byte) {
	msg, err := protocol.Decode(body)
	if err != nil {
		c.logger.Warn("discarding malformed reply", "error", err)
		return
	}

	c.mu.Lock()
	waiter, ok := c.pending[msg.CorrelationID]
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("discarding reply without waiter", "correlation_id", msg.CorrelationID)
		return
	}

	select {
	case waiter <- msg:
	default:
	}
}

// Send публикует task_request и ждёт ответ или отмены ctx.
func (c *AMQPChannel) Send(ctx context.Context, req *Request) (domain.Value, error) {
	if req.Attempts == 0 {
		req.Attempts = 1
	}

	msg, err := protocol.NewTaskRequest(c.source, req.Target, req.Content())
	if err != nil {
		return domain.Null(), err
	}

	waiter := make(chan *protocol.Message, 1)

	c.mu.Lock()
	if c.replyQueue == "" {
		c.mu.Unlock()
		return domain.Null(), ErrChannelClosed
	}
	msg.ReplyTo = c.replyQueue
	c.pending[msg.CorrelationID] = waiter
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, msg.CorrelationID)
		c.mu.Unlock()
	}()

	if err := c.publisher.PublishRequest(ctx, msg); err != nil {
		return domain.Null(), fmt.Errorf("publish request to %s: %w", req.Target, err)
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.Null(), fmt.Errorf("%w: no reply from %s", ErrTaskTimeout, req.Target)
		}
		return domain.Null(), ctx.Err()

	case reply := <-waiter:
		if reply == nil {
			return domain.Null(), fmt.Errorf("%w: request to %s", ErrReplyQueueLost, req.Target)
		}
		return reply.Result()
	}
}

// Pending возвращает количество запросов, ожидающих ответ.
func (c *AMQPChannel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
