package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/protocol"
)

// Default configuration values.
const (
	defaultName        = "relay-agent"
	defaultConcurrency = 4
)

// replyPublisher — часть mq.Publisher, нужная Worker.
type replyPublisher interface {
	PublishReply(ctx context.Context, replyTo string, msg *protocol.Message) error
}

// Worker — relay-agent: выполняет task_request из очереди и отвечает в ReplyTo.
type Worker struct {
	name      string
	registry  *Registry
	publisher replyPublisher
	conn      *mq.Connection

	concurrency int
	consumer    *mq.Consumer

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	// Name — имя агента в поле source ответов (default: relay-agent).
	Name string

	// Registry — executor'ы по target (обязательно).
	Registry *Registry

	// MQ
	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Concurrency — количество параллельно обрабатываемых запросов (default: 4).
	Concurrency int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	w := newWorker(cfg.Registry, cfg.Publisher, cfg.Name, cfg.Logger)
	w.conn = cfg.Conn
	if cfg.Concurrency > 0 {
		w.concurrency = cfg.Concurrency
	}
	return w
}

func newWorker(registry *Registry, publisher replyPublisher, name string, logger *slog.Logger) *Worker {
	if name == "" {
		name = defaultName
	}
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		name:        name,
		registry:    registry,
		publisher:   publisher,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
}

// Start запускает потребление tasks.requests.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting agent",
		"name", w.name,
		"targets", w.registry.Targets(),
		"concurrency", w.concurrency,
	)

	w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
		Queue:       string(mq.QueueTaskRequests),
		Handler:     w.handleRequest,
		Prefetch:    w.concurrency,
		Concurrency: w.concurrency,
	})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("request consumer error", "error", err)
		}
	}()

	w.logger.Info("agent started")
	return nil
}

// Stop останавливает Worker и ждёт обработчики.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping agent...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("agent stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// handleRequest обрабатывает одно сообщение из tasks.requests.
//
// Возвращённая ошибка означает, что ответ не доставлен, и сообщение
// нужно передоставить. Ошибки исполнения уходят в ответе.
func (w *Worker) handleRequest(ctx context.Context, d *mq.Delivery) error {
	msg := d.Message
	logger := w.logger.With(
		"message_id", msg.ID,
		"correlation_id", msg.CorrelationID,
		"target", msg.Target,
	)

	if msg.Type != protocol.TypeTaskRequest {
		logger.Warn("skipping unexpected message type", "type", msg.Type)
		return nil
	}

	replyTo := d.ReplyTo()
	if replyTo == "" {
		logger.Warn("skipping request without reply_to")
		return nil
	}

	if w.IsStopped() {
		return ErrWorkerStopped
	}

	started := time.Now()
	result, err := w.execute(ctx, msg)
	elapsed := time.Since(started)

	var reply *protocol.Message
	if err != nil {
		logger.Warn("task execution failed", "error", err, "duration", elapsed)
		reply = protocol.NewErrorResponse(msg, w.name, err)
	} else {
		logger.Info("task executed", "duration", elapsed)
		reply, err = protocol.NewTaskResponse(msg, w.name, result)
		if err != nil {
			logger.Error("failed to build response", "error", err)
			reply = protocol.NewErrorResponse(msg, w.name, err)
		}
	}

	if err := w.publisher.PublishReply(ctx, replyTo, reply); err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}
	return nil
}

// execute вызывает executor target с его таймаутом.
func (w *Worker) execute(ctx context.Context, msg *protocol.Message) (domain.Value, error) {
	executor, timeout, err := w.registry.Get(msg.Target)
	if err != nil {
		return domain.Null(), err
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := executor.Execute(ctx, msg)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.Null(), fmt.Errorf("%w: %s did not answer within %s", ErrExecutionTimeout, msg.Target, timeout)
	}
	return result, err
}
