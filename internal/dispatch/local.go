package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
)

// Handler — обработчик задач target внутри процесса.
type Handler func(ctx context.Context, req *Request) (domain.Value, error)

// LocalChannel — реестр обработчиков (target → Handler) в том же процессе.
type LocalChannel struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewLocalChannel создаёт пустой LocalChannel.
func NewLocalChannel() *LocalChannel {
	return &LocalChannel{handlers: make(map[string]Handler)}
}

// Register добавляет (или заменяет) обработчик target.
func (c *LocalChannel) Register(target string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[target] = h
}

// Targets возвращает имена зарегистрированных target.
func (c *LocalChannel) Targets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	targets := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		targets = append(targets, name)
	}
	sort.Strings(targets)
	return targets
}

// Send вызывает обработчик target.
func (c *LocalChannel) Send(ctx context.Context, req *Request) (domain.Value, error) {
	c.mu.RLock()
	h, ok := c.handlers[req.Target]
	c.mu.RUnlock()

	if !ok {
		return domain.Null(), fmt.Errorf("%w: %s", ErrUnknownTarget, req.Target)
	}

	if req.Attempts == 0 {
		req.Attempts = 1
	}

	return h(ctx, req)
}
