package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaiso/Relay/internal/domain"
)

// Router выбирает Channel по имени target.
type Router struct {
	mu       sync.RWMutex
	routes   map[string]Channel
	fallback Channel
}

// NewRouter создаёт Router. fallback (может быть nil) обслуживает
// target без явного маршрута.
func NewRouter(fallback Channel) *Router {
	return &Router{
		routes:   make(map[string]Channel),
		fallback: fallback,
	}
}

// Handle направляет задачи target в ch.
func (r *Router) Handle(target string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[target] = ch
}

// Route возвращает канал для target.
func (r *Router) Route(target string) (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ch, ok := r.routes[target]; ok {
		return ch, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
}

// Send передаёт задачу каналу target.
func (r *Router) Send(ctx context.Context, req *Request) (domain.Value, error) {
	ch, err := r.Route(req.Target)
	if err != nil {
		return domain.Null(), err
	}
	return ch.Send(ctx, req)
}
