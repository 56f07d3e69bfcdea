package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/protocol"
)

// Executor — выполнение конверта task_request для одного target.
type Executor interface {
	Execute(ctx context.Context, msg *protocol.Message) (domain.Value, error)
}

// ExecutorFunc — адаптер функции к Executor.
type ExecutorFunc func(ctx context.Context, msg *protocol.Message) (domain.Value, error)

// Execute вызывает f.
func (f ExecutorFunc) Execute(ctx context.Context, msg *protocol.Message) (domain.Value, error) {
	return f(ctx, msg)
}

type registration struct {
	executor Executor
	timeout  time.Duration
}

// Registry — реестр executor'ов по имени target.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]registration
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]registration)}
}

// Register добавляет executor для target. timeout 0 — без ограничения.
func (r *Registry) Register(target string, executor Executor, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[target] = registration{executor: executor, timeout: timeout}
}

// Get возвращает executor и таймаут target.
func (r *Registry) Get(target string) (Executor, time.Duration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.executors[target]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	return reg.executor, reg.timeout, nil
}

// Targets возвращает зарегистрированные target.
func (r *Registry) Targets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]string, 0, len(r.executors))
	for name := range r.executors {
		targets = append(targets, name)
	}
	sort.Strings(targets)
	return targets
}
