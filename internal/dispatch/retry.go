package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// Policy — таймаут и повторы target по умолчанию.
// Применяется к незаданным полям Request.
type Policy struct {
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Retrying оборачивает Channel таймаутом на попытку и повторами.
//
// Попыток всего 1 + RetryAttempts. Между попытками — пауза RetryDelay.
// ErrUnknownTarget и отмена родительского контекста не повторяются.
type Retrying struct {
	next   Channel
	logger *slog.Logger

	mu       sync.RWMutex
	policies map[string]Policy
}

// NewRetrying создаёт Retrying поверх next.
func NewRetrying(next Channel, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{
		next:     next,
		logger:   logger,
		policies: make(map[string]Policy),
	}
}

// SetPolicy задаёт политику target.
func (r *Retrying) SetPolicy(target string, p Policy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[target] = p
}

// applyPolicy дополняет незаданные поля запроса политикой target.
func (r *Retrying) applyPolicy(req *Request) {
	r.mu.RLock()
	p, ok := r.policies[req.Target]
	r.mu.RUnlock()

	if !ok {
		return
	}
	if req.Timeout <= 0 {
		req.Timeout = p.Timeout
	}
	if req.RetryAttempts == nil {
		retries := p.RetryAttempts
		req.RetryAttempts = &retries
	}
	if req.RetryDelay <= 0 {
		req.RetryDelay = p.RetryDelay
	}
}

// Send отправляет задачу с повторами.
func (r *Retrying) Send(ctx context.Context, req *Request) (domain.Value, error) {
	r.applyPolicy(req)

	total := 1 + max(req.retries(), 0)
	var lastErr error

	for attempt := 1; attempt <= total; attempt++ {
		req.Attempts = attempt

		val, err := r.attempt(ctx, req)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, ErrUnknownTarget) {
			return domain.Null(), err
		}

		if attempt == total {
			break
		}

		r.logger.Warn("task attempt failed, retrying",
			"target", req.Target,
			"task_id", req.TaskID,
			"execution_id", req.ExecutionID,
			"attempt", attempt,
			"max_attempts", total,
			"delay", req.RetryDelay,
			"error", err,
		)

		if err := sleep(ctx, req.RetryDelay); err != nil {
			return domain.Null(), lastErr
		}
	}

	if total == 1 {
		return domain.Null(), lastErr
	}
	return domain.Null(), fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, total, lastErr)
}

// attempt выполняет одну попытку с таймаутом задачи.
func (r *Retrying) attempt(ctx context.Context, req *Request) (domain.Value, error) {
	if req.Timeout <= 0 {
		return r.next.Send(ctx, req)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	val, err := r.next.Send(attemptCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return domain.Null(), fmt.Errorf("%w: %s exceeded %s", ErrTaskTimeout, req.Target, req.Timeout)
	}
	return val, err
}

// sleep ждёт d или отмены ctx.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
