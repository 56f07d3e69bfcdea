package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/telemetry"
)

// run — управляющий цикл одного execution.
func (e *Engine) run(ctx context.Context, st *executionState, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("execution loop panicked", "panic", r)
			e.finishExecution(st, domain.ExecutionStatusFailed, fmt.Sprintf("panic: %v", r), logger)
		}
	}()

	if !st.markRunning() {
		return
	}

	round := 0
	for {
		if cause := context.Cause(ctx); cause != nil {
			e.finishExecution(st, domain.ExecutionStatusFailed, cause.Error(), logger)
			return
		}

		ready := st.readyTasks()
		if len(ready) == 0 {
			if st.isComplete() {
				e.finishExecution(st, domain.ExecutionStatusCompleted, "", logger)
			} else {
				msg := fmt.Sprintf("%s (pending: %s)", ErrWorkflowStalled, strings.Join(st.pendingTasks(), ", "))
				e.finishExecution(st, domain.ExecutionStatusFailed, msg, logger)
			}
			return
		}

		round++
		logger.Debug("dispatching round", "round", round, "tasks", len(ready))

		err := e.runRound(ctx, st, ready, logger)

		// Таймаут, отмена или остановка движка важнее ошибок задач,
		// которые они вызвали.
		if cause := context.Cause(ctx); cause != nil {
			e.finishExecution(st, domain.ExecutionStatusFailed, cause.Error(), logger)
			return
		}
		if err != nil {
			e.finishExecution(st, domain.ExecutionStatusFailed, err.Error(), logger)
			return
		}
	}
}

// runRound отправляет готовые задачи параллельно и ждёт все.
// Возвращает первую ошибку в порядке объявления задач.
func (e *Engine) runRound(ctx context.Context, st *executionState, ready []*domain.TaskDefinition, logger *slog.Logger) error {
	errs := make([]error, len(ready))

	var g errgroup.Group
	if e.maxParallel > 0 {
		g.SetLimit(e.maxParallel)
	}

	for i, task := range ready {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("%w: %v", ErrTaskPanic, r)
					st.failTask(task, errs[i].Error(), 0)
				}
			}()
			errs[i] = e.dispatchTask(ctx, st, task, telemetry.WithTaskID(logger, task.ID))
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("task %s: %w", ready[i].ID, err)
		}
	}
	return nil
}

// dispatchTask запускает одну задачу: подстановка входов, отправка, запись результата.
func (e *Engine) dispatchTask(ctx context.Context, st *executionState, task *domain.TaskDefinition, logger *slog.Logger) error {
	if !st.startTask(task) {
		return nil
	}

	res := st.resolve(task)
	if res.HasUnresolved() {
		e.metrics.UnresolvedReferences(len(res.Unresolved))
		logger.Warn("unresolved references in task inputs",
			"inputs", res.Unresolved,
			"strict", e.strictReferences,
		)

		if e.strictReferences {
			err := fmt.Errorf("%w: inputs %s", engine.ErrUnresolvedReference, strings.Join(res.Unresolved, ", "))
			st.failTask(task, err.Error(), 0)
			e.metrics.TaskFinished(task.Target, string(domain.TaskStatusFailed), 0)
			return err
		}
	}

	req := dispatch.NewRequest(task, res.Inputs, st.ID().String())

	e.metrics.TaskDispatched(task.Target)
	logger.Debug("dispatching task", "target", task.Target, "operation", task.Operation)

	started := time.Now()
	result, err := e.send(ctx, req)
	elapsed := time.Since(started)

	if err != nil {
		if st.failTask(task, err.Error(), req.Attempts) {
			e.metrics.TaskFinished(task.Target, string(domain.TaskStatusFailed), elapsed)
			logger.Warn("task failed", "error", err, "attempts", req.Attempts, "duration", elapsed)
		} else {
			logger.Debug("discarding task error of finished execution", "error", err)
		}
		return err
	}

	if st.completeTask(task, result, req.Attempts) {
		e.metrics.TaskFinished(task.Target, string(domain.TaskStatusCompleted), elapsed)
		logger.Info("task completed", "attempts", req.Attempts, "duration", elapsed)
	} else {
		logger.Debug("discarding task result of finished execution")
	}
	return nil
}

// send вызывает канал, превращая панику в ошибку задачи.
func (e *Engine) send(ctx context.Context, req *dispatch.Request) (result domain.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.Null()
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return e.channel.Send(ctx, req)
}

// finishExecution переводит execution в финальный статус.
func (e *Engine) finishExecution(st *executionState, status domain.ExecutionStatus, errMsg string, logger *slog.Logger) {
	if !st.finish(status, errMsg) {
		return
	}

	snap := st.snapshot()
	if status == domain.ExecutionStatusCompleted {
		logger.Info("execution completed", "duration", snap.Duration(), "tasks", len(snap.Tasks))
	} else {
		logger.Warn("execution finished", "status", status, "error", errMsg, "duration", snap.Duration())
	}

	e.afterFinish(st)
}

// afterFinish учитывает метрики, архивирует execution и при нулевом
// Retention удаляет его из реестра.
func (e *Engine) afterFinish(st *executionState) {
	snap := st.snapshot()
	e.metrics.ExecutionFinished(string(snap.Status))

	if e.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultArchiveTimeout)
		if err := e.archive.Save(ctx, &snap); err != nil {
			e.logger.Error("failed to archive execution", "execution_id", snap.ID, "error", err)
		}
		cancel()
	}

	if e.retention <= 0 {
		e.removeExecution(snap.ID)
	}
}

// reapLoop периодически удаляет executions, завершённые раньше Retention.
func (e *Engine) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(e.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := e.reap(now); n > 0 {
				e.logger.Debug("reaped finished executions", "count", n)
			}
		}
	}
}

// reap удаляет executions, завершённые до now-Retention.
func (e *Engine) reap(now time.Time) int {
	cutoff := now.Add(-e.retention)

	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for id, st := range e.executions {
		if st.finishedBefore(cutoff) {
			delete(e.executions, id)
			n++
		}
	}
	return n
}
