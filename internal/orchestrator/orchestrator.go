package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Default configuration values.
const (
	defaultReapInterval   = 30 * time.Second
	defaultArchiveTimeout = 5 * time.Second
)

// Archive — хранилище завершённых executions.
// Реализация: repo.ExecutionRepo.
type Archive interface {
	Save(ctx context.Context, exec *domain.WorkflowExecution) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowExecution, error)
}

// Engine выполняет зарегистрированные workflow.
//
// На каждый execution запускается управляющая горутина, которая крутит
// раунды: вычисляет готовые задачи, отправляет их параллельно через
// dispatch.Channel и ждёт окончания всех. Первая ошибка раунда (в порядке
// объявления задач) завершает execution со статусом FAILED.
//
// Завершённые executions остаются доступными Retention, затем удаляются
// фоновым reaper'ом (Start). При Retention == 0 удаление немедленное.
type Engine struct {
	channel dispatch.Channel
	archive Archive
	metrics *telemetry.Metrics

	// Configuration
	maxParallel      int
	retention        time.Duration
	reapInterval     time.Duration
	defaultTimeout   time.Duration
	strictReferences bool

	// Зарегистрированные workflow (workflowID → definition)
	definitions map[string]*domain.WorkflowDefinition
	defsMu      sync.RWMutex

	// Executions в памяти (executionID → state)
	executions map[uuid.UUID]*executionState
	mu         sync.RWMutex

	// Lifecycle
	logger     *slog.Logger
	baseCtx    context.Context
	baseCancel context.CancelCauseFunc
	reaperStop context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Engine.
type Config struct {
	// Channel — канал доставки задач (обязательно).
	Channel dispatch.Channel

	// Archive — архив завершённых executions (опционально).
	Archive Archive

	// Metrics — Prometheus метрики (опционально).
	Metrics *telemetry.Metrics

	// MaxParallel — максимум одновременно отправляемых задач раунда (0 — без ограничения).
	MaxParallel int

	// Retention — сколько хранить завершённый execution в памяти (0 — удалять сразу).
	Retention time.Duration

	// ReapInterval — период очистки завершённых executions (default: 30s).
	ReapInterval time.Duration

	// DefaultTimeout — таймаут workflow, если в определении не задан (0 — без таймаута).
	DefaultTimeout time.Duration

	// StrictReferences — неразрешённая ссылка ${...} проваливает задачу.
	StrictReferences bool

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Engine.
func New(cfg Config) *Engine {
	reapInterval := cfg.ReapInterval
	if reapInterval <= 0 {
		reapInterval = defaultReapInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	baseCtx, baseCancel := context.WithCancelCause(context.Background())

	return &Engine{
		channel:          cfg.Channel,
		archive:          cfg.Archive,
		metrics:          cfg.Metrics,
		maxParallel:      cfg.MaxParallel,
		retention:        cfg.Retention,
		reapInterval:     reapInterval,
		defaultTimeout:   cfg.DefaultTimeout,
		strictReferences: cfg.StrictReferences,
		definitions:      make(map[string]*domain.WorkflowDefinition),
		executions:       make(map[uuid.UUID]*executionState),
		logger:           logger,
		baseCtx:          baseCtx,
		baseCancel:       baseCancel,
	}
}

// Start запускает reaper завершённых executions.
func (e *Engine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.reaperStop = cancel

	e.logger.Info("starting engine",
		"max_parallel", e.maxParallel,
		"retention", e.retention,
		"reap_interval", e.reapInterval,
		"strict_references", e.strictReferences,
	)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.reapLoop(ctx)
	}()

	return nil
}

// Stop останавливает движок: отменяет активные executions
// (они завершаются с ErrEngineStopped) и ждёт их горутины.
func (e *Engine) Stop() {
	e.stoppedMu.Lock()
	e.stopped = true
	e.stoppedMu.Unlock()

	e.logger.Info("stopping engine...")

	if e.reaperStop != nil {
		e.reaperStop()
	}
	e.baseCancel(ErrEngineStopped)

	e.wg.Wait()

	e.logger.Info("engine stopped", "executions", e.executionCount())
}

// IsStopped проверяет, остановлен ли Engine.
func (e *Engine) IsStopped() bool {
	e.stoppedMu.RLock()
	defer e.stoppedMu.RUnlock()
	return e.stopped
}

// RegisterWorkflow валидирует и регистрирует workflow.
// Повторная регистрация с тем же ID заменяет определение.
func (e *Engine) RegisterWorkflow(def *domain.WorkflowDefinition) error {
	if def == nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkflow, engine.ErrEmptyTasks)
	}

	stored := *def
	stored.Tasks = make([]domain.TaskDefinition, len(def.Tasks))
	copy(stored.Tasks, def.Tasks)

	if err := engine.Prepare(&stored); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
	}

	e.defsMu.Lock()
	_, replaced := e.definitions[stored.ID]
	e.definitions[stored.ID] = &stored
	e.defsMu.Unlock()

	e.logger.Info("workflow registered",
		"workflow_id", stored.ID,
		"tasks", len(stored.Tasks),
		"start_tasks", stored.StartTasks,
		"end_tasks", stored.EndTasks,
		"replaced", replaced,
	)
	return nil
}

// Workflow возвращает зарегистрированное определение.
func (e *Engine) Workflow(id string) (*domain.WorkflowDefinition, bool) {
	e.defsMu.RLock()
	defer e.defsMu.RUnlock()
	def, ok := e.definitions[id]
	return def, ok
}

// Workflows возвращает все определения, отсортированные по ID.
func (e *Engine) Workflows() []*domain.WorkflowDefinition {
	e.defsMu.RLock()
	defer e.defsMu.RUnlock()

	defs := make([]*domain.WorkflowDefinition, 0, len(e.definitions))
	for _, def := range e.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// Execute запускает новый execution workflow и сразу возвращает его ID.
func (e *Engine) Execute(ctx context.Context, workflowID string, inputs map[string]any) (uuid.UUID, error) {
	if e.IsStopped() {
		return uuid.Nil, ErrEngineStopped
	}
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	def, ok := e.Workflow(workflowID)
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}

	exec := domain.NewWorkflowExecution(def, inputs)

	runCtx, cancel := context.WithCancelCause(e.baseCtx)
	timeout := def.Timeout()
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	st := newExecutionState(def, exec, cancel)

	// Stop берёт stoppedMu на запись: либо Stop увидит этот wg.Add,
	// либо Execute увидит stopped.
	e.stoppedMu.RLock()
	if e.stopped {
		e.stoppedMu.RUnlock()
		cancel(ErrEngineStopped)
		return uuid.Nil, ErrEngineStopped
	}
	e.mu.Lock()
	e.executions[exec.ID] = st
	e.mu.Unlock()
	e.wg.Add(1)
	e.stoppedMu.RUnlock()

	e.metrics.ExecutionStarted()

	logger := telemetry.WithExecutionID(telemetry.WithWorkflowID(e.logger, def.ID), exec.ID.String())
	logger.Info("execution started", "timeout", timeout)

	go func() {
		defer e.wg.Done()

		loopCtx := runCtx
		if timeout > 0 {
			var stopTimer context.CancelFunc
			loopCtx, stopTimer = context.WithTimeoutCause(runCtx, timeout, ErrWorkflowTimeout)
			defer stopTimer()
		}
		defer cancel(nil)

		e.run(loopCtx, st, logger)
	}()

	return exec.ID, nil
}

// GetStatus возвращает снимок execution.
func (e *Engine) GetStatus(id uuid.UUID) (domain.WorkflowExecution, bool) {
	st, ok := e.getExecution(id)
	if !ok {
		return domain.WorkflowExecution{}, false
	}
	return st.snapshot(), true
}

// GetResult возвращает итог execution, только если он COMPLETED.
func (e *Engine) GetResult(id uuid.UUID) (Result, bool) {
	st, ok := e.getExecution(id)
	if !ok {
		return Result{}, false
	}
	return st.result()
}

// Cancel отменяет execution.
//
// Execution сразу получает статус CANCELLED, контекст отправленных задач
// отменяется. Результаты, пришедшие позже, отбрасываются.
func (e *Engine) Cancel(id uuid.UUID) error {
	st, ok := e.getExecution(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	if !st.finish(domain.ExecutionStatusCancelled, "") {
		return fmt.Errorf("%w: %s is %s", ErrExecutionFinished, id, st.status())
	}
	st.cancel(ErrExecutionCancelled)

	e.logger.Info("execution cancelled", "execution_id", id)
	e.afterFinish(st)
	return nil
}

// Wait блокируется до завершения execution или отмены ctx.
func (e *Engine) Wait(ctx context.Context, id uuid.UUID) (domain.WorkflowExecution, error) {
	st, ok := e.getExecution(id)
	if !ok {
		return domain.WorkflowExecution{}, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	select {
	case <-ctx.Done():
		return domain.WorkflowExecution{}, ctx.Err()
	case <-st.done:
		return st.snapshot(), nil
	}
}

// History возвращает execution из памяти, иначе из архива.
func (e *Engine) History(ctx context.Context, id uuid.UUID) (*domain.WorkflowExecution, error) {
	if st, ok := e.getExecution(id); ok {
		snap := st.snapshot()
		return &snap, nil
	}

	if e.archive == nil {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
	}

	exec, err := e.archive.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, id)
		}
		return nil, fmt.Errorf("load archived execution: %w", err)
	}
	return exec, nil
}

// Executions возвращает снимки всех executions в памяти по времени создания.
func (e *Engine) Executions() []domain.WorkflowExecution {
	e.mu.RLock()
	states := make([]*executionState, 0, len(e.executions))
	for _, st := range e.executions {
		states = append(states, st)
	}
	e.mu.RUnlock()

	list := make([]domain.WorkflowExecution, len(states))
	for i, st := range states {
		list[i] = st.snapshot()
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })
	return list
}

// ActiveCount возвращает количество незавершённых executions.
func (e *Engine) ActiveCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, st := range e.executions {
		if !st.status().IsTerminal() {
			n++
		}
	}
	return n
}

// getExecution возвращает execution из реестра.
func (e *Engine) getExecution(id uuid.UUID) (*executionState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st, ok := e.executions[id]
	return st, ok
}

// removeExecution удаляет execution из реестра.
func (e *Engine) removeExecution(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.executions, id)
}

// executionCount возвращает количество executions в реестре.
func (e *Engine) executionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.executions)
}
