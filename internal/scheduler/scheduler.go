package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Исходы срабатывания для метрики relay_schedule_triggers_total.
const (
	OutcomeStarted = "started"
	OutcomeFailed  = "failed"
)

// Executor запускает workflow. Реализуется orchestrator.Engine.
type Executor interface {
	Execute(ctx context.Context, workflowID string, inputs map[string]any) (uuid.UUID, error)
}

// Entry — зарегистрированное расписание.
type Entry struct {
	Name     string
	Workflow string
	Cron     string
	Timezone string
	Next     time.Time
	Prev     time.Time
}

type scheduleEntry struct {
	cfg     config.ScheduleConfig
	entryID cron.EntryID
}

// Scheduler — запуск workflow по cron-расписаниям из конфигурации.
type Scheduler struct {
	cron     *cron.Cron
	executor Executor
	metrics  *telemetry.Metrics
	logger   *slog.Logger

	mu      sync.RWMutex
	entries map[string]*scheduleEntry
	ctx     context.Context
	running bool
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules []config.ScheduleConfig
	Executor  Executor
	Metrics   *telemetry.Metrics // опционально
	Logger    *slog.Logger
}

// New создаёт Scheduler и валидирует все расписания.
// Любое некорректное расписание — ошибка, частичной регистрации нет.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	cronLogger := cronLog{logger: logger}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		executor: cfg.Executor,
		metrics:  cfg.Metrics,
		logger:   logger,
		entries:  make(map[string]*scheduleEntry, len(cfg.Schedules)),
		ctx:      context.Background(),
	}

	for _, sc := range cfg.Schedules {
		if err := s.add(sc); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// add регистрирует одно расписание в cron.
func (s *Scheduler) add(sc config.ScheduleConfig) error {
	if sc.Name == "" || sc.Workflow == "" {
		return fmt.Errorf("%w: schedule requires name and workflow", ErrInvalidSchedule)
	}
	if _, exists := s.entries[sc.Name]; exists {
		return fmt.Errorf("%w: duplicate schedule %q", ErrInvalidSchedule, sc.Name)
	}

	schedule, err := ParseCron(sc.Cron, sc.Timezone)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", sc.Name, err)
	}

	name := sc.Name
	id := s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.fire(name)
	}))

	s.entries[sc.Name] = &scheduleEntry{cfg: sc, entryID: id}
	return nil
}

// Start запускает cron. ctx передаётся в Execute при каждом срабатывании.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.ctx = ctx
	s.running = true
	s.mu.Unlock()

	s.cron.Start()

	for _, e := range s.Entries() {
		s.logger.Info("schedule registered",
			"schedule", e.Name,
			"workflow", e.Workflow,
			"cron", e.Cron,
			"next", e.Next,
		)
	}
}

// Stop останавливает cron и ждёт завершения запущенных срабатываний.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Trigger немедленно запускает расписание name вне очереди cron.
func (s *Scheduler) Trigger(name string) (uuid.UUID, error) {
	s.mu.RLock()
	_, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, name)
	}
	return s.fire(name)
}

// Entries возвращает расписания, отсортированные по имени.
// Next/Prev заполнены, только пока cron запущен.
func (s *Scheduler) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Entry, 0, len(s.entries))
	for _, se := range s.entries {
		ce := s.cron.Entry(se.entryID)
		result = append(result, Entry{
			Name:     se.cfg.Name,
			Workflow: se.cfg.Workflow,
			Cron:     se.cfg.Cron,
			Timezone: se.cfg.Timezone,
			Next:     ce.Next,
			Prev:     ce.Prev,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// fire запускает workflow расписания. Ошибка запуска не останавливает
// расписание: следующее срабатывание произойдёт по cron.
func (s *Scheduler) fire(name string) (uuid.UUID, error) {
	s.mu.RLock()
	se, ok := s.entries[name]
	ctx := s.ctx
	s.mu.RUnlock()
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrScheduleNotFound, name)
	}

	logger := telemetry.WithWorkflowID(s.logger, se.cfg.Workflow).With("schedule", name)

	id, err := s.executor.Execute(ctx, se.cfg.Workflow, maps.Clone(se.cfg.Inputs))
	if err != nil {
		s.metrics.ScheduleTriggered(name, OutcomeFailed)
		logger.Error("scheduled execution failed to start", "error", err)
		return uuid.Nil, fmt.Errorf("schedule %q: %w", name, err)
	}

	s.metrics.ScheduleTriggered(name, OutcomeStarted)
	logger.Info("scheduled execution started", "execution_id", id)
	return id, nil
}

// cronLog — адаптер cron.Logger поверх slog.
type cronLog struct {
	logger *slog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
