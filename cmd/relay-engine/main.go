// Relay Engine — движок workflow с HTTP API.
//
// relay-engine:
//   - Загружает workflow из workflows_dir и принимает новые через API
//   - Выполняет executions, отправляя задачи исполнителям (local, http, amqp)
//   - Архивирует завершённые executions в PostgreSQL (если задан database.url)
//   - Запускает workflow по cron-расписаниям из конфигурации
//   - Отдаёт /healthz и /metrics
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/shaiso/Relay/internal/api"
	"github.com/shaiso/Relay/internal/builtin"
	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/scheduler"
	"github.com/shaiso/Relay/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting relay-engine")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Метрики на отдельном registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(registry)

	// Архив executions (опционально)
	var archive orchestrator.Archive
	var lister api.ExecutionLister
	if cfg.Database.URL != "" {
		pool, err := repo.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		execRepo := repo.NewExecutionRepo(pool)
		if err := execRepo.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare archive schema", "error", err)
			os.Exit(1)
		}
		archive = execRepo
		lister = execRepo
		logger.Info("execution archive enabled")
	}

	// Канал доставки задач
	channel, closeChannel, err := buildChannel(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up dispatch", "mode", cfg.Dispatch.Mode, "error", err)
		os.Exit(1)
	}
	defer closeChannel()

	eng := orchestrator.New(orchestrator.Config{
		Channel:          channel,
		Archive:          archive,
		Metrics:          metrics,
		MaxParallel:      cfg.Engine.MaxParallel,
		Retention:        cfg.Engine.Retention,
		ReapInterval:     cfg.Engine.ReapInterval,
		DefaultTimeout:   cfg.Engine.DefaultTimeout,
		StrictReferences: cfg.Engine.StrictReferences,
		Logger:           logger,
	})
	if err := eng.Start(ctx); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.WorkflowsDir != "" {
		if err := loadWorkflows(eng, cfg.WorkflowsDir, logger); err != nil {
			logger.Error("failed to load workflows", "dir", cfg.WorkflowsDir, "error", err)
			eng.Stop()
			os.Exit(1)
		}
	}

	// Cron-расписания
	sched, err := scheduler.New(scheduler.Config{
		Schedules: cfg.Schedules,
		Executor:  eng,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("invalid schedules", "error", err)
		eng.Stop()
		os.Exit(1)
	}
	sched.Start(ctx)

	// HTTP API
	handler := api.NewHandler(api.Config{
		Engine:   eng,
		Archive:  lister,
		Targets:  channel,
		Metrics:  metrics,
		Gatherer: registry,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "dispatch", cfg.Dispatch.Mode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	sched.Stop()
	eng.Stop()

	logger.Info("relay-engine stopped")
}

// buildChannel собирает канал доставки для dispatch.mode и оборачивает его
// в Retrying с политиками target из конфигурации.
func buildChannel(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*dispatch.Retrying, func(), error) {
	cleanup := func() {}

	local := dispatch.NewLocalChannel()
	builtin.RegisterLocal(local)

	var base dispatch.Channel
	switch cfg.Dispatch.Mode {
	case config.DispatchLocal:
		base = local

	case config.DispatchHTTP:
		targets := make([]dispatch.HTTPTarget, 0, len(cfg.Dispatch.Targets))
		for _, t := range cfg.EnabledTargets() {
			targets = append(targets, dispatch.HTTPTarget{
				Name:      t.Name,
				Endpoint:  t.Endpoint,
				AuthToken: t.AuthToken,
				Timeout:   t.Timeout,
			})
		}
		httpCh := dispatch.NewHTTPChannel(dispatch.HTTPConfig{
			Source:  "relay-engine",
			Targets: targets,
		})

		// Встроенные target — для всего, что не описано в конфигурации
		router := dispatch.NewRouter(local)
		for _, t := range targets {
			router.Handle(t.Name, httpCh)
		}
		base = router

	case config.DispatchAMQP:
		url := cfg.Dispatch.AMQPURL
		if url == "" {
			url = mq.DefaultURL()
		}
		conn, err := mq.NewConnection(url, logger)
		if err != nil {
			return nil, cleanup, err
		}
		if err := mq.SetupTopology(ctx, conn); err != nil {
			conn.Close()
			return nil, cleanup, err
		}

		// Агенты обслуживают target из конфигурации и встроенные
		names := make([]string, 0, len(cfg.Dispatch.Targets))
		for _, t := range cfg.EnabledTargets() {
			names = append(names, t.Name)
		}
		for _, t := range builtin.Targets() {
			if !slices.Contains(names, t.Name) {
				names = append(names, t.Name)
			}
		}

		amqpCh := dispatch.NewAMQPChannel(dispatch.AMQPConfig{
			Conn:      conn,
			Publisher: mq.NewPublisher(conn, logger),
			Source:    "relay-engine",
			Logger:    logger,
			Targets:   names,
		})
		if err := amqpCh.Start(ctx); err != nil {
			conn.Close()
			return nil, cleanup, err
		}
		cleanup = func() {
			amqpCh.Stop()
			conn.Close()
		}
		base = amqpCh
	}

	retrying := dispatch.NewRetrying(base, logger)
	for _, t := range cfg.EnabledTargets() {
		retrying.SetPolicy(t.Name, dispatch.Policy{
			Timeout:       t.Timeout,
			RetryAttempts: t.Retries(),
			RetryDelay:    t.RetryDelay,
		})
	}

	return retrying, cleanup, nil
}

// loadWorkflows регистрирует все определения из dir.
func loadWorkflows(eng *orchestrator.Engine, dir string, logger *slog.Logger) error {
	defs, err := engine.LoadDefinitionsDir(dir)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := eng.RegisterWorkflow(def); err != nil {
			return err
		}
		logger.Info("workflow loaded", "workflow_id", def.ID, "tasks", len(def.Tasks))
	}
	return nil
}
