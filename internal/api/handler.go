package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// ExecutionLister — архив executions с фильтрацией.
// Реализация: repo.ExecutionRepo.
type ExecutionLister interface {
	List(ctx context.Context, filter repo.ExecutionFilter) ([]domain.WorkflowExecution, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine   *orchestrator.Engine
	archive  ExecutionLister
	targets  dispatch.Describer
	metrics  *telemetry.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	started  time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	// Engine — движок workflow (обязательно).
	Engine *orchestrator.Engine

	// Archive — архив для GET /executions?source=archive (опционально).
	Archive ExecutionLister

	// Targets — канал доставки для GET /targets (опционально).
	Targets dispatch.Describer

	// Metrics — метрики HTTP запросов (опционально).
	Metrics *telemetry.Metrics

	// Gatherer — источник /metrics (default: prometheus.DefaultGatherer).
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		engine:   cfg.Engine,
		archive:  cfg.Archive,
		targets:  cfg.Targets,
		metrics:  cfg.Metrics,
		gatherer: gatherer,
		logger:   logger,
		started:  time.Now(),
	}
}
