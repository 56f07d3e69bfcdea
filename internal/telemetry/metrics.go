package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики Relay.
//
// Все методы безопасны для nil-получателя: компоненты, собранные
// без метрик (тесты, CLI), просто ничего не записывают.
type Metrics struct {
	ExecutionsStarted  prometheus.Counter
	ExecutionsFinished *prometheus.CounterVec
	ExecutionsActive   prometheus.Gauge
	TasksDispatched    *prometheus.CounterVec
	TasksFinished      *prometheus.CounterVec
	TaskDuration       *prometheus.HistogramVec
	UnresolvedRefs     prometheus.Counter
	HTTPRequests       *prometheus.CounterVec
	ScheduleTriggers   *prometheus.CounterVec
}

// NewMetrics регистрирует метрики в reg.
// nil означает prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ExecutionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_executions_started_total",
			Help: "Total workflow executions started",
		}),
		ExecutionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_executions_finished_total",
			Help: "Total workflow executions finished, by terminal status",
		}, []string{"status"}),
		ExecutionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_executions_active",
			Help: "Workflow executions currently running",
		}),
		TasksDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_tasks_dispatched_total",
			Help: "Total tasks sent to dispatch channels, by target",
		}, []string{"target"}),
		TasksFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_tasks_finished_total",
			Help: "Total tasks finished, by target and status",
		}, []string{"target", "status"}),
		TaskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_task_duration_seconds",
			Help:    "Task dispatch duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"target"}),
		UnresolvedRefs: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_unresolved_references_total",
			Help: "Task inputs dispatched with an unresolved ${...} reference",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_api_http_requests_total",
			Help: "Total HTTP requests handled by relay-engine",
		}, []string{"method", "code"}),
		ScheduleTriggers: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_schedule_triggers_total",
			Help: "Cron schedule firings, by schedule and outcome",
		}, []string{"schedule", "outcome"}),
	}
}

// ExecutionStarted учитывает запуск execution.
func (m *Metrics) ExecutionStarted() {
	if m == nil {
		return
	}
	m.ExecutionsStarted.Inc()
	m.ExecutionsActive.Inc()
}

// ExecutionFinished учитывает переход execution в финальный статус.
func (m *Metrics) ExecutionFinished(status string) {
	if m == nil {
		return
	}
	m.ExecutionsFinished.WithLabelValues(status).Inc()
	m.ExecutionsActive.Dec()
}

// TaskDispatched учитывает отправку задачи.
func (m *Metrics) TaskDispatched(target string) {
	if m == nil {
		return
	}
	m.TasksDispatched.WithLabelValues(target).Inc()
}

// TaskFinished учитывает завершение задачи и её длительность.
func (m *Metrics) TaskFinished(target, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.TasksFinished.WithLabelValues(target, status).Inc()
	m.TaskDuration.WithLabelValues(target).Observe(d.Seconds())
}

// UnresolvedReferences учитывает n неразрешённых ссылок.
func (m *Metrics) UnresolvedReferences(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UnresolvedRefs.Add(float64(n))
}

// HTTPRequest учитывает обработанный HTTP запрос.
func (m *Metrics) HTTPRequest(method string, code int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// ScheduleTriggered учитывает срабатывание cron расписания.
func (m *Metrics) ScheduleTriggered(schedule, outcome string) {
	if m == nil {
		return
	}
	m.ScheduleTriggers.WithLabelValues(schedule, outcome).Inc()
}
