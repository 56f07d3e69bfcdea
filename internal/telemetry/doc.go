// Package telemetry обеспечивает наблюдаемость Relay.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики движка, dispatch и API
package telemetry
