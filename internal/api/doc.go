// Package api содержит HTTP API relay-engine.
//
// Структура:
//   - handler.go            — Handler с DI (engine, архив, метрики, logger)
//   - routes.go             — регистрация маршрутов, /healthz и /metrics
//   - middleware.go         — middleware (recovery, metrics, logging)
//   - response.go           — унифицированные JSON-ответы и маппинг ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - workflow_handler.go   — обработчики для /workflows
//   - execution_handler.go  — обработчики для /executions
//   - target_handler.go     — список target и их политик (/targets)
//
// Коды ошибок: NOT_FOUND (404), BAD_REQUEST (400), INVALID_STATE (422),
// UNAVAILABLE (503), INTERNAL_ERROR (500).
package api
