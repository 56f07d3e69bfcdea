// Package engine содержит алгоритмическую часть движка workflow.
//
// Включает:
//   - dag.go      — граф зависимостей: start/end задачи, готовые задачи, топологический порядок
//   - resolver.go — подстановка ссылок ${variable} и ${task_id.output} во входы задач
//   - parser.go   — валидация и загрузка WorkflowDefinition из YAML/JSON
//   - builder.go  — программное построение workflow
//
// Engine не хранит состояние выполнения — им владеет orchestrator.
package engine
