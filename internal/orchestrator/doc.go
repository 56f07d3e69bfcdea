// Package orchestrator — движок выполнения workflow и реестр executions.
//
// Engine отвечает за:
//   - Регистрацию WorkflowDefinition (валидация, start/end задачи)
//   - Запуск execution: одна управляющая горутина на execution
//   - Раунды: все готовые задачи отправляются параллельно, раунд ждёт всех
//   - Подстановку ${...} во входы перед каждой отправкой
//   - Финализацию (COMPLETED/FAILED/CANCELLED), архив и удаление по TTL
//
// Задачи отправляются через dispatch.Channel; повторы и таймауты задач —
// забота канала, движок задачу не повторяет.
package orchestrator
