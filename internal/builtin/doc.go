// Package builtin содержит встроенные target, которые выполняются
// в процессе relay-engine (dispatch.mode=local) или relay-agent.
//
//   - echo      — возвращает входы задачи как результат
//   - delay     — пауза duration_sec / duration_ms, прерывается отменой
//   - transform — merge, pick, count над уже подставленными входами
//
// Ссылки ${...} разрешаются движком до отправки, поэтому встроенные
// target работают только с готовыми значениями.
package builtin
