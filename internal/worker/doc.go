// Package worker — relay-agent: мост между очередью задач и HTTP исполнителями.
//
// # Обзор
//
// Движок в режиме amqp публикует конверты task_request в exchange
// relay.tasks с ключом request.<target>. Агент потребляет очередь
// tasks.requests, пересылает каждый конверт исполнителю msg.Target и
// публикует ответ в очередь из ReplyTo с тем же correlation id:
//
//   - успех → конверт task_response с результатом;
//   - ошибка исполнителя или неизвестный target → конверт error.
//
// Агенты stateless и масштабируются горизонтально: несколько экземпляров
// потребляют одну очередь.
//
// # Executor
//
// Executor выполняет конверт для конкретного target:
//
//	type Executor interface {
//	    Execute(ctx context.Context, msg *protocol.Message) (domain.Value, error)
//	}
//
// Registry хранит executor и таймаут для каждого target. Для HTTP
// исполнителей executor — dispatch.HTTPChannel.Forward:
//
//	ch := dispatch.NewHTTPChannel(dispatch.HTTPConfig{Source: "relay-agent", Targets: targets})
//	registry := worker.NewRegistry()
//	registry.Register("analyzer", worker.ExecutorFunc(ch.Forward), 30*time.Second)
//
// # Ошибки
//
// Ошибка исполнения не считается ошибкой обработки: она уходит
// вызывающей стороне в конверте error, сообщение подтверждается.
// Nack (с одной повторной доставкой, затем DLQ) происходит только
// если не удалось опубликовать ответ.
//
// Retry здесь не выполняется: повторные попытки делает dispatch.Retrying
// на стороне движка.
package worker
