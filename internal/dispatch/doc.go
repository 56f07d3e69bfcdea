// Package dispatch доставляет задачи workflow внешним исполнителям.
//
// Channel — единственный интерфейс, через который движок отправляет
// задачу и получает её результат. Реализации:
//   - LocalChannel — обработчики в том же процессе
//   - HTTPChannel  — POST конверта на <endpoint>/execute
//   - AMQPChannel  — RPC через RabbitMQ (ответ в эксклюзивную очередь)
//
// Router выбирает канал по имени target, Retrying добавляет таймаут
// и повторные попытки по настройкам задачи.
package dispatch
