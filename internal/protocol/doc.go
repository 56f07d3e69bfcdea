// Package protocol описывает конверт сообщений между Relay и исполнителями.
//
// Один и тот же Message передаётся по HTTP (тело запроса к исполнителю)
// и по RabbitMQ (тело AMQP сообщения). Запрос задачи имеет тип
// task_request, ответ — task_response или error с тем же CorrelationID.
package protocol
