// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ: переподключение по эпохам, AwaitReconnect, graceful shutdown
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация запросов задач и ответов
//   - consumer.go   — потребление запросов задач (relay-agent)
//   - reply.go      — эксклюзивная очередь ответов для RPC (relay-engine)
//
// Все сообщения — protocol.Message в JSON.
//
// Exchanges:
//   - relay.tasks — запросы задач, routing key request.<target>
//   - relay.dlq   — dead letter queue
package mq
