package mq

import "errors"

var (
	// ErrNotConnected — нет открытого AMQP канала.
	ErrNotConnected = errors.New("amqp not connected")

	// ErrConnectionClosed — соединение закрыто через Close.
	ErrConnectionClosed = errors.New("amqp connection closed")

	// ErrEmptyReplyTo — ответ некуда отправить.
	ErrEmptyReplyTo = errors.New("message has no reply_to")
)
