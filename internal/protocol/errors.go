package protocol

import "errors"

var (
	// ErrInvalidMessage — сообщение не удалось разобрать или в нём нет обязательных полей.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrUnexpectedType — тип сообщения не подходит для операции.
	ErrUnexpectedType = errors.New("unexpected message type")

	// ErrRemote — исполнитель вернул сообщение типа error.
	ErrRemote = errors.New("remote error")
)
