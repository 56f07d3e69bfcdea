package dispatch

import "errors"

var (
	// ErrUnknownTarget — для target не зарегистрирован ни обработчик, ни канал.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrTargetStatus — исполнитель ответил HTTP статусом >= 400.
	ErrTargetStatus = errors.New("target returned error status")

	// ErrResponseTooLarge — тело ответа исполнителя больше допустимого.
	ErrResponseTooLarge = errors.New("target response too large")

	// ErrTaskTimeout — попытка не уложилась в таймаут задачи.
	ErrTaskTimeout = errors.New("task timeout")

	// ErrRetryExhausted — все попытки исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrReplyQueueLost — очередь ответов пропала вместе с соединением.
	ErrReplyQueueLost = errors.New("reply queue lost")

	// ErrChannelClosed — канал не запущен или остановлен.
	ErrChannelClosed = errors.New("dispatch channel closed")
)
