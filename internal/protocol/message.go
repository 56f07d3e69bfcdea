package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Relay/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

const (
	TypeTaskRequest      MessageType = "task_request"
	TypeTaskResponse     MessageType = "task_response"
	TypeStatusUpdate     MessageType = "status_update"
	TypeError            MessageType = "error"
	TypeMetadataRequest  MessageType = "metadata_request"
	TypeMetadataResponse MessageType = "metadata_response"
)

// Valid проверяет, что тип сообщения известен.
func (t MessageType) Valid() bool {
	switch t {
	case TypeTaskRequest, TypeTaskResponse, TypeStatusUpdate,
		TypeError, TypeMetadataRequest, TypeMetadataResponse:
		return true
	}
	return false
}

// Message — стандартный конверт сообщения.
type Message struct {
	ID            uuid.UUID         `json:"id"`
	Type          MessageType       `json:"type"`
	Source        string            `json:"source"`
	Target        string            `json:"target"`
	Content       json.RawMessage   `json:"content,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	ReplyTo       string            `json:"reply_to,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// TaskContent — содержимое task_request.
type TaskContent struct {
	Operation   string         `json:"operation"`
	Inputs      map[string]any `json:"inputs"`
	TaskID      string         `json:"task_id,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Attempt     int            `json:"attempt,omitempty"`
}

// ResultContent — содержимое task_response.
type ResultContent struct {
	Result domain.Value `json:"result"`
}

// ErrorContent — содержимое сообщения типа error.
type ErrorContent struct {
	Error string `json:"error"`
}

func newMessage(typ MessageType, source, target string, content any) (*Message, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal %s content: %w", typ, err)
	}
	return &Message{
		ID:        uuid.New(),
		Type:      typ,
		Source:    source,
		Target:    target,
		Content:   raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewTaskRequest создаёт task_request. CorrelationID равен ID сообщения.
func NewTaskRequest(source, target string, content TaskContent) (*Message, error) {
	msg, err := newMessage(TypeTaskRequest, source, target, content)
	if err != nil {
		return nil, err
	}
	msg.CorrelationID = msg.ID.String()
	return msg, nil
}

// NewTaskResponse создаёт ответ на запрос req.
func NewTaskResponse(req *Message, source string, result domain.Value) (*Message, error) {
	msg, err := newMessage(TypeTaskResponse, source, req.Source, ResultContent{Result: result})
	if err != nil {
		return nil, err
	}
	msg.CorrelationID = req.CorrelationID
	return msg, nil
}

// NewErrorResponse создаёт сообщение об ошибке в ответ на req.
func NewErrorResponse(req *Message, source string, cause error) *Message {
	text := "unknown error"
	if cause != nil {
		text = cause.Error()
	}
	// ErrorContent всегда сериализуется
	msg, _ := newMessage(TypeError, source, req.Source, ErrorContent{Error: text})
	msg.CorrelationID = req.CorrelationID
	return msg
}

// Validate проверяет обязательные поля.
func (m *Message) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	if m.Type == TypeTaskRequest && m.Target == "" {
		return fmt.Errorf("%w: task request without target", ErrInvalidMessage)
	}
	return nil
}

// Encode сериализует сообщение в JSON.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode разбирает и валидирует сообщение.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Task возвращает содержимое task_request.
func (m *Message) Task() (TaskContent, error) {
	if m.Type != TypeTaskRequest {
		return TaskContent{}, fmt.Errorf("%w: %s", ErrUnexpectedType, m.Type)
	}
	var content TaskContent
	if err := json.Unmarshal(m.Content, &content); err != nil {
		return TaskContent{}, fmt.Errorf("%w: task content: %v", ErrInvalidMessage, err)
	}
	if content.Inputs == nil {
		content.Inputs = make(map[string]any)
	}
	return content, nil
}

// Result возвращает результат из task_response.
// Для сообщения типа error возвращает ошибку, оборачивающую ErrRemote.
func (m *Message) Result() (domain.Value, error) {
	switch m.Type {
	case TypeTaskResponse:
		var content ResultContent
		if err := json.Unmarshal(m.Content, &content); err != nil {
			return domain.Null(), fmt.Errorf("%w: result content: %v", ErrInvalidMessage, err)
		}
		return content.Result, nil

	case TypeError:
		var content ErrorContent
		if err := json.Unmarshal(m.Content, &content); err != nil {
			return domain.Null(), fmt.Errorf("%w: error content: %v", ErrInvalidMessage, err)
		}
		return domain.Null(), fmt.Errorf("%w: %s", ErrRemote, content.Error)

	default:
		return domain.Null(), fmt.Errorf("%w: %s", ErrUnexpectedType, m.Type)
	}
}
