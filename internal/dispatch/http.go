package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/protocol"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	maxResponseBody    = 10 * 1024 * 1024 // 10 MB
	executePath        = "/execute"
	maxErrorBody       = 200
)

// HTTPTarget — исполнитель, доступный по HTTP.
type HTTPTarget struct {
	Name      string
	Endpoint  string
	AuthToken string

	// Timeout — таймаут запроса, если у контекста нет дедлайна.
	Timeout time.Duration
}

// HTTPChannel отправляет конверт task_request на <endpoint>/execute.
//
// Срок запроса задаёт контекст (таймаут задачи из Retrying или
// worker). Если дедлайна нет — HTTPTarget.Timeout, затем DefaultTimeout.
//
// Ответ исполнителя разбирается так:
//   - конверт task_response → его result
//   - конверт error → ошибка
//   - любой другой JSON → значение целиком
//   - не JSON → строка
type HTTPChannel struct {
	source         string
	client         *http.Client
	defaultTimeout time.Duration
	maxBody        int64

	mu      sync.RWMutex
	targets map[string]HTTPTarget
}

// HTTPConfig — конфигурация HTTPChannel.
type HTTPConfig struct {
	// Source — имя отправителя в конверте (default: relay).
	Source string

	// Client — HTTP клиент (default: http.Client без общего таймаута).
	// Client.Timeout ограничивает все запросы сверх таймаута задачи.
	Client *http.Client

	// DefaultTimeout — таймаут запроса без дедлайна в контексте
	// и без HTTPTarget.Timeout (default: 30s).
	DefaultTimeout time.Duration

	// MaxResponseBody — предел тела ответа в байтах (default: 10 MB).
	MaxResponseBody int64

	// Targets — исполнители.
	Targets []HTTPTarget
}

// NewHTTPChannel создаёт HTTPChannel.
func NewHTTPChannel(cfg HTTPConfig) *HTTPChannel {
	source := cfg.Source
	if source == "" {
		source = "relay"
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	defaultTimeout := cfg.DefaultTimeout
	if defaultTimeout <= 0 {
		defaultTimeout = defaultHTTPTimeout
	}
	maxBody := cfg.MaxResponseBody
	if maxBody <= 0 {
		maxBody = maxResponseBody
	}

	c := &HTTPChannel{
		source:         source,
		client:         client,
		defaultTimeout: defaultTimeout,
		maxBody:        maxBody,
		targets:        make(map[string]HTTPTarget, len(cfg.Targets)),
	}
	for _, t := range cfg.Targets {
		c.AddTarget(t)
	}
	return c
}

// AddTarget регистрирует (или заменяет) исполнителя.
func (c *HTTPChannel) AddTarget(t HTTPTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.Endpoint = strings.TrimRight(t.Endpoint, "/")
	c.targets[t.Name] = t
}

// HasTarget проверяет, известен ли исполнитель.
func (c *HTTPChannel) HasTarget(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.targets[name]
	return ok
}

// Targets возвращает исполнителей, отсортированных по имени.
func (c *HTTPChannel) Targets() []HTTPTarget {
	c.mu.RLock()
	defer c.mu.RUnlock()

	targets := make([]HTTPTarget, 0, len(c.targets))
	for _, t := range c.targets {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })
	return targets
}

// Send формирует task_request и отправляет его исполнителю.
func (c *HTTPChannel) Send(ctx context.Context, req *Request) (domain.Value, error) {
	if req.Attempts == 0 {
		req.Attempts = 1
	}

	msg, err := protocol.NewTaskRequest(c.source, req.Target, req.Content())
	if err != nil {
		return domain.Null(), err
	}

	return c.Forward(ctx, msg)
}

// Forward отправляет готовый конверт исполнителю msg.Target.
// Используется relay-agent для пересылки запросов из очереди.
func (c *HTTPChannel) Forward(ctx context.Context, msg *protocol.Message) (domain.Value, error) {
	c.mu.RLock()
	target, ok := c.targets[msg.Target]
	c.mu.RUnlock()

	if !ok {
		return domain.Null(), fmt.Errorf("%w: %s", ErrUnknownTarget, msg.Target)
	}

	body, err := msg.Encode()
	if err != nil {
		return domain.Null(), fmt.Errorf("marshal request: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		timeout := target.Timeout
		if timeout <= 0 {
			timeout = c.defaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint+executePath, bytes.NewReader(body))
	if err != nil {
		return domain.Null(), fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Correlation-ID", msg.CorrelationID)
	if target.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+target.AuthToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return domain.Null(), fmt.Errorf("call %s: %w", target.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return domain.Null(), fmt.Errorf("read response from %s: %w", target.Name, err)
	}
	if int64(len(respBody)) > c.maxBody {
		return domain.Null(), fmt.Errorf("%w: %s: more than %d bytes", ErrResponseTooLarge, target.Name, c.maxBody)
	}

	if resp.StatusCode >= 400 {
		return domain.Null(), fmt.Errorf("%w: %s: HTTP %d: %s",
			ErrTargetStatus, target.Name, resp.StatusCode, truncate(string(respBody), maxErrorBody))
	}

	return decodeResult(respBody)
}

// decodeResult разбирает тело ответа исполнителя.
func decodeResult(body []byte) (domain.Value, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Null(), nil
	}

	if msg, err := protocol.Decode(body); err == nil &&
		(msg.Type == protocol.TypeTaskResponse || msg.Type == protocol.TypeError) {
		return msg.Result()
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.Scalar(string(body)), nil
	}
	return domain.ValueOf(raw), nil
}

// truncate обрезает строку до maxLen байт, не разрывая UTF-8 символ.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
