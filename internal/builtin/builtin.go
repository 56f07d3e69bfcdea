package builtin

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/protocol"
	"github.com/shaiso/Relay/internal/worker"
)

var (
	// ErrInvalidInput — вход операции отсутствует или имеет неверный тип.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownOperation — target не поддерживает операцию.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrCancelled — выполнение прервано отменой контекста.
	ErrCancelled = errors.New("builtin operation cancelled")
)

// Func — встроенная операция target.
type Func func(ctx context.Context, operation string, inputs map[string]any) (domain.Value, error)

// Target — встроенный target.
type Target struct {
	Name string
	Run  Func
}

// Targets возвращает все встроенные target, отсортированные по имени.
func Targets() []Target {
	targets := []Target{
		{Name: TargetEcho, Run: Echo},
		{Name: TargetDelay, Run: Delay},
		{Name: TargetTransform, Run: Transform},
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })
	return targets
}

// RegisterLocal регистрирует встроенные target в LocalChannel.
func RegisterLocal(ch *dispatch.LocalChannel) {
	for _, t := range Targets() {
		run := t.Run
		ch.Register(t.Name, func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
			return run(ctx, req.Operation, req.Inputs)
		})
	}
}

// RegisterAgent регистрирует встроенные target в реестре relay-agent.
// Уже зарегистрированные target не перезаписываются.
func RegisterAgent(reg *worker.Registry) {
	known := make(map[string]bool)
	for _, name := range reg.Targets() {
		known[name] = true
	}

	for _, t := range Targets() {
		if known[t.Name] {
			continue
		}
		run := t.Run
		reg.Register(t.Name, worker.ExecutorFunc(func(ctx context.Context, msg *protocol.Message) (domain.Value, error) {
			task, err := msg.Task()
			if err != nil {
				return domain.Null(), err
			}
			return run(ctx, task.Operation, task.Inputs)
		}), 0)
	}
}

// getInt извлекает целое из входов. JSON числа приходят как float64.
func getInt(inputs map[string]any, key string) (int, bool) {
	switch n := inputs[key].(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func invalidInput(target, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidInput, target, fmt.Sprintf(format, args...))
}
