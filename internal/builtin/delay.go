package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// TargetDelay — задержка.
const TargetDelay = "delay"

// Delay приостанавливает задачу на duration_sec или duration_ms.
// Отмена контекста прерывает ожидание.
//
//	inputs: {"duration_ms": 500}
//	result: {"duration_ms": 500}
func Delay(ctx context.Context, _ string, inputs map[string]any) (domain.Value, error) {
	var duration time.Duration
	if sec, ok := getInt(inputs, "duration_sec"); ok && sec > 0 {
		duration = time.Duration(sec) * time.Second
	} else if ms, ok := getInt(inputs, "duration_ms"); ok && ms > 0 {
		duration = time.Duration(ms) * time.Millisecond
	} else {
		return domain.Null(), invalidInput(TargetDelay, "duration_sec or duration_ms required")
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return domain.Null(), fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
	case <-timer.C:
		return domain.Map(map[string]any{"duration_ms": duration.Milliseconds()}), nil
	}
}
