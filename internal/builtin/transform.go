package builtin

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"github.com/shaiso/Relay/internal/domain"
)

const (
	// TargetEcho — возвращает входы как результат.
	TargetEcho = "echo"

	// TargetTransform — преобразования уже подставленных данных.
	TargetTransform = "transform"
)

// Операции transform.
const (
	OpMerge = "merge"
	OpPick  = "pick"
	OpCount = "count"
)

// Echo возвращает входы задачи как Map. Операция не важна.
func Echo(ctx context.Context, _ string, inputs map[string]any) (domain.Value, error) {
	if err := ctx.Err(); err != nil {
		return domain.Null(), fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return domain.Map(maps.Clone(inputs)), nil
}

// Transform выполняет операцию над входами:
//   - merge — объединяет все входы-объекты (в порядке имён входов)
//   - pick  — поля fields из объекта from
//   - count — длина списка items
func Transform(ctx context.Context, operation string, inputs map[string]any) (domain.Value, error) {
	if err := ctx.Err(); err != nil {
		return domain.Null(), fmt.Errorf("%w: %v", ErrCancelled, err)
	}

	switch operation {
	case OpMerge:
		return merge(inputs), nil
	case OpPick:
		return pick(inputs)
	case OpCount:
		items, ok := inputs["items"].([]any)
		if !ok {
			return domain.Null(), invalidInput(TargetTransform, "items must be a list")
		}
		return domain.Scalar(len(items)), nil
	default:
		return domain.Null(), fmt.Errorf("%w: %s.%s", ErrUnknownOperation, TargetTransform, operation)
	}
}

func merge(inputs map[string]any) domain.Value {
	keys := make([]string, 0, len(inputs))
	for k := range inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := make(map[string]any)
	for _, k := range keys {
		if m, ok := inputs[k].(map[string]any); ok {
			maps.Copy(merged, m)
		}
	}
	return domain.Map(merged)
}

func pick(inputs map[string]any) (domain.Value, error) {
	from, ok := inputs["from"].(map[string]any)
	if !ok {
		return domain.Null(), invalidInput(TargetTransform, "from must be an object")
	}
	fields, ok := inputs["fields"].([]any)
	if !ok {
		return domain.Null(), invalidInput(TargetTransform, "fields must be a list")
	}

	picked := make(map[string]any, len(fields))
	for _, f := range fields {
		name, ok := f.(string)
		if !ok {
			return domain.Null(), invalidInput(TargetTransform, "field names must be strings")
		}
		v, ok := from[name]
		if !ok {
			return domain.Null(), invalidInput(TargetTransform, "field %q not found", name)
		}
		picked[name] = v
	}
	return domain.Map(picked), nil
}
