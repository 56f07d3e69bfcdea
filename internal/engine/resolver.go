package engine

import (
	"sort"
	"strings"

	"github.com/shaiso/Relay/internal/domain"
)

// Scope — данные execution, доступные при подстановке ссылок.
type Scope struct {
	// Variables — пространство переменных execution.
	Variables map[string]any

	// Tasks — выполнения задач (task_id → TaskExecution).
	Tasks map[string]*domain.TaskExecution
}

// Resolution — результат подстановки входов задачи.
type Resolution struct {
	// Inputs — входы с подставленными значениями.
	Inputs map[string]any

	// Unresolved — ключи входов, ссылки в которых не удалось разрешить.
	// Значение такого входа остаётся исходной строкой ${...}.
	Unresolved []string
}

// HasUnresolved возвращает true, если хотя бы одна ссылка не разрешена.
func (r Resolution) HasUnresolved() bool {
	return len(r.Unresolved) > 0
}

// ParseReference проверяет, является ли значение ссылкой ${...}.
//
// Ссылкой считается только строка целиком вида ${path}; подстроки
// внутри более длинной строки не подставляются.
func ParseReference(value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") || len(s) < 3 {
		return "", false
	}
	path := s[2 : len(s)-1]
	if strings.ContainsAny(path, "{}") {
		return "", false
	}
	return path, true
}

// Resolve подставляет значения во входы задачи.
//
// Правила:
//   - ${task_id.output}: если задача COMPLETED и её результат — Map с полем
//     output, подставляется поле; если результат — Scalar, подставляется
//     результат целиком; иначе ссылка остаётся как есть
//   - ${name}: подставляется переменная execution, если она есть
//   - всё остальное — литерал
//
// Вызывается заново при каждой отправке задачи, без кэширования.
func Resolve(task *domain.TaskDefinition, scope Scope) Resolution {
	res := Resolution{
		Inputs:     make(map[string]any, len(task.Inputs)),
		Unresolved: make([]string, 0),
	}

	for key, value := range task.Inputs {
		path, isRef := ParseReference(value)
		if !isRef {
			res.Inputs[key] = value
			continue
		}

		resolved, ok := lookup(path, scope)
		if !ok {
			res.Inputs[key] = value
			res.Unresolved = append(res.Unresolved, key)
			continue
		}
		res.Inputs[key] = resolved
	}

	sort.Strings(res.Unresolved)
	return res
}

// lookup ищет значение по пути ссылки.
func lookup(path string, scope Scope) (any, bool) {
	taskID, output, isTaskRef := strings.Cut(path, ".")
	if !isTaskRef {
		val, ok := scope.Variables[path]
		return val, ok
	}

	exec, exists := scope.Tasks[taskID]
	if !exists || exec.Status != domain.TaskStatusCompleted {
		return nil, false
	}

	switch exec.Result.Kind() {
	case domain.KindMap:
		return exec.Result.Field(output)
	case domain.KindScalar:
		return exec.Result.Interface(), true
	default:
		return nil, false
	}
}
