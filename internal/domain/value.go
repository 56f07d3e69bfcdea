package domain

import "encoding/json"

// ValueKind — вид значения результата задачи.
type ValueKind uint8

const (
	// KindNull — результата нет.
	KindNull ValueKind = iota

	// KindScalar — скалярный результат (строка, число, bool, список).
	KindScalar

	// KindMap — структурированный результат с именованными полями.
	KindMap
)

// String возвращает строковое представление ValueKind.
func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMap:
		return "map"
	default:
		return "null"
	}
}

// Value — результат задачи: Null | Scalar | Map.
//
// Target может вернуть как отдельное значение, так и объект с полями.
// Резолвер ссылок ${task.output} работает с Value явно через Kind/Field,
// без проверки типов на месте.
type Value struct {
	kind   ValueKind
	scalar any
	fields map[string]any
}

// Null возвращает пустое значение.
func Null() Value {
	return Value{kind: KindNull}
}

// Scalar создаёт скалярное значение. nil превращается в Null.
func Scalar(v any) Value {
	if v == nil {
		return Null()
	}
	return Value{kind: KindScalar, scalar: v}
}

// Map создаёт структурированное значение.
func Map(fields map[string]any) Value {
	if fields == nil {
		fields = make(map[string]any)
	}
	return Value{kind: KindMap, fields: fields}
}

// ValueOf оборачивает произвольное значение (например, распарсенный JSON).
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case map[string]any:
		return Map(t)
	case map[string]string:
		fields := make(map[string]any, len(t))
		for k, val := range t {
			fields[k] = val
		}
		return Map(fields)
	default:
		return Scalar(t)
	}
}

// Kind возвращает вид значения.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull возвращает true, если значения нет.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// IsMap возвращает true для структурированного значения.
func (v Value) IsMap() bool {
	return v.kind == KindMap
}

// IsScalar возвращает true для скалярного значения.
func (v Value) IsScalar() bool {
	return v.kind == KindScalar
}

// Field возвращает поле структурированного значения.
// Для Null и Scalar всегда возвращает false.
func (v Value) Field(name string) (any, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	val, ok := v.fields[name]
	return val, ok
}

// Fields возвращает поля структурированного значения (nil для остальных видов).
func (v Value) Fields() map[string]any {
	if v.kind != KindMap {
		return nil
	}
	return v.fields
}

// Interface возвращает значение в виде any: nil, скаляр или map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindMap:
		return v.fields
	default:
		return nil
	}
}

// MarshalJSON сериализует Value как исходное значение.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON восстанавливает Value из JSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}
