package domain

import (
	"encoding/json"
	"testing"
)

func TestValueOf_Kinds(t *testing.T) {
	if !ValueOf(nil).IsNull() {
		t.Error("nil should be Null")
	}
	if !ValueOf(7).IsScalar() {
		t.Error("int should be Scalar")
	}
	if !ValueOf([]any{1, 2}).IsScalar() {
		t.Error("list should be Scalar")
	}
	if !ValueOf(map[string]any{"out": 1}).IsMap() {
		t.Error("map[string]any should be Map")
	}
	if !ValueOf(map[string]string{"out": "x"}).IsMap() {
		t.Error("map[string]string should be Map")
	}

	v := Scalar("x")
	if ValueOf(v).Interface() != "x" {
		t.Error("ValueOf(Value) should return the same value")
	}
}

func TestValue_Field(t *testing.T) {
	v := Map(map[string]any{"out": 7})

	got, ok := v.Field("out")
	if !ok || got != 7 {
		t.Errorf("expected out=7, got %v (%v)", got, ok)
	}

	if _, ok := v.Field("missing"); ok {
		t.Error("missing field should not be found")
	}

	if _, ok := Scalar(7).Field("out"); ok {
		t.Error("scalar has no fields")
	}
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal(Map(map[string]any{"out": "x"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"out":"x"}` {
		t.Errorf("unexpected json: %s", data)
	}

	var v Value
	if err := json.Unmarshal([]byte(`42`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsScalar() || v.Interface() != float64(42) {
		t.Errorf("expected scalar 42, got %v (%s)", v.Interface(), v.Kind())
	}

	if err := json.Unmarshal([]byte(`null`), &v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("expected null, got %s", v.Kind())
	}
}
