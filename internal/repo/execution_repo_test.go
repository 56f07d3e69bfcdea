package repo

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shaiso/Relay/internal/domain"
)

// rowFunc реализует pgx.Row.
type rowFunc func(dest ...any) error

func (f rowFunc) Scan(dest ...any) error { return f(dest...) }

func archivedExecution() *domain.WorkflowExecution {
	def := &domain.WorkflowDefinition{ID: "analysis", Name: "Data analysis"}
	exec := domain.NewWorkflowExecution(def, map[string]any{"source": "data.csv"})
	exec.MarkRunning()

	te := domain.NewTaskExecution(&domain.TaskDefinition{ID: "load", Target: "loader", Operation: "read"})
	te.MarkRunning()
	te.MarkCompleted(domain.Map(map[string]any{"rows": "42"}))
	te.RetryCount = 1
	exec.Tasks["load"] = te
	exec.Variables["load.rows"] = "42"

	exec.MarkFailed("task analyze: boom")
	return exec
}

func TestEncodeDecodeExecution(t *testing.T) {
	exec := archivedExecution()

	variablesJSON, tasksJSON, err := encodeExecution(exec)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var got domain.WorkflowExecution
	if err := decodeExecution(&got, variablesJSON, tasksJSON); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if diff := cmp.Diff(exec.Variables, got.Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}

	task, ok := got.Tasks["load"]
	if !ok {
		t.Fatal("task load missing after decode")
	}
	if task.Status != domain.TaskStatusCompleted || task.RetryCount != 1 || task.Target != "loader" {
		t.Errorf("unexpected task: %+v", task)
	}
	if v, _ := task.Result.Field("rows"); v != "42" {
		t.Errorf("result field rows = %v, want 42", v)
	}
}

func TestDecodeExecution_EmptyColumns(t *testing.T) {
	var exec domain.WorkflowExecution
	if err := decodeExecution(&exec, nil, nil); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if exec.Variables == nil || exec.Tasks == nil {
		t.Error("maps must be initialized for empty columns")
	}
}

func TestScanExecution(t *testing.T) {
	want := archivedExecution()
	variablesJSON, tasksJSON, err := encodeExecution(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	row := rowFunc(func(dest ...any) error {
		if len(dest) != 10 {
			return fmt.Errorf("expected 10 columns, got %d", len(dest))
		}
		*dest[0].(*uuid.UUID) = want.ID
		*dest[1].(*string) = want.WorkflowID
		*dest[2].(**string) = nullString(want.WorkflowName)
		*dest[3].(*string) = string(want.Status)
		*dest[4].(*[]byte) = variablesJSON
		*dest[5].(*[]byte) = tasksJSON
		*dest[6].(**string) = nullString(want.Error)
		*dest[7].(**time.Time) = want.StartedAt
		*dest[8].(**time.Time) = want.FinishedAt
		*dest[9].(*time.Time) = want.CreatedAt
		return nil
	})

	got, err := scanExecution(row)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if got.ID != want.ID || got.WorkflowID != "analysis" || got.WorkflowName != "Data analysis" {
		t.Errorf("identity mismatch: %+v", got)
	}
	if got.Status != domain.ExecutionStatusFailed || got.Error != "task analyze: boom" {
		t.Errorf("status = %s (%q)", got.Status, got.Error)
	}
	if got.Duration() != want.Duration() {
		t.Errorf("duration = %v, want %v", got.Duration(), want.Duration())
	}
}

func TestScanExecution_NoRows(t *testing.T) {
	row := rowFunc(func(dest ...any) error { return pgx.ErrNoRows })

	if _, err := scanExecution(row); !errors.Is(err, pgx.ErrNoRows) {
		t.Errorf("expected pgx.ErrNoRows, got %v", err)
	}
}

func TestExecutionFilter_Page(t *testing.T) {
	tests := []struct {
		filter     ExecutionFilter
		wantLimit  int
		wantOffset int
	}{
		{ExecutionFilter{}, defaultListLimit, 0},
		{ExecutionFilter{Limit: 10, Offset: 20}, 10, 20},
		{ExecutionFilter{Limit: -1, Offset: -5}, defaultListLimit, 0},
	}

	for _, tt := range tests {
		limit, offset := tt.filter.page()
		if limit != tt.wantLimit || offset != tt.wantOffset {
			t.Errorf("page(%+v) = %d, %d; want %d, %d", tt.filter, limit, offset, tt.wantLimit, tt.wantOffset)
		}
	}
}

func TestNullString(t *testing.T) {
	if nullString("") != nil {
		t.Error("empty string must map to NULL")
	}
	if p := nullString("x"); p == nil || *p != "x" {
		t.Error("non-empty string must be kept")
	}
}
