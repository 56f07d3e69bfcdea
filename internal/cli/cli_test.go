package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

func writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func writeList(w http.ResponseWriter, data any, total int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"data": data, "total": total})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": code, "message": msg}})
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL)
	c.pollInterval = 5 * time.Millisecond
	return c
}

// runCmd выполняет команду и возвращает stdout и stderr.
func runCmd(t *testing.T, factory func(func() *Client, func() *Output) *cobra.Command, client *Client, jsonMode bool, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := factory(
		func() *Client { return client },
		func() *Output { return NewOutputTo(jsonMode, &stdout, &stderr) },
	)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestParseInputs(t *testing.T) {
	tests := []struct {
		name    string
		kvs     []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", kvs: nil, want: nil},
		{
			name: "json values",
			kvs:  []string{"n=42", "flag=true", "list=[1,2]", `obj={"a":"b"}`},
			want: map[string]any{
				"n":    float64(42),
				"flag": true,
				"list": []any{float64(1), float64(2)},
				"obj":  map[string]any{"a": "b"},
			},
		},
		{
			name: "plain strings",
			kvs:  []string{"source=data.csv", "expr=a=b", "empty="},
			want: map[string]any{"source": "data.csv", "expr": "a=b", "empty": ""},
		},
		{name: "missing separator", kvs: []string{"source"}, wantErr: true},
		{name: "empty key", kvs: []string{"=value"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseInputs(tt.kvs)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("inputs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompactJSON(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{float64(3), "3"},
		{map[string]any{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		if got := compactJSON(tt.in); got != tt.want {
			t.Errorf("compactJSON(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "workflow not found")
	})
	mux.HandleFunc("GET /api/v1/executions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>bad gateway</html>")
	})
	client := newTestClient(t, mux)

	_, err := client.GetWorkflow("missing")
	if err == nil || err.Error() != "NOT_FOUND: workflow not found" {
		t.Errorf("GetWorkflow error = %v", err)
	}

	_, err = client.GetExecution("any")
	if err == nil || err.Error() != "API error: HTTP 502" {
		t.Errorf("GetExecution error = %v", err)
	}
}

func TestClient_StartExecutionBody(t *testing.T) {
	var gotBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/workflows/{id}/executions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		writeData(w, http.StatusAccepted, map[string]any{
			"execution_id": "e-1",
			"workflow_id":  r.PathValue("id"),
			"status":       "RUNNING",
		})
	})
	client := newTestClient(t, mux)

	started, err := client.StartExecution("etl", map[string]any{"source": "data.csv"})
	if err != nil {
		t.Fatalf("StartExecution: %v", err)
	}

	want := &StartExecutionResponse{ExecutionID: "e-1", WorkflowID: "etl", Status: "RUNNING"}
	if diff := cmp.Diff(want, started); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"inputs": map[string]any{"source": "data.csv"}}, gotBody); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ListExecutionsQuery(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/executions", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		writeList(w, []map[string]any{{"id": "e-1", "workflow_id": "etl", "status": "FAILED", "task_count": 2}}, 1)
	})
	client := newTestClient(t, mux)

	execs, err := client.ListExecutions(ListExecutionsOpts{WorkflowID: "etl", Status: "FAILED", Archive: true, Limit: 5})
	if err != nil {
		t.Fatalf("ListExecutions: %v", err)
	}

	if gotQuery != "limit=5&source=archive&status=FAILED&workflow_id=etl" {
		t.Errorf("query = %q", gotQuery)
	}
	want := []ExecutionSummary{{ID: "e-1", WorkflowID: "etl", Status: "FAILED", TaskCount: 2}}
	if diff := cmp.Diff(want, execs); diff != "" {
		t.Errorf("executions mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_WaitExecution(t *testing.T) {
	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/executions/{id}", func(w http.ResponseWriter, r *http.Request) {
		status := "RUNNING"
		if calls.Add(1) >= 3 {
			status = "COMPLETED"
		}
		writeData(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "status": status})
	})
	client := newTestClient(t, mux)

	exec, err := client.WaitExecution("e-1", 0)
	if err != nil {
		t.Fatalf("WaitExecution: %v", err)
	}
	if exec.Status != "COMPLETED" {
		t.Errorf("status = %s, want COMPLETED", exec.Status)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("polls = %d, want 3", got)
	}
}

func TestClient_WaitExecutionTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/executions/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{"id": r.PathValue("id"), "status": "RUNNING"})
	})
	client := newTestClient(t, mux)

	exec, err := client.WaitExecution("e-1", 20*time.Millisecond)
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("err = %v, want ErrWaitTimeout", err)
	}
	if exec == nil || exec.Status != "RUNNING" {
		t.Errorf("exec = %+v, want last RUNNING snapshot", exec)
	}
}

func TestWorkflowRegisterCmd(t *testing.T) {
	definition := "id: etl\nname: ETL\ntasks:\n  - id: load\n    target: loader\n    operation: load\n"
	path := filepath.Join(t.TempDir(), "etl.yaml")
	if err := os.WriteFile(path, []byte(definition), 0o644); err != nil {
		t.Fatal(err)
	}

	var gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		writeData(w, http.StatusCreated, map[string]any{
			"id":          "etl",
			"name":        "ETL",
			"tasks":       []map[string]any{{"id": "load", "target": "loader", "operation": "load"}},
			"start_tasks": []string{"load"},
			"end_tasks":   []string{"load"},
		})
	})
	client := newTestClient(t, mux)

	stdout, stderr, err := runCmd(t, NewWorkflowCmd, client, false, "register", path)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if gotBody != definition {
		t.Errorf("body = %q, want file contents", gotBody)
	}
	if !strings.Contains(stderr, "Workflow registered: etl") {
		t.Errorf("stderr = %q", stderr)
	}
	if !strings.Contains(stdout, "ETL") || !strings.Contains(stdout, "START") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestWorkflowRegisterCmd_MissingFile(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, _, err := runCmd(t, NewWorkflowCmd, client, false, "register", filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want os.ErrNotExist", err)
	}
}

func TestWorkflowListCmd_JSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/workflows", func(w http.ResponseWriter, r *http.Request) {
		writeList(w, []map[string]any{{"id": "etl", "name": "ETL", "task_count": 3}}, 1)
	})
	client := newTestClient(t, mux)

	stdout, _, err := runCmd(t, NewWorkflowCmd, client, true, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var got []WorkflowSummary
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if diff := cmp.Diff([]WorkflowSummary{{ID: "etl", Name: "ETL", TaskCount: 3}}, got); diff != "" {
		t.Errorf("workflows mismatch (-want +got):\n%s", diff)
	}
}

func TestTargetListCmd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/targets", func(w http.ResponseWriter, r *http.Request) {
		writeList(w, []map[string]any{
			{"name": "analyzer", "mode": "http", "endpoint": "http://analyzer:9102", "auth_token": "***",
				"timeout_ms": 1800000, "retry_attempts": 2, "retry_delay_ms": 5000},
			{"name": "echo", "mode": "local", "timeout_ms": 0, "retry_attempts": 0, "retry_delay_ms": 0},
		}, 2)
	})
	client := newTestClient(t, mux)

	stdout, _, err := runCmd(t, NewTargetCmd, client, false, "list")
	if err != nil {
		t.Fatalf("target list: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got:\n%s", stdout)
	}
	for _, want := range []string{"analyzer", "http://analyzer:9102", "***", "30m0s", "5s"} {
		if !strings.Contains(lines[2], want) {
			t.Errorf("row %q does not contain %q", lines[2], want)
		}
	}
	if fields := strings.Fields(lines[3]); fields[0] != "echo" || fields[1] != "local" {
		t.Errorf("unexpected local row: %q", lines[3])
	}
}

func TestFormatMs(t *testing.T) {
	for ms, want := range map[int64]string{0: "-", 1500: "1.5s", 600000: "10m0s"} {
		if got := formatMs(ms); got != want {
			t.Errorf("formatMs(%d) = %q, want %q", ms, got, want)
		}
	}
}

func TestExecStartCmd_Wait(t *testing.T) {
	var gotInputs map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/workflows/{id}/executions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Inputs map[string]any `json:"inputs"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotInputs = body.Inputs
		writeData(w, http.StatusAccepted, map[string]any{"execution_id": "e-1", "workflow_id": "etl", "status": "RUNNING"})
	})
	mux.HandleFunc("GET /api/v1/executions/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"id":          "e-1",
			"workflow_id": "etl",
			"status":      "FAILED",
			"error":       "task load failed",
			"tasks": []map[string]any{
				{"task_id": "load", "target": "loader", "status": "FAILED", "retry_count": 2, "error": "boom"},
			},
		})
	})
	client := newTestClient(t, mux)

	stdout, stderr, err := runCmd(t, NewExecCmd, client, false, "start", "etl", "--input", "rows=[1,2]", "--input", "source=data.csv", "--wait")
	if err == nil || !strings.Contains(err.Error(), "finished with status FAILED") {
		t.Fatalf("err = %v, want FAILED status error", err)
	}

	wantInputs := map[string]any{"rows": []any{float64(1), float64(2)}, "source": "data.csv"}
	if diff := cmp.Diff(wantInputs, gotInputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stderr, "Execution started: e-1") {
		t.Errorf("stderr = %q", stderr)
	}
	for _, want := range []string{"Status:", "FAILED", "task load failed", "loader", "boom"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("stdout missing %q:\n%s", want, stdout)
		}
	}
}

func TestExecResultCmd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/executions/{id}/result", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]any{
			"execution_id": r.PathValue("id"),
			"variables":    map[string]any{"total": 10, "report": "ok"},
			"task_results": map[string]any{},
		})
	})
	client := newTestClient(t, mux)

	stdout, _, err := runCmd(t, NewExecCmd, client, false, "result", "e-1")
	if err != nil {
		t.Fatalf("result: %v", err)
	}

	reportIdx := strings.Index(stdout, "report")
	totalIdx := strings.Index(stdout, "total")
	if reportIdx < 0 || totalIdx < 0 || reportIdx > totalIdx {
		t.Errorf("variables must be listed sorted by name:\n%s", stdout)
	}
}

func TestExecCancelCmd_Error(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/executions/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_STATE", "execution already finished")
	})
	client := newTestClient(t, mux)

	_, stderr, err := runCmd(t, NewExecCmd, client, false, "cancel", "e-1")
	if err == nil || err.Error() != "INVALID_STATE: execution already finished" {
		t.Errorf("err = %v", err)
	}
	if stderr != "" {
		t.Errorf("stderr = %q, want empty on failure", stderr)
	}
}
