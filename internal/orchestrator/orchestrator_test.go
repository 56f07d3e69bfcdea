package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/telemetry"
)

// --- helpers ---

func newTestEngine(t *testing.T, ch dispatch.Channel, mutate func(*Config)) *Engine {
	t.Helper()

	cfg := Config{
		Channel:   ch,
		Retention: time.Hour,
		Logger:    telemetry.Discard(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	e := New(cfg)
	t.Cleanup(e.Stop)
	return e
}

func def(id string, tasks ...domain.TaskDefinition) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{ID: id, Name: id, Tasks: tasks}
}

func task(id, target string, deps ...string) domain.TaskDefinition {
	return domain.TaskDefinition{
		ID:        id,
		Target:    target,
		Operation: "run",
		DependsOn: deps,
	}
}

func echo(v domain.Value) dispatch.Handler {
	return func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		return v, nil
	}
}

func mustRegister(t *testing.T, e *Engine, d *domain.WorkflowDefinition) {
	t.Helper()
	if err := e.RegisterWorkflow(d); err != nil {
		t.Fatalf("RegisterWorkflow: %v", err)
	}
}

func mustExecute(t *testing.T, e *Engine, workflowID string, inputs map[string]any) uuid.UUID {
	t.Helper()
	id, err := e.Execute(context.Background(), workflowID, inputs)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return id
}

func waitFinished(t *testing.T, e *Engine, id uuid.UUID) domain.WorkflowExecution {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exec, err := e.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return exec
}

// --- registration ---

func TestRegisterWorkflow_Invalid(t *testing.T) {
	e := newTestEngine(t, dispatch.NewLocalChannel(), nil)

	tests := []struct {
		name string
		def  *domain.WorkflowDefinition
		want error
	}{
		{"nil", nil, engine.ErrEmptyTasks},
		{"no tasks", def("wf"), engine.ErrEmptyTasks},
		{"cycle", def("wf", task("a", "x", "b"), task("b", "x", "a")), engine.ErrCyclicDependency},
		{"unknown dependency", def("wf", task("a", "x", "ghost")), engine.ErrMissingDependency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.RegisterWorkflow(tt.def)
			if !errors.Is(err, ErrInvalidWorkflow) {
				t.Errorf("expected ErrInvalidWorkflow, got %v", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if len(e.Workflows()) != 0 {
		t.Error("invalid workflows must not be registered")
	}
}

func TestRegisterWorkflow_ComputesBoundaries(t *testing.T) {
	e := newTestEngine(t, dispatch.NewLocalChannel(), nil)

	original := def("wf", task("a", "x"), task("b", "x", "a"), task("c", "x", "a"))
	mustRegister(t, e, original)

	got, ok := e.Workflow("wf")
	if !ok {
		t.Fatal("workflow not found after register")
	}
	if diff := cmp.Diff([]string{"a"}, got.StartTasks); diff != "" {
		t.Errorf("StartTasks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b", "c"}, got.EndTasks); diff != "" {
		t.Errorf("EndTasks mismatch (-want +got):\n%s", diff)
	}

	// Изменение исходного определения не влияет на зарегистрированное
	original.Tasks[0].Target = "changed"
	if got.Tasks[0].Target != "x" {
		t.Error("registered definition must be a copy")
	}
}

func TestExecute_UnknownWorkflow(t *testing.T) {
	e := newTestEngine(t, dispatch.NewLocalChannel(), nil)

	_, err := e.Execute(context.Background(), "missing", nil)
	if !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("expected ErrWorkflowNotFound, got %v", err)
	}
}

// --- execution ---

func TestExecute_SequentialWithOutputs(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("loader", echo(domain.Map(map[string]any{"rows": 42, "extra": true})))

	var seen atomic.Value
	ch.Register("analyzer", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		seen.Store(req.Inputs)
		return domain.Scalar("ok"), nil
	})

	e := newTestEngine(t, ch, nil)

	load := task("load", "loader")
	load.Inputs = map[string]any{"path": "${source}"}
	load.Outputs = []string{"rows", "missing"}

	analyze := task("analyze", "analyzer", "load")
	analyze.Inputs = map[string]any{
		"count": "${load.rows}",
		"whole": "${load.extra}",
		"lit":   7,
	}

	mustRegister(t, e, def("wf", load, analyze))
	id := mustExecute(t, e, "wf", map[string]any{"source": "data.csv"})

	exec := waitFinished(t, e, id)
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", exec.Status, exec.Error)
	}

	wantInputs := map[string]any{"count": 42, "whole": true, "lit": 7}
	if diff := cmp.Diff(wantInputs, seen.Load()); diff != "" {
		t.Errorf("analyzer inputs mismatch (-want +got):\n%s", diff)
	}

	// Объявленный, но не возвращённый выход не попадает в переменные
	wantVars := map[string]any{"source": "data.csv", "load.rows": 42}
	if diff := cmp.Diff(wantVars, exec.Variables); diff != "" {
		t.Errorf("variables mismatch (-want +got):\n%s", diff)
	}

	res, ok := e.GetResult(id)
	if !ok {
		t.Fatal("GetResult should succeed for COMPLETED execution")
	}
	if got := res.TaskResults["analyze"].Interface(); got != "ok" {
		t.Errorf("analyze result = %v, want ok", got)
	}
	if len(res.TaskResults) != 2 {
		t.Errorf("expected 2 task results, got %d", len(res.TaskResults))
	}
}

func TestExecute_DependentsShareRound(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("root", echo(domain.Null()))

	// b и c завершаются, только когда обе запущены
	var started sync.WaitGroup
	started.Add(2)
	barrier := func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		started.Done()
		done := make(chan struct{})
		go func() {
			started.Wait()
			close(done)
		}()
		select {
		case <-done:
			return domain.Scalar(req.TaskID), nil
		case <-time.After(2 * time.Second):
			return domain.Null(), errors.New("sibling was not dispatched concurrently")
		}
	}
	ch.Register("branch", barrier)

	e := newTestEngine(t, ch, nil)
	mustRegister(t, e, def("wf",
		task("a", "root"),
		task("b", "branch", "a"),
		task("c", "branch", "a"),
	))

	exec := waitFinished(t, e, mustExecute(t, e, "wf", nil))
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s (%s)", exec.Status, exec.Error)
	}
}

func TestExecute_MaxParallel(t *testing.T) {
	var current, peak atomic.Int32

	ch := dispatch.NewLocalChannel()
	ch.Register("worker", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return domain.Null(), nil
	})

	e := newTestEngine(t, ch, func(c *Config) { c.MaxParallel = 2 })
	mustRegister(t, e, def("wf",
		task("t1", "worker"),
		task("t2", "worker"),
		task("t3", "worker"),
		task("t4", "worker"),
		task("t5", "worker"),
	))

	exec := waitFinished(t, e, mustExecute(t, e, "wf", nil))
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", exec.Status)
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
	if len(exec.Tasks) != 5 {
		t.Errorf("expected 5 task executions, got %d", len(exec.Tasks))
	}
}

func TestExecute_FailureStopsDependents(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("broken", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		return domain.Null(), errors.New("boom")
	})

	var dependentCalled atomic.Bool
	ch.Register("next", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		dependentCalled.Store(true)
		return domain.Null(), nil
	})

	e := newTestEngine(t, ch, nil)
	mustRegister(t, e, def("wf", task("a", "broken"), task("b", "next", "a")))

	id := mustExecute(t, e, "wf", nil)
	exec := waitFinished(t, e, id)

	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected FAILED, got %s", exec.Status)
	}
	if !strings.Contains(exec.Error, "task a") || !strings.Contains(exec.Error, "boom") {
		t.Errorf("unexpected error: %q", exec.Error)
	}
	if exec.Tasks["a"].Status != domain.TaskStatusFailed {
		t.Errorf("task a status = %s, want FAILED", exec.Tasks["a"].Status)
	}
	if _, ok := exec.Tasks["b"]; ok {
		t.Error("dependent task must not get a TaskExecution")
	}
	if dependentCalled.Load() {
		t.Error("dependent handler must not be called")
	}
	if _, ok := e.GetResult(id); ok {
		t.Error("GetResult must fail for FAILED execution")
	}
}

func TestExecute_FirstErrorInDeclarationOrder(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("slow", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		time.Sleep(30 * time.Millisecond)
		return domain.Null(), errors.New("slow failure")
	})
	ch.Register("fast", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		return domain.Null(), errors.New("fast failure")
	})

	e := newTestEngine(t, ch, nil)
	mustRegister(t, e, def("wf", task("first", "slow"), task("second", "fast")))

	exec := waitFinished(t, e, mustExecute(t, e, "wf", nil))
	if !strings.Contains(exec.Error, "slow failure") {
		t.Errorf("expected first declared task error, got %q", exec.Error)
	}
	// Раунд дожидается всех задач
	if exec.Tasks["second"].Status != domain.TaskStatusFailed {
		t.Errorf("second status = %s, want FAILED", exec.Tasks["second"].Status)
	}
}

func TestExecute_UnknownTarget(t *testing.T) {
	e := newTestEngine(t, dispatch.NewLocalChannel(), nil)
	mustRegister(t, e, def("wf", task("a", "nobody")))

	exec := waitFinished(t, e, mustExecute(t, e, "wf", nil))
	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected FAILED, got %s", exec.Status)
	}
	if !strings.Contains(exec.Error, dispatch.ErrUnknownTarget.Error()) {
		t.Errorf("unexpected error: %q", exec.Error)
	}
}

func TestExecute_PanicInHandler(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("crashy", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		panic("kaboom")
	})

	e := newTestEngine(t, ch, nil)
	mustRegister(t, e, def("wf", task("a", "crashy")))

	exec := waitFinished(t, e, mustExecute(t, e, "wf", nil))
	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected FAILED, got %s", exec.Status)
	}
	if !strings.Contains(exec.Error, ErrTaskPanic.Error()) || !strings.Contains(exec.Error, "kaboom") {
		t.Errorf("unexpected error: %q", exec.Error)
	}
}

func TestExecute_RetryCountFromAttempts(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("flaky", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		req.Attempts = 3
		return domain.Scalar(1), nil
	})

	e := newTestEngine(t, ch, nil)
	mustRegister(t, e, def("wf", task("a", "flaky")))

	exec := waitFinished(t, e, mustExecute(t, e, "wf", nil))
	if got := exec.Tasks["a"].RetryCount; got != 2 {
		t.Errorf("RetryCount = %d, want 2", got)
	}
}

// --- references ---

func TestExecute_UnresolvedReference(t *testing.T) {
	tests := []struct {
		name       string
		strict     bool
		wantStatus domain.ExecutionStatus
		wantCalled bool
	}{
		{"permissive", false, domain.ExecutionStatusCompleted, true},
		{"strict", true, domain.ExecutionStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got atomic.Value
			ch := dispatch.NewLocalChannel()
			ch.Register("x", func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
				got.Store(req.Inputs["v"])
				return domain.Null(), nil
			})

			metrics := telemetry.NewMetrics(prometheus.NewRegistry())
			e := newTestEngine(t, ch, func(c *Config) {
				c.StrictReferences = tt.strict
				c.Metrics = metrics
			})

			a := task("a", "x")
			a.Inputs = map[string]any{"v": "${nowhere}"}
			mustRegister(t, e, def("wf", a))

			exec := waitFinished(t, e, mustExecute(t, e, "wf", nil))
			if exec.Status != tt.wantStatus {
				t.Fatalf("status = %s, want %s (%s)", exec.Status, tt.wantStatus, exec.Error)
			}

			called := got.Load() != nil
			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if called && got.Load() != "${nowhere}" {
				t.Errorf("unresolved reference must be passed through verbatim, got %v", got.Load())
			}
			if tt.strict && !strings.Contains(exec.Error, engine.ErrUnresolvedReference.Error()) {
				t.Errorf("unexpected error: %q", exec.Error)
			}
			if v := testutil.ToFloat64(metrics.UnresolvedRefs); v != 1 {
				t.Errorf("unresolved references metric = %v, want 1", v)
			}
		})
	}
}

// --- cancel, timeout, stop ---

func blocking(started chan<- struct{}) dispatch.Handler {
	return func(ctx context.Context, req *dispatch.Request) (domain.Value, error) {
		close(started)
		<-ctx.Done()
		return domain.Null(), context.Cause(ctx)
	}
}

func TestCancel(t *testing.T) {
	started := make(chan struct{})
	ch := dispatch.NewLocalChannel()
	ch.Register("long", blocking(started))

	e := newTestEngine(t, ch, nil)
	mustRegister(t, e, def("wf", task("a", "long"), task("b", "long", "a")))

	id := mustExecute(t, e, "wf", nil)
	<-started

	if err := e.Cancel(id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	status, ok := e.GetStatus(id)
	if !ok || status.Status != domain.ExecutionStatusCancelled {
		t.Fatalf("expected CANCELLED right after Cancel, got %+v", status.Status)
	}

	exec := waitFinished(t, e, id)
	if exec.Status != domain.ExecutionStatusCancelled {
		t.Errorf("status after wait = %s", exec.Status)
	}

	// Результат, пришедший после отмены, отброшен
	if exec.Tasks["a"].Status != domain.TaskStatusRunning {
		t.Errorf("task a status = %s, want RUNNING", exec.Tasks["a"].Status)
	}

	if err := e.Cancel(id); !errors.Is(err, ErrExecutionFinished) {
		t.Errorf("second Cancel: expected ErrExecutionFinished, got %v", err)
	}
	if err := e.Cancel(uuid.New()); !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("unknown Cancel: expected ErrExecutionNotFound, got %v", err)
	}
	if _, ok := e.GetResult(id); ok {
		t.Error("GetResult must fail for CANCELLED execution")
	}
}

func TestExecute_WorkflowTimeout(t *testing.T) {
	started := make(chan struct{})
	ch := dispatch.NewLocalChannel()
	ch.Register("long", blocking(started))

	e := newTestEngine(t, ch, func(c *Config) { c.DefaultTimeout = 50 * time.Millisecond })
	mustRegister(t, e, def("wf", task("a", "long")))

	exec := waitFinished(t, e, mustExecute(t, e, "wf", nil))
	if exec.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected FAILED, got %s", exec.Status)
	}
	if exec.Error != ErrWorkflowTimeout.Error() {
		t.Errorf("error = %q, want %q", exec.Error, ErrWorkflowTimeout.Error())
	}
}

func TestStop_FailsActiveExecutions(t *testing.T) {
	started := make(chan struct{})
	ch := dispatch.NewLocalChannel()
	ch.Register("long", blocking(started))

	e := New(Config{Channel: ch, Retention: time.Hour, Logger: telemetry.Discard()})
	mustRegister(t, e, def("wf", task("a", "long")))

	id := mustExecute(t, e, "wf", nil)
	<-started

	e.Stop()

	status, _ := e.GetStatus(id)
	if status.Status != domain.ExecutionStatusFailed || status.Error != ErrEngineStopped.Error() {
		t.Errorf("got %s (%q), want FAILED with engine stopped", status.Status, status.Error)
	}
	if _, err := e.Execute(context.Background(), "wf", nil); !errors.Is(err, ErrEngineStopped) {
		t.Errorf("Execute after Stop: expected ErrEngineStopped, got %v", err)
	}
}

func TestStop_ConcurrentExecute(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("x", echo(domain.Null()))

	e := newTestEngine(t, ch, nil)
	mustRegister(t, e, def("wf", task("a", "x")))

	var (
		mu       sync.Mutex
		accepted []uuid.UUID
		wg       sync.WaitGroup
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, err := e.Execute(context.Background(), "wf", nil)
				if errors.Is(err, ErrEngineStopped) {
					return
				}
				if err != nil {
					t.Errorf("Execute: %v", err)
					return
				}
				mu.Lock()
				accepted = append(accepted, id)
				mu.Unlock()
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	e.Stop()

	// Stop дождался всех принятых executions.
	mu.Lock()
	snapshot := append([]uuid.UUID(nil), accepted...)
	mu.Unlock()
	for _, id := range snapshot {
		status, ok := e.GetStatus(id)
		if !ok {
			t.Fatalf("execution %s not found", id)
		}
		if !status.Status.IsTerminal() {
			t.Fatalf("execution %s is %s after Stop", id, status.Status)
		}
	}

	wg.Wait()
	if len(snapshot) == 0 {
		t.Error("expected some executions accepted before Stop")
	}
}

// --- retention ---

func TestRetention_Reap(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("x", echo(domain.Null()))

	e := newTestEngine(t, ch, func(c *Config) { c.Retention = time.Minute })
	mustRegister(t, e, def("wf", task("a", "x")))

	id := mustExecute(t, e, "wf", nil)
	waitFinished(t, e, id)

	if n := e.reap(time.Now()); n != 0 {
		t.Errorf("reap before retention removed %d executions", n)
	}
	if _, ok := e.GetStatus(id); !ok {
		t.Fatal("execution must be kept within retention")
	}

	if n := e.reap(time.Now().Add(2 * time.Minute)); n != 1 {
		t.Errorf("reap after retention removed %d executions, want 1", n)
	}
	if _, ok := e.GetStatus(id); ok {
		t.Error("execution must be removed after retention")
	}
}

func TestRetention_Zero(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("x", echo(domain.Null()))

	e := newTestEngine(t, ch, func(c *Config) { c.Retention = 0 })
	mustRegister(t, e, def("wf", task("a", "x")))

	id := mustExecute(t, e, "wf", nil)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := e.GetStatus(id); !ok {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Error("execution with zero retention must be removed after finish")
}

// --- archive ---

type memoryArchive struct {
	mu    sync.Mutex
	execs map[uuid.UUID]domain.WorkflowExecution
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{execs: make(map[uuid.UUID]domain.WorkflowExecution)}
}

func (a *memoryArchive) Save(ctx context.Context, exec *domain.WorkflowExecution) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.execs[exec.ID] = *exec
	return nil
}

func (a *memoryArchive) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowExecution, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	exec, ok := a.execs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &exec, nil
}

func (a *memoryArchive) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.execs)
}

func TestHistory_FallsBackToArchive(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("x", echo(domain.Scalar("v")))

	archive := newMemoryArchive()
	e := newTestEngine(t, ch, func(c *Config) {
		c.Archive = archive
		c.Retention = time.Minute
	})
	mustRegister(t, e, def("wf", task("a", "x")))

	id := mustExecute(t, e, "wf", nil)
	waitFinished(t, e, id)

	// Архив записывается после закрытия done
	deadline := time.Now().Add(5 * time.Second)
	for archive.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	e.reap(time.Now().Add(time.Hour))
	if _, ok := e.GetStatus(id); ok {
		t.Fatal("execution should be reaped")
	}

	exec, err := e.History(context.Background(), id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Errorf("archived status = %s", exec.Status)
	}

	if _, err := e.History(context.Background(), uuid.New()); !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("expected ErrExecutionNotFound, got %v", err)
	}
}

func TestHistory_NoArchive(t *testing.T) {
	e := newTestEngine(t, dispatch.NewLocalChannel(), nil)

	if _, err := e.History(context.Background(), uuid.New()); !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("expected ErrExecutionNotFound, got %v", err)
	}
}

// --- listing and metrics ---

func TestExecutions_ListAndMetrics(t *testing.T) {
	ch := dispatch.NewLocalChannel()
	ch.Register("x", echo(domain.Null()))

	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	e := newTestEngine(t, ch, func(c *Config) { c.Metrics = metrics })
	mustRegister(t, e, def("wf", task("a", "x")))

	first := mustExecute(t, e, "wf", nil)
	waitFinished(t, e, first)
	second := mustExecute(t, e, "wf", nil)
	waitFinished(t, e, second)

	list := e.Executions()
	if len(list) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(list))
	}
	if list[0].ID != first || list[1].ID != second {
		t.Error("executions must be ordered by creation time")
	}
	if n := e.ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d, want 0", n)
	}

	deadline := time.Now().Add(5 * time.Second)
	for testutil.ToFloat64(metrics.ExecutionsFinished.WithLabelValues("COMPLETED")) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if v := testutil.ToFloat64(metrics.ExecutionsStarted); v != 2 {
		t.Errorf("started = %v, want 2", v)
	}
	if v := testutil.ToFloat64(metrics.ExecutionsFinished.WithLabelValues("COMPLETED")); v != 2 {
		t.Errorf("finished COMPLETED = %v, want 2", v)
	}
	if v := testutil.ToFloat64(metrics.ExecutionsActive); v != 0 {
		t.Errorf("active = %v, want 0", v)
	}
	if v := testutil.ToFloat64(metrics.TasksDispatched.WithLabelValues("x")); v != 2 {
		t.Errorf("dispatched = %v, want 2", v)
	}
}

func TestWait_UnknownExecution(t *testing.T) {
	e := newTestEngine(t, dispatch.NewLocalChannel(), nil)

	if _, err := e.Wait(context.Background(), uuid.New()); !errors.Is(err, ErrExecutionNotFound) {
		t.Errorf("expected ErrExecutionNotFound, got %v", err)
	}
}
