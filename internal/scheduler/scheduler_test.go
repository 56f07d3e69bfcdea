package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/telemetry"
)

type executeCall struct {
	workflow string
	inputs   map[string]any
}

// fakeExecutor записывает вызовы Execute.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []executeCall
	err   error
	fired chan struct{}
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{fired: make(chan struct{}, 16)}
}

func (f *fakeExecutor) Execute(ctx context.Context, workflowID string, inputs map[string]any) (uuid.UUID, error) {
	f.mu.Lock()
	f.calls = append(f.calls, executeCall{workflow: workflowID, inputs: inputs})
	err := f.err
	f.mu.Unlock()

	select {
	case f.fired <- struct{}{}:
	default:
	}

	if err != nil {
		return uuid.Nil, err
	}
	return uuid.New(), nil
}

func (f *fakeExecutor) Calls() []executeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executeCall(nil), f.calls...)
}

func newTestScheduler(t *testing.T, exec Executor, schedules ...config.ScheduleConfig) (*Scheduler, *telemetry.Metrics) {
	t.Helper()
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())
	s, err := New(Config{
		Schedules: schedules,
		Executor:  exec,
		Metrics:   metrics,
		Logger:    telemetry.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Stop)
	return s, metrics
}

func TestNextRun(t *testing.T) {
	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		tz   string
		want time.Time
	}{
		{"utc default", "0 9 * * *", "", time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)},
		{"moscow", "0 9 * * *", "Europe/Moscow", time.Date(2026, 1, 10, 6, 0, 0, 0, time.UTC)},
		{"weekday", "30 8 * * MON", "", time.Date(2026, 1, 12, 8, 30, 0, 0, time.UTC)},
		{"descriptor", "@daily", "", time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)},
		{"every", "@every 15m", "", from.Add(15 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRun(tt.expr, tt.tz, from)
			if err != nil {
				t.Fatalf("NextRun: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextRun(%q, %q) = %v, want %v", tt.expr, tt.tz, got, tt.want)
			}
		})
	}
}

func TestValidateCronExpr_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
		tz   string
	}{
		{"empty", "", ""},
		{"six fields", "0 0 9 * * *", ""},
		{"out of range", "61 * * * *", ""},
		{"garbage", "every day", ""},
		{"unknown timezone", "0 9 * * *", "Mars/Olympus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr, tt.tz)
			if !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("err = %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func TestNew_RejectsInvalidSchedules(t *testing.T) {
	tests := []struct {
		name      string
		schedules []config.ScheduleConfig
	}{
		{"bad cron", []config.ScheduleConfig{{Name: "a", Workflow: "wf", Cron: "bad"}}},
		{"missing workflow", []config.ScheduleConfig{{Name: "a", Cron: "@hourly"}}},
		{"duplicate", []config.ScheduleConfig{
			{Name: "a", Workflow: "wf", Cron: "@hourly"},
			{Name: "a", Workflow: "wf", Cron: "@daily"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{Schedules: tt.schedules, Executor: newFakeExecutor(), Logger: telemetry.Discard()})
			if !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("err = %v, want ErrInvalidSchedule", err)
			}
		})
	}
}

func TestTrigger(t *testing.T) {
	exec := newFakeExecutor()
	inputs := map[string]any{"source": "daily.csv"}
	s, metrics := newTestScheduler(t, exec, config.ScheduleConfig{
		Name: "nightly", Workflow: "etl", Cron: "0 2 * * *", Inputs: inputs,
	})

	id, err := s.Trigger("nightly")
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if id == uuid.Nil {
		t.Error("expected execution id")
	}

	calls := exec.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if calls[0].workflow != "etl" {
		t.Errorf("workflow = %s, want etl", calls[0].workflow)
	}
	if diff := cmp.Diff(inputs, calls[0].inputs); diff != "" {
		t.Errorf("inputs mismatch (-want +got):\n%s", diff)
	}

	// inputs копируются на каждое срабатывание
	calls[0].inputs["source"] = "mutated"
	if inputs["source"] != "daily.csv" {
		t.Error("schedule inputs must not be shared with executions")
	}

	if got := testutil.ToFloat64(metrics.ScheduleTriggers.WithLabelValues("nightly", OutcomeStarted)); got != 1 {
		t.Errorf("started triggers = %v, want 1", got)
	}
}

func TestTrigger_ExecuteError(t *testing.T) {
	exec := newFakeExecutor()
	exec.err = errors.New("workflow not found")
	s, metrics := newTestScheduler(t, exec, config.ScheduleConfig{Name: "hourly", Workflow: "missing", Cron: "@hourly"})

	if _, err := s.Trigger("hourly"); err == nil {
		t.Fatal("expected error")
	}
	if got := testutil.ToFloat64(metrics.ScheduleTriggers.WithLabelValues("hourly", OutcomeFailed)); got != 1 {
		t.Errorf("failed triggers = %v, want 1", got)
	}
}

func TestTrigger_Unknown(t *testing.T) {
	s, _ := newTestScheduler(t, newFakeExecutor())

	if _, err := s.Trigger("nope"); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("err = %v, want ErrScheduleNotFound", err)
	}
}

func TestEntries(t *testing.T) {
	s, _ := newTestScheduler(t, newFakeExecutor(),
		config.ScheduleConfig{Name: "b", Workflow: "wf2", Cron: "@daily", Timezone: "Europe/Moscow"},
		config.ScheduleConfig{Name: "a", Workflow: "wf1", Cron: "@hourly"},
	)
	s.Start(context.Background())

	entries := s.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Name != "a" || entries[1].Name != "b" {
		t.Errorf("entries not sorted: %s, %s", entries[0].Name, entries[1].Name)
	}
	if entries[1].Timezone != "Europe/Moscow" {
		t.Errorf("timezone = %q", entries[1].Timezone)
	}

	// Next заполняется после Start асинхронно
	deadline := time.Now().Add(time.Second)
	for s.Entries()[0].Next.IsZero() {
		if time.Now().After(deadline) {
			t.Fatal("next run not computed after Start")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStart_FiresOnSchedule(t *testing.T) {
	exec := newFakeExecutor()
	s, _ := newTestScheduler(t, exec, config.ScheduleConfig{Name: "tick", Workflow: "wf", Cron: "@every 1s"})

	s.Start(context.Background())

	select {
	case <-exec.fired:
	case <-time.After(3 * time.Second):
		t.Fatal("schedule did not fire")
	}

	s.Stop()
	if calls := exec.Calls(); calls[0].workflow != "wf" {
		t.Errorf("workflow = %s, want wf", calls[0].workflow)
	}
}
