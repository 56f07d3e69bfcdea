package builtin_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/Relay/internal/builtin"
	"github.com/shaiso/Relay/internal/dispatch"
	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/orchestrator"
	"github.com/shaiso/Relay/internal/telemetry"
)

const workflowsDir = "../../examples/workflows"

func TestExampleWorkflows_Load(t *testing.T) {
	defs, err := engine.LoadDefinitionsDir(workflowsDir)
	if err != nil {
		t.Fatalf("LoadDefinitionsDir: %v", err)
	}

	got := make(map[string][]string, len(defs))
	for _, def := range defs {
		got[def.ID] = def.EndTasks
	}
	want := map[string][]string{
		"builtin_demo":           {"summary"},
		"data_analysis_pipeline": {"report"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("end tasks mismatch (-want +got):\n%s", diff)
	}
}

func TestBuiltinDemo_RunsLocally(t *testing.T) {
	def, err := engine.LoadDefinitionFile(workflowsDir + "/builtin_demo.yaml")
	if err != nil {
		t.Fatalf("LoadDefinitionFile: %v", err)
	}

	local := dispatch.NewLocalChannel()
	builtin.RegisterLocal(local)

	eng := orchestrator.New(orchestrator.Config{
		Channel:          local,
		Retention:        time.Hour,
		StrictReferences: true,
		Logger:           telemetry.Discard(),
	})
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(eng.Stop)

	if err := eng.RegisterWorkflow(def); err != nil {
		t.Fatalf("RegisterWorkflow: %v", err)
	}

	id, err := eng.Execute(context.Background(), def.ID, map[string]any{
		"items": []any{"a", "b", "c"},
		"owner": "tests",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exec, err := eng.Wait(ctx, id)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if exec.Status != domain.ExecutionStatusCompleted {
		t.Fatalf("status = %s (%s), want COMPLETED", exec.Status, exec.Error)
	}

	want := map[string]any{"owner": "tests", "total": 3, "waited_ms": int64(100)}
	got := map[string]any{
		"owner":     exec.Variables["summary.owner"],
		"total":     exec.Variables["summary.total"],
		"waited_ms": exec.Variables["summary.waited_ms"],
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}
