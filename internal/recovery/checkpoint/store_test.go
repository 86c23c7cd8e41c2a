package checkpoint

import (
	"context"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ductran/recoverd/internal/infra/storage/memory"
)

func TestStore_CreateAndLatest(t *testing.T) {
	store := memory.NewStore()
	fake := clocktesting.NewFakePassiveClock(time.Now())
	s := NewStore(memory.NewCheckpointRepo(store), fake)
	ctx := context.Background()

	id1, err := s.Create(ctx, "W1", "discovery", map[string]any{"jobs_found": 5})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if id1 == "" {
		t.Fatal("expected a checkpoint id")
	}

	fake.SetTime(fake.Now().Add(time.Minute))
	if _, err := s.Create(ctx, "W1", "processing", map[string]any{"jobs_found": 5, "processed": 2}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	latest, err := s.Latest(ctx, "W1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a checkpoint")
	}
	if latest.Stage != "processing" {
		t.Errorf("latest stage = %s, want processing", latest.Stage)
	}
	if latest.Data["processed"] != 2 {
		t.Errorf("latest payload = %v, want processed=2", latest.Data)
	}
}

func TestStore_LatestUnknownWorkflow(t *testing.T) {
	s := NewStore(memory.NewCheckpointRepo(memory.NewStore()), nil)

	cp, err := s.Latest(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if cp != nil {
		t.Errorf("expected nil for unknown workflow, got %+v", cp)
	}
}

func TestStore_TieBrokenByInsertionOrder(t *testing.T) {
	store := memory.NewStore()
	fake := clocktesting.NewFakePassiveClock(time.Now())
	s := NewStore(memory.NewCheckpointRepo(store), fake)
	ctx := context.Background()

	// Same clock reading for both writes.
	if _, err := s.Create(ctx, "W1", "first", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, "W1", "second", nil); err != nil {
		t.Fatal(err)
	}

	latest, err := s.Latest(ctx, "W1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Stage != "second" {
		t.Errorf("tie should resolve to the later insert, got %s", latest.Stage)
	}
}

func TestStore_RequiresWorkflowAndStage(t *testing.T) {
	s := NewStore(memory.NewCheckpointRepo(memory.NewStore()), nil)
	ctx := context.Background()

	if _, err := s.Create(ctx, "", "stage", nil); err == nil {
		t.Error("expected error for empty workflow id")
	}
	if _, err := s.Create(ctx, "W1", "", nil); err == nil {
		t.Error("expected error for empty stage")
	}
}

func TestStore_History(t *testing.T) {
	store := memory.NewStore()
	fake := clocktesting.NewFakePassiveClock(time.Now())
	s := NewStore(memory.NewCheckpointRepo(store), fake)
	ctx := context.Background()

	stages := []string{"discovery", "analysis", "processing"}
	for _, stage := range stages {
		if _, err := s.Create(ctx, "W1", stage, nil); err != nil {
			t.Fatal(err)
		}
		fake.SetTime(fake.Now().Add(time.Second))
	}

	history, err := s.History(ctx, "W1")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != len(stages) {
		t.Fatalf("expected %d checkpoints, got %d", len(stages), len(history))
	}
	for i, stage := range stages {
		if history[i].Stage != stage {
			t.Errorf("history[%d] = %s, want %s", i, history[i].Stage, stage)
		}
	}
}
