package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ductran/recoverd/internal/infra/storage/memory"
	"github.com/ductran/recoverd/internal/recovery/classify"
	"github.com/ductran/recoverd/internal/recovery/retry"
)

func fastConfig(maxAttempts int) retry.Config {
	cfg := retry.DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.MaxAttempts = maxAttempts
	cfg.JitterFactor = 0
	return cfg
}

func newTestCoordinator(store *memory.Store) (*Coordinator, *retry.Registry) {
	registry := retry.NewRegistry(nil)
	return New(
		registry,
		classify.New(),
		memory.NewFailureRepo(store),
		memory.NewStatsRepo(store),
		nil,
		nil,
	), registry
}

func TestExecute_SucceedsAfterTwoFailures(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	registry.Register("send-email", fastConfig(3))

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset by peer")
		}
		return "sent", nil
	}

	result, err := coord.Execute(context.Background(), "send-email", "W1", op)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result != "sent" {
		t.Errorf("result = %v, want sent", result)
	}
	if calls != 3 {
		t.Errorf("operation called %d times, want 3", calls)
	}

	m := registry.Snapshot("send-email")["send-email"]
	if m.SuccessfulAttempts != 1 {
		t.Errorf("successful attempts = %d, want 1", m.SuccessfulAttempts)
	}
	if m.FailedAttempts != 2 {
		t.Errorf("failed attempts = %d, want 2", m.FailedAttempts)
	}

	// The failure record created on the first attempt must be resolved.
	open, err := memory.NewFailureRepo(store).CountUnresolved(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if open != 0 {
		t.Errorf("unresolved failures = %d, want 0", open)
	}
}

func TestStep_AdoptsKindDefaultsForUnregisteredOperation(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)

	fail := func(ctx context.Context) (any, error) {
		return nil, errors.New("connection timed out")
	}

	inv := &invocation{name: "poll-inbox", workflowID: "W1", op: fail}
	_, retryIn, done, err := coord.step(context.Background(), inv)
	if done || err != nil {
		t.Fatalf("step: done=%v err=%v, want a granted retry", done, err)
	}
	if retryIn <= 0 {
		t.Fatalf("retry delay = %s, want > 0", retryIn)
	}

	got := registry.Get("poll-inbox").Config()
	want := retry.NetworkConfig()
	if got.MaxAttempts != want.MaxAttempts {
		t.Errorf("max attempts = %d, want %d", got.MaxAttempts, want.MaxAttempts)
	}
	if got.BaseDelay != want.BaseDelay {
		t.Errorf("base delay = %s, want %s", got.BaseDelay, want.BaseDelay)
	}

	// An explicitly registered operation keeps its config across failures.
	registry.Register("send-email", fastConfig(3))
	inv = &invocation{name: "send-email", workflowID: "W1", op: fail}
	if _, _, _, err := coord.step(context.Background(), inv); err != nil {
		t.Fatal(err)
	}
	if got := registry.Get("send-email").Config().MaxAttempts; got != 3 {
		t.Errorf("registered max attempts = %d, want 3", got)
	}
}

func TestExecute_ExactAttemptCountOnExhaustion(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	registry.Register("scrape", fastConfig(3))

	calls := 0
	boom := errors.New("request timed out")
	op := func(ctx context.Context) (any, error) {
		calls++
		return nil, boom
	}

	_, err := coord.Execute(context.Background(), "scrape", "", op)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("operation called %d times, want exactly 3", calls)
	}
}

func TestExecute_HardCeilingCapsGenerousStrategy(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	cfg := fastConfig(50)
	cfg.Breaker.Threshold = 100
	registry.Register("greedy", cfg)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("timeout")
	}

	_, err := coord.Execute(context.Background(), "greedy", "", op)
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != hardAttemptCeiling {
		t.Errorf("operation called %d times, want ceiling %d", calls, hardAttemptCeiling)
	}
}

func TestExecute_NonRetryableFailsImmediately(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	registry.Register("upload", fastConfig(5))

	calls := 0
	boom := errors.New("permission denied")
	op := func(ctx context.Context) (any, error) {
		calls++
		return nil, boom
	}

	_, err := coord.Execute(context.Background(), "upload", "", op)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("non-retryable error should stop after 1 call, got %d", calls)
	}
}

func TestExecute_OpenBreakerRefusesWithoutInvoking(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	cfg := fastConfig(1)
	cfg.Breaker.Threshold = 5
	cfg.Breaker.CoolDown = time.Hour
	registry.Register("send-email", cfg)

	failing := func(ctx context.Context) (any, error) {
		return nil, errors.New("timeout")
	}

	for i := 0; i < 5; i++ {
		if _, err := coord.Execute(context.Background(), "send-email", "", failing); err == nil {
			t.Fatal("expected failure")
		}
	}
	if registry.Get("send-email").BreakerState() != retry.StateOpen {
		t.Fatal("breaker should be open after 5 consecutive failures")
	}

	invoked := false
	op := func(ctx context.Context) (any, error) {
		invoked = true
		return "ok", nil
	}
	_, err := coord.Execute(context.Background(), "send-email", "", op)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if invoked {
		t.Error("operation must not be invoked while the circuit is open")
	}
}

func TestExecute_ContextCancelDuringBackoff(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	cfg := fastConfig(5)
	cfg.BaseDelay = time.Hour // force a long backoff wait
	registry.Register("slow", cfg)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func(c context.Context) (any, error) {
		calls++
		cancel()
		return nil, errors.New("timeout")
	}

	_, err := coord.Execute(ctx, "slow", "", op)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("operation called %d times, want 1", calls)
	}
}

func TestExecute_FailureRecordTracksAttempts(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	registry.Register("store-save", fastConfig(3))

	op := func(ctx context.Context) (any, error) {
		return nil, errors.New("deadlock detected")
	}
	_, _ = coord.Execute(context.Background(), "store-save", "W7", op)

	open, err := memory.NewFailureRepo(store).ListUnresolved(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 {
		t.Fatalf("expected one open failure record, got %d", len(open))
	}
	rec := open[0]
	if rec.Attempts != 3 {
		t.Errorf("record attempts = %d, want 3", rec.Attempts)
	}
	if rec.WorkflowID != "W7" {
		t.Errorf("record workflow = %s, want W7", rec.WorkflowID)
	}
	if rec.Resolved {
		t.Error("terminal failure must stay unresolved")
	}
}

func TestScheduler_RunSkipsOperationOnCanceledContext(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	registry.Register("async-op", fastConfig(3))
	s := NewScheduler(coord, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	tk := &task{
		inv: &invocation{name: "async-op", workflowID: "W1", op: func(ctx context.Context) (any, error) {
			calls++
			return "done", nil
		}},
		done: make(chan Result, 1),
	}
	s.run(ctx, tk)

	res := <-tk.done
	if !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", res.Err)
	}
	if calls != 0 {
		t.Errorf("operation called %d times after cancellation, want 0", calls)
	}
}

func TestScheduler_DeliversResults(t *testing.T) {
	store := memory.NewStore()
	coord, registry := newTestCoordinator(store)
	registry.Register("async-op", fastConfig(3))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(coord, 2)
	s.Start(ctx)

	calls := 0
	op := func(ctx context.Context) (any, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("timeout")
		}
		return 42, nil
	}

	select {
	case res := <-s.Submit("async-op", "W1", op):
		if res.Err != nil {
			t.Fatalf("scheduled execution failed: %v", res.Err)
		}
		if res.Value != 42 {
			t.Errorf("value = %v, want 42", res.Value)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scheduled result")
	}

	if calls != 2 {
		t.Errorf("operation called %d times, want 2", calls)
	}
	cancel()
	s.Wait()
}
