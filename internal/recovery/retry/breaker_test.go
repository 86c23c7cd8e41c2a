package retry

import (
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	fake := clocktesting.NewFakePassiveClock(time.Now())
	b := NewBreaker(BreakerConfig{Threshold: 3, CoolDown: time.Minute}, fake)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != StateClosed {
		t.Fatalf("breaker opened before threshold, state %s", b.State())
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("breaker should be open after 3 failures, state %s", b.State())
	}
	if b.Allow() {
		t.Error("open breaker must refuse calls before cool-down")
	}
}

func TestBreaker_HalfOpenAfterCoolDown(t *testing.T) {
	start := time.Now()
	fake := clocktesting.NewFakePassiveClock(start)
	b := NewBreaker(BreakerConfig{Threshold: 1, CoolDown: time.Minute}, fake)

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("breaker should refuse immediately after opening")
	}

	fake.SetTime(start.Add(time.Minute))
	if !b.Allow() {
		t.Fatal("breaker should allow a probe after cool-down")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half_open after cool-down, got %s", b.State())
	}
}

func TestBreaker_HalfOpenSuccessCloses(t *testing.T) {
	start := time.Now()
	fake := clocktesting.NewFakePassiveClock(start)
	b := NewBreaker(BreakerConfig{Threshold: 1, CoolDown: time.Second}, fake)

	b.RecordFailure()
	fake.SetTime(start.Add(time.Second))
	if !b.Allow() {
		t.Fatal("probe should be allowed")
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("expected closed after half-open success, got %s", b.State())
	}
	if b.ConsecutiveFailures() != 0 {
		t.Errorf("failure streak should be zeroed, got %d", b.ConsecutiveFailures())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	start := time.Now()
	fake := clocktesting.NewFakePassiveClock(start)
	b := NewBreaker(BreakerConfig{Threshold: 1, CoolDown: time.Second}, fake)

	b.RecordFailure()
	fake.SetTime(start.Add(time.Second))
	b.Allow()

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("expected open after half-open failure, got %s", b.State())
	}
	if b.Allow() {
		t.Error("reopened breaker must refuse until the next cool-down")
	}
}
