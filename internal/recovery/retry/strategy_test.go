package retry

import (
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ductran/recoverd/internal/core/domain"
)

func TestStrategy_DelayGrowthAndCap(t *testing.T) {
	cfg := Config{
		BaseDelay:       time.Second,
		MaxDelay:        10 * time.Second,
		MaxAttempts:     5,
		BackoffExponent: 2.0,
		JitterFactor:    0,
	}
	s := NewStrategy("op", cfg, nil)

	// 1s, 2s, 4s, 8s, then capped.
	wants := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	for i, want := range wants {
		if got := s.Delay(i + 1); got != want {
			t.Errorf("Delay(%d) = %v, want %v", i+1, got, want)
		}
	}
}

func TestStrategy_DelayJitterBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Second
	cfg.MaxDelay = 8 * time.Second
	cfg.JitterFactor = 0.25
	s := NewStrategy("op", cfg, nil)

	for attempt := 1; attempt <= 6; attempt++ {
		raw := float64(cfg.BaseDelay) * pow(cfg.BackoffExponent, attempt-1)
		if raw > float64(cfg.MaxDelay) {
			raw = float64(cfg.MaxDelay)
		}
		lo := time.Duration(raw * (1 - cfg.JitterFactor))
		hi := time.Duration(raw * (1 + cfg.JitterFactor))

		for i := 0; i < 50; i++ {
			d := s.Delay(attempt)
			if d < lo || d > hi {
				t.Fatalf("Delay(%d) = %v outside [%v, %v]", attempt, d, lo, hi)
			}
		}
	}
}

func pow(base float64, exp int) float64 {
	out := 1.0
	for i := 0; i < exp; i++ {
		out *= base
	}
	return out
}

func TestStrategy_ShouldRetry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 3
	s := NewStrategy("op", cfg, nil)

	if !s.ShouldRetry(1, domain.FailureNetworkTimeout) {
		t.Error("attempt 1 of 3 should be retryable")
	}
	if !s.ShouldRetry(2, domain.FailureNetworkTimeout) {
		t.Error("attempt 2 of 3 should be retryable")
	}
	if s.ShouldRetry(3, domain.FailureNetworkTimeout) {
		t.Error("attempt 3 of 3 must not retry")
	}
}

func TestStrategy_NonRetryableKinds(t *testing.T) {
	s := NewStrategy("op", DefaultConfig(), nil)

	for _, kind := range []domain.FailureKind{
		domain.FailureAuthFailure,
		domain.FailurePermissionDenied,
		domain.FailureBusinessRule,
		domain.FailureContentCorruption,
		domain.FailureInvalidRecipient,
		domain.FailureMissingTemplate,
	} {
		if s.ShouldRetry(1, kind) {
			t.Errorf("kind %s must never be retried", kind)
		}
	}
}

func TestStrategy_BreakerGatesRetry(t *testing.T) {
	start := time.Now()
	fake := clocktesting.NewFakePassiveClock(start)
	cfg := DefaultConfig()
	cfg.MaxAttempts = 10
	cfg.Breaker = BreakerConfig{Threshold: 2, CoolDown: time.Minute}
	s := NewStrategy("op", cfg, fake)

	s.RecordAttempt(false)
	s.RecordAttempt(false)
	if s.ShouldRetry(3, domain.FailureNetworkTimeout) {
		t.Fatal("open breaker must deny retry")
	}

	fake.SetTime(start.Add(time.Minute))
	if !s.ShouldRetry(3, domain.FailureNetworkTimeout) {
		t.Fatal("half-open breaker should allow a probe")
	}
}

func TestStrategy_MetricsCounting(t *testing.T) {
	s := NewStrategy("send-email", DefaultConfig(), nil)

	s.RecordAttempt(false)
	s.AddDelay(time.Second)
	s.RecordAttempt(false)
	s.AddDelay(2 * time.Second)
	s.RecordAttempt(true)

	m := s.Metrics()
	if m.TotalAttempts != 3 {
		t.Errorf("total attempts = %d, want 3", m.TotalAttempts)
	}
	if m.SuccessfulAttempts != 1 {
		t.Errorf("successful attempts = %d, want 1", m.SuccessfulAttempts)
	}
	if m.FailedAttempts != 2 {
		t.Errorf("failed attempts = %d, want 2", m.FailedAttempts)
	}
	if m.TotalDelay != 3*time.Second {
		t.Errorf("total delay = %v, want 3s", m.TotalDelay)
	}
}
