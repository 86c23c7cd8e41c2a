package control

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ductran/recoverd/internal/core/config"
	"github.com/ductran/recoverd/internal/recovery/retry"
)

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Scheduler:  config.SchedulerConfig{Workers: 1},
		Validation: config.ValidationConfig{Schedule: "@every 1h", RollupSchedule: "@every 24h"},
		Operations: map[string]retry.Config{
			"send-email": {
				BaseDelay:   time.Millisecond,
				MaxAttempts: 3,
			},
		},
	}
}

func TestNewServiceMemoryMode(t *testing.T) {
	svc, err := NewService(testConfig())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	if svc.db != nil {
		t.Fatal("expected no database in memory mode")
	}
	if got := svc.Registry().Get("send-email"); got == nil {
		t.Fatal("configured operation strategy not registered")
	}
}

func TestServiceExecuteRecovers(t *testing.T) {
	svc, err := NewService(testConfig())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	calls := 0
	value, err := svc.Coordinator().Execute(context.Background(), "send-email", "wf-1", func(ctx context.Context) (any, error) {
		calls++
		if calls < 2 {
			return nil, errors.New("connection timed out")
		}
		return "sent", nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if value != "sent" || calls != 2 {
		t.Fatalf("value = %v, calls = %d", value, calls)
	}
}

func TestServiceValidation(t *testing.T) {
	svc, err := NewService(testConfig())
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}

	report, err := svc.Validator().Validate(context.Background())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(report.Issues) != 0 {
		t.Fatalf("expected a clean empty store, got %+v", report.Issues)
	}
}

func TestServiceInvalidSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Validation.Schedule = "not a cron spec"
	if _, err := NewService(cfg); err == nil {
		t.Fatal("expected an error for an invalid schedule")
	}
}
