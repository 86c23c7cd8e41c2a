// Package coordinator is the single entry point callers use to run an
// operation under classification, retry and circuit breaking, with every
// failure durably logged.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
	"github.com/ductran/recoverd/internal/metrics"
	"github.com/ductran/recoverd/internal/recovery/classify"
	"github.com/ductran/recoverd/internal/recovery/retry"
)

// hardAttemptCeiling bounds every execution regardless of how generous a
// per-operation strategy is configured.
const hardAttemptCeiling = 5

// ErrCircuitOpen is returned when an operation's breaker refuses the call
// outright, before the operation is invoked.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Operation is the caller-supplied callable. It must be idempotent or
// guarded by the caller: the coordinator repeats it verbatim and never
// inspects its side effects.
type Operation func(ctx context.Context) (any, error)

// Coordinator wraps operation execution with recovery. Safe for concurrent
// use; contention is confined to callers of the same operation name.
type Coordinator struct {
	registry   *retry.Registry
	classifier *classify.Classifier
	failures   storage.FailureRepository
	stats      storage.StatsRepository
	clock      clock.Clock
	log        *slog.Logger
}

// New creates a coordinator. failures and stats may be nil, which disables
// durable failure logging (useful in tests); clock nil falls back to real
// time; log nil falls back to slog.Default.
func New(
	registry *retry.Registry,
	classifier *classify.Classifier,
	failures storage.FailureRepository,
	stats storage.StatsRepository,
	c clock.Clock,
	log *slog.Logger,
) *Coordinator {
	if c == nil {
		c = clock.RealClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		registry:   registry,
		classifier: classifier,
		failures:   failures,
		stats:      stats,
		clock:      c,
		log:        log,
	}
}

// invocation carries the mutable state of one Execute call across attempts.
type invocation struct {
	name       string
	workflowID string
	op         Operation
	attempt    int
	record     *domain.FailureRecord
	firstFail  time.Time
}

// Execute runs op under the named strategy, blocking through backoff waits.
// On exhausted or denied retries the original error is returned unchanged;
// the terminal failure is logged durably first. The context is honored both
// between attempts and during backoff waits.
func (c *Coordinator) Execute(ctx context.Context, name, workflowID string, op Operation) (any, error) {
	inv := &invocation{name: name, workflowID: workflowID, op: op}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		value, retryIn, done, err := c.step(ctx, inv)
		if done {
			return value, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(retryIn):
		}
	}
}

// step runs exactly one attempt. done=false means a retry was granted and
// should happen after retryIn. The scheduler reuses this to re-queue
// retries instead of blocking.
func (c *Coordinator) step(ctx context.Context, inv *invocation) (value any, retryIn time.Duration, done bool, err error) {
	strategy := c.strategyFor(inv.name)
	if !strategy.Allow() {
		metrics.AttemptsTotal.WithLabelValues(inv.name, "refused").Inc()
		return nil, 0, true, fmt.Errorf("operation %s: %w", inv.name, ErrCircuitOpen)
	}
	inv.attempt++

	value, opErr := inv.op(ctx)
	if opErr == nil {
		c.recordSuccess(ctx, inv, strategy)
		return value, 0, true, nil
	}

	kind := c.classifier.Classify(opErr)
	// The first classified failure of an unregistered operation picks the
	// strategy defaults of its failure class.
	strategy = c.registry.AdoptKindDefaults(inv.name, kind)
	c.recordFailure(ctx, inv, kind, opErr)
	strategy.RecordAttempt(false)
	metrics.AttemptsTotal.WithLabelValues(inv.name, "failure").Inc()
	metrics.FailuresTotal.WithLabelValues(inv.name, kind.String()).Inc()
	metrics.BreakerState.WithLabelValues(inv.name).Set(float64(strategy.BreakerState()))

	if inv.attempt >= hardAttemptCeiling || !strategy.ShouldRetry(inv.attempt, kind) {
		c.recordTerminal(ctx, inv, kind)
		metrics.RetriesExhaustedTotal.WithLabelValues(inv.name, kind.String()).Inc()
		c.log.Error("operation failed permanently",
			"operation", inv.name,
			"workflow_id", inv.workflowID,
			"kind", kind.String(),
			"attempts", inv.attempt,
			"error", opErr)
		return nil, 0, true, opErr
	}

	delay := strategy.Delay(inv.attempt)
	strategy.AddDelay(delay)
	metrics.RetryDelay.WithLabelValues(inv.name).Observe(delay.Seconds())
	c.log.Warn("operation failed, retrying",
		"operation", inv.name,
		"workflow_id", inv.workflowID,
		"kind", kind.String(),
		"attempt", inv.attempt,
		"delay", delay,
		"error", opErr)
	return nil, delay, false, nil
}

func (c *Coordinator) strategyFor(name string) *retry.Strategy {
	return c.registry.GetOrCreate(name, retry.DefaultConfig())
}

func (c *Coordinator) recordSuccess(ctx context.Context, inv *invocation, strategy *retry.Strategy) {
	strategy.RecordAttempt(true)
	metrics.AttemptsTotal.WithLabelValues(inv.name, "success").Inc()
	metrics.BreakerState.WithLabelValues(inv.name).Set(float64(strategy.BreakerState()))

	if inv.record == nil {
		return
	}

	now := c.clock.Now()
	inv.record.Resolved = true
	inv.record.ResolvedAt = &now
	if c.failures != nil {
		if err := c.failures.Update(ctx, inv.record); err != nil {
			c.log.Warn("failed to mark failure resolved", "failure_id", inv.record.ID, "error", err)
		}
	}
	if c.stats != nil {
		recoveryTime := now.Sub(inv.firstFail)
		if err := c.stats.RecordOutcome(ctx, now, inv.record.Kind, true, recoveryTime); err != nil {
			c.log.Warn("failed to record recovery statistics", "error", err)
		}
	}

	c.log.Info("operation recovered",
		"operation", inv.name,
		"workflow_id", inv.workflowID,
		"attempts", inv.attempt)
}

func (c *Coordinator) recordFailure(ctx context.Context, inv *invocation, kind domain.FailureKind, opErr error) {
	now := c.clock.Now()

	if inv.record == nil {
		inv.firstFail = now
		inv.record = &domain.FailureRecord{
			ID:            uuid.New().String(),
			Kind:          kind,
			OperationName: inv.name,
			WorkflowID:    inv.workflowID,
			Message:       opErr.Error(),
			Context:       map[string]any{"attempt": inv.attempt},
			Attempts:      inv.attempt,
			CreatedAt:     now,
		}
		if c.failures != nil {
			if err := c.failures.Add(ctx, inv.record); err != nil {
				c.log.Warn("failed to persist failure record", "operation", inv.name, "error", err)
			}
		}
		return
	}

	inv.record.Kind = kind
	inv.record.Message = opErr.Error()
	inv.record.Attempts = inv.attempt
	inv.record.Context["attempt"] = inv.attempt
	if c.failures != nil {
		if err := c.failures.Update(ctx, inv.record); err != nil {
			c.log.Warn("failed to update failure record", "failure_id", inv.record.ID, "error", err)
		}
	}
}

func (c *Coordinator) recordTerminal(ctx context.Context, inv *invocation, kind domain.FailureKind) {
	if c.stats == nil {
		return
	}
	if err := c.stats.RecordOutcome(ctx, c.clock.Now(), kind, false, 0); err != nil {
		c.log.Warn("failed to record recovery statistics", "error", err)
	}
}
