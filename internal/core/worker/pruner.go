package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/ductran/recoverd/internal/core/config"
	"github.com/ductran/recoverd/internal/infra/storage"
)

// Pruner deletes old resolved failures and validation log rows based on
// retention policy. Checkpoints are never pruned.
type Pruner struct {
	cfg      config.RetentionConfig
	failures storage.FailureRepository
	valLog   storage.ValidationLogRepository
	log      *slog.Logger
}

// NewPruner creates a new Pruner worker. Either repository may be nil.
func NewPruner(
	cfg config.RetentionConfig,
	failures storage.FailureRepository,
	valLog storage.ValidationLogRepository,
	log *slog.Logger,
) *Pruner {
	if log == nil {
		log = slog.Default()
	}
	return &Pruner{
		cfg:      cfg,
		failures: failures,
		valLog:   valLog,
		log:      log.With("component", "pruner"),
	}
}

// Start runs the pruner loop until the context is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	interval := p.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	now := time.Now()

	if p.failures != nil && p.cfg.ResolvedFailures > 0 {
		cutoff := now.Add(-p.cfg.ResolvedFailures)
		removed, err := p.failures.DeleteResolvedBefore(ctx, cutoff)
		if err != nil {
			p.log.Error("failed to prune resolved failures", "error", err)
		} else if removed > 0 {
			p.log.Info("pruned resolved failures", "count", removed)
		}
	}

	if p.valLog != nil && p.cfg.ValidationLogs > 0 {
		cutoff := now.Add(-p.cfg.ValidationLogs)
		removed, err := p.valLog.DeleteBefore(ctx, cutoff)
		if err != nil {
			p.log.Error("failed to prune validation log", "error", err)
		} else if removed > 0 {
			p.log.Info("pruned validation log rows", "count", removed)
		}
	}
}
