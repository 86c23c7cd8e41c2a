// Package control wires the resilience subsystem together: storage, the
// retry coordinator and scheduler, the consistency validator, periodic
// jobs and the health server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ductran/recoverd/internal/core/config"
	"github.com/ductran/recoverd/internal/core/worker"
	"github.com/ductran/recoverd/internal/health"
	redisclient "github.com/ductran/recoverd/internal/infra/redis"
	"github.com/ductran/recoverd/internal/infra/storage"
	"github.com/ductran/recoverd/internal/infra/storage/memory"
	"github.com/ductran/recoverd/internal/infra/storage/postgres"
	"github.com/ductran/recoverd/internal/recovery/checkpoint"
	"github.com/ductran/recoverd/internal/recovery/classify"
	"github.com/ductran/recoverd/internal/recovery/consistency"
	"github.com/ductran/recoverd/internal/recovery/coordinator"
	"github.com/ductran/recoverd/internal/recovery/retry"
	"github.com/ductran/recoverd/internal/recovery/stats"
)

// Service is the composed subsystem with its background workers.
type Service struct {
	cfg *config.AppConfig

	db          *postgres.DB
	redisClient *redisclient.Client
	failures    storage.FailureRepository

	registry    *retry.Registry
	coordinator *coordinator.Coordinator
	scheduler   *coordinator.Scheduler
	checkpoints *checkpoint.Store
	validator   *consistency.Validator
	stats       *stats.Service

	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	cron         *cron.Cron

	log *slog.Logger
}

// NewService builds the service from configuration. With no database URL
// it falls back to in-memory storage; with no Redis URL corrections run
// without cross-process locks.
func NewService(cfg *config.AppConfig) (*Service, error) {
	log := slog.Default()

	var (
		db            *postgres.DB
		failureRepo   storage.FailureRepository
		checkpointRel storage.CheckpointRepository
		valLogRepo    storage.ValidationLogRepository
		statsRepo     storage.StatsRepository
		workflowStore storage.WorkflowStore
	)

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := db.Migrate(); err != nil {
			return nil, err
		}

		failureRepo = postgres.NewFailureRepo(db)
		checkpointRel = postgres.NewCheckpointRepo(db)
		valLogRepo = postgres.NewValidationLogRepo(db)
		statsRepo = postgres.NewStatsRepo(db)
		workflowStore = postgres.NewWorkflowRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		store := memory.NewStore()
		failureRepo = memory.NewFailureRepo(store)
		checkpointRel = memory.NewCheckpointRepo(store)
		valLogRepo = memory.NewValidationLogRepo(store)
		statsRepo = memory.NewStatsRepo(store)
		workflowStore = memory.NewWorkflowRepo(store)
		log.Info("Using Memory storage")
	}

	var redisClient *redisclient.Client
	var locker consistency.Locker
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, correction locks disabled", "error", err)
		} else {
			locker = redisClient
		}
	}

	registry := retry.NewRegistry(nil)
	for name, opCfg := range cfg.Operations {
		registry.Register(name, opCfg)
		log.Info("Registered operation strategy", "operation", name)
	}

	coord := coordinator.New(registry, classify.New(), failureRepo, statsRepo, nil, log)
	workers := cfg.Scheduler.Workers
	sched := coordinator.NewScheduler(coord, workers)

	validator := consistency.New(workflowStore, valLogRepo, locker, cfg.Validation.Checks, nil, log)
	statsSvc := stats.NewService(statsRepo, nil)

	var pinger health.Pinger
	if db != nil {
		pinger = db
	}
	healthMon := health.NewMonitor(registry, failureRepo, pinger)
	healthServer := health.NewServer(healthMon, statsSvc, cfg.Server.Port)

	svc := &Service{
		cfg:          cfg,
		db:           db,
		redisClient:  redisClient,
		failures:     failureRepo,
		registry:     registry,
		coordinator:  coord,
		scheduler:    sched,
		checkpoints:  checkpoint.NewStore(checkpointRel, nil),
		validator:    validator,
		stats:        statsSvc,
		pruner:       worker.NewPruner(cfg.Retention, failureRepo, valLogRepo, log),
		healthMon:    healthMon,
		healthServer: healthServer,
		cron:         cron.New(),
		log:          log,
	}

	if err := svc.scheduleJobs(); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) scheduleJobs() error {
	if spec := s.cfg.Validation.Schedule; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.runValidation); err != nil {
			return fmt.Errorf("invalid validation schedule %q: %w", spec, err)
		}
	}
	if spec := s.cfg.Validation.RollupSchedule; spec != "" {
		if _, err := s.cron.AddFunc(spec, s.runRollup); err != nil {
			return fmt.Errorf("invalid rollup schedule %q: %w", spec, err)
		}
	}
	return nil
}

func (s *Service) runValidation() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := s.validator.Validate(ctx)
	if err != nil {
		s.log.Error("Scheduled validation failed", "error", err)
		return
	}
	s.healthMon.RecordValidation(report.Status, report.FinishedAt)
}

func (s *Service) runRollup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	summary, err := s.stats.Statistics(ctx, 1)
	if err != nil {
		s.log.Error("Daily recovery rollup failed", "error", err)
		return
	}
	s.log.Info("Daily recovery rollup",
		"failures", summary.TotalFailures,
		"recovered", summary.Recovered,
		"recovery_rate", summary.RecoveryRate,
		"avg_recovery_time", summary.AvgRecoveryTime)
}

// Start starts the service and all its background components.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}

	s.scheduler.Start(ctx)
	go s.pruner.Start(ctx)
	s.cron.Start()

	s.log.Info("Service started", "port", s.cfg.Server.Port)
	return nil
}

// Stop stops the service. The passed context bounds the shutdown.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	s.scheduler.Wait()

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		defer s.db.Close()
	}

	return s.healthServer.Stop(ctx)
}

// Coordinator exposes the retry coordinator for embedding callers.
func (s *Service) Coordinator() *coordinator.Coordinator { return s.coordinator }

// Scheduler exposes the non-blocking retry scheduler.
func (s *Service) Scheduler() *coordinator.Scheduler { return s.scheduler }

// Checkpoints exposes the checkpoint store.
func (s *Service) Checkpoints() *checkpoint.Store { return s.checkpoints }

// Validator exposes the consistency validator.
func (s *Service) Validator() *consistency.Validator { return s.validator }

// Stats exposes the recovery statistics service.
func (s *Service) Stats() *stats.Service { return s.stats }

// Registry exposes the per-operation strategy registry.
func (s *Service) Registry() *retry.Registry { return s.registry }
