// Package consistency validates the cross-record invariants of the workflow
// tables and applies bounded, audited corrections for the violations it
// knows how to repair.
package consistency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/ductran/recoverd/internal/core/domain"
	"github.com/ductran/recoverd/internal/infra/storage"
	"github.com/ductran/recoverd/internal/metrics"
)

// Locker serializes corrections across validator processes. A nil Locker
// runs lock-free, suitable for single-process deployments and tests.
type Locker interface {
	AcquireCorrectionLock(ctx context.Context, kind string, recordIDs []string, ttl time.Duration) (bool, error)
	ReleaseCorrectionLock(ctx context.Context, kind string, recordIDs []string) error
}

// Config tunes the time-based checks and correction locking.
type Config struct {
	// DocumentGrace is how long an analyzed application may sit without
	// documents before that counts as an issue.
	DocumentGrace time.Duration `yaml:"document_grace"`

	// StallTimeout is how long an application may wait for analysis.
	StallTimeout time.Duration `yaml:"stall_timeout"`

	// RetentionWindow is the age past which an application with no
	// activity is reported as stale.
	RetentionWindow time.Duration `yaml:"retention_window"`

	// LockTTL bounds how long a correction lock is held if the holder
	// dies mid-repair.
	LockTTL time.Duration `yaml:"lock_ttl"`

	// AutoCorrect enables applying corrections; when false every run is
	// report-only.
	AutoCorrect bool `yaml:"auto_correct"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DocumentGrace:   30 * time.Minute,
		StallTimeout:    2 * time.Hour,
		RetentionWindow: 90 * 24 * time.Hour,
		LockTTL:         5 * time.Minute,
		AutoCorrect:     true,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.DocumentGrace <= 0 {
		c.DocumentGrace = def.DocumentGrace
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = def.StallTimeout
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = def.RetentionWindow
	}
	if c.LockTTL <= 0 {
		c.LockTTL = def.LockTTL
	}
	return c
}

// Validator runs consistency checks over a snapshot of the workflow tables
// and repairs what it can.
type Validator struct {
	store       storage.WorkflowStore
	logRepo     storage.ValidationLogRepository
	locker      Locker
	cfg         Config
	checks      []check
	corrections map[domain.IssueKind]correction
	clock       clock.PassiveClock
	log         *slog.Logger
}

// New builds a Validator. logRepo, locker, clk and log may be nil.
func New(store storage.WorkflowStore, logRepo storage.ValidationLogRepository, locker Locker, cfg Config, clk clock.PassiveClock, log *slog.Logger) *Validator {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Validator{
		store:       store,
		logRepo:     logRepo,
		locker:      locker,
		cfg:         cfg.withDefaults(),
		checks:      allChecks(),
		corrections: corrections(),
		clock:       clk,
		log:         log.With("component", "consistency"),
	}
}

// Validate runs every check over all workflows.
func (v *Validator) Validate(ctx context.Context) (*domain.ValidationReport, error) {
	return v.ValidateWorkflow(ctx, "")
}

// ValidateWorkflow runs every check scoped to one workflow. Orphan and
// dangling checks still see children of missing parents regardless of
// scope, since those rows belong to no workflow anymore. An empty
// workflowID validates everything.
func (v *Validator) ValidateWorkflow(ctx context.Context, workflowID string) (*domain.ValidationReport, error) {
	started := v.clock.Now()
	runID := uuid.NewString()

	snap, err := v.load(ctx, workflowID)
	if err != nil {
		metrics.ValidationRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load workflow snapshot: %w", err)
	}

	var issues []domain.ConsistencyIssue
	for _, chk := range v.checks {
		if err := ctx.Err(); err != nil {
			metrics.ValidationRuns.WithLabelValues("error").Inc()
			return nil, err
		}
		issues = append(issues, chk(started, v.cfg, snap)...)
	}
	for _, iss := range issues {
		metrics.IssuesFound.WithLabelValues(string(iss.Kind), string(iss.Severity)).Inc()
	}

	var applied []domain.CorrectionRecord
	corrected := make([]bool, len(issues))
	if v.cfg.AutoCorrect {
		for i, iss := range issues {
			if !iss.Correctable {
				continue
			}
			fix, ok := v.corrections[iss.Kind]
			if !ok {
				continue
			}
			rec, err := v.apply(ctx, runID, iss, fix, snap)
			if rec != nil {
				applied = append(applied, *rec)
				corrected[i] = rec.Success
			}
			if err != nil {
				v.log.Error("correction failed",
					"run_id", runID,
					"issue", string(iss.Kind),
					"records", len(iss.RecordIDs),
					"error", err)
			}
		}
	}

	if v.logRepo != nil && len(issues) > 0 {
		entries := make([]domain.ValidationLogEntry, 0, len(issues))
		for i, iss := range issues {
			entries = append(entries, domain.ValidationLogEntry{
				RunID:         runID,
				Kind:          iss.Kind,
				Severity:      iss.Severity,
				Description:   iss.Description,
				AffectedCount: len(iss.RecordIDs),
				Correctable:   iss.Correctable,
				Corrected:     corrected[i],
				CreatedAt:     started,
			})
		}
		if err := v.logRepo.Add(ctx, entries); err != nil {
			v.log.Error("persisting validation log failed", "run_id", runID, "error", err)
		}
	}

	report := &domain.ValidationReport{
		RunID:       runID,
		WorkflowID:  workflowID,
		Issues:      issues,
		Corrections: applied,
		Status:      domain.DeriveHealth(issues),
		StartedAt:   started,
		FinishedAt:  v.clock.Now(),
	}
	metrics.ValidationRuns.WithLabelValues(string(report.Status)).Inc()
	v.log.Info("validation run finished",
		"run_id", runID,
		"workflow_id", workflowID,
		"issues", len(issues),
		"corrections", len(applied),
		"status", string(report.Status))
	return report, nil
}

// load reads the four workflow tables and scopes them. The application
// index always covers every application so parent-existence checks never
// produce false orphans under a workflow scope.
func (v *Validator) load(ctx context.Context, workflowID string) (*snapshot, error) {
	apps, err := v.store.Applications(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := v.store.Documents(ctx)
	if err != nil {
		return nil, err
	}
	notifs, err := v.store.Notifications(ctx)
	if err != nil {
		return nil, err
	}
	analyses, err := v.store.AnalysisResults(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Application, len(apps))
	for _, app := range apps {
		byID[app.ID] = app
	}

	s := &snapshot{appByID: byID}
	if workflowID == "" {
		s.apps, s.docs, s.notifs, s.analyses = apps, docs, notifs, analyses
		return s, nil
	}

	scoped := make(map[string]bool)
	for _, app := range apps {
		if app.WorkflowID == workflowID {
			s.apps = append(s.apps, app)
			scoped[app.ID] = true
		}
	}
	// A child is in scope when its parent is, or when its parent is gone
	// entirely.
	inScope := func(appID string) bool {
		if scoped[appID] {
			return true
		}
		_, exists := byID[appID]
		return !exists
	}
	for _, d := range docs {
		if inScope(d.ApplicationID) {
			s.docs = append(s.docs, d)
		}
	}
	for _, n := range notifs {
		if inScope(n.ApplicationID) {
			s.notifs = append(s.notifs, n)
		}
	}
	for _, a := range analyses {
		if inScope(a.ApplicationID) {
			s.analyses = append(s.analyses, a)
		}
	}
	return s, nil
}

// apply runs one correction in its own transactional unit, guarded by the
// cross-process lock when configured. The corrective writes and the audit
// row commit together; when the repair fails, the failure is still audited
// through a separate unit after rollback.
func (v *Validator) apply(ctx context.Context, runID string, iss domain.ConsistencyIssue, fix correction, snap *snapshot) (*domain.CorrectionRecord, error) {
	if v.locker != nil {
		held, err := v.locker.AcquireCorrectionLock(ctx, string(iss.Kind), iss.RecordIDs, v.cfg.LockTTL)
		if err != nil {
			return nil, fmt.Errorf("acquire correction lock: %w", err)
		}
		if !held {
			v.log.Info("correction held elsewhere, skipping",
				"run_id", runID, "issue", string(iss.Kind))
			metrics.CorrectionsTotal.WithLabelValues(string(iss.Kind), "skipped").Inc()
			return nil, nil
		}
		defer func() {
			if err := v.locker.ReleaseCorrectionLock(ctx, string(iss.Kind), iss.RecordIDs); err != nil {
				v.log.Warn("releasing correction lock failed",
					"issue", string(iss.Kind), "error", err)
			}
		}()
	}

	now := v.clock.Now()
	unit, err := v.store.BeginCorrection(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin correction: %w", err)
	}

	table, action, fixErr := fix(ctx, now, unit, iss, snap)
	rec := &domain.CorrectionRecord{
		RunID:     runID,
		Kind:      iss.Kind,
		TableName: table,
		RecordIDs: iss.RecordIDs,
		Action:    action,
		Success:   fixErr == nil,
		AppliedAt: now,
	}

	if fixErr != nil {
		_ = unit.Rollback()
		metrics.CorrectionsTotal.WithLabelValues(string(iss.Kind), "failure").Inc()
		v.audit(ctx, rec)
		return rec, fixErr
	}

	if err := unit.AddCorrection(ctx, rec); err != nil {
		_ = unit.Rollback()
		metrics.CorrectionsTotal.WithLabelValues(string(iss.Kind), "failure").Inc()
		rec.Success = false
		return rec, fmt.Errorf("record correction: %w", err)
	}
	if err := unit.Commit(); err != nil {
		metrics.CorrectionsTotal.WithLabelValues(string(iss.Kind), "failure").Inc()
		rec.Success = false
		return rec, fmt.Errorf("commit correction: %w", err)
	}

	metrics.CorrectionsTotal.WithLabelValues(string(iss.Kind), "success").Inc()
	v.log.Info("correction applied",
		"run_id", runID,
		"issue", string(iss.Kind),
		"table", table,
		"records", len(iss.RecordIDs))
	return rec, nil
}

// audit records a failed correction in its own unit, after the failed one
// rolled back.
func (v *Validator) audit(ctx context.Context, rec *domain.CorrectionRecord) {
	unit, err := v.store.BeginCorrection(ctx)
	if err != nil {
		v.log.Error("auditing failed correction", "error", err)
		return
	}
	if err := unit.AddCorrection(ctx, rec); err != nil {
		_ = unit.Rollback()
		v.log.Error("auditing failed correction", "error", err)
		return
	}
	if err := unit.Commit(); err != nil {
		v.log.Error("auditing failed correction", "error", err)
	}
}
