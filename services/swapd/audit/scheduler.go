package audit

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ayushsaklani-min/AutoXshift/services/swapd/storage"
)

// RunRecorder persists the outcome of each export.
type RunRecorder interface {
	RecordAuditRun(ctx context.Context, run storage.AuditRun) error
}

// SchedulerConfig controls periodic exports.
type SchedulerConfig struct {
	Schedule  string
	OutputDir string
	Format    string
	Window    time.Duration
}

// Scheduler runs exports on a cron schedule. Each run covers the Window
// ending at the trigger time.
type Scheduler struct {
	cfg      SchedulerConfig
	ledger   Ledger
	recorder RunRecorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewScheduler validates cfg and builds a scheduler.
func NewScheduler(cfg SchedulerConfig, ledger Ledger, recorder RunRecorder, logger *slog.Logger) (*Scheduler, error) {
	if ledger == nil {
		return nil, fmt.Errorf("audit: ledger required")
	}
	cfg.Format = NormalizeFormat(cfg.Format)
	if cfg.Format != FormatCSV && cfg.Format != FormatParquet {
		return nil, fmt.Errorf("audit: unsupported format %q", cfg.Format)
	}
	if cfg.Window <= 0 {
		cfg.Window = 24 * time.Hour
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "audit"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cfg: cfg, ledger: ledger, recorder: recorder, logger: logger, now: time.Now}, nil
}

// RunOnce exports the window ending now and records the run.
func (s *Scheduler) RunOnce(ctx context.Context) (storage.AuditRun, error) {
	started := s.now().UTC()
	from := started.Add(-s.cfg.Window)
	name := fmt.Sprintf("swaps-%s.%s", started.Format("20060102T150405Z"), s.cfg.Format)
	run := storage.AuditRun{
		Format:     s.cfg.Format,
		Path:       filepath.Join(s.cfg.OutputDir, name),
		WindowFrom: from,
		WindowTo:   started,
		StartedAt:  started,
	}
	records, err := Export(ctx, s.ledger, s.cfg.Format, run.Path, from, started)
	run.Records = records
	run.FinishedAt = s.now().UTC()
	if err != nil {
		run.Error = err.Error()
	}
	if s.recorder != nil {
		if recErr := s.recorder.RecordAuditRun(ctx, run); recErr != nil {
			s.logger.Warn("record audit run", "error", recErr)
		}
	}
	if err != nil {
		return run, err
	}
	s.logger.Info("audit export written", "path", run.Path, "records", records)
	return run, nil
}

// Run starts the cron loop and blocks until ctx is cancelled. An empty
// schedule disables periodic exports.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.cfg.Schedule == "" {
		<-ctx.Done()
		return ctx.Err()
	}
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("audit export failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("audit: invalid schedule %q: %w", s.cfg.Schedule, err)
	}
	c.Start()
	s.logger.Info("audit scheduler started", "schedule", s.cfg.Schedule, "format", s.cfg.Format)
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}
