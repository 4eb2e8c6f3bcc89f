package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/sitecost/internal/config"
	"github.com/mamadbah2/sitecost/internal/domain/models"
)

const jobTimeout = 2 * time.Minute

// Reporter is the reporting work run on a schedule.
type Reporter interface {
	Snapshot(ctx context.Context) (models.DashboardSnapshot, error)
	ExportToSheet(ctx context.Context) (int, error)
	SendWeeklySummary(ctx context.Context) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reporter Reporter
	cfg      config.ReportingConfig
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler running in the configured timezone.
func NewScheduler(cfg config.ReportingConfig, reporter Reporter, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	// standard five field cron expressions
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:     c,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Register adds the nightly report job and the weekly summary job.
func (s *Scheduler) Register() error {
	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.nightlyReport); err != nil {
		return fmt.Errorf("schedule nightly report %q: %w", s.cfg.CronSchedule, err)
	}
	if _, err := s.cron.AddFunc(s.cfg.SummaryCronSchedule, s.weeklySummary); err != nil {
		return fmt.Errorf("schedule weekly summary %q: %w", s.cfg.SummaryCronSchedule, err)
	}
	return nil
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler",
		zap.String("report_schedule", s.cfg.CronSchedule),
		zap.String("summary_schedule", s.cfg.SummaryCronSchedule),
		zap.String("timezone", s.cfg.Timezone))
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) nightlyReport() {
	s.logger.Info("running nightly report")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := s.reporter.Snapshot(ctx); err != nil {
		s.logger.Error("failed to save dashboard snapshot", zap.Error(err))
	}
	if n, err := s.reporter.ExportToSheet(ctx); err != nil {
		s.logger.Error("failed to export entries", zap.Error(err))
	} else {
		s.logger.Info("nightly report done", zap.Int("exported_entries", n))
	}
}

func (s *Scheduler) weeklySummary() {
	s.logger.Info("sending weekly summary")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.reporter.SendWeeklySummary(ctx); err != nil {
		s.logger.Error("failed to send weekly summary", zap.Error(err))
	}
}
