package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/traystore/internal/config"
	"github.com/mamadbah2/traystore/internal/domain/models"
)

// ReportGenerator produces the daily reconciliation report.
type ReportGenerator interface {
	GenerateDailyReport(ctx context.Context) (models.ReconcileSummary, string, error)
}

// Notifier delivers the report to operators.
type Notifier interface {
	SendOutbound(ctx context.Context, req models.NotificationRequest) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reports  ReportGenerator
	notifier Notifier
	cfg      config.Config
	logger   *zap.Logger
}

// NewScheduler creates a new scheduler instance. notifier may be nil, in
// which case reports are only stored.
func NewScheduler(cfg config.Config, reports ReportGenerator, notifier Notifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	location, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", cfg.Reporting.Timezone, err)
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(location)),
		reports:  reports,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Start registers the daily report and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.Reporting.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.RunDailyReport); err != nil {
		return fmt.Errorf("schedule daily report %q: %w", s.cfg.Reporting.CronSchedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunDailyReport computes, stores and sends the reconciliation summary.
func (s *Scheduler) RunDailyReport() {
	s.logger.Info("generating daily reconcile report")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	_, message, err := s.reports.GenerateDailyReport(ctx)
	if err != nil {
		s.logger.Error("failed to generate daily report", zap.Error(err))
		return
	}

	if s.notifier == nil || !s.cfg.NotificationsEnabled() {
		s.logger.Info("daily report stored, notifications disabled")
		return
	}

	req := models.NotificationRequest{
		To:      s.cfg.WhatsApp.ReportRecipient,
		Message: message,
	}

	if err := s.notifier.SendOutbound(ctx, req); err != nil {
		s.logger.Error("failed to send daily report", zap.Error(err))
	} else {
		s.logger.Info("daily report sent successfully")
	}
}
