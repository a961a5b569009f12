package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

const jobTimeout = 2 * time.Minute

// TokenSweeper expires stale exit tokens.
type TokenSweeper interface {
	ExpireStale(ctx context.Context) (int, error)
}

// DailyReporter archives one day of sales.
type DailyReporter interface {
	RunDailyReport(ctx context.Context, day time.Time) (models.DailyReport, error)
}

// Config holds the cron expressions and the timezone they are evaluated in.
type Config struct {
	ExpirySweepSchedule string
	ReportSchedule      string
	Location            *time.Location
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  TokenSweeper
	reporter DailyReporter
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg Config, sweeper TokenSweeper, reporter DailyReporter, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	// Standard 5-field parser plus descriptors such as "@every 1m".
	c := cron.New(cron.WithLocation(cfg.Location))

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the scheduler. An invalid expression is
// returned before anything runs.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("expiry_sweep", s.cfg.ExpirySweepSchedule),
		zap.String("daily_report", s.cfg.ReportSchedule),
	)

	if s.sweeper != nil && s.cfg.ExpirySweepSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.ExpirySweepSchedule, s.sweepTokens); err != nil {
			return fmt.Errorf("schedule expiry sweep: %w", err)
		}
	}
	if s.reporter != nil && s.cfg.ReportSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.ReportSchedule, s.dailyReport); err != nil {
			return fmt.Errorf("schedule daily report: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sweepTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := s.sweeper.ExpireStale(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("expiry sweep finished", zap.Int("expired", n))
}

func (s *Scheduler) dailyReport() {
	s.logger.Info("generating daily report")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	report, err := s.reporter.RunDailyReport(ctx, s.now().In(s.cfg.Location))
	if err != nil {
		s.logger.Error("failed to generate daily report", zap.Error(err))
		return
	}
	s.logger.Info("daily report generated", zap.Int("sales", report.SalesCount))
}
