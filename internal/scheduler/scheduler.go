package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/greenconsole/internal/config"
)

const jobTimeout = 2 * time.Minute

// Cleaner evicts expired cache entries.
type Cleaner interface {
	Cleanup(ctx context.Context) (int, error)
}

// Reporter summarizes the call journal.
type Reporter interface {
	WeeklySummary(ctx context.Context, now time.Time) (string, error)
}

// Notifier delivers a text message to a phone number.
type Notifier interface {
	Notify(ctx context.Context, phone, text string) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	cleaner  Cleaner
	reporter Reporter
	notifier Notifier
	cfg      config.Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. reporter and notifier may be nil;
// the weekly report only runs with a reporter.
func NewScheduler(cfg config.Config, cleaner Cleaner, reporter Reporter, notifier Notifier, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	// Standard five-field parser: minute, hour, day of month, month, day of week.
	c := cron.New()

	return &Scheduler{
		cron:     c,
		cleaner:  cleaner,
		reporter: reporter,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("cleanup_schedule", s.cfg.Cache.CleanupSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Cache.CleanupSchedule, s.runCleanup); err != nil {
		return fmt.Errorf("schedule cache cleanup %q: %w", s.cfg.Cache.CleanupSchedule, err)
	}

	if s.reporter != nil {
		if _, err := s.cron.AddFunc(s.cfg.Sheets.ReportSchedule, s.sendWeeklyReport); err != nil {
			return fmt.Errorf("schedule weekly report %q: %w", s.cfg.Sheets.ReportSchedule, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	evicted, err := s.cleaner.Cleanup(ctx)
	if err != nil {
		s.logger.Error("cache cleanup failed", zap.Error(err))
		return
	}
	s.logger.Info("cache cleanup completed", zap.Int("evicted", evicted))
}

func (s *Scheduler) sendWeeklyReport() {
	s.logger.Info("generating weekly report")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	summary, err := s.reporter.WeeklySummary(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to generate weekly report", zap.Error(err))
		return
	}
	s.logger.Info("weekly report generated", zap.String("summary", summary))

	phone := s.cfg.Sheets.ReportPhone
	if phone == "" || s.notifier == nil {
		return
	}

	if err := s.notifier.Notify(ctx, phone, summary); err != nil {
		s.logger.Error("failed to send weekly report", zap.Error(err))
	} else {
		s.logger.Info("weekly report sent successfully")
	}
}
