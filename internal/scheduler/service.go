package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Sweeper runs a moderation sweep over the content pool
type Sweeper interface {
	RunSweep(ctx context.Context, period string) (*models.ModerationReport, error)
}

// CachePurger drops memoized recommendation results
type CachePurger interface {
	PurgeCache() int
}

const (
	hourlySpec     = "0 0 * * * *"
	dailySpec      = "0 0 6 * * *"
	cachePurgeSpec = "0 */30 * * * *"
)

// Service handles scheduling of moderation sweeps and cache invalidation
type Service struct {
	config  *config.Config
	sweeper Sweeper
	purger  CachePurger
	cron    *cron.Cron
}

// NewService creates a new scheduler service. Jobs run in the configured time zone.
func NewService(cfg *config.Config, sweeper Sweeper, purger CachePurger) *Service {
	location, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		logrus.Warnf("Unknown time zone %q, scheduling in UTC: %v", cfg.TimeZone, err)
		location = time.UTC
	}

	return &Service{
		config:  cfg,
		sweeper: sweeper,
		purger:  purger,
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(location)),
	}
}

// SweepSpec returns the cron expression for the configured moderation schedule
func SweepSpec(schedule string) string {
	if schedule == "hourly" {
		return hourlySpec
	}
	return dailySpec
}

// Start registers the jobs and starts the cron runner
func (s *Service) Start() error {
	if err := s.register(); err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s moderation sweeps (plus cache purge every 30 minutes)", s.config.ModerationSchedule)
	return nil
}

func (s *Service) register() error {
	if s.sweeper != nil {
		period := s.config.ModerationSchedule
		if _, err := s.cron.AddFunc(SweepSpec(period), func() { s.runSweep(period) }); err != nil {
			return fmt.Errorf("failed to schedule moderation sweep: %w", err)
		}
	}

	if s.purger != nil {
		if _, err := s.cron.AddFunc(cachePurgeSpec, s.purgeCache); err != nil {
			return fmt.Errorf("failed to schedule cache purge: %w", err)
		}
	}

	return nil
}

func (s *Service) runSweep(period string) {
	logrus.Infof("Starting scheduled %s moderation sweep", period)
	report, err := s.sweeper.RunSweep(context.Background(), period)
	if err != nil {
		logrus.Errorf("Scheduled moderation sweep failed: %v", err)
		return
	}
	logrus.WithFields(logrus.Fields{
		"reviewed": report.Reviewed,
		"rejected": len(report.Rejected),
	}).Info("Scheduled moderation sweep completed")
}

func (s *Service) purgeCache() {
	purged := s.purger.PurgeCache()
	logrus.Debugf("Purged %d cached recommendation results", purged)
}

// Entries reports the number of registered jobs
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
