package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/metrics"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/greattalk/feed-recommender/internal/notifications"
	"github.com/greattalk/feed-recommender/internal/sources"
	"github.com/greattalk/feed-recommender/internal/storage"
	"github.com/sirupsen/logrus"
)

const maxAlertsPerSweep = 10

// Service runs moderation sweeps over the content pool
type Service struct {
	config              *config.Config
	content             sources.ContentProvider
	storage             storage.StorageInterface
	notificationService notifications.NotificationInterface
	evaluator           *Evaluator
	collector           *metrics.Collector
	metrics             *Metrics
	now                 func() time.Time
	mu                  sync.RWMutex
}

// Metrics holds moderation sweep metrics
type Metrics struct {
	Sweeps          int            `json:"sweeps"`
	LastRun         time.Time      `json:"last_run"`
	LastRunDuration string         `json:"last_run_duration"`
	LastReviewed    int            `json:"last_reviewed"`
	LastRejected    int            `json:"last_rejected"`
	FlagBreakdown   map[string]int `json:"flag_breakdown"`
	AlertsSent      int            `json:"alerts_sent"`
	ErrorCount      int            `json:"error_count"`
}

// NewService creates a new moderation service
func NewService(cfg *config.Config, content sources.ContentProvider, storage storage.StorageInterface,
	notificationService notifications.NotificationInterface, evaluator *Evaluator, collector *metrics.Collector) *Service {
	return &Service{
		config:              cfg,
		content:             content,
		storage:             storage,
		notificationService: notificationService,
		evaluator:           evaluator,
		collector:           collector,
		metrics: &Metrics{
			FlagBreakdown: make(map[string]int),
		},
		now: time.Now,
	}
}

// Evaluate moderates a single post and records the outcome
func (s *Service) Evaluate(item models.ContentItem) Result {
	result := s.evaluator.Evaluate(item)
	s.collector.ObserveModeration(result.IsApproved)
	return result
}

// RunSweep moderates the current content pool, raises an alert for each unsafe
// post, archives the report and sends the digest. A failed archive is returned
// after the alerts and digest have gone out.
func (s *Service) RunSweep(ctx context.Context, period string) (*models.ModerationReport, error) {
	start := s.now()
	logrus.WithField("period", period).Info("Starting moderation sweep")

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	items, err := s.content.ListContent(ctx, s.config.PoolSize)
	if err != nil {
		s.collector.ProviderError("content")
		s.recordError()
		return nil, fmt.Errorf("failed to fetch content pool: %w", err)
	}
	logrus.Infof("Fetched %d posts for moderation", len(items))

	report := s.evaluator.Sweep(items, period, start)
	for i := 0; i < len(items)-len(report.Rejected); i++ {
		s.collector.ObserveModeration(true)
	}
	for range report.Rejected {
		s.collector.ObserveModeration(false)
	}

	alerts := s.sendAlerts(report)
	s.updateMetrics(report, s.now().Sub(start), alerts)

	storeErr := s.storeReport(ctx, report)
	if storeErr != nil {
		logrus.Errorf("Failed to store moderation report: %v", storeErr)
		s.recordError()
		storeErr = fmt.Errorf("failed to archive moderation report: %w", storeErr)
	}

	if s.notificationService != nil && s.config.NotificationsEnabled() {
		if err := s.notificationService.SendReport(report); err != nil {
			logrus.Errorf("Failed to send moderation digest: %v", err)
			s.recordError()
			return report, errors.Join(storeErr, err)
		}
	}
	if storeErr != nil {
		return report, storeErr
	}

	logrus.WithFields(logrus.Fields{
		"reviewed": report.Reviewed,
		"rejected": len(report.Rejected),
		"alerts":   alerts,
	}).Infof("Moderation sweep completed in %v", s.now().Sub(start))
	return report, nil
}

func (s *Service) storeReport(ctx context.Context, report *models.ModerationReport) error {
	if s.storage == nil {
		return nil
	}
	id := fmt.Sprintf("%s-%s", report.Period, report.GeneratedAt.UTC().Format("150405"))
	return storage.StoreJSON(ctx, s.storage, storage.ArchiveName("moderation", report.GeneratedAt, id), report)
}

func (s *Service) sendAlerts(report *models.ModerationReport) int {
	if s.notificationService == nil {
		return 0
	}

	unsafe := Unsafe(report)
	sent := 0
	for i, d := range unsafe {
		if i >= maxAlertsPerSweep {
			logrus.Warnf("Alert limit reached, %d unsafe posts not alerted", len(unsafe)-i)
			break
		}
		alert := &models.Alert{
			ID:        uuid.NewString(),
			Type:      "critical",
			Title:     fmt.Sprintf("Unsafe post: %s", d.Item.Title),
			Message:   fmt.Sprintf("Post %s by %s has safety score %.2f", d.Item.ID, d.Item.AuthorID, d.Item.SafetyScore),
			ContentID: d.Item.ID,
			CreatedAt: report.GeneratedAt,
		}
		if err := s.notificationService.SendAlert(alert); err != nil {
			logrus.Errorf("Failed to send alert for %s: %v", d.Item.ID, err)
			continue
		}
		sent++
	}
	return sent
}

func (s *Service) updateMetrics(report *models.ModerationReport, duration time.Duration, alerts int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Sweeps++
	s.metrics.LastRun = report.GeneratedAt
	s.metrics.LastRunDuration = duration.String()
	s.metrics.LastReviewed = report.Reviewed
	s.metrics.LastRejected = len(report.Rejected)
	s.metrics.AlertsSent += alerts

	s.metrics.FlagBreakdown = make(map[string]int)
	if flags, ok := report.Summary["flags"].(map[string]int); ok {
		for f, c := range flags {
			s.metrics.FlagBreakdown[f] = c
		}
	}
}

func (s *Service) recordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.ErrorCount++
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// Snapshot returns a copy of the current metrics
func (s *Service) Snapshot() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := *s.metrics
	m.FlagBreakdown = make(map[string]int, len(s.metrics.FlagBreakdown))
	for f, c := range s.metrics.FlagBreakdown {
		m.FlagBreakdown[f] = c
	}
	return m
}
