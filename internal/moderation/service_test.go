package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/metrics"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage is a mock implementation of the storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(ctx context.Context, name string, data []byte) error {
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockStorage) Retrieve(ctx context.Context, name string) ([]byte, error) {
	args := m.Called(name)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStorage) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, name string) error {
	args := m.Called(name)
	return args.Error(0)
}

// MockNotificationService is a mock implementation of the notification service
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) SendReport(report *models.ModerationReport) error {
	args := m.Called(report)
	return args.Error(0)
}

func (m *MockNotificationService) SendAlert(alert *models.Alert) error {
	args := m.Called(alert)
	return args.Error(0)
}

// MockContentProvider is a mock implementation of the content provider
type MockContentProvider struct {
	mock.Mock
}

func (m *MockContentProvider) ListContent(ctx context.Context, limit int) ([]models.ContentItem, error) {
	args := m.Called(limit)
	if items := args.Get(0); items != nil {
		return items.([]models.ContentItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func sweepPool() []models.ContentItem {
	unsafe := cleanItem()
	unsafe.ID = "p2"
	unsafe.Title = "Edgy bot"
	unsafe.SafetyScore = 0.2
	reported := cleanItem()
	reported.ID = "p3"
	reported.ReportCount = 7
	return []models.ContentItem{cleanItem(), unsafe, reported}
}

func newTestService(cfg *config.Config, content *MockContentProvider, store *MockStorage, notifier *MockNotificationService, collector *metrics.Collector) *Service {
	service := NewService(cfg, content, store, notifier, NewEvaluator(nil), collector)
	service.now = func() time.Time { return time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC) }
	return service
}

func TestService_RunSweep(t *testing.T) {
	cfg := &config.Config{PoolSize: 50, TeamsWebhookURL: "https://example.invalid/hook"}
	content := &MockContentProvider{}
	store := &MockStorage{}
	notifier := &MockNotificationService{}
	collector := metrics.NewCollector("test")

	content.On("ListContent", 50).Return(sweepPool(), nil)
	store.On("Store", "moderation/2024/05/01/daily-060000.json", mock.Anything).Return(nil)
	notifier.On("SendAlert", mock.MatchedBy(func(a *models.Alert) bool {
		return a.ContentID == "p2" && a.Type == "critical" && a.ID != ""
	})).Return(nil).Once()
	notifier.On("SendReport", mock.AnythingOfType("*models.ModerationReport")).Return(nil)

	service := newTestService(cfg, content, store, notifier, collector)
	report, err := service.RunSweep(context.Background(), "daily")

	require.NoError(t, err)
	assert.Equal(t, 3, report.Reviewed)
	assert.Len(t, report.Rejected, 2)

	content.AssertExpectations(t)
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)

	stored := store.Calls[0].Arguments.Get(1).([]byte)
	var archived models.ModerationReport
	require.NoError(t, json.Unmarshal(stored, &archived))
	assert.Equal(t, 2, len(archived.Rejected))

	snapshot := service.Snapshot()
	assert.Equal(t, 1, snapshot.Sweeps)
	assert.Equal(t, 2, snapshot.LastRejected)
	assert.Equal(t, 1, snapshot.AlertsSent)
	assert.Equal(t, 1, snapshot.FlagBreakdown[UnsafeFlag])

	expected := `
# HELP test_moderation_decisions_total Moderation outcomes
# TYPE test_moderation_decisions_total counter
test_moderation_decisions_total{outcome="approved"} 1
test_moderation_decisions_total{outcome="rejected"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_moderation_decisions_total"))
}

func TestService_RunSweepWithoutChannels(t *testing.T) {
	content := &MockContentProvider{}
	store := &MockStorage{}
	notifier := &MockNotificationService{}

	content.On("ListContent", 10).Return([]models.ContentItem{cleanItem()}, nil)
	store.On("Store", mock.Anything, mock.Anything).Return(nil)

	service := newTestService(&config.Config{PoolSize: 10}, content, store, notifier, nil)
	report, err := service.RunSweep(context.Background(), "hourly")

	require.NoError(t, err)
	assert.Empty(t, report.Rejected)
	notifier.AssertNotCalled(t, "SendReport", mock.Anything)
	notifier.AssertNotCalled(t, "SendAlert", mock.Anything)
}

func TestService_RunSweepProviderFailure(t *testing.T) {
	content := &MockContentProvider{}
	content.On("ListContent", 10).Return(nil, errors.New("firestore unavailable"))

	service := newTestService(&config.Config{PoolSize: 10}, content, &MockStorage{}, &MockNotificationService{}, nil)
	report, err := service.RunSweep(context.Background(), "daily")

	assert.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 1, service.Snapshot().ErrorCount)
}

func TestService_RunSweepStorageFailure(t *testing.T) {
	content := &MockContentProvider{}
	store := &MockStorage{}
	notifier := &MockNotificationService{}

	content.On("ListContent", 10).Return(sweepPool(), nil)
	store.On("Store", mock.Anything, mock.Anything).Return(errors.New("quota exceeded"))
	notifier.On("SendAlert", mock.MatchedBy(func(a *models.Alert) bool { return a.ContentID == "p2" })).Return(nil).Once()
	notifier.On("SendReport", mock.AnythingOfType("*models.ModerationReport")).Return(nil).Once()

	service := newTestService(&config.Config{PoolSize: 10, TeamsWebhookURL: "x"}, content, store, notifier, nil)
	report, err := service.RunSweep(context.Background(), "daily")

	assert.ErrorContains(t, err, "quota exceeded")
	require.NotNil(t, report)
	notifier.AssertExpectations(t)

	snapshot := service.Snapshot()
	assert.Equal(t, 1, snapshot.AlertsSent)
	assert.Equal(t, 1, snapshot.Sweeps)
	assert.Equal(t, 1, snapshot.ErrorCount)
}

func TestService_RunSweepAlertLimitCountsFailures(t *testing.T) {
	var pool []models.ContentItem
	for i := 0; i < maxAlertsPerSweep+3; i++ {
		item := cleanItem()
		item.ID = fmt.Sprintf("p%d", i)
		item.SafetyScore = 0.1
		pool = append(pool, item)
	}

	content := &MockContentProvider{}
	store := &MockStorage{}
	notifier := &MockNotificationService{}
	content.On("ListContent", 50).Return(pool, nil)
	store.On("Store", mock.Anything, mock.Anything).Return(nil)
	notifier.On("SendAlert", mock.Anything).Return(errors.New("teams unavailable"))
	notifier.On("SendReport", mock.Anything).Return(nil)

	service := newTestService(&config.Config{PoolSize: 50, TeamsWebhookURL: "x"}, content, store, notifier, nil)
	report, err := service.RunSweep(context.Background(), "daily")

	require.NoError(t, err)
	assert.Len(t, report.Rejected, maxAlertsPerSweep+3)
	notifier.AssertNumberOfCalls(t, "SendAlert", maxAlertsPerSweep)
	assert.Equal(t, 0, service.Snapshot().AlertsSent)
}

func TestService_GetMetrics(t *testing.T) {
	service := newTestService(&config.Config{}, &MockContentProvider{}, nil, nil, nil)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(service.GetMetrics()), &decoded))
	assert.Contains(t, decoded, "sweeps")
	assert.Contains(t, decoded, "flag_breakdown")
}

func TestService_Evaluate(t *testing.T) {
	collector := metrics.NewCollector("test")
	service := newTestService(&config.Config{}, &MockContentProvider{}, nil, nil, collector)

	item := cleanItem()
	item.ReportCount = 4
	result := service.Evaluate(item)

	assert.False(t, result.IsApproved)
	assert.InDelta(t, 0.5, result.Confidence, 1e-9)
	expected := `
# HELP test_moderation_decisions_total Moderation outcomes
# TYPE test_moderation_decisions_total counter
test_moderation_decisions_total{outcome="rejected"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_moderation_decisions_total"))
}
