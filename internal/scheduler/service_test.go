package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/greattalk/feed-recommender/internal/config"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSweeper struct {
	mock.Mock
}

func (m *MockSweeper) RunSweep(ctx context.Context, period string) (*models.ModerationReport, error) {
	args := m.Called(period)
	report, _ := args.Get(0).(*models.ModerationReport)
	return report, args.Error(1)
}

type MockPurger struct {
	mock.Mock
}

func (m *MockPurger) PurgeCache() int {
	return m.Called().Int(0)
}

func TestSweepSpec(t *testing.T) {
	assert.Equal(t, "0 0 * * * *", SweepSpec("hourly"))
	assert.Equal(t, "0 0 6 * * *", SweepSpec("daily"))
	assert.Equal(t, "0 0 6 * * *", SweepSpec(""))
}

func TestService_Register(t *testing.T) {
	tests := []struct {
		name     string
		sweeper  Sweeper
		purger   CachePurger
		expected int
	}{
		{"Both jobs", &MockSweeper{}, &MockPurger{}, 2},
		{"Sweep only", &MockSweeper{}, nil, 1},
		{"Nothing to run", nil, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(&config.Config{ModerationSchedule: "hourly", TimeZone: "Europe/Berlin"}, tt.sweeper, tt.purger)
			require.NoError(t, service.register())
			assert.Equal(t, tt.expected, service.Entries())
		})
	}
}

func TestService_UnknownTimeZoneFallsBack(t *testing.T) {
	service := NewService(&config.Config{ModerationSchedule: "daily", TimeZone: "Mars/Olympus"}, &MockSweeper{}, nil)
	require.NoError(t, service.Start())
	service.Stop()
}

func TestService_Jobs(t *testing.T) {
	sweeper := &MockSweeper{}
	purger := &MockPurger{}
	sweeper.On("RunSweep", "daily").Return(&models.ModerationReport{Reviewed: 3}, nil).Once()
	sweeper.On("RunSweep", "daily").Return(nil, errors.New("store down")).Once()
	purger.On("PurgeCache").Return(4).Once()

	service := NewService(&config.Config{ModerationSchedule: "daily", TimeZone: "UTC"}, sweeper, purger)

	service.runSweep("daily")
	service.runSweep("daily")
	service.purgeCache()

	sweeper.AssertExpectations(t)
	purger.AssertExpectations(t)
}
