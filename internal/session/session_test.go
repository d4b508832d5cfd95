package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/greattalk/feed-recommender/internal/metrics"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/greattalk/feed-recommender/internal/sources"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockFlagStore is a mock implementation of the flag store
type MockFlagStore struct {
	mock.Mock
}

func (m *MockFlagStore) GetFlag(ctx context.Context, userID, relation, targetID string) (bool, error) {
	args := m.Called(userID, relation, targetID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFlagStore) ListFlags(ctx context.Context, userID, relation string) ([]string, error) {
	args := m.Called(userID, relation)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockFlagStore) SetFlag(ctx context.Context, userID, relation, targetID string, on bool) error {
	args := m.Called(userID, relation, targetID, on)
	return args.Error(0)
}

// blockingWriter holds SetFlag until release is closed
type blockingWriter struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingWriter) GetFlag(ctx context.Context, userID, relation, targetID string) (bool, error) {
	return false, nil
}

func (b *blockingWriter) ListFlags(ctx context.Context, userID, relation string) ([]string, error) {
	return nil, nil
}

func (b *blockingWriter) SetFlag(ctx context.Context, userID, relation, targetID string, on bool) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestToggle_Transitions(t *testing.T) {
	t.Run("Commit", func(t *testing.T) {
		toggle := NewToggle("likes", "p1", false)
		assert.Equal(t, StateIdle, toggle.State())
		assert.NotEmpty(t, toggle.ID)

		next, err := toggle.Begin()
		require.NoError(t, err)
		assert.True(t, next)
		assert.Equal(t, StatePending, toggle.State())

		require.NoError(t, toggle.Commit())
		assert.Equal(t, StateCommitted, toggle.State())

		_, err = toggle.Rollback()
		assert.ErrorIs(t, err, ErrIllegalTransition)
		assert.Equal(t, StateCommitted, toggle.State())
	})

	t.Run("Rollback restores prior", func(t *testing.T) {
		toggle := NewToggle("mutes", "u9", true)
		next, err := toggle.Begin()
		require.NoError(t, err)
		assert.False(t, next)

		prior, err := toggle.Rollback()
		require.NoError(t, err)
		assert.True(t, prior)
		assert.Equal(t, StateRolledBack, toggle.State())

		assert.ErrorIs(t, toggle.Commit(), ErrIllegalTransition)
	})

	t.Run("Illegal from idle", func(t *testing.T) {
		toggle := NewToggle("likes", "p1", false)
		assert.ErrorIs(t, toggle.Commit(), ErrIllegalTransition)
		_, err := toggle.Rollback()
		assert.ErrorIs(t, err, ErrIllegalTransition)

		_, err = toggle.Begin()
		require.NoError(t, err)
		_, err = toggle.Begin()
		assert.ErrorIs(t, err, ErrIllegalTransition)
	})
}

func TestMemo(t *testing.T) {
	memo := NewMemo[int]()

	loads := 0
	load := func() (int, error) { loads++; return 42, nil }

	v, err := memo.GetOrLoad("a", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	v, err = memo.GetOrLoad("a", load)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, loads)

	_, err = memo.GetOrLoad("b", func() (int, error) { return 0, errors.New("boom") })
	assert.Error(t, err)
	_, ok := memo.Get("b")
	assert.False(t, ok)

	memo.Set("c", 7)
	memo.Invalidate("a")
	_, ok = memo.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"c"}, memo.Keys(func(v int) bool { return v > 0 }))

	assert.Equal(t, 1, memo.Clear())
	assert.Equal(t, 0, memo.Len())
}

func TestSession_ToggleLikeCommits(t *testing.T) {
	writer := &MockFlagStore{}
	writer.On("GetFlag", "u1", sources.RelationLikes, "p1").Return(false, nil).Once()
	writer.On("SetFlag", "u1", sources.RelationLikes, "p1", true).Return(nil).Once()
	writer.On("SetFlag", "u1", sources.RelationLikes, "p1", false).Return(nil).Once()

	collector := metrics.NewCollector("test")
	s := New("u1", writer, collector)

	liked, err := s.ToggleLike(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.True(t, s.IsLiked(context.Background(), "p1"))

	liked, err = s.ToggleLike(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, liked)
	assert.False(t, s.IsLiked(context.Background(), "p1"))

	writer.AssertExpectations(t)

	expected := `
# HELP test_toggle_outcomes_total Optimistic like/mute toggles by final state
# TYPE test_toggle_outcomes_total counter
test_toggle_outcomes_total{action="likes",state="committed"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected), "test_toggle_outcomes_total"))
}

func TestSession_ToggleMuteRollsBack(t *testing.T) {
	writer := &MockFlagStore{}
	writer.On("GetFlag", "u1", sources.RelationMutes, "spammer").Return(false, nil).Once()
	writer.On("SetFlag", "u1", sources.RelationMutes, "spammer", true).Return(errors.New("firestore unavailable")).Once()
	writer.On("ListFlags", "u1", sources.RelationMutes).Return(nil, nil).Once()

	s := New("u1", writer, nil)

	muted, err := s.ToggleMute(context.Background(), "spammer")
	assert.Error(t, err)
	assert.False(t, muted)
	assert.False(t, s.IsMuted(context.Background(), "spammer"))
	assert.Empty(t, s.MutedUsers(context.Background()))
	writer.AssertExpectations(t)
}

func TestSession_LoadsStoredFlags(t *testing.T) {
	store := &MockFlagStore{}
	store.On("GetFlag", "u1", sources.RelationLikes, "p1").Return(true, nil).Once()
	store.On("SetFlag", "u1", sources.RelationLikes, "p1", false).Return(nil).Once()
	store.On("ListFlags", "u1", sources.RelationMutes).Return([]string{"u9"}, nil).Once()
	store.On("SetFlag", "u1", sources.RelationMutes, "u9", false).Return(nil).Once()

	s := New("u1", store, nil)
	ctx := context.Background()

	liked, err := s.ToggleLike(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, liked, "a like from an earlier login is removed")

	assert.True(t, s.IsMuted(ctx, "u9"))
	items := []models.ScoredItem{
		{Item: models.ContentItem{ID: "p1", AuthorID: "u2"}},
		{Item: models.ContentItem{ID: "p2", AuthorID: "u9"}},
	}
	visible := s.Visible(ctx, items)
	require.Len(t, visible, 1)
	assert.Equal(t, "p1", visible[0].Item.ID)

	muted, err := s.ToggleMute(ctx, "u9")
	require.NoError(t, err)
	assert.False(t, muted)
	assert.Len(t, s.Visible(ctx, items), 2)

	store.AssertExpectations(t)
}

func TestSession_LoadFailuresCountAsInactive(t *testing.T) {
	store := &MockFlagStore{}
	store.On("GetFlag", "u1", sources.RelationLikes, "p1").Return(false, errors.New("firestore unavailable")).Once()
	store.On("SetFlag", "u1", sources.RelationLikes, "p1", true).Return(nil).Once()
	store.On("ListFlags", "u1", sources.RelationMutes).Return(nil, errors.New("firestore unavailable")).Twice()

	s := New("u1", store, nil)
	ctx := context.Background()

	liked, err := s.ToggleLike(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, liked)

	assert.False(t, s.IsMuted(ctx, "u9"))
	assert.Empty(t, s.MutedUsers(ctx), "a failed load is retried")

	store.AssertExpectations(t)
}

func TestSession_TogglePendingRejectsSecondFlip(t *testing.T) {
	writer := &blockingWriter{entered: make(chan struct{}), release: make(chan struct{})}
	s := New("u1", writer, nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.ToggleLike(context.Background(), "p1")
		done <- err
	}()

	<-writer.entered
	assert.True(t, s.IsLiked(context.Background(), "p1"), "optimistic value is visible while pending")

	current, err := s.ToggleLike(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrTogglePending)
	assert.True(t, current)

	close(writer.release)
	require.NoError(t, <-done)
	assert.True(t, s.IsLiked(context.Background(), "p1"))
}

func TestSession_VisibleAndLogout(t *testing.T) {
	s := New("u1", nil, nil)

	_, err := s.ToggleMute(context.Background(), "author-b")
	require.NoError(t, err)
	_, err = s.ToggleLike(context.Background(), "p1")
	require.NoError(t, err)

	items := []models.ScoredItem{
		{Item: models.ContentItem{ID: "p1", AuthorID: "author-a"}},
		{Item: models.ContentItem{ID: "p2", AuthorID: "author-b"}},
	}
	visible := s.Visible(context.Background(), items)
	require.Len(t, visible, 1)
	assert.Equal(t, "p1", visible[0].Item.ID)
	assert.Equal(t, []string{"author-b"}, s.MutedUsers(context.Background()))

	s.Logout()
	assert.False(t, s.IsLiked(context.Background(), "p1"))
	assert.False(t, s.IsMuted(context.Background(), "author-b"))

	_, err = s.ToggleLike(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestManager(t *testing.T) {
	manager := NewManager(nil, nil)

	s := manager.Open("u1")
	other := manager.Open("u1")
	assert.NotEqual(t, s.ID, other.ID)
	assert.Equal(t, 2, manager.Len())

	got, ok := manager.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, err := s.ToggleLike(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, other.IsLiked(context.Background(), "p1"), "memo tables are per session")

	assert.True(t, manager.Logout(s.ID))
	assert.False(t, manager.Logout(s.ID))
	_, ok = manager.Get(s.ID)
	assert.False(t, ok)
	assert.False(t, s.IsLiked(context.Background(), "p1"))
	assert.Equal(t, 1, manager.Len())
}
