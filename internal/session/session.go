package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/greattalk/feed-recommender/internal/metrics"
	"github.com/greattalk/feed-recommender/internal/models"
	"github.com/greattalk/feed-recommender/internal/sources"
	"github.com/sirupsen/logrus"
)

var (
	// ErrTogglePending is returned while an earlier toggle on the same target is in flight
	ErrTogglePending = errors.New("toggle already pending for target")
	// ErrSessionClosed is returned once Logout has run
	ErrSessionClosed = errors.New("session closed")
)

// Session holds the per-login memo tables for one user. Entries are loaded
// from the flag store on first use and updated by toggles.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	liked *Memo[bool]
	muted *Memo[bool]

	store     sources.FlagStore
	collector *metrics.Collector

	mu          sync.Mutex
	pending     map[string]*Toggle
	closed      bool
	mutesLoaded bool
}

// New opens a session. A nil store keeps toggles local.
func New(userID string, store sources.FlagStore, collector *metrics.Collector) *Session {
	return &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: time.Now(),
		liked:     NewMemo[bool](),
		muted:     NewMemo[bool](),
		store:     store,
		collector: collector,
		pending:   make(map[string]*Toggle),
	}
}

// IsLiked reports whether the user likes a post
func (s *Session) IsLiked(ctx context.Context, contentID string) bool {
	if s.isClosed() {
		return false
	}
	return s.load(ctx, sources.RelationLikes, s.liked, contentID)
}

// IsMuted reports whether the user muted an author
func (s *Session) IsMuted(ctx context.Context, userID string) bool {
	if s.isClosed() {
		return false
	}
	s.loadMutes(ctx)
	v, _ := s.muted.Get(userID)
	return v
}

// MutedUsers lists the muted author IDs in sorted order
func (s *Session) MutedUsers(ctx context.Context) []string {
	s.loadMutes(ctx)
	ids := s.muted.Keys(func(on bool) bool { return on })
	sort.Strings(ids)
	return ids
}

// Action names a toggleable relation
type Action string

const (
	ActionLike Action = "like"
	ActionMute Action = "mute"
)

// Toggle dispatches to ToggleLike or ToggleMute
func (s *Session) Toggle(ctx context.Context, action Action, targetID string) (bool, error) {
	switch action {
	case ActionLike:
		return s.ToggleLike(ctx, targetID)
	case ActionMute:
		return s.ToggleMute(ctx, targetID)
	}
	return false, fmt.Errorf("unknown toggle action %q", action)
}

// ToggleLike flips the like on a post and returns the resulting state
func (s *Session) ToggleLike(ctx context.Context, contentID string) (bool, error) {
	return s.toggle(ctx, sources.RelationLikes, s.liked, contentID)
}

// ToggleMute flips the mute on an author and returns the resulting state
func (s *Session) ToggleMute(ctx context.Context, userID string) (bool, error) {
	return s.toggle(ctx, sources.RelationMutes, s.muted, userID)
}

// Visible drops items written by muted authors
func (s *Session) Visible(ctx context.Context, items []models.ScoredItem) []models.ScoredItem {
	out := make([]models.ScoredItem, 0, len(items))
	for _, it := range items {
		if !s.IsMuted(ctx, it.Item.AuthorID) {
			out = append(out, it)
		}
	}
	return out
}

// Logout clears every memo table; later toggles fail with ErrSessionClosed
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.mutesLoaded = false
	cleared := s.liked.Clear() + s.muted.Clear()
	logrus.WithFields(logrus.Fields{
		"session": s.ID,
		"user":    s.UserID,
		"cleared": cleared,
	}).Debug("Session closed")
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// load returns the memoized flag, reading it from the store on a miss.
// A failed read counts as inactive and is retried on the next call.
func (s *Session) load(ctx context.Context, relation string, memo *Memo[bool], targetID string) bool {
	if s.store == nil {
		v, _ := memo.Get(targetID)
		return v
	}

	v, err := memo.GetOrLoad(targetID, func() (bool, error) {
		return s.store.GetFlag(ctx, s.UserID, relation, targetID)
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"session":  s.ID,
			"relation": relation,
			"target":   targetID,
		}).Warnf("Failed to load flag, treating as inactive: %v", err)
		return false
	}
	return v
}

// loadMutes fills the mute table from the store once per session.
// Entries already set by a toggle are kept.
func (s *Session) loadMutes(ctx context.Context) {
	s.mu.Lock()
	if s.store == nil || s.closed || s.mutesLoaded {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ids, err := s.store.ListFlags(ctx, s.UserID, sources.RelationMutes)
	if err != nil {
		logrus.WithField("session", s.ID).Warnf("Failed to load muted users, continuing with none: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.mutesLoaded {
		return
	}
	for _, id := range ids {
		if _, known := s.muted.Get(id); !known {
			s.muted.Set(id, true)
		}
	}
	s.mutesLoaded = true
}

func (s *Session) toggle(ctx context.Context, relation string, memo *Memo[bool], targetID string) (bool, error) {
	key := relation + "/" + targetID

	// prime the memo with the stored value before flipping it
	if !s.isClosed() {
		s.load(ctx, relation, memo, targetID)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrSessionClosed
	}
	current, _ := memo.Get(targetID)
	if _, busy := s.pending[key]; busy {
		s.mu.Unlock()
		return current, ErrTogglePending
	}

	t := NewToggle(relation, targetID, current)
	next, err := t.Begin()
	if err != nil {
		s.mu.Unlock()
		return current, err
	}
	memo.Set(targetID, next)
	s.pending[key] = t
	s.mu.Unlock()

	var writeErr error
	if s.store != nil {
		writeErr = s.store.SetFlag(ctx, s.UserID, relation, targetID, next)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key)

	if writeErr != nil {
		prior, _ := t.Rollback()
		if !s.closed {
			memo.Set(targetID, prior)
		}
		s.collector.ObserveToggle(relation, string(t.State()))
		logrus.WithFields(logrus.Fields{
			"toggle":   t.ID,
			"relation": relation,
			"target":   targetID,
		}).Warnf("Toggle rolled back: %v", writeErr)
		return prior, fmt.Errorf("failed to save %s for %s: %w", relation, targetID, writeErr)
	}

	if err := t.Commit(); err != nil {
		return current, err
	}
	s.collector.ObserveToggle(relation, string(t.State()))
	return next, nil
}

// Manager tracks open sessions by ID
type Manager struct {
	store     sources.FlagStore
	collector *metrics.Collector

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(store sources.FlagStore, collector *metrics.Collector) *Manager {
	return &Manager{
		store:     store,
		collector: collector,
		sessions:  make(map[string]*Session),
	}
}

// Open starts a session for the user
func (m *Manager) Open(userID string) *Session {
	s := New(userID, m.store, m.collector)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	logrus.WithFields(logrus.Fields{"session": s.ID, "user": userID}).Info("Session opened")
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Logout closes and forgets a session. It reports whether the session existed.
func (m *Manager) Logout(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Logout()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
