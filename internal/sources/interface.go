package sources

import (
	"context"

	"github.com/greattalk/feed-recommender/internal/models"
)

// ContentProvider returns the candidate pool, most recent first
type ContentProvider interface {
	ListContent(ctx context.Context, limit int) ([]models.ContentItem, error)
}

// InteractionProvider returns a user's past AI conversation turns
type InteractionProvider interface {
	ListInteractions(ctx context.Context, userID string) ([]models.InteractionRecord, error)
}

// FollowProvider returns the IDs of the users someone follows
type FollowProvider interface {
	ListFollowing(ctx context.Context, userID string) ([]string, error)
}

// UserProvider looks up user profiles
type UserProvider interface {
	GetUser(ctx context.Context, userID string) (models.UserProfile, error)
	ListUsers(ctx context.Context, userIDs []string) ([]models.UserProfile, error)
}

// FlagWriter persists per-user boolean relations such as likes and mutes
type FlagWriter interface {
	SetFlag(ctx context.Context, userID, relation, targetID string, on bool) error
}

// FlagReader loads per-user boolean relations written by FlagWriter
type FlagReader interface {
	// GetFlag reports whether the relation is active; a missing document is false
	GetFlag(ctx context.Context, userID, relation, targetID string) (bool, error)
	// ListFlags returns the target IDs whose relation is active
	ListFlags(ctx context.Context, userID, relation string) ([]string, error)
}

// FlagStore is the read and write side of the per-user relations
type FlagStore interface {
	FlagReader
	FlagWriter
}

// Source is the full document-store contract used by the services
type Source interface {
	GetName() string
	IsEnabled() bool
	ContentProvider
	InteractionProvider
	FollowProvider
	UserProvider
	FlagStore
}
