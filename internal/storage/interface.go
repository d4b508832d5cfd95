package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when an archive object does not exist
var ErrNotFound = errors.New("archive object not found")

// StorageInterface defines the contract for archive storage operations
type StorageInterface interface {
	Store(ctx context.Context, name string, data []byte) error
	Retrieve(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, name string) error
}

// ArchiveName builds a dated object name such as recommendations/2024/05/01/<id>.json
func ArchiveName(kind string, at time.Time, id string) string {
	return fmt.Sprintf("%s/%s/%s.json", kind, at.UTC().Format("2006/01/02"), id)
}

// StoreJSON marshals v and stores it under name
func StoreJSON(ctx context.Context, s StorageInterface, name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return s.Store(ctx, name, data)
}
