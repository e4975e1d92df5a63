// Package store persists the classification result cache: one durable row
// per company key, written as whole-row replacements.
package store

import (
	"context"

	"github.com/sells-group/classifier-cli/internal/model"
)

// Filter specifies criteria for listing cache entries.
type Filter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the result cache. Get returns
// (nil, nil) for an unknown key. Upsert replaces the entire row, so readers
// never observe a partially updated entry.
type Store interface {
	Get(ctx context.Context, companyKey string) (*model.CacheEntry, error)
	Upsert(ctx context.Context, entry model.CacheEntry) error
	Delete(ctx context.Context, companyKey string) error
	List(ctx context.Context, filter Filter) ([]model.CacheEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
