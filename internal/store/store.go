// Package store persists the active-comp cache and pricing results.
package store

import (
	"context"
	"time"

	"github.com/monterey-cards/repricer/internal/model"
)

// ResultFilter specifies criteria for listing stored pricing results.
type ResultFilter struct {
	Status model.RepriceStatus `json:"status,omitempty"`
	Title  string              `json:"title,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for the repricer.
type Store interface {
	// Comp cache, keyed on the raw subject title. A hit is only returned
	// while fresh; writes overwrite unconditionally (last-writer-wins).
	GetActiveComps(ctx context.Context, title string) (prices []float64, fresh bool, err error)
	PutActiveComps(ctx context.Context, title string, prices []float64, ttl time.Duration) error
	PurgeExpired(ctx context.Context) (int64, error)

	// Pricing results
	SaveResult(ctx context.Context, res model.RepriceResult) error
	ListResults(ctx context.Context, filter ResultFilter) ([]model.RepriceResult, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
