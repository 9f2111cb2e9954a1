package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monterey-cards/repricer/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLite_CompCacheRoundtrip(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, fresh, err := s.GetActiveComps(ctx, "title")
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, s.PutActiveComps(ctx, "title", []float64{2.50, 3.00}, time.Hour))

	prices, fresh, err := s.GetActiveComps(ctx, "title")
	require.NoError(t, err)
	require.True(t, fresh)
	assert.Equal(t, []float64{2.50, 3.00}, prices)
}

func TestSQLite_CompCacheExpiry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutActiveComps(ctx, "stale", []float64{2.50}, -time.Minute))

	_, fresh, err := s.GetActiveComps(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, fresh)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSQLite_CompCacheOverwrite(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutActiveComps(ctx, "title", []float64{1.00}, time.Hour))
	require.NoError(t, s.PutActiveComps(ctx, "title", []float64{2.00}, time.Hour))

	prices, fresh, err := s.GetActiveComps(ctx, "title")
	require.NoError(t, err)
	require.True(t, fresh)
	assert.Equal(t, []float64{2.00}, prices)
}

func TestSQLite_Results(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	suggested := 4.50
	active := 4.75
	require.NoError(t, s.SaveResult(ctx, model.RepriceResult{
		Listing: model.Listing{ItemID: "123", Title: "2021 Topps #50 Trout", CurrentPrice: 5.99},
		Suggestion: model.PriceSuggestion{
			MedianActive:   &active,
			SuggestedPrice: &suggested,
			Note:           "Drop capped at 40%",
		},
		Status: model.RepriceStatusSuggested,
	}))
	require.NoError(t, s.SaveResult(ctx, model.RepriceResult{
		Listing: model.Listing{Title: "junk title"},
		Status:  model.RepriceStatusNoData,
	}))

	all, err := s.ListResults(ctx, ResultFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := s.ListResults(ctx, ResultFilter{Status: model.RepriceStatusSuggested})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "123", got[0].Listing.ItemID)
	require.NotNil(t, got[0].Suggestion.SuggestedPrice)
	assert.InDelta(t, 4.50, *got[0].Suggestion.SuggestedPrice, 1e-9)
	assert.Nil(t, got[0].Suggestion.MedianSold)
	assert.Equal(t, "Drop capped at 40%", got[0].Suggestion.Note)

	byTitle, err := s.ListResults(ctx, ResultFilter{Title: "junk title"})
	require.NoError(t, err)
	require.Len(t, byTitle, 1)
	assert.Equal(t, model.RepriceStatusNoData, byTitle[0].Status)
}
