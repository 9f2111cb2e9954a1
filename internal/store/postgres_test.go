package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monterey-cards/repricer/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_GetActiveComps(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT prices FROM comp_cache").
		WithArgs("title").
		WillReturnRows(pgxmock.NewRows([]string{"prices"}).AddRow([]byte("[2.5,3]")))

	prices, fresh, err := s.GetActiveComps(context.Background(), "title")
	require.NoError(t, err)
	require.True(t, fresh)
	assert.Equal(t, []float64{2.5, 3}, prices)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetActiveComps_Miss(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT prices FROM comp_cache").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"prices"}))

	_, fresh, err := s.GetActiveComps(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, fresh)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PutActiveComps(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO comp_cache").
		WithArgs("title", []byte("[2.5]"), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.PutActiveComps(context.Background(), "title", []float64{2.5}, time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PurgeExpired(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("DELETE FROM comp_cache").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveResult(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO results").
		WithArgs(pgxmock.AnyArg(), "123", "2021 Topps #50 Trout", 5.99,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			string(model.RepriceStatusSuggested), "note", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	suggested := 4.50
	err := s.SaveResult(context.Background(), model.RepriceResult{
		Listing:    model.Listing{ItemID: "123", Title: "2021 Topps #50 Trout", CurrentPrice: 5.99},
		Suggestion: model.PriceSuggestion{SuggestedPrice: &suggested, Note: "note"},
		Status:     model.RepriceStatusSuggested,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
