package browse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient("", "EBAY_US")
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "EBAY_US", r.Header.Get("X-EBAY-C-MARKETPLACE-ID"))
		assert.Equal(t, "trout", r.URL.Query().Get("q"))
		assert.NotContains(t, r.URL.Query().Get("filter"), "soldItemsOnly")

		w.Write([]byte(`{"itemSummaries":[
			{"title":"2021 Topps #50 Trout","price":{"value":"4.00","currency":"USD"},
			 "buyingOptions":["FIXED_PRICE"],
			 "shippingOptions":[{"shippingCost":{"value":"0.99"}}]}
		]}`))
	}))
	defer srv.Close()

	c, err := NewClient("tok", "EBAY_US", WithBaseURL(srv.URL), WithRateLimit(1000))
	require.NoError(t, err)

	items, err := c.Search(context.Background(), "trout", 15)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "2021 Topps #50 Trout", items[0].Title)
	assert.InDelta(t, 4.00, items[0].Price.Float(), 1e-9)
	assert.InDelta(t, 0.99, items[0].ShippingOptions[0].ShippingCost.Float(), 1e-9)
}

func TestSearchSold_AddsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("filter"), "soldItemsOnly:true")
		w.Write([]byte(`{"itemSummaries":[]}`))
	}))
	defer srv.Close()

	c, err := NewClient("tok", "EBAY_US", WithBaseURL(srv.URL), WithRateLimit(1000))
	require.NoError(t, err)

	items, err := c.SearchSold(context.Background(), "trout", 5)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSearch_RetriesOnceAfter429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"itemSummaries":[{"title":"ok","buyingOptions":["FIXED_PRICE"]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient("tok", "EBAY_US", WithBaseURL(srv.URL), WithRateLimit(1000))
	require.NoError(t, err)

	items, err := c.Search(context.Background(), "trout", 5)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSearch_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient("tok", "EBAY_US", WithBaseURL(srv.URL), WithRateLimit(1000))
	require.NoError(t, err)

	_, err = c.Search(context.Background(), "trout", 5)
	assert.Error(t, err)
}

func TestMoney_Float(t *testing.T) {
	assert.InDelta(t, 4.5, Money{Value: "4.50"}.Float(), 1e-9)
	assert.Zero(t, Money{}.Float())
	assert.Zero(t, Money{Value: "garbage"}.Float())
}
