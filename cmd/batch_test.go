package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monterey-cards/repricer/internal/model"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "listings.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseListingsCSV(t *testing.T) {
	path := writeCSV(t, `item_id,title,current_price
123,2021 Topps Chrome #50 Mike Trout,5.99
,1995 Upper Deck Griffey #100,
456,"2020 Prizm #1, Silver",bad-price
`)

	listings, err := parseListingsCSV(path)
	require.NoError(t, err)
	require.Len(t, listings, 3)

	assert.Equal(t, "123", listings[0].ItemID)
	assert.Equal(t, "2021 Topps Chrome #50 Mike Trout", listings[0].Title)
	assert.InDelta(t, 5.99, listings[0].CurrentPrice, 1e-9)

	assert.Empty(t, listings[1].ItemID)
	assert.Zero(t, listings[1].CurrentPrice)

	// Unparseable price falls back to zero rather than failing the row.
	assert.Zero(t, listings[2].CurrentPrice)
}

func TestParseListingsCSV_HeaderVariants(t *testing.T) {
	path := writeCSV(t, `Title,Price,ID
2021 Topps #50 Trout,4.25,abc
`)

	listings, err := parseListingsCSV(path)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "abc", listings[0].ItemID)
	assert.InDelta(t, 4.25, listings[0].CurrentPrice, 1e-9)
}

func TestParseListingsCSV_MissingTitleColumn(t *testing.T) {
	path := writeCSV(t, "item_id,price\n1,2.00\n")

	_, err := parseListingsCSV(path)
	assert.Error(t, err)
}

func TestParseListingsCSV_SkipsBlankTitles(t *testing.T) {
	path := writeCSV(t, "title\n\n  \nreal title\n")

	listings, err := parseListingsCSV(path)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "real title", listings[0].Title)
}

func TestRepriceAll_ContinuesPastFailures(t *testing.T) {
	listings := []model.Listing{
		{Title: "2021 Topps Chrome #50 Mike Trout"},
		{Title: "broken listing"},
		{Title: "1995 Upper Deck #100 Ken Griffey Jr"},
	}

	reprice := func(_ context.Context, l model.Listing) model.RepriceResult {
		res := model.RepriceResult{Listing: l}
		if l.Title == "broken listing" {
			res.Status = model.RepriceStatusFailed
			res.Error = "retrieval timed out"
			return res
		}
		res.Status = model.RepriceStatusSuggested
		return res
	}

	results := repriceAll(context.Background(), reprice, listings, 2)
	require.Len(t, results, 3)

	assert.Equal(t, model.RepriceStatusFailed, results[1].Status)
	assert.Equal(t, "retrieval timed out", results[1].Error)

	// The failure does not abort the rest; results keep input order.
	assert.Equal(t, model.RepriceStatusSuggested, results[0].Status)
	assert.Equal(t, model.RepriceStatusSuggested, results[2].Status)
	assert.Equal(t, listings[2].Title, results[2].Listing.Title)
}

func TestReportRow(t *testing.T) {
	suggested := 4.50
	row := reportRow(model.RepriceResult{
		Listing:     model.Listing{ItemID: "123", Title: "t", CurrentPrice: 5.99},
		Suggestion:  model.PriceSuggestion{SuggestedPrice: &suggested, Note: "Drop capped at 40%"},
		Status:      model.RepriceStatusSuggested,
		ActiveComps: 3,
	})

	require.Len(t, row, len(reportHeader))
	assert.Equal(t, "123", row[0])
	assert.Equal(t, "5.99", row[2])
	assert.Equal(t, "4.50", row[3])
	assert.Equal(t, "", row[4]) // no active median
	assert.Equal(t, "suggested", row[6])
	assert.Equal(t, "3", row[8])
	assert.Equal(t, "false", row[10])
}
