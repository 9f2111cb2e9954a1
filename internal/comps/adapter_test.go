package comps

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monterey-cards/repricer/internal/rules"
	"github.com/monterey-cards/repricer/pkg/browse"
	"github.com/monterey-cards/repricer/pkg/finding"
)

func testFilter() *Filter {
	return NewFilter(rules.Default(), 1.50, 100.0)
}

func TestFilter_Admit(t *testing.T) {
	f := testFilter()

	tests := []struct {
		title string
		price float64
		want  bool
	}{
		{"2021 Topps Chrome #50 Mike Trout", 5.00, true},
		{"2021 Topps Chrome #50 Mike Trout", 1.00, false},   // below floor
		{"2021 Topps Chrome #50 Mike Trout", 150.00, false}, // above cap
		{"PSA 10 Topps Chrome #50 Trout", 20.00, false},     // graded
		{"Upsala city postcard", 5.00, true},                // "psa" inside a word
		{"Lot of 5 Trout cards", 5.00, false},
		{"Trout team break spot", 5.00, false}, // "team break"
		{"Topps Trout 25 cards", 5.00, false},
		{"Topps Trout x10", 5.00, false},
		{"Creased 1989 Topps Griffey", 5.00, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.Admit(tt.title, tt.price), "title %q", tt.title)
	}
}

type fakeBrowse struct {
	items []browse.ItemSummary
	err   error
}

func (f *fakeBrowse) Search(_ context.Context, _ string, _ int) ([]browse.ItemSummary, error) {
	return f.items, f.err
}

func (f *fakeBrowse) SearchSold(_ context.Context, _ string, _ int) ([]browse.ItemSummary, error) {
	return f.items, f.err
}

func TestBrowseBackend_Convert(t *testing.T) {
	items := []browse.ItemSummary{
		{
			Title:         "2021 Topps Chrome #50 Mike Trout",
			Price:         browse.Money{Value: "4.00"},
			BuyingOptions: []string{"FIXED_PRICE"},
			ShippingOptions: []browse.ShippingOption{
				{ShippingCost: browse.Money{Value: "1.25"}},
				{ShippingCost: browse.Money{Value: "0.99"}},
			},
		},
		{
			Title:         "Auction only Trout",
			Price:         browse.Money{Value: "4.00"},
			BuyingOptions: []string{"AUCTION"},
		},
		{
			Title:         "Grouped variant listing",
			Price:         browse.Money{Value: "4.00"},
			BuyingOptions: []string{"FIXED_PRICE"},
			ItemGroupType: "SELLER_DEFINED_VARIATIONS",
		},
	}
	be := NewBrowseBackend(&fakeBrowse{items: items}, testFilter())

	comps, err := be.FetchActive(context.Background(), "q", 15)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	// Item price plus the cheapest shipping offer.
	assert.InDelta(t, 4.99, comps[0].TotalPrice, 1e-9)
	assert.Equal(t, "browse", comps[0].Source)
}

type fakeFinding struct {
	items []finding.Item
	err   error
}

func (f *fakeFinding) Search(_ context.Context, _ string, _ int) ([]finding.Item, error) {
	return f.items, f.err
}

func TestFindingBackend_Convert(t *testing.T) {
	items := []finding.Item{
		fakeFindingItem("2021 Topps Chrome #50 Mike Trout", "3.50", "0.50", "FixedPrice"),
		fakeFindingItem("Auction Trout", "3.50", "0.50", "Auction"),
	}
	be := NewFindingBackend(&fakeFinding{items: items}, testFilter())

	comps, err := be.FetchActive(context.Background(), "q", 15)
	require.NoError(t, err)
	require.Len(t, comps, 1)
	assert.InDelta(t, 4.00, comps[0].TotalPrice, 1e-9)
	assert.Equal(t, "finding", comps[0].Source)
}

// fakeFindingItem builds an Item through its wire shape; the nested types
// are unexported.
func fakeFindingItem(title, price, ship, listingType string) finding.Item {
	raw := fmt.Sprintf(
		`{"title":[%q],"sellingStatus":[{"currentPrice":[{"__value__":%q}]}],"shippingInfo":[{"shippingServiceCost":[{"__value__":%q}]}],"listingInfo":[{"listingType":[%q]}]}`,
		title, price, ship, listingType,
	)
	var it finding.Item
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		panic(err)
	}
	return it
}

func TestFindingBackend_NoSoldCapability(t *testing.T) {
	be := NewFindingBackend(&fakeFinding{}, testFilter())

	comps, err := be.FetchSold(context.Background(), "q", 5)
	assert.NoError(t, err)
	assert.Nil(t, comps)
}
