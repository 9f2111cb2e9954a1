// Package comps retrieves comparable listings from the search backends,
// normalizes them into model.Comp records and merges results across queries.
package comps

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/monterey-cards/repricer/internal/model"
	"github.com/monterey-cards/repricer/internal/rules"
	"github.com/monterey-cards/repricer/pkg/browse"
	"github.com/monterey-cards/repricer/pkg/finding"
)

// Backend is a normalized comp source. Adapters map each wire shape onto
// model.Comp and apply the coarse item filters so the retriever never sees
// backend-specific records.
type Backend interface {
	Name() string
	FetchActive(ctx context.Context, query string, limit int) ([]model.Comp, error)
	FetchSold(ctx context.Context, query string, limit int) ([]model.Comp, error)
}

// Filter holds the coarse admissibility checks applied to every raw item.
// These are cheap structural rejections; the strict signature matcher runs
// later in the pipeline.
type Filter struct {
	rules      *rules.RuleSet
	priceFloor float64
	priceCap   float64
}

// NewFilter builds the coarse filter from the rule tables and price bounds.
func NewFilter(rs *rules.RuleSet, floor, cap float64) *Filter {
	return &Filter{rules: rs, priceFloor: floor, priceCap: cap}
}

var (
	cardCountRe = regexp.MustCompile(`\b\d+\s*cards?\b`)
	multiplexRe = regexp.MustCompile(`\bx\d{1,3}\b`)
)

// Admit reports whether a comp title and total price pass the coarse checks.
func (f *Filter) Admit(title string, totalPrice float64) bool {
	if totalPrice < f.priceFloor || totalPrice > f.priceCap {
		return false
	}
	if math.IsNaN(totalPrice) || math.IsInf(totalPrice, 0) {
		return false
	}
	lower := strings.ToLower(title)
	for _, t := range f.rules.GradedTerms() {
		if containsWord(lower, t) {
			return false
		}
	}
	for _, t := range f.rules.LotTerms() {
		if strings.Contains(lower, t) {
			return false
		}
	}
	for _, t := range f.rules.DamageTerms() {
		if strings.Contains(lower, t) {
			return false
		}
	}
	if cardCountRe.MatchString(lower) || multiplexRe.MatchString(lower) {
		return false
	}
	return true
}

// containsWord matches t on token boundaries: "psa" must not reject
// "upsala".
func containsWord(lower, t string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], t)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(t)
		leftOK := start == 0 || !isAlnum(lower[start-1])
		rightOK := end == len(lower) || !isAlnum(lower[end])
		if leftOK && rightOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

// browseBackend adapts the structured-data search client.
type browseBackend struct {
	client browse.Client
	filter *Filter
}

// NewBrowseBackend wraps a structured-search client as a Backend.
func NewBrowseBackend(client browse.Client, filter *Filter) Backend {
	return &browseBackend{client: client, filter: filter}
}

func (b *browseBackend) Name() string { return "browse" }

func (b *browseBackend) FetchActive(ctx context.Context, query string, limit int) ([]model.Comp, error) {
	items, err := b.client.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return b.convert(items), nil
}

func (b *browseBackend) FetchSold(ctx context.Context, query string, limit int) ([]model.Comp, error) {
	items, err := b.client.SearchSold(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return b.convert(items), nil
}

func (b *browseBackend) convert(items []browse.ItemSummary) []model.Comp {
	out := make([]model.Comp, 0, len(items))
	for _, it := range items {
		if !fixedPrice(it.BuyingOptions) {
			continue
		}
		// Grouped listings aggregate variants at one price; their price
		// rarely describes the single card.
		if it.ItemGroupType != "" {
			continue
		}
		total := it.Price.Float() + cheapestShipping(it.ShippingOptions)
		if !b.filter.Admit(it.Title, total) {
			continue
		}
		out = append(out, model.Comp{Title: it.Title, TotalPrice: round2(total), Source: b.Name()})
	}
	return out
}

func fixedPrice(opts []string) bool {
	for _, o := range opts {
		if o == "FIXED_PRICE" {
			return true
		}
	}
	return false
}

func cheapestShipping(opts []browse.ShippingOption) float64 {
	if len(opts) == 0 {
		return 0
	}
	min := math.Inf(1)
	for _, o := range opts {
		if c := o.ShippingCost.Float(); c < min {
			min = c
		}
	}
	if math.IsInf(min, 1) {
		return 0
	}
	return min
}

// findingBackend adapts the keyword search client. The keyword API has no
// sold-listings filter, so FetchSold returns nothing rather than polluting
// the sold pool with active prices.
type findingBackend struct {
	client finding.Client
	filter *Filter
}

// NewFindingBackend wraps a keyword-search client as a Backend.
func NewFindingBackend(client finding.Client, filter *Filter) Backend {
	return &findingBackend{client: client, filter: filter}
}

func (b *findingBackend) Name() string { return "finding" }

func (b *findingBackend) FetchActive(ctx context.Context, query string, limit int) ([]model.Comp, error) {
	items, err := b.client.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Comp, 0, len(items))
	for _, it := range items {
		if lt := it.ListingType(); lt != "" && !strings.Contains(strings.ToLower(lt), "fixed") {
			continue
		}
		total := it.Price() + it.ShippingCost()
		if !b.filter.Admit(it.TitleText(), total) {
			continue
		}
		out = append(out, model.Comp{Title: it.TitleText(), TotalPrice: round2(total), Source: b.Name()})
	}
	return out, nil
}

func (b *findingBackend) FetchSold(ctx context.Context, query string, limit int) ([]model.Comp, error) {
	return nil, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
