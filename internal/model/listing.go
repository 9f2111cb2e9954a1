// Package model holds the shared data types passed between the repricer's
// pipeline stages.
package model

import (
	"strings"
	"time"
)

// Listing is a subject item to be repriced. CurrentPrice may be zero when the
// caller has no live price, which disables the relative clamp stage.
type Listing struct {
	ItemID       string  `json:"item_id,omitempty"`
	Title        string  `json:"title"`
	CurrentPrice float64 `json:"current_price,omitempty"`
}

// Comp is a comparable marketplace listing used as pricing evidence.
// TotalPrice is item price plus the cheapest shipping option.
type Comp struct {
	Title      string  `json:"title"`
	TotalPrice float64 `json:"total_price"`
	Source     string  `json:"source,omitempty"`
}

// Key returns the dedupe key for a comp: the same physical listing reached
// via two different queries must collapse to one entry.
func (c Comp) Key() CompKey {
	return CompKey{Title: strings.ToLower(strings.TrimSpace(c.Title)), Price: c.TotalPrice}
}

// CompKey identifies a comp across queries and backends.
type CompKey struct {
	Title string
	Price float64
}

// PriceSuggestion is the transient result of one pricing computation.
// Nil pointer fields mean "no data for that statistic".
type PriceSuggestion struct {
	MedianSold     *float64 `json:"median_sold"`
	MedianActive   *float64 `json:"median_active"`
	SuggestedPrice *float64 `json:"suggested_price"`
	Note           string   `json:"note"`
}

// NoData reports whether the computation produced no usable price.
func (p PriceSuggestion) NoData() bool {
	return p.SuggestedPrice == nil
}

// RepriceStatus classifies the outcome of pricing one listing.
type RepriceStatus string

const (
	RepriceStatusSuggested RepriceStatus = "suggested"
	RepriceStatusUnchanged RepriceStatus = "unchanged"
	RepriceStatusNoData    RepriceStatus = "no_data"
	RepriceStatusFailed    RepriceStatus = "failed"
)

// RepriceResult is the per-listing output of a pricing run.
type RepriceResult struct {
	Listing     Listing         `json:"listing"`
	Suggestion  PriceSuggestion `json:"suggestion"`
	Status      RepriceStatus   `json:"status"`
	ActiveComps int             `json:"active_comps"`
	SoldComps   int             `json:"sold_comps"`
	FromCache   bool            `json:"from_cache"`
	Error       string          `json:"error,omitempty"`
	Elapsed     time.Duration   `json:"elapsed,omitempty"`
}
