// Package pricing reduces filtered comp price lists into a bounded,
// human-rounded price suggestion.
package pricing

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/monterey-cards/repricer/internal/model"
)

// Params tunes the pricing computation.
type Params struct {
	// LowestK bounds the active statistic to the K cheapest listings.
	LowestK int
	// PriceFloor is the absolute minimum suggestion.
	PriceFloor float64
	// MaxDropPct caps a single-pass drop relative to the current price.
	MaxDropPct float64
	// HighPriceAt and HighPriceFloor protect valuable listings: a listing
	// currently at or above HighPriceAt never gets a suggestion below
	// HighPriceFloor.
	HighPriceAt    float64
	HighPriceFloor float64
}

// Engine computes price suggestions.
type Engine struct {
	params Params
}

// NewEngine creates an Engine. Zero params get conservative defaults.
func NewEngine(p Params) *Engine {
	if p.LowestK <= 0 {
		p.LowestK = 5
	}
	if p.PriceFloor <= 0 {
		p.PriceFloor = 1.50
	}
	if p.MaxDropPct <= 0 {
		p.MaxDropPct = 40
	}
	return &Engine{params: p}
}

// Price derives a suggestion from active and sold comp prices plus the
// listing's current price (zero disables the relative clamps). Every clamp
// that fires appends a reason to the note; the note is an audit trail, not a
// format contract.
func (e *Engine) Price(active, sold []float64, currentPrice float64) model.PriceSuggestion {
	var notes []string

	activeClean := clean(active)
	soldClean := clean(sold)

	var medianActive, medianSold *float64
	if len(activeClean) > 0 {
		m := lowestKMedian(activeClean, e.params.LowestK)
		medianActive = &m
	}
	if len(soldClean) > 0 {
		m := median(soldClean)
		medianSold = &m
	}

	// A handful of sold observations wildly above the active market is
	// outlier skew, not signal.
	if medianActive != nil && medianSold != nil &&
		len(soldClean) <= 3 && *medianSold > 2**medianActive {
		medianSold = nil
		notes = append(notes, "Sold median discarded (small sample, 2x active)")
	}

	var base float64
	switch {
	case medianActive != nil:
		base = *medianActive
	case medianSold != nil:
		base = *medianSold
	default:
		return model.PriceSuggestion{Note: "No data"}
	}

	suggested := HumanRound(base)

	if suggested < e.params.PriceFloor {
		suggested = e.params.PriceFloor
		notes = append(notes, fmt.Sprintf("Floored at %.2f", e.params.PriceFloor))
	}

	if currentPrice > 0 {
		minByDrop := round2(currentPrice * (1 - e.params.MaxDropPct/100))
		if suggested < minByDrop {
			suggested = minByDrop
			notes = append(notes, fmt.Sprintf("Drop capped at %.0f%%", e.params.MaxDropPct))
		}
		if e.params.HighPriceAt > 0 && currentPrice >= e.params.HighPriceAt &&
			suggested < e.params.HighPriceFloor {
			suggested = e.params.HighPriceFloor
			notes = append(notes, fmt.Sprintf("High-price floor %.2f", e.params.HighPriceFloor))
		}
		if suggested < e.params.PriceFloor {
			suggested = e.params.PriceFloor
			notes = append(notes, fmt.Sprintf("Floored at %.2f", e.params.PriceFloor))
		}
	}

	return model.PriceSuggestion{
		MedianSold:     medianSold,
		MedianActive:   medianActive,
		SuggestedPrice: &suggested,
		Note:           strings.Join(notes, "; "),
	}
}

// clean drops non-positive and non-finite values.
func clean(prices []float64) []float64 {
	out := make([]float64, 0, len(prices))
	for _, p := range prices {
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// lowestKMedian sorts ascending, keeps the K cheapest and takes their median.
// The cheapest fixed-price actives are the competitive benchmark, not a
// representative sample.
func lowestKMedian(prices []float64, k int) float64 {
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	if len(sorted) > k {
		sorted = sorted[:k]
	}
	return median(sorted)
}

// median of a non-empty slice; even length takes the mean of the two middle
// elements rounded to cents.
func median(prices []float64) float64 {
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return round2((sorted[n/2-1] + sorted[n/2]) / 2)
}

// endings is the palette of retail cents values: .x0, .x5, .x9 per dime.
var endings = func() []int {
	var out []int
	for d := 0; d < 100; d += 10 {
		out = append(out, d, d+5, d+9)
	}
	return out
}()

// HumanRound snaps the cents portion of a price to the nearest palette
// ending, keeping the whole-dollar part. Idempotent: palette values map to
// themselves. Ties snap to the lower ending.
func HumanRound(price float64) float64 {
	if price <= 0 {
		return price
	}
	dollars := math.Floor(price)
	cents := (price - dollars) * 100

	best := endings[0]
	bestDist := math.Abs(cents - float64(best))
	for _, e := range endings[1:] {
		if d := math.Abs(cents - float64(e)); d < bestDist {
			best, bestDist = e, d
		}
	}
	return round2(dollars + float64(best)/100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
