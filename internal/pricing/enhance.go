package pricing

import (
	"fmt"
	"strings"
)

// EnhanceParams tunes the post-suggestion market adjustments.
type EnhanceParams struct {
	Enabled             bool
	VelocityHigh        int
	VelocityMedium      int
	VelocityBoostHigh   float64
	VelocityBoostMedium float64
	OversupplyAt        int
	OversupplyDiscount  float64
	RareSupplyAt        int
	RareBoost           float64
	// MaxSwingPct bounds the total adjustment either way.
	MaxSwingPct float64
}

// Enhance nudges a base suggestion by sales velocity and supply signals.
// soldCount and activeCount are the surviving comp counts, not raw retrieval
// counts. The combined adjustment is clamped to MaxSwingPct of the base and
// the result is human-rounded. Returns the adjusted price and the reasons
// that fired.
func Enhance(base float64, soldCount, activeCount int, p EnhanceParams) (float64, string) {
	if !p.Enabled || base <= 0 {
		return base, ""
	}

	mult := 1.0
	var reasons []string

	switch {
	case p.VelocityHigh > 0 && soldCount >= p.VelocityHigh:
		mult *= p.VelocityBoostHigh
		reasons = append(reasons, fmt.Sprintf("high velocity (%d sold)", soldCount))
	case p.VelocityMedium > 0 && soldCount >= p.VelocityMedium:
		mult *= p.VelocityBoostMedium
		reasons = append(reasons, fmt.Sprintf("steady velocity (%d sold)", soldCount))
	}

	switch {
	case p.OversupplyAt > 0 && activeCount >= p.OversupplyAt:
		mult *= p.OversupplyDiscount
		reasons = append(reasons, fmt.Sprintf("oversupplied (%d active)", activeCount))
	case p.RareSupplyAt > 0 && activeCount > 0 && activeCount <= p.RareSupplyAt:
		mult *= p.RareBoost
		reasons = append(reasons, fmt.Sprintf("scarce (%d active)", activeCount))
	}

	if len(reasons) == 0 {
		return base, ""
	}

	adjusted := base * mult
	if p.MaxSwingPct > 0 {
		lo := base * (1 - p.MaxSwingPct/100)
		hi := base * (1 + p.MaxSwingPct/100)
		if adjusted < lo {
			adjusted = lo
		}
		if adjusted > hi {
			adjusted = hi
		}
	}
	return HumanRound(adjusted), "Adjusted: " + strings.Join(reasons, ", ")
}
