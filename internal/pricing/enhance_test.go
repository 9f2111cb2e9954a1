package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testEnhanceParams() EnhanceParams {
	return EnhanceParams{
		Enabled:             true,
		VelocityHigh:        4,
		VelocityMedium:      2,
		VelocityBoostHigh:   1.15,
		VelocityBoostMedium: 1.08,
		OversupplyAt:        15,
		OversupplyDiscount:  0.92,
		RareSupplyAt:        3,
		RareBoost:           1.10,
		MaxSwingPct:         30,
	}
}

func TestEnhance_Disabled(t *testing.T) {
	p := testEnhanceParams()
	p.Enabled = false

	got, reason := Enhance(10.00, 10, 1, p)
	assert.InDelta(t, 10.00, got, 1e-9)
	assert.Empty(t, reason)
}

func TestEnhance_VelocityBoost(t *testing.T) {
	p := testEnhanceParams()

	got, reason := Enhance(10.00, 5, 8, p)
	assert.InDelta(t, 11.50, got, 1e-9)
	assert.Contains(t, reason, "high velocity")

	got, reason = Enhance(10.00, 2, 8, p)
	assert.InDelta(t, 10.80, got, 1e-9)
	assert.Contains(t, reason, "steady velocity")
}

func TestEnhance_SupplySignals(t *testing.T) {
	p := testEnhanceParams()

	got, reason := Enhance(10.00, 0, 20, p)
	assert.InDelta(t, 9.20, got, 1e-9)
	assert.Contains(t, reason, "oversupplied")

	got, reason = Enhance(10.00, 0, 2, p)
	assert.InDelta(t, 11.00, got, 1e-9)
	assert.Contains(t, reason, "scarce")
}

func TestEnhance_SwingClamped(t *testing.T) {
	p := testEnhanceParams()
	p.RareBoost = 2.0

	got, _ := Enhance(10.00, 5, 1, p)
	// 1.15 * 2.0 would be +130%; clamped to +30% then human-rounded.
	assert.InDelta(t, 13.00, got, 1e-9)
}

func TestEnhance_NoSignals(t *testing.T) {
	p := testEnhanceParams()

	got, reason := Enhance(10.00, 1, 8, p)
	assert.InDelta(t, 10.00, got, 1e-9)
	assert.Empty(t, reason)
}
