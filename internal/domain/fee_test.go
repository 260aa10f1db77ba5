package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeModel_Multiplier(t *testing.T) {
	fees := DefaultFeeModel()

	// 0.25 × (0.5 × 0.5)² = 0.015625
	assert.InDelta(t, 0.015625, fees.Multiplier(0.5), 1e-12)
	assert.Zero(t, fees.Multiplier(0.0))
	assert.Zero(t, fees.Multiplier(1.0))
}

func TestFeeModel_MaxAtMidpoint(t *testing.T) {
	fees := DefaultFeeModel()
	mid := fees.Multiplier(0.5)

	for _, p := range []float64{0.01, 0.1, 0.3, 0.49, 0.51, 0.7, 0.9, 0.99} {
		assert.Less(t, fees.Multiplier(p), mid, "price %.2f", p)
	}
}

func TestFeeModel_Symmetric(t *testing.T) {
	fees := DefaultFeeModel()
	for _, p := range []float64{0.1, 0.25, 0.4} {
		assert.InDelta(t, fees.Multiplier(p), fees.Multiplier(1-p), 1e-12)
	}
}

func TestFeeModel_Fee(t *testing.T) {
	fees := DefaultFeeModel()

	// $200 notional at the midpoint: 200 × 0.015625 = $3.125
	assert.InDelta(t, 3.125, fees.Fee(0.5, 200), 1e-9)
	assert.Zero(t, fees.Fee(1.0, 500))
}
