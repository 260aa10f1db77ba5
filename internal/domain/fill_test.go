package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLadder() Ladder {
	return Ladder{
		TokenID: "tok-1",
		Bids: []BookLevel{
			{Price: 0.40, Size: 100},
			{Price: 0.38, Size: 200},
			{Price: 0.35, Size: 50},
		},
		Asks: []BookLevel{
			{Price: 0.42, Size: 80},
			{Price: 0.45, Size: 120},
			{Price: 0.50, Size: 300},
		},
	}
}

func TestSimulateFill_BuyWalksAsks(t *testing.T) {
	r := SimulateFill(testLadder(), SideBuy, 0.45, 150)

	require.True(t, r.Filled())
	assert.InDelta(t, 150, r.FilledSize, 1e-9)
	// 80 @ 0.42 + 70 @ 0.45
	assert.InDelta(t, 80*0.42+70*0.45, r.Notional, 1e-9)
	assert.InDelta(t, r.Notional/150, r.AvgPrice, 1e-9)
	// Average price stays within the consumed level range.
	assert.GreaterOrEqual(t, r.AvgPrice, 0.42)
	assert.LessOrEqual(t, r.AvgPrice, 0.45)
}

func TestSimulateFill_BuyStopsAtLimit(t *testing.T) {
	// Limit 0.42: only the first ask level is eligible.
	r := SimulateFill(testLadder(), SideBuy, 0.42, 500)

	assert.InDelta(t, 80, r.FilledSize, 1e-9)
	assert.InDelta(t, 0.42, r.AvgPrice, 1e-9)
}

func TestSimulateFill_PartialOnThinBook(t *testing.T) {
	// Entire ask side holds 500 shares; asking for more is a partial.
	r := SimulateFill(testLadder(), SideBuy, 0.99, 1000)

	assert.Less(t, r.FilledSize, 1000.0)
	assert.InDelta(t, 500, r.FilledSize, 1e-9)
}

func TestSimulateFill_NeverExceedsTarget(t *testing.T) {
	for _, target := range []float64{1, 79, 80, 81, 500, 10000} {
		r := SimulateFill(testLadder(), SideBuy, 0.99, target)
		assert.LessOrEqual(t, r.FilledSize, target, "target %.0f", target)
	}
}

func TestSimulateFill_SellWalksBids(t *testing.T) {
	r := SimulateFill(testLadder(), SideSell, 0.38, 250)

	assert.InDelta(t, 250, r.FilledSize, 1e-9)
	// 100 @ 0.40 + 150 @ 0.38
	assert.InDelta(t, 100*0.40+150*0.38, r.Notional, 1e-9)
}

func TestSimulateFill_SellBelowAllBids(t *testing.T) {
	r := SimulateFill(testLadder(), SideSell, 0.45, 10)
	assert.False(t, r.Filled())
}

func TestSimulateFill_EmptyAndZeroTarget(t *testing.T) {
	assert.False(t, SimulateFill(Ladder{}, SideBuy, 0.5, 100).Filled())
	assert.False(t, SimulateFill(testLadder(), SideBuy, 0.5, 0).Filled())
}

func TestWalkAsksForStake_SpendsUpward(t *testing.T) {
	r := WalkAsksForStake(testLadder(), 0.42, 50.0, 0.99)

	require.True(t, r.Filled())
	assert.InDelta(t, 50.0, r.Notional, 0.50)
	assert.GreaterOrEqual(t, r.AvgPrice, 0.42)
}

func TestWalkAsksForStake_IgnoresAsksBelowBid(t *testing.T) {
	// Bid at 0.46: the 0.42 and 0.45 levels are not assumed fillable.
	r := WalkAsksForStake(testLadder(), 0.46, 10.0, 0.99)

	require.True(t, r.Filled())
	assert.InDelta(t, 0.50, r.AvgPrice, 1e-9)
}

func TestWalkAsksForStake_Deterministic(t *testing.T) {
	a := WalkAsksForStake(testLadder(), 0.42, 75.0, 0.99)
	b := WalkAsksForStake(testLadder(), 0.42, 75.0, 0.99)
	assert.Equal(t, a, b)
}
