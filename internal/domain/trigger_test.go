package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ladderWithBid(bid float64) Ladder {
	return Ladder{
		Bids: []BookLevel{{Price: bid, Size: 100}},
		Asks: []BookLevel{{Price: bid + 0.02, Size: 100}},
	}
}

func TestCheckEntryTrigger(t *testing.T) {
	yes := ladderWithBid(0.86)
	no := ladderWithBid(0.10)

	trig, ok := CheckEntryTrigger(yes, no, 0.85)
	require.True(t, ok)
	assert.Equal(t, SideYes, trig.Side)
	assert.InDelta(t, 0.86, trig.Price, 1e-9)
}

func TestCheckEntryTrigger_NoSide(t *testing.T) {
	trig, ok := CheckEntryTrigger(ladderWithBid(0.10), ladderWithBid(0.88), 0.85)
	require.True(t, ok)
	assert.Equal(t, SideNo, trig.Side)
}

func TestCheckEntryTrigger_YesWinsTies(t *testing.T) {
	// Both sides over threshold: YES is checked first.
	trig, ok := CheckEntryTrigger(ladderWithBid(0.86), ladderWithBid(0.87), 0.85)
	require.True(t, ok)
	assert.Equal(t, SideYes, trig.Side)
}

func TestCheckEntryTrigger_BelowThreshold(t *testing.T) {
	_, ok := CheckEntryTrigger(ladderWithBid(0.84), ladderWithBid(0.50), 0.85)
	assert.False(t, ok)

	// Exact threshold crossing counts.
	_, ok = CheckEntryTrigger(ladderWithBid(0.85), Ladder{}, 0.85)
	assert.True(t, ok)
}

func TestStopLossTriggered(t *testing.T) {
	assert.True(t, StopLossTriggered(ladderWithBid(0.69), 0.70))
	assert.False(t, StopLossTriggered(ladderWithBid(0.70), 0.70))
	assert.False(t, StopLossTriggered(ladderWithBid(0.90), 0.70))

	// Zero disables; an empty book never triggers.
	assert.False(t, StopLossTriggered(ladderWithBid(0.01), 0))
	assert.False(t, StopLossTriggered(Ladder{}, 0.70))
}

func TestBuyLimitPrice(t *testing.T) {
	assert.InDelta(t, 0.87, BuyLimitPrice(0.85, 0.02), 1e-9)
	assert.InDelta(t, 0.99, BuyLimitPrice(0.98, 0.05), 1e-9)
}

func TestEarlySellPrice(t *testing.T) {
	assert.InDelta(t, 0.68, EarlySellPrice(0.70, 0.02), 1e-9)
	assert.InDelta(t, 0.01, EarlySellPrice(0.02, 0.05), 1e-9)
}
