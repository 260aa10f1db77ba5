package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeROI(t *testing.T) {
	assert.InDelta(t, 0.25, ComputeROI(25, 95, 5), 1e-12)
	assert.InDelta(t, -1.0, ComputeROI(-100, 95, 5), 1e-12)
	assert.Zero(t, ComputeROI(10, 0, 0))
}

func TestBetWon(t *testing.T) {
	assert.True(t, BetWon(1.0, SideYes))
	assert.False(t, BetWon(0.0, SideYes))
	assert.True(t, BetWon(0.0, SideNo))
	assert.False(t, BetWon(1.0, SideNo))
}

func TestSettleFilledSell(t *testing.T) {
	// Bought $85 + $0.40 fee, sold for $95 with $0.10 fee.
	s := SettleFilledSell(95, 0.10, 85, 0.40)

	assert.True(t, s.Won)
	assert.InDelta(t, 95-0.10-85-0.40, s.NetPayout, 1e-9)
	assert.InDelta(t, s.NetPayout/(85+0.40), s.ROI, 1e-9)

	loss := SettleFilledSell(40, 0.05, 85, 0.40)
	assert.False(t, loss.Won)
	assert.Negative(t, loss.NetPayout)
}

func TestSettleUnfilledSell_Loss(t *testing.T) {
	s := SettleUnfilledSell(0.0, 100, SideYes, 85, 0.40, DefaultFeeModel())

	assert.False(t, s.Won)
	assert.InDelta(t, -85.40, s.NetPayout, 1e-9)
	assert.InDelta(t, -1.0, s.ROI, 1e-9)
}

func TestSettleUnfilledSell_WinRedeemsAtPar(t *testing.T) {
	fees := DefaultFeeModel()
	s := SettleUnfilledSell(1.0, 100, SideYes, 85, 0.40, fees)

	assert.True(t, s.Won)
	assert.InDelta(t, 100, s.Payout, 1e-9)
	// Redemption fee is charged at price 1.00, where the curve is zero.
	assert.Zero(t, s.SellFee)
	assert.InDelta(t, 100-85-0.40, s.NetPayout, 1e-9)
}

func TestSettlePartialSell(t *testing.T) {
	fees := DefaultFeeModel()

	// 100 bought, 60 sold for $57 before a YES win; 40 redeem at par.
	s := SettlePartialSell(57, 0.08, 100, 60, 1.0, SideYes, 85, 0.40, fees)

	assert.True(t, s.Won)
	assert.InDelta(t, 57+40, s.Payout, 1e-9)
	assert.InDelta(t, (57+40)-0.08-85-0.40, s.NetPayout, 1e-9)

	// Same partial on a loss: only the sold shares came back.
	l := SettlePartialSell(57, 0.08, 100, 60, 0.0, SideYes, 85, 0.40, fees)
	assert.False(t, l.Won)
	assert.InDelta(t, 57.0, l.Payout, 1e-9)
	assert.InDelta(t, 57-0.08-85-0.40, l.NetPayout, 1e-9)
}

func TestPrincipalChain(t *testing.T) {
	entries := []PrincipalEntry{
		{Before: 1000, RealizedPnL: 25},
		{RealizedPnL: -40},
		{RealizedPnL: 12.5},
	}

	// Chain the entries the way the ledger does on append.
	for i := range entries {
		if i > 0 {
			entries[i].Before = entries[i-1].After
		}
		entries[i].After = entries[i].Before + entries[i].RealizedPnL
	}

	assert.InDelta(t, 1025, entries[0].After, 1e-9)
	assert.InDelta(t, 1025, entries[1].Before, 1e-9)
	assert.InDelta(t, 985, entries[1].After, 1e-9)
	assert.InDelta(t, 997.5, entries[2].After, 1e-9)
}
