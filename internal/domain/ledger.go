package domain

import "time"

// PrincipalEntry is one link in the append-only capital chain. The After of
// entry n becomes the Before of entry n+1; this chain is the sole source of
// truth for the bankroll available to new positions.
type PrincipalEntry struct {
	Timestamp   time.Time
	Before      float64
	After       float64
	RealizedPnL float64
	PositionID  string
}

// Settlement is the realized result of a closed position. ROI is computed
// uniformly as netPayout / (dollarsSpent + buyFee) across every exit path.
type Settlement struct {
	Won       bool
	Payout    float64 // gross dollars back (proceeds or redemption value)
	SellFee   float64 // fee on the sell leg, actual or redemption-equivalent
	NetPayout float64 // payout − sellFee − dollarsSpent − buyFee
	ROI       float64
}

// ComputeROI returns netPayout over total cost basis (spend plus buy fee).
func ComputeROI(netPayout, dollarsSpent, buyFee float64) float64 {
	cost := dollarsSpent + buyFee
	if cost <= 0 {
		return 0
	}
	return netPayout / cost
}

// BetWon resolves win/loss from the final outcome price of the held side:
// a YES holder wins when the market resolves above 0.5, a NO holder below.
func BetWon(outcomePrice float64, side MarketSide) bool {
	if side == SideYes {
		return outcomePrice > 0.5
	}
	return outcomePrice < 0.5
}

// SettleFilledSell settles a position whose sell order fully filled.
func SettleFilledSell(proceeds, sellFee, dollarsSpent, buyFee float64) Settlement {
	net := proceeds - sellFee - dollarsSpent - buyFee
	return Settlement{
		Won:       net > 0,
		Payout:    proceeds,
		SellFee:   sellFee,
		NetPayout: net,
		ROI:       ComputeROI(net, dollarsSpent, buyFee),
	}
}

// SettleUnfilledSell settles a position held through resolution with no
// sell fill. A losing side is worthless; a winning side redeems at par,
// charged a sell-fee equivalent as if sold at $1.00.
func SettleUnfilledSell(outcomePrice, filledShares float64, side MarketSide, dollarsSpent, buyFee float64, fees FeeModel) Settlement {
	if !BetWon(outcomePrice, side) {
		net := -dollarsSpent - buyFee
		return Settlement{
			Won:       false,
			NetPayout: net,
			ROI:       ComputeROI(net, dollarsSpent, buyFee),
		}
	}

	payout := outcomePrice * filledShares
	sellFee := fees.Fee(1.0, payout)
	net := payout - sellFee - dollarsSpent - buyFee
	return Settlement{
		Won:       true,
		Payout:    payout,
		SellFee:   sellFee,
		NetPayout: net,
		ROI:       ComputeROI(net, dollarsSpent, buyFee),
	}
}

// SettlePartialSell settles a position whose sell order filled only partly
// before resolution: proceeds from the sold shares plus the redemption
// value of the remainder.
func SettlePartialSell(
	proceeds, sellFee float64,
	boughtShares, soldShares, outcomePrice float64,
	side MarketSide,
	dollarsSpent, buyFee float64,
	fees FeeModel,
) Settlement {
	remaining := boughtShares - soldShares
	if remaining < 0 {
		remaining = 0
	}

	var remainingValue, remainingFee float64
	won := BetWon(outcomePrice, side)
	if won {
		remainingValue = outcomePrice * remaining
		remainingFee = fees.Fee(outcomePrice, remainingValue)
	}

	payout := proceeds + remainingValue
	totalSellFee := sellFee + remainingFee
	net := payout - totalSellFee - dollarsSpent - buyFee
	return Settlement{
		Won:       won,
		Payout:    payout,
		SellFee:   totalSellFee,
		NetPayout: net,
		ROI:       ComputeROI(net, dollarsSpent, buyFee),
	}
}
