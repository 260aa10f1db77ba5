package domain

import "math"

// FeeModel is the venue fee curve: fee = notional × rate × (p(1−p))^exponent.
// Maximal at p = 0.5, zero at the price extremes. Applied symmetrically to
// buy and sell legs, and queryable on its own; sizing uses it to gross up
// order size pre-trade, settlement uses it for realized ROI post-trade.
type FeeModel struct {
	Rate     float64
	Exponent int
}

// DefaultFeeModel matches the venue's published curve (rate 0.25, exponent 2).
func DefaultFeeModel() FeeModel {
	return FeeModel{Rate: 0.25, Exponent: 2}
}

// Multiplier returns the fee fraction of notional at a given price.
func (f FeeModel) Multiplier(price float64) float64 {
	p := price * (1 - price)
	if p <= 0 {
		return 0
	}
	return f.Rate * math.Pow(p, float64(f.Exponent))
}

// Fee returns the dollar fee for trading notionalValue at price.
func (f FeeModel) Fee(price, notionalValue float64) float64 {
	return notionalValue * f.Multiplier(price)
}
