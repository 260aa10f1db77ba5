package domain

import (
	"fmt"
	"math"
)

// SizingConfig holds the risk parameters for Kelly-based position sizing.
type SizingConfig struct {
	ScaleFactor float64 // conservatism multiplier applied to Kelly (< 1)
	MaxStake    float64 // hard dollar cap per position
	MinNotional float64 // venue-imposed minimum order value
}

// Sizing is the resolved order size for a buy at a given price.
type Sizing struct {
	Shares         int     // whole shares to order (fractional not representable)
	Value          float64 // Shares × price
	KellyStake     float64 // dollars Kelly wanted before caps
	EstFee         float64 // fee on Value at the entry price
	SharesAfterFee float64 // shares actually credited once the fee is taken
}

// KellyFromEdge computes the Kelly fraction for buying a binary outcome at
// price p with estimated win probability q. Payout odds are b = (1−p)/p, so
// f* = (qb − (1−q))/b, which reduces to (q − p)/(1 − p). Negative edge
// clamps to zero: no bet.
func KellyFromEdge(winProb, price float64) float64 {
	if price <= 0 || price >= 1 {
		return 0
	}
	f := (winProb - price) / (1 - price)
	if f < 0 {
		return 0
	}
	return f
}

// SizeOrder converts bankroll plus a Kelly fraction into a whole-share buy
// order at price, grossing the size up so that after the fee is subtracted
// the holder still ends up with the Kelly-desired share count. The gross-up
// is closed-form: the fee reduces shares credited by a factor
// (1 − multiplier), so shares to order = desired / (1 − multiplier).
//
// Returns ErrInsufficientStake when the minimum notional cannot be met
// within MaxStake after rounding; the caller must not place an order.
func SizeOrder(bankroll, kellyFraction, price float64, fees FeeModel, cfg SizingConfig) (Sizing, error) {
	if price <= 0 || price >= 1 {
		return Sizing{}, fmt.Errorf("domain.SizeOrder: price %.4f outside (0, 1)", price)
	}

	stake := bankroll * kellyFraction * cfg.ScaleFactor
	if stake > cfg.MaxStake {
		stake = cfg.MaxStake
	}
	if stake > bankroll {
		stake = bankroll
	}

	s := Sizing{KellyStake: stake}
	if stake <= 0 {
		return s, ErrInsufficientStake
	}

	mult := fees.Multiplier(price)
	desiredShares := stake / price
	grossShares := desiredShares
	if mult < 1 {
		grossShares = desiredShares / (1 - mult)
	}

	// Cap the fee-adjusted value at MaxStake, then round down to whole
	// shares; the venue does not represent fractional ownership.
	if grossShares*price > cfg.MaxStake {
		grossShares = cfg.MaxStake / price
	}
	shares := int(math.Floor(grossShares))
	if shares < 1 {
		return s, ErrInsufficientStake
	}

	value := float64(shares) * price
	if value < cfg.MinNotional {
		// Bump up to the smallest whole-share order meeting the floor.
		minShares := int(math.Ceil(cfg.MinNotional / price))
		bumped := float64(minShares) * price
		if bumped > cfg.MaxStake {
			return s, ErrInsufficientStake
		}
		shares = minShares
		value = bumped
	}

	s.Shares = shares
	s.Value = value
	s.EstFee = fees.Fee(price, value)
	s.SharesAfterFee = float64(shares) * (1 - mult)
	return s, nil
}
