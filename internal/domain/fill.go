package domain

// OrderSide distinguishes the taker direction of a simulated fill.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// FillResult is what a simulated execution against a ladder produces.
// FilledSize may be smaller than the requested size when the book runs out
// of depth; a partial fill is a first-class outcome, not an error.
type FillResult struct {
	FilledSize float64 // shares executed, never above the requested size
	AvgPrice   float64 // size-weighted average price, 0 if nothing filled
	Notional   float64 // dollars spent (buy) or received (sell)
}

// Filled reports whether any shares executed.
func (r FillResult) Filled() bool { return r.FilledSize > 0 }

// SimulateFill walks the ladder to execute targetSize shares at limitPrice.
// A buy consumes ask levels from best to worst while level price <= limit;
// a sell mirrors against bids while level price >= limit. Pure and
// deterministic: identical inputs always reproduce identical outputs, which
// is what makes backtests replayable.
func SimulateFill(l Ladder, side OrderSide, limitPrice, targetSize float64) FillResult {
	if targetSize <= 0 {
		return FillResult{}
	}

	var levels []BookLevel
	if side == SideBuy {
		levels = l.Asks
	} else {
		levels = l.Bids
	}

	var filled, notional float64
	remaining := targetSize

	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		if side == SideBuy && lvl.Price > limitPrice {
			break
		}
		if side == SideSell && lvl.Price < limitPrice {
			break
		}

		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		filled += take
		notional += take * lvl.Price
		remaining -= take
	}

	if filled == 0 {
		return FillResult{}
	}
	return FillResult{
		FilledSize: filled,
		AvgPrice:   notional / filled,
		Notional:   notional,
	}
}

// WalkAsksForStake spends up to dollarAmount against ask levels priced in
// [bidPrice, maxPrice], walking upward from the cheapest eligible level.
// Levels below the resting bid are ignored; if cheaper asks existed the bid
// would already have matched, so only the visible overhang is assumed
// fillable. Used by the backtester to fill a dollar-sized bid across
// successive snapshots.
func WalkAsksForStake(l Ladder, bidPrice, dollarAmount, maxPrice float64) FillResult {
	if dollarAmount <= 0 || len(l.Asks) == 0 {
		return FillResult{}
	}

	var filled, cost float64
	remaining := dollarAmount

	for _, lvl := range l.Asks {
		if remaining <= 0 {
			break
		}
		if lvl.Price < bidPrice {
			continue
		}
		if lvl.Price > maxPrice {
			break
		}

		affordable := remaining / lvl.Price
		take := lvl.Size
		if take > affordable {
			take = affordable
		}
		cost += take * lvl.Price
		filled += take
		remaining -= take * lvl.Price
	}

	if filled == 0 {
		return FillResult{}
	}
	return FillResult{
		FilledSize: filled,
		AvgPrice:   cost / filled,
		Notional:   cost,
	}
}
