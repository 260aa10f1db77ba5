package domain

// EntryTrigger is a threshold crossing observed on one side of a market.
type EntryTrigger struct {
	Side  MarketSide
	Price float64 // best bid that crossed the threshold
}

// CheckEntryTrigger applies the entry rule to both sides of a market: the
// first side whose best bid reaches the threshold triggers, YES checked
// first. Live trading and the backtester both go through this function so
// the trigger comparison can never diverge between the two paths.
func CheckEntryTrigger(yes, no Ladder, threshold float64) (EntryTrigger, bool) {
	if bid := yes.BestBid(); bid > 0 && bid >= threshold {
		return EntryTrigger{Side: SideYes, Price: bid}, true
	}
	if bid := no.BestBid(); bid > 0 && bid >= threshold {
		return EntryTrigger{Side: SideNo, Price: bid}, true
	}
	return EntryTrigger{}, false
}

// StopLossTriggered applies the early-exit rule: the held side's best bid
// has dropped below the stop-loss threshold. A zero threshold disables the
// stop-loss entirely.
func StopLossTriggered(held Ladder, stopLoss float64) bool {
	if stopLoss <= 0 {
		return false
	}
	bid := held.BestBid()
	return bid > 0 && bid < stopLoss
}

// BuyLimitPrice is the limit price for an entry order: threshold plus
// margin, capped at the venue maximum tick of 0.99.
func BuyLimitPrice(threshold, margin float64) float64 {
	price := threshold + margin
	if price > 0.99 {
		price = 0.99
	}
	return price
}

// EarlySellPrice is the limit price for a stop-loss exit: stop-loss
// threshold minus the sell margin, floored at the minimum tick of 0.01.
func EarlySellPrice(stopLoss, marginSell float64) float64 {
	price := stopLoss - marginSell
	if price < 0.01 {
		price = 0.01
	}
	return price
}
