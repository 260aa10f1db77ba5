package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
	"github.com/alejandrodnm/thresholdbot/internal/ports"
)

// tightMarginWindow bounds how long a tight-margin entry may keep filling:
// with margin under two ticks the order only trades during the momentum that
// produced the crossing, so fills observed long after it are fiction.
const (
	tightMargin       = 0.02
	tightMarginWindow = time.Minute
	maxBuyPrice       = 0.99
)

// MarketHistory is the recorded input for one market: chronological book
// snapshots for both sides plus how the market finally resolved.
type MarketHistory struct {
	MarketID     string
	Yes          []domain.Ladder
	No           []domain.Ladder
	OutcomePrice float64 // final YES price
}

// Settings are the fixed strategy knobs shared by every grid point.
type Settings struct {
	StopLoss   float64
	MarginSell float64
	Fees       domain.FeeModel
}

// Driver replays recorded markets against parameter sets. It is pure over
// its inputs: the same histories and params always produce the same result.
type Driver struct {
	histories []MarketHistory
	settings  Settings

	// maxBid per market, both sides, precomputed once: a grid point whose
	// threshold exceeds it can skip the market without replaying it.
	maxBid map[string]float64
}

// NewDriver indexes the recorded histories for replay.
func NewDriver(histories []MarketHistory, settings Settings) *Driver {
	if settings.Fees == (domain.FeeModel{}) {
		settings.Fees = domain.DefaultFeeModel()
	}

	maxBid := make(map[string]float64, len(histories))
	for _, h := range histories {
		var top float64
		for _, l := range append(append([]domain.Ladder{}, h.Yes...), h.No...) {
			if bid := l.BestBid(); bid > top {
				top = bid
			}
		}
		maxBid[h.MarketID] = top
	}

	return &Driver{histories: histories, settings: settings, maxBid: maxBid}
}

// LoadHistories pulls every recorded market from snapshot storage and its
// final outcome from the resolution oracle. Unresolved markets are skipped:
// without an outcome there is nothing to score.
func LoadHistories(ctx context.Context, snaps ports.SnapshotStorage, oracle ports.ResolutionOracle, markets []MarketTokens) ([]MarketHistory, error) {
	histories := make([]MarketHistory, 0, len(markets))
	for _, m := range markets {
		status, err := oracle.MarketStatus(ctx, m.MarketID)
		if err != nil {
			return nil, fmt.Errorf("backtest.LoadHistories: status %s: %w", m.MarketID, err)
		}
		if !status.Resolved {
			slog.Debug("backtest: skipping unresolved market", "market", m.MarketID)
			continue
		}

		yes, err := snaps.LoadLadders(ctx, m.YesTokenID, time.Time{}, time.Now())
		if err != nil {
			return nil, fmt.Errorf("backtest.LoadHistories: yes ladders %s: %w", m.MarketID, err)
		}
		no, err := snaps.LoadLadders(ctx, m.NoTokenID, time.Time{}, time.Now())
		if err != nil {
			return nil, fmt.Errorf("backtest.LoadHistories: no ladders %s: %w", m.MarketID, err)
		}
		if len(yes) == 0 && len(no) == 0 {
			continue
		}

		histories = append(histories, MarketHistory{
			MarketID:     m.MarketID,
			Yes:          yes,
			No:           no,
			OutcomePrice: status.OutcomePrice,
		})
	}
	return histories, nil
}

// MarketTokens maps a market to its two outcome tokens in snapshot storage.
type MarketTokens struct {
	MarketID   string
	YesTokenID string
	NoTokenID  string
}

// Run replays every market under one parameter set.
func (d *Driver) Run(params domain.ParamSet) domain.BacktestResult {
	outcomes := make([]domain.TradeOutcome, 0, len(d.histories))
	for _, h := range d.histories {
		if d.maxBid[h.MarketID] < params.Threshold {
			continue
		}
		if out, ok := d.replayMarket(h, params); ok {
			outcomes = append(outcomes, out)
		}
	}
	return domain.BacktestResult{
		Params:   params,
		Metrics:  ComputeMetrics(outcomes, params.Stake),
		Outcomes: outcomes,
	}
}

// replayMarket walks one market's snapshots chronologically: find the first
// sustained crossing, then accumulate fills at the entry limit across the
// following snapshots, then settle against the recorded outcome.
func (d *Driver) replayMarket(h MarketHistory, params domain.ParamSet) (domain.TradeOutcome, bool) {
	n := len(h.Yes)
	if len(h.No) > n {
		n = len(h.No)
	}

	snapAt := func(series []domain.Ladder, i int) domain.Ladder {
		if i < len(series) {
			return series[i]
		}
		return domain.Ladder{}
	}

	for i := 0; i < n; i++ {
		yes, no := snapAt(h.Yes, i), snapAt(h.No, i)
		if badSnapshot(yes) || badSnapshot(no) {
			continue
		}

		trig, ok := domain.CheckEntryTrigger(yes, no, params.Threshold)
		if !ok {
			continue
		}

		series := h.Yes
		if trig.Side == domain.SideNo {
			series = h.No
		}
		return d.simulateEntry(h, params, trig, series, i), true
	}
	return domain.TradeOutcome{}, false
}

// simulateEntry fills the entry order across snapshots from the trigger
// onward, honoring the fill window, then settles.
func (d *Driver) simulateEntry(h MarketHistory, params domain.ParamSet, trig domain.EntryTrigger, series []domain.Ladder, start int) domain.TradeOutcome {
	bidPrice := domain.BuyLimitPrice(params.Threshold, params.Margin)
	triggeredAt := series[start].Timestamp

	window := time.Duration(0)
	if params.Margin < tightMargin {
		window = tightMarginWindow
	}

	out := domain.TradeOutcome{
		MarketID:     h.MarketID,
		Side:         trig.Side,
		TriggerTime:  triggeredAt,
		TriggerPrice: trig.Price,
		BidPrice:     bidPrice,
	}

	remaining := params.Stake
	var shares, spent float64
	var fillAt *time.Time

	for i := start; i < len(series) && remaining > 1e-9; i++ {
		snap := series[i]
		if badSnapshot(snap) {
			continue
		}
		if window > 0 && snap.Timestamp.Sub(triggeredAt) > window {
			break
		}

		r := domain.WalkAsksForStake(snap, bidPrice, remaining, maxBuyPrice)
		if !r.Filled() {
			continue
		}
		shares += r.FilledSize
		spent += r.Notional
		remaining -= r.Notional
		t := snap.Timestamp
		fillAt = &t
	}

	if shares <= 0 {
		// Triggered but never filled: scored as a zero-cost no-trade so the
		// grid still sees how often this threshold fires.
		out.ROI = 0
		return out
	}

	avgPrice := spent / shares
	out.FillPrice = avgPrice
	out.FilledShares = shares
	out.DollarsSpent = spent
	out.Fee = d.settings.Fees.Fee(avgPrice, spent)
	out.FillRate = spent / params.Stake
	out.FillTime = fillAt

	return d.settle(h, params, out, series)
}

// settle resolves the simulated position: the stop-loss path if the held
// side's bid broke down before resolution, redemption otherwise.
func (d *Driver) settle(h MarketHistory, params domain.ParamSet, out domain.TradeOutcome, series []domain.Ladder) domain.TradeOutcome {
	held := h.OutcomePrice
	if out.Side == domain.SideNo {
		held = 1 - h.OutcomePrice
	}
	out.OutcomePrice = held
	out.Won = held > 0.5
	out.AbsError = math.Abs(out.TriggerPrice - held)

	revenue, sellFee := d.exitRevenue(params, &out, series)
	out.Revenue = revenue

	net := revenue - sellFee - out.DollarsSpent - out.Fee
	// ROI divides by the full requested stake, not dollars spent, so thin
	// books that only half-fill the order drag the grid point down.
	out.ROI = net / params.Stake
	return out
}

// exitRevenue values the held shares: early-sell proceeds when the stop-loss
// tripped, redemption value otherwise.
func (d *Driver) exitRevenue(params domain.ParamSet, out *domain.TradeOutcome, series []domain.Ladder) (revenue, sellFee float64) {
	if d.settings.StopLoss > 0 && out.FillTime != nil {
		for _, snap := range series {
			if !snap.Timestamp.After(*out.FillTime) || badSnapshot(snap) {
				continue
			}
			if !domain.StopLossTriggered(snap, d.settings.StopLoss) {
				continue
			}

			price := domain.EarlySellPrice(d.settings.StopLoss, d.settings.MarginSell)
			r := domain.SimulateFill(snap, domain.SideSell, price, out.FilledShares)
			out.EarlyExit = true

			proceeds := r.Notional
			fee := d.settings.Fees.Fee(r.AvgPrice, proceeds)
			if rest := out.FilledShares - r.FilledSize; rest > 0 && out.Won {
				proceeds += rest * out.OutcomePrice
			}
			return proceeds, fee
		}
	}

	if !out.Won {
		return 0, 0
	}
	// Winning shares redeem at the outcome price; the fee curve is zero at
	// the extremes, so redemption is effectively fee-free.
	revenue = out.OutcomePrice * out.FilledShares
	return revenue, d.settings.Fees.Fee(1.0, revenue)
}

func badSnapshot(l domain.Ladder) bool {
	if len(l.Bids) == 0 && len(l.Asks) == 0 {
		return false
	}
	return l.Validate() != nil
}
