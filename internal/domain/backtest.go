package domain

import "time"

// ParamSet is one point of the backtest grid.
type ParamSet struct {
	Threshold float64
	Margin    float64
	Stake     float64 // dollars requested per position
}

// TradeOutcome is the simulated result of one market under one ParamSet.
type TradeOutcome struct {
	MarketID     string
	Side         MarketSide
	TriggerTime  time.Time
	TriggerPrice float64
	BidPrice     float64 // threshold + margin, capped at 0.99
	FillPrice    float64 // size-weighted average across snapshots
	FilledShares float64
	DollarsSpent float64
	Fee          float64 // buy-leg fee
	FillRate     float64 // dollarsSpent / requested stake
	FillTime     *time.Time
	EarlyExit    bool // position exited through the stop-loss path
	OutcomePrice float64
	Revenue      float64
	ROI          float64 // on the full requested stake, penalizing partials
	Won          bool
	AbsError     float64 // |predicted win prob − outcome|, prediction variants
}

// BacktestMetrics aggregates outcomes for one ParamSet.
type BacktestMetrics struct {
	Trades       int
	Wins         int
	Losses       int
	WinRate      float64
	AvgROI       float64
	TotalROI     float64
	TotalPnL     float64 // dollars, stake-weighted
	Sharpe       float64 // mean ROI over std of ROI across trades
	ProfitFactor float64 // gross wins over gross losses
	MeanAbsError float64 // prediction-model variants only
}

// BacktestResult pairs a ParamSet with its metrics and the per-market
// outcomes that produced them. Immutable once computed.
type BacktestResult struct {
	Params   ParamSet
	Metrics  BacktestMetrics
	Outcomes []TradeOutcome
}
