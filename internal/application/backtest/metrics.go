package backtest

import (
	"math"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// ComputeMetrics aggregates trade outcomes for one grid point. Triggers
// that never filled carry no capital and are excluded from the averages.
func ComputeMetrics(outcomes []domain.TradeOutcome, stake float64) domain.BacktestMetrics {
	var m domain.BacktestMetrics

	var rois []float64
	var grossWin, grossLoss, absErrSum float64

	for _, o := range outcomes {
		if o.FilledShares <= 0 {
			continue
		}
		m.Trades++
		if o.Won {
			m.Wins++
		} else {
			m.Losses++
		}

		rois = append(rois, o.ROI)
		m.TotalROI += o.ROI
		pnl := o.ROI * stake
		m.TotalPnL += pnl
		if pnl > 0 {
			grossWin += pnl
		} else {
			grossLoss += -pnl
		}
		absErrSum += o.AbsError
	}

	if m.Trades == 0 {
		return m
	}

	n := float64(m.Trades)
	m.WinRate = float64(m.Wins) / n
	m.AvgROI = m.TotalROI / n
	m.MeanAbsError = absErrSum / n

	if grossLoss > 0 {
		m.ProfitFactor = grossWin / grossLoss
	} else if grossWin > 0 {
		m.ProfitFactor = math.Inf(1)
	}

	if len(rois) > 1 {
		var variance float64
		for _, r := range rois {
			diff := r - m.AvgROI
			variance += diff * diff
		}
		variance /= float64(len(rois) - 1)
		if sd := math.Sqrt(variance); sd > 0 {
			m.Sharpe = m.AvgROI / sd
		}
	}

	return m
}
