package backtest

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// GridSearch replays every threshold × margin × stake combination over the
// recorded histories using a worker pool. Results come back in a
// deterministic order regardless of worker scheduling.
//
// Si workers <= 0 usa runtime.NumCPU() × 2 para saturar los cores disponibles.
func (d *Driver) GridSearch(ctx context.Context, thresholds, margins, stakes []float64, workers int) []domain.BacktestResult {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	params := make([]domain.ParamSet, 0, len(thresholds)*len(margins)*len(stakes))
	for _, t := range thresholds {
		for _, m := range margins {
			for _, s := range stakes {
				params = append(params, domain.ParamSet{Threshold: t, Margin: m, Stake: s})
			}
		}
	}

	start := time.Now()
	workCh := make(chan domain.ParamSet, len(params))
	resultCh := make(chan domain.BacktestResult, len(params))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range workCh {
				if ctx.Err() != nil {
					return
				}
				resultCh <- d.Run(p)
			}
		}()
	}

	for _, p := range params {
		workCh <- p
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]domain.BacktestResult, 0, len(params))
	for r := range resultCh {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].Params, results[j].Params
		if a.Threshold != b.Threshold {
			return a.Threshold < b.Threshold
		}
		if a.Margin != b.Margin {
			return a.Margin < b.Margin
		}
		return a.Stake < b.Stake
	})

	slog.Info("backtest: grid search complete",
		"combinations", len(params),
		"markets", len(d.histories),
		"workers", workers,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return results
}

// SortResults orders results by the chosen metric, best first, with the
// parameter order as tiebreak so output stays stable.
func SortResults(results []domain.BacktestResult, by string) {
	key := func(r domain.BacktestResult) float64 {
		switch by {
		case "win_rate":
			return r.Metrics.WinRate
		case "sharpe":
			return r.Metrics.Sharpe
		case "pnl":
			return r.Metrics.TotalPnL
		default: // avg_roi
			return r.Metrics.AvgROI
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return key(results[i]) > key(results[j])
	})
}
