package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func snap(tokenID string, at time.Time, bid, bidSize, ask, askSize float64) domain.Ladder {
	l := domain.Ladder{TokenID: tokenID, Timestamp: at}
	if bidSize > 0 {
		l.Bids = []domain.BookLevel{{Price: bid, Size: bidSize}}
	}
	if askSize > 0 {
		l.Asks = []domain.BookLevel{{Price: ask, Size: askSize}}
	}
	return l
}

func quietNo(at time.Time) domain.Ladder {
	return snap("no-1", at, 0.10, 500, 0.12, 500)
}

// winningYesHistory cruza el umbral en el segundo snapshot con profundidad
// de sobra en el ask para llenar el stake completo.
func winningYesHistory() MarketHistory {
	return MarketHistory{
		MarketID: "mkt-1",
		Yes: []domain.Ladder{
			snap("yes-1", t0, 0.80, 300, 0.82, 300),
			snap("yes-1", t0.Add(time.Minute), 0.86, 300, 0.88, 500),
			snap("yes-1", t0.Add(2*time.Minute), 0.87, 300, 0.89, 500),
		},
		No: []domain.Ladder{
			quietNo(t0),
			quietNo(t0.Add(time.Minute)),
			quietNo(t0.Add(2 * time.Minute)),
		},
		OutcomePrice: 1.0,
	}
}

func defaultSettings() Settings {
	return Settings{MarginSell: 0.02, Fees: domain.DefaultFeeModel()}
}

func TestRun_FullFillAndWin(t *testing.T) {
	d := NewDriver([]MarketHistory{winningYesHistory()}, defaultSettings())
	params := domain.ParamSet{Threshold: 0.85, Margin: 0.03, Stake: 50}

	res := d.Run(params)
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]

	assert.Equal(t, domain.SideYes, out.Side)
	assert.InDelta(t, 0.86, out.TriggerPrice, 1e-9)
	assert.InDelta(t, 0.88, out.BidPrice, 1e-9) // threshold + margin
	assert.True(t, out.Won)
	assert.False(t, out.EarlyExit)

	// Llenado completo en el primer snapshot con ask a 0.88.
	assert.InDelta(t, 50, out.DollarsSpent, 1e-9)
	assert.InDelta(t, 1.0, out.FillRate, 1e-9)
	assert.InDelta(t, 50/0.88, out.FilledShares, 1e-9)

	// Redención a la par: revenue = shares × 1.0, fee de venta nulo a p=1.
	fees := domain.DefaultFeeModel()
	buyFee := fees.Fee(0.88, 50)
	wantNet := out.FilledShares - 50 - buyFee
	assert.InDelta(t, wantNet/50, out.ROI, 1e-9)

	assert.Equal(t, 1, res.Metrics.Trades)
	assert.InDelta(t, 1.0, res.Metrics.WinRate, 1e-9)
}

func TestRun_Deterministic(t *testing.T) {
	d := NewDriver([]MarketHistory{winningYesHistory()}, defaultSettings())
	params := domain.ParamSet{Threshold: 0.85, Margin: 0.03, Stake: 50}

	a := d.Run(params)
	b := d.Run(params)
	assert.Equal(t, a, b)
}

func TestRun_ThresholdAboveMaxBidSkipsMarket(t *testing.T) {
	d := NewDriver([]MarketHistory{winningYesHistory()}, defaultSettings())

	res := d.Run(domain.ParamSet{Threshold: 0.95, Margin: 0.02, Stake: 50})
	assert.Empty(t, res.Outcomes)
	assert.Equal(t, 0, res.Metrics.Trades)
}

func TestRun_NoSideTrigger(t *testing.T) {
	h := MarketHistory{
		MarketID: "mkt-2",
		Yes: []domain.Ladder{
			snap("yes-2", t0, 0.10, 300, 0.12, 300),
		},
		No: []domain.Ladder{
			snap("no-2", t0, 0.88, 300, 0.90, 500),
		},
		OutcomePrice: 0.0, // YES a cero: NO redime a la par
	}
	d := NewDriver([]MarketHistory{h}, defaultSettings())

	res := d.Run(domain.ParamSet{Threshold: 0.85, Margin: 0.05, Stake: 20})
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]

	assert.Equal(t, domain.SideNo, out.Side)
	assert.True(t, out.Won)
	assert.InDelta(t, 1.0, out.OutcomePrice, 1e-9) // en términos del token en cartera
}

func TestRun_PartialFillPenalizesROI(t *testing.T) {
	h := winningYesHistory()
	// Solo $22 de profundidad elegible: 25 shares a 0.88 y nada más.
	h.Yes[1].Asks = []domain.BookLevel{{Price: 0.88, Size: 25}}
	h.Yes[2].Asks = []domain.BookLevel{{Price: 1.0, Size: 500}} // fuera de maxBuyPrice
	d := NewDriver([]MarketHistory{h}, defaultSettings())

	params := domain.ParamSet{Threshold: 0.85, Margin: 0.03, Stake: 50}
	res := d.Run(params)
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]

	assert.InDelta(t, 25*0.88, out.DollarsSpent, 1e-9)
	assert.InDelta(t, 22.0/50.0, out.FillRate, 1e-9)

	// El ROI divide por el stake completo: el fill parcial castiga el punto
	// del grid aunque cada dolar invertido haya sido rentable.
	fees := domain.DefaultFeeModel()
	buyFee := fees.Fee(0.88, 22)
	wantNet := 25.0 - 22.0 - buyFee
	assert.InDelta(t, wantNet/50, out.ROI, 1e-9)
	assert.Less(t, out.ROI, (25.0-22.0-buyFee)/22.0)
}

func TestRun_TightMarginLimitsFillWindow(t *testing.T) {
	h := MarketHistory{
		MarketID: "mkt-3",
		Yes: []domain.Ladder{
			snap("yes-3", t0, 0.86, 300, 0.88, 10), // trigger, fill parcial
			snap("yes-3", t0.Add(5*time.Minute), 0.86, 300, 0.88, 500), // fuera de ventana
		},
		No: []domain.Ladder{
			quietNo(t0),
			quietNo(t0.Add(5 * time.Minute)),
		},
		OutcomePrice: 1.0,
	}
	d := NewDriver([]MarketHistory{h}, defaultSettings())

	// margin 0.01 < 0.02: la ventana de fill es de un minuto.
	res := d.Run(domain.ParamSet{Threshold: 0.85, Margin: 0.01, Stake: 50})
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]

	assert.InDelta(t, 10*0.88, out.DollarsSpent, 1e-9)
	assert.Less(t, out.FillRate, 1.0)

	// Con margen holgado no hay ventana y el segundo snapshot completa.
	res = d.Run(domain.ParamSet{Threshold: 0.85, Margin: 0.03, Stake: 50})
	require.Len(t, res.Outcomes, 1)
	assert.InDelta(t, 1.0, res.Outcomes[0].FillRate, 1e-9)
}

func TestRun_ZeroFillTriggerExcludedFromMetrics(t *testing.T) {
	h := MarketHistory{
		MarketID: "mkt-4",
		Yes: []domain.Ladder{
			// Cruza el umbral pero el único ask está por debajo del bid
			// simulado, así que nunca llena.
			snap("yes-4", t0, 0.86, 300, 0.87, 300),
		},
		No:           []domain.Ladder{quietNo(t0)},
		OutcomePrice: 1.0,
	}
	d := NewDriver([]MarketHistory{h}, defaultSettings())

	res := d.Run(domain.ParamSet{Threshold: 0.85, Margin: 0.05, Stake: 50})
	require.Len(t, res.Outcomes, 1)
	assert.Zero(t, res.Outcomes[0].FilledShares)
	assert.Zero(t, res.Outcomes[0].ROI)

	// El trigger sin fill aparece en los outcomes pero no en las métricas.
	assert.Equal(t, 0, res.Metrics.Trades)
	assert.Zero(t, res.Metrics.TotalPnL)
}

func TestRun_StopLossEarlyExit(t *testing.T) {
	h := MarketHistory{
		MarketID: "mkt-5",
		Yes: []domain.Ladder{
			snap("yes-5", t0, 0.86, 300, 0.88, 500),                     // trigger y fill
			snap("yes-5", t0.Add(10*time.Minute), 0.79, 500, 0.81, 300), // bid bajo el stop
		},
		No: []domain.Ladder{
			quietNo(t0),
			quietNo(t0.Add(10 * time.Minute)),
		},
		OutcomePrice: 0.0, // el mercado terminó en contra
	}
	settings := defaultSettings()
	settings.StopLoss = 0.80
	d := NewDriver([]MarketHistory{h}, settings)

	res := d.Run(domain.ParamSet{Threshold: 0.85, Margin: 0.03, Stake: 44})
	require.Len(t, res.Outcomes, 1)
	out := res.Outcomes[0]

	assert.True(t, out.EarlyExit)
	assert.False(t, out.Won)

	// Venta anticipada a 0.78 contra el bid de 0.79: recupera la mayor
	// parte del capital en vez de perderlo todo en la resolución.
	shares := 44 / 0.88
	assert.InDelta(t, shares*0.79, out.Revenue, 1e-9)
	assert.Greater(t, out.ROI, -1.0)
}

func TestRun_BadSnapshotSkipped(t *testing.T) {
	h := winningYesHistory()
	// Snapshot cruzado entre el trigger y el resto: se ignora sin abortar.
	h.Yes[0] = domain.Ladder{
		TokenID:   "yes-1",
		Timestamp: t0,
		Bids:      []domain.BookLevel{{Price: 0.90, Size: 100}},
		Asks:      []domain.BookLevel{{Price: 0.85, Size: 100}},
	}
	d := NewDriver([]MarketHistory{h}, defaultSettings())

	res := d.Run(domain.ParamSet{Threshold: 0.85, Margin: 0.03, Stake: 50})
	require.Len(t, res.Outcomes, 1)
	assert.InDelta(t, 0.86, res.Outcomes[0].TriggerPrice, 1e-9)
}

func TestGridSearch_DeterministicOrder(t *testing.T) {
	d := NewDriver([]MarketHistory{winningYesHistory()}, defaultSettings())

	thresholds := []float64{0.85, 0.90}
	margins := []float64{0.02, 0.03}
	stakes := []float64{25, 50}

	results := d.GridSearch(context.Background(), thresholds, margins, stakes, 4)
	require.Len(t, results, 8)

	// Orden por parámetros independiente del scheduling de los workers.
	assert.Equal(t, domain.ParamSet{Threshold: 0.85, Margin: 0.02, Stake: 25}, results[0].Params)
	assert.Equal(t, domain.ParamSet{Threshold: 0.85, Margin: 0.02, Stake: 50}, results[1].Params)
	assert.Equal(t, domain.ParamSet{Threshold: 0.90, Margin: 0.03, Stake: 50}, results[7].Params)

	again := d.GridSearch(context.Background(), thresholds, margins, stakes, 1)
	assert.Equal(t, results, again)
}

func TestSortResults(t *testing.T) {
	results := []domain.BacktestResult{
		{Params: domain.ParamSet{Threshold: 0.85}, Metrics: domain.BacktestMetrics{AvgROI: 0.05, WinRate: 0.9}},
		{Params: domain.ParamSet{Threshold: 0.90}, Metrics: domain.BacktestMetrics{AvgROI: 0.12, WinRate: 0.6}},
		{Params: domain.ParamSet{Threshold: 0.95}, Metrics: domain.BacktestMetrics{AvgROI: 0.08, WinRate: 0.7}},
	}

	SortResults(results, "avg_roi")
	assert.InDelta(t, 0.12, results[0].Metrics.AvgROI, 1e-9)

	SortResults(results, "win_rate")
	assert.InDelta(t, 0.9, results[0].Metrics.WinRate, 1e-9)
}
