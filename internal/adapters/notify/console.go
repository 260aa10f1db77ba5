package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier.
type Console struct {
	out  io.Writer
	topN int
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(topN int) *Console {
	return &Console{out: os.Stdout, topN: topN}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, topN int) *Console {
	return &Console{out: w, topN: topN}
}

// NotifyEvent imprime una transición de ciclo de vida en una línea.
func (c *Console) NotifyEvent(_ context.Context, ev domain.LifecycleEvent) error {
	label := ev.MarketSlug
	if label == "" {
		label = shortID(ev.MarketID)
	}

	if ev.Note != "" {
		fmt.Fprintf(c.out, "[%s] %s  %s → %s  (%s)\n",
			ev.At.Format("15:04:05"), label, ev.From, ev.To, ev.Note)
		return nil
	}
	fmt.Fprintf(c.out, "[%s] %s  %s → %s\n",
		ev.At.Format("15:04:05"), label, ev.From, ev.To)
	return nil
}

// NotifyPositions imprime las posiciones con su estado actual.
func (c *Console) NotifyPositions(_ context.Context, positions []domain.Position) error {
	if len(positions) == 0 {
		fmt.Fprintf(c.out, "[%s] no positions\n", time.Now().Format("15:04:05"))
		return nil
	}

	open, closed := 0, 0
	for _, p := range positions {
		if p.State == domain.StateClosed {
			closed++
		} else {
			open++
		}
	}

	fmt.Fprintf(c.out, "\n[%s] %d positions, open:%d closed:%d\n",
		time.Now().Format("15:04:05"), len(positions), open, closed)

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Side", "State", "Buy@", "Shares", "Spent", "Sell@", "Net", "ROI", "Outcome")

	for _, p := range positions {
		label := p.MarketSlug
		if label == "" {
			label = shortID(p.MarketID)
		}

		table.Append(
			truncate(label, 30),
			string(p.Side),
			string(p.State),
			priceLabel(p.Buy.AvgFillPrice, p.Buy.Price),
			fmt.Sprintf("%.0f", p.Buy.FilledSize),
			fmt.Sprintf("$%.2f", p.DollarsSpent),
			priceLabel(p.Sell.AvgFillPrice, p.Sell.Price),
			netLabel(p),
			roiLabel(p),
			outcomeLabel(p),
		)
	}
	table.Render()

	var totalNet, totalSpent float64
	for _, p := range positions {
		if p.State != domain.StateClosed {
			continue
		}
		totalNet += p.NetPayout
		totalSpent += p.DollarsSpent + p.BuyFee
	}
	if closed > 0 {
		fmt.Fprintf(c.out, "  Closed P&L: $%.2f on $%.2f deployed (%.1f%%)\n\n",
			totalNet, totalSpent, pct(totalNet, totalSpent))
	} else {
		fmt.Fprintln(c.out)
	}
	return nil
}

// NotifyBacktest imprime el grid del backtest, ya ordenado por el caller.
func (c *Console) NotifyBacktest(_ context.Context, results []domain.BacktestResult) error {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "\n  No backtest results available.")
		return nil
	}

	top := results
	if c.topN > 0 && len(top) > c.topN {
		top = results[:c.topN]
	}

	fmt.Fprintf(c.out, "\n=== BACKTEST GRID: top %d of %d param sets ===\n\n", len(top), len(results))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Thr", "Margin", "Stake", "Trades", "Win%", "AvgROI", "PnL", "Sharpe", "PF", "MAE")

	for i, r := range top {
		m := r.Metrics

		pfLabel := fmt.Sprintf("%.2f", m.ProfitFactor)
		if math.IsInf(m.ProfitFactor, 1) {
			pfLabel = "INF"
		}

		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", r.Params.Threshold),
			fmt.Sprintf("%.3f", r.Params.Margin),
			fmt.Sprintf("$%.0f", r.Params.Stake),
			fmt.Sprintf("%d", m.Trades),
			fmt.Sprintf("%.1f", m.WinRate*100),
			fmt.Sprintf("%.2f%%", m.AvgROI*100),
			fmt.Sprintf("$%.2f", m.TotalPnL),
			fmt.Sprintf("%.2f", m.Sharpe),
			pfLabel,
			fmt.Sprintf("%.3f", m.MeanAbsError),
		)
	}
	table.Render()

	fmt.Fprintln(c.out, "  Win% y AvgROI solo cuentan triggers con fill | PnL = ROI × stake")
	fmt.Fprintln(c.out, "  PF = gross wins / gross losses | MAE = |trigger price − outcome|")

	c.printBestDetail(top[0])
	return nil
}

// printBestDetail imprime el desglose por mercado del mejor param set.
func (c *Console) printBestDetail(best domain.BacktestResult) {
	fmt.Fprintf(c.out, "\n--- BEST: threshold=%.2f margin=%.3f stake=$%.0f ---\n",
		best.Params.Threshold, best.Params.Margin, best.Params.Stake)

	shown := 0
	for _, o := range best.Outcomes {
		if o.FilledShares <= 0 {
			continue
		}
		if shown >= 10 {
			fmt.Fprintf(c.out, "  ... %d more trades\n", countFilled(best.Outcomes)-shown)
			break
		}
		shown++

		result := "LOSS"
		if o.Won {
			result = "WIN"
		}
		exit := ""
		if o.EarlyExit {
			exit = " early-exit"
		}
		fmt.Fprintf(c.out, "  %s %s %s  fill %.0fsh @%.4f (%.0f%% of stake)  roi %+.1f%%%s\n",
			shortID(o.MarketID), o.Side, result,
			o.FilledShares, o.FillPrice, o.FillRate*100, o.ROI*100, exit)
	}
	if shown == 0 {
		fmt.Fprintln(c.out, "  (no filled trades)")
	}
	fmt.Fprintln(c.out)
}

// --- helpers ---

func countFilled(outcomes []domain.TradeOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.FilledShares > 0 {
			n++
		}
	}
	return n
}

// priceLabel prefiere el precio medio de fill y cae al precio límite.
func priceLabel(avgFill, limit float64) string {
	if avgFill > 0 {
		return fmt.Sprintf("%.4f", avgFill)
	}
	if limit > 0 {
		return fmt.Sprintf("(%.2f)", limit)
	}
	return "-"
}

func netLabel(p domain.Position) string {
	if p.State != domain.StateClosed {
		return "-"
	}
	return fmt.Sprintf("$%+.2f", p.NetPayout)
}

func roiLabel(p domain.Position) string {
	if p.State != domain.StateClosed {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", p.ROI*100)
}

func outcomeLabel(p domain.Position) string {
	if p.Outcome == domain.OutcomeUnresolved && p.FailureNote != "" {
		return "ERR"
	}
	return string(p.Outcome)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:10] + ".."
	}
	return id
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func pct(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return num / den * 100
}
