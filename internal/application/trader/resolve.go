package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/thresholdbot/internal/domain"
	"github.com/alejandrodnm/thresholdbot/internal/ports"
)

// awaitResolution polls the metadata API until the market resolves, then
// settles. Used when a position reaches the resolving state with the
// outcome not yet known (typically on resume).
func (e *Engine) awaitResolution(ctx context.Context, pos *domain.Position) {
	ticker := time.NewTicker(e.cfg.ResolutionPoll())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := e.oracle.MarketStatus(ctx, pos.MarketID)
		if err != nil {
			slog.Warn("trader: resolution poll failed", "market", pos.MarketSlug, "err", err)
			continue
		}
		if !status.Resolved {
			continue
		}
		e.settleResolved(ctx, pos, status)
		return
	}
}

// settleResolved books the final result of a resolved market. Three cases:
// the sell never traded, it traded in part, or it already fully filled and
// the position closed before resolution was even observed.
func (e *Engine) settleResolved(ctx context.Context, pos *domain.Position, status ports.MarketStatus) {
	// Settlement math runs in held-token terms: convert the YES outcome
	// price when the position holds NO.
	outcomePrice := status.OutcomePrice
	if pos.Side == domain.SideNo {
		outcomePrice = 1 - status.OutcomePrice
	}

	var s domain.Settlement
	switch {
	case pos.Sell.FilledSize <= 0:
		s = domain.SettleUnfilledSell(outcomePrice, pos.Buy.FilledSize, domain.SideYes,
			pos.DollarsSpent, pos.BuyFee, e.fees)
	default:
		s = domain.SettlePartialSell(pos.Proceeds, pos.SellFee,
			pos.Buy.FilledSize, pos.Sell.FilledSize, outcomePrice, domain.SideYes,
			pos.DollarsSpent, pos.BuyFee, e.fees)
	}
	e.closeSettled(ctx, pos, s, "resolved")
}

// closeSettled writes the realized result, chains the principal ledger, and
// archives the position.
func (e *Engine) closeSettled(ctx context.Context, pos *domain.Position, s domain.Settlement, note string) {
	pos.Proceeds = s.Payout
	pos.SellFee = s.SellFee
	pos.NetPayout = s.NetPayout
	pos.ROI = s.ROI
	if s.Won {
		pos.Outcome = domain.OutcomeWin
	} else {
		pos.Outcome = domain.OutcomeLoss
	}
	now := time.Now().UTC()
	pos.ClosedAt = &now

	if err := e.appendPrincipal(ctx, pos); err != nil {
		// The realized PnL must not vanish silently; flag the position so
		// the chain can be reconciled by hand.
		pos.FailureNote = "ledger: " + err.Error()
		slog.Error("trader: append principal failed",
			"position", pos.ID, "err", err)
	}

	if err := e.transition(ctx, pos, domain.StateClosed,
		fmt.Sprintf("%s: net $%.2f (roi %.1f%%)", note, s.NetPayout, s.ROI*100)); err != nil {
		slog.Error("trader: close failed", "market", pos.MarketSlug, "err", err)
	}
}
