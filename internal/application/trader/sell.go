package trader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/thresholdbot/config"
	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// placeInitialSell rests the exit order near the top of the book. The shares
// offered come from the on-exchange token balance, not the local fill
// record, since the fee haircut means fewer shares were credited than
// ordered.
func (e *Engine) placeInitialSell(ctx context.Context, pos *domain.Position) error {
	if delay := e.cfg.SettlementDelay(); delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	shares, err := e.sellableShares(ctx, pos)
	if err != nil {
		return err
	}

	price := e.cfg.Strategy.InitialSellPrice
	placed, err := e.placeWithRetry(ctx, domain.PlaceOrderRequest{
		TokenID: pos.TokenID,
		Price:   price,
		Size:    shares,
		Side:    domain.SideSell,
	})
	if err != nil && errors.Is(err, domain.ErrInsufficientBalance) {
		// The balance moved between query and placement; re-read and retry
		// once at whatever is actually there.
		if shares, err = e.sellableShares(ctx, pos); err != nil {
			return err
		}
		placed, err = e.placeWithRetry(ctx, domain.PlaceOrderRequest{
			TokenID: pos.TokenID,
			Price:   price,
			Size:    shares,
			Side:    domain.SideSell,
		})
	}
	if err != nil {
		return err
	}

	pos.Sell = domain.OrderLeg{
		ID:          uuid.New().String(),
		CLOBOrderID: placed.CLOBOrderID,
		Price:       price,
		Size:        shares,
		PlacedAt:    time.Now().UTC(),
	}
	return e.transition(ctx, pos, domain.StateSellPendingInitial,
		fmt.Sprintf("sell resting at %.2f", price))
}

// sellableShares returns how many whole shares the exit order can offer.
func (e *Engine) sellableShares(ctx context.Context, pos *domain.Position) (float64, error) {
	balance, err := e.executor.TokenBalance(ctx, pos.TokenID)
	if err != nil {
		return 0, fmt.Errorf("token balance: %w", err)
	}
	shares := float64(int(balance))
	if shares > pos.Buy.FilledSize {
		shares = pos.Buy.FilledSize
	}
	if shares < 1 {
		return 0, fmt.Errorf("no sellable balance for %s", pos.TokenID)
	}
	return shares, nil
}

// monitorExit watches a resting sell order: fill closes the position, a
// stop-loss crossing replaces it with an early exit, and market resolution
// moves to the redemption path.
func (e *Engine) monitorExit(ctx context.Context, m config.MarketRef, pos *domain.Position) {
	ticker := time.NewTicker(e.cfg.PollInterval())
	defer ticker.Stop()

	lastResolutionCheck := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		done, err := e.syncSellFill(ctx, pos)
		if err != nil {
			slog.Warn("trader: sell status poll failed", "market", pos.MarketSlug, "err", err)
			continue
		}
		if done {
			return
		}

		if pos.State == domain.StateSellPendingInitial && e.shouldBailOut(ctx, pos) {
			if err := e.switchToEarlySell(ctx, pos); err != nil {
				e.abort(ctx, pos, fmt.Sprintf("early sell: %v", err))
				return
			}
			continue
		}

		if time.Since(lastResolutionCheck) < e.cfg.ResolutionPoll() {
			continue
		}
		lastResolutionCheck = time.Now()

		status, err := e.oracle.MarketStatus(ctx, m.ID)
		if err != nil {
			slog.Warn("trader: resolution poll failed", "market", pos.MarketSlug, "err", err)
			continue
		}
		if status.Resolved {
			e.cancelOpenSell(ctx, pos)
			if err := e.transition(ctx, pos, domain.StateResolving, "market resolved"); err != nil {
				slog.Error("trader: transition to resolving failed", "err", err)
				return
			}
			e.settleResolved(ctx, pos, status)
			return
		}
	}
}

// shouldBailOut applies the two early-exit rules: the stop-loss on the held
// side's bid, and the pre-resolution exit window for markets with a known
// end time.
func (e *Engine) shouldBailOut(ctx context.Context, pos *domain.Position) bool {
	held, err := e.books.FetchLadder(ctx, pos.TokenID)
	if err != nil {
		slog.Warn("trader: held book fetch failed", "market", pos.MarketSlug, "err", err)
		return false
	}
	if held.Validate() != nil {
		return false
	}

	if domain.StopLossTriggered(held, pos.StopLoss) {
		if !e.stopConfirmed(pos.ID) {
			return false
		}
		slog.Info("trader: stop-loss triggered",
			"market", pos.MarketSlug,
			"bid", fmt.Sprintf("%.2f", held.BestBid()),
			"stop", fmt.Sprintf("%.2f", pos.StopLoss))
		return true
	}
	e.clearStop(pos.ID)

	if mins := e.cfg.Trader.ExitMinutesBeforeEnd; mins > 0 {
		status, err := e.oracle.MarketStatus(ctx, pos.MarketID)
		if err == nil && status.EndDate != nil {
			cutoff := status.EndDate.Add(-time.Duration(mins) * time.Minute)
			if time.Now().After(cutoff) {
				slog.Info("trader: exiting before market end",
					"market", pos.MarketSlug, "end", status.EndDate.Format(time.RFC3339))
				return true
			}
		}
	}
	return false
}

// switchToEarlySell cancels the resting exit and reposts it below the
// stop-loss so it can actually trade against the falling book.
func (e *Engine) switchToEarlySell(ctx context.Context, pos *domain.Position) error {
	e.clearStop(pos.ID)
	e.cancelOpenSell(ctx, pos)

	remaining := pos.Sell.Size - pos.Sell.FilledSize
	if remaining < 1 {
		return fmt.Errorf("nothing left to sell")
	}

	price := domain.EarlySellPrice(pos.StopLoss, pos.MarginSell)
	placed, err := e.placeWithRetry(ctx, domain.PlaceOrderRequest{
		TokenID: pos.TokenID,
		Price:   price,
		Size:    remaining,
		Side:    domain.SideSell,
	})
	if err != nil {
		return err
	}

	pos.Sell.CLOBOrderID = placed.CLOBOrderID
	pos.Sell.Price = price
	pos.Sell.Size = remaining + pos.Sell.FilledSize
	pos.Sell.PlacedAt = time.Now().UTC()
	return e.transition(ctx, pos, domain.StateSellPendingEarly,
		fmt.Sprintf("early sell at %.2f", price))
}

// syncSellFill refreshes the sell leg from the exchange and closes the
// position if the order has fully filled.
func (e *Engine) syncSellFill(ctx context.Context, pos *domain.Position) (bool, error) {
	if pos.Sell.CLOBOrderID == "" {
		return false, nil
	}

	state, err := e.executor.OrderStatus(ctx, pos.Sell.CLOBOrderID)
	if err != nil {
		return false, err
	}

	if state.FilledSize > pos.Sell.FilledSize {
		pos.Sell.FilledSize = state.FilledSize
		pos.Sell.AvgFillPrice = state.AvgFillPrice
		pos.Proceeds = state.FilledSize * state.AvgFillPrice
		pos.SellFee = e.fees.Fee(state.AvgFillPrice, pos.Proceeds)
		pos.Sell.Fee = pos.SellFee
		if err := e.store.UpdatePosition(ctx, *pos); err != nil {
			slog.Warn("trader: persist sell fill failed", "err", err)
		}
	}

	if state.FilledSize < pos.Sell.Size {
		return false, nil
	}

	now := time.Now().UTC()
	pos.Sell.FilledAt = &now
	settlement := domain.SettleFilledSell(pos.Proceeds, pos.SellFee, pos.DollarsSpent, pos.BuyFee)
	e.closeSettled(ctx, pos, settlement, "sell filled")
	return true, nil
}

// cancelOpenSell best-effort cancels whatever sell order is still resting.
func (e *Engine) cancelOpenSell(ctx context.Context, pos *domain.Position) {
	if !pos.Sell.Open() {
		return
	}
	if err := e.executor.CancelOrder(ctx, pos.Sell.CLOBOrderID); err != nil {
		slog.Warn("trader: cancel sell failed",
			"order", pos.Sell.CLOBOrderID, "err", err)
	}
}
