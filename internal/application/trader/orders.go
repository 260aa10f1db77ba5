package trader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/thresholdbot/config"
	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// openPosition sizes and places the entry order, persisting the new
// position before the order goes out so a crash can never lose track of it.
func (e *Engine) openPosition(ctx context.Context, m config.MarketRef, trig domain.EntryTrigger) (*domain.Position, error) {
	s := e.cfg.Strategy
	limit := domain.BuyLimitPrice(s.Threshold, s.Margin)

	bankroll := e.principal(ctx)
	kelly := s.KellyFraction
	if s.WinProb > 0 {
		kelly = domain.KellyFromEdge(s.WinProb, limit)
	}

	sizing, err := domain.SizeOrder(bankroll, kelly, limit, e.fees, domain.SizingConfig{
		ScaleFactor: s.ScaleFactor,
		MaxStake:    s.MaxStake,
		MinNotional: s.MinNotional,
	})
	if err != nil {
		return nil, fmt.Errorf("size entry: %w", err)
	}

	tokenID := m.YesTokenID
	if trig.Side == domain.SideNo {
		tokenID = m.NoTokenID
	}

	now := time.Now().UTC()
	pos := &domain.Position{
		ID:              uuid.New().String(),
		DeploymentID:    e.cfg.Trader.DeploymentID,
		MarketID:        m.ID,
		MarketSlug:      m.Slug,
		TokenID:         tokenID,
		Side:            trig.Side,
		Threshold:       s.Threshold,
		Margin:          s.Margin,
		StopLoss:        s.StopLoss,
		MarginSell:      s.MarginSell,
		State:           domain.StateArmed,
		Outcome:         domain.OutcomeUnresolved,
		PrincipalBefore: bankroll,
		OpenedAt:        now,
		Buy: domain.OrderLeg{
			ID:    uuid.New().String(),
			Price: limit,
			Size:  float64(sizing.Shares),
		},
	}
	if err := e.store.SavePosition(ctx, *pos); err != nil {
		return nil, fmt.Errorf("save position: %w", err)
	}

	slog.Info("trader: entry triggered",
		"market", m.Slug,
		"side", string(trig.Side),
		"bid", fmt.Sprintf("%.2f", trig.Price),
		"limit", fmt.Sprintf("%.2f", limit),
		"shares", sizing.Shares,
		"value", fmt.Sprintf("$%.2f", sizing.Value))

	placed, err := e.placeWithRetry(ctx, domain.PlaceOrderRequest{
		TokenID: tokenID,
		Price:   limit,
		Size:    float64(sizing.Shares),
		Side:    domain.SideBuy,
	})
	if err != nil {
		e.abort(ctx, pos, fmt.Sprintf("place buy: %v", err))
		return nil, fmt.Errorf("place buy: %w", err)
	}

	pos.Buy.CLOBOrderID = placed.CLOBOrderID
	pos.Buy.PlacedAt = time.Now().UTC()
	if err := e.transition(ctx, pos, domain.StateBuyPending, "buy placed"); err != nil {
		return nil, err
	}
	return pos, nil
}

// placeWithRetry submits an order, retrying transient exchange errors with a
// flat backoff. Rejections (bad price, insufficient balance) surface
// immediately since retrying them can never succeed.
func (e *Engine) placeWithRetry(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	var lastErr error
	for attempt := 1; attempt <= e.cfg.Trader.OrderRetries; attempt++ {
		placed, err := e.executor.PlaceOrder(ctx, req)
		if err == nil {
			return placed, nil
		}
		lastErr = err

		if !domain.IsTransientExchangeErr(err) {
			return domain.PlacedOrder{}, err
		}
		slog.Warn("trader: order attempt failed",
			"attempt", attempt,
			"side", string(req.Side),
			"err", err)

		select {
		case <-ctx.Done():
			return domain.PlacedOrder{}, ctx.Err()
		case <-time.After(e.cfg.RetryBackoff() * time.Duration(attempt)):
		}
	}
	return domain.PlacedOrder{}, fmt.Errorf("gave up after %d attempts: %w", e.cfg.Trader.OrderRetries, lastErr)
}

// awaitBuyFill polls the entry order until the position holds shares.
func (e *Engine) awaitBuyFill(ctx context.Context, pos *domain.Position) error {
	ticker := time.NewTicker(e.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		done, err := e.checkBuyFill(ctx, pos)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// checkBuyFill polls the entry order once. Shares already executed need
// stop-loss and resolution cover, so a partial fill moves the position to
// held right away: the resting remainder is cancelled and the sell leg
// later sizes itself from the confirmed balance.
func (e *Engine) checkBuyFill(ctx context.Context, pos *domain.Position) (bool, error) {
	state, err := e.executor.OrderStatus(ctx, pos.Buy.CLOBOrderID)
	if err != nil {
		slog.Warn("trader: buy status poll failed", "market", pos.MarketSlug, "err", err)
		return false, nil
	}

	if state.Open {
		if state.FilledSize <= 0 {
			return false, nil
		}
		if state.FilledSize < pos.Buy.Size {
			if err := e.executor.CancelOrder(ctx, pos.Buy.CLOBOrderID); err != nil {
				// Keep polling: the order may still fill, or the next
				// cancel attempt may land.
				slog.Warn("trader: cancel buy remainder failed",
					"order", pos.Buy.CLOBOrderID, "err", err)
				return false, nil
			}
			// Capture anything that traded between the poll and the cancel.
			if st, err := e.executor.OrderStatus(ctx, pos.Buy.CLOBOrderID); err == nil {
				state = st
			}
		}
	}
	if state.FilledSize <= 0 {
		return false, fmt.Errorf("buy order closed with no fill")
	}

	now := time.Now().UTC()
	pos.Buy.FilledSize = state.FilledSize
	pos.Buy.AvgFillPrice = state.AvgFillPrice
	pos.Buy.FilledAt = &now
	pos.DollarsSpent = state.FilledSize * state.AvgFillPrice
	pos.BuyFee = e.fees.Fee(state.AvgFillPrice, pos.DollarsSpent)
	pos.Buy.Fee = pos.BuyFee

	slog.Info("trader: buy filled",
		"market", pos.MarketSlug,
		"shares", fmt.Sprintf("%.0f", state.FilledSize),
		"avg", fmt.Sprintf("%.3f", state.AvgFillPrice),
		"spent", fmt.Sprintf("$%.2f", pos.DollarsSpent),
		"fee", fmt.Sprintf("$%.3f", pos.BuyFee))

	return true, e.transition(ctx, pos, domain.StateHeld, "buy filled")
}
