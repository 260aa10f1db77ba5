package trader

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/thresholdbot/config"
	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

// pollEntry fetches both books for a market and applies the entry rule:
// threshold crossing, upper-threshold filter, confirmation window, and the
// one-open-position-per-market guard. Returns the trigger only when the
// entry should actually be taken this tick.
func (e *Engine) pollEntry(ctx context.Context, m config.MarketRef) (domain.EntryTrigger, bool) {
	books, err := e.books.FetchLadders(ctx, []string{m.YesTokenID, m.NoTokenID})
	if err != nil {
		slog.Warn("trader: fetch books failed", "market", m.Slug, "err", err)
		return domain.EntryTrigger{}, false
	}

	yes, no := books[m.YesTokenID], books[m.NoTokenID]
	for _, l := range []domain.Ladder{yes, no} {
		if len(l.Bids) == 0 && len(l.Asks) == 0 {
			continue
		}
		if err := l.Validate(); err != nil {
			// A crossed or unsorted snapshot is garbage in, never a signal.
			slog.Warn("trader: dropping bad snapshot", "market", m.Slug, "err", err)
			return domain.EntryTrigger{}, false
		}
		if e.staleBook(l) {
			slog.Warn("trader: dropping stale snapshot",
				"market", m.Slug, "token", l.TokenID, "err", domain.ErrStaleLadder)
			return domain.EntryTrigger{}, false
		}
	}

	s := e.cfg.Strategy
	trig, ok := domain.CheckEntryTrigger(yes, no, s.Threshold)
	if !ok {
		e.clearCrossing(m.ID)
		return domain.EntryTrigger{}, false
	}

	// Past the upper threshold the move already happened; buying here only
	// captures the tail. Skip and re-arm below the band.
	if s.UpperThreshold > 0 && trig.Price >= s.UpperThreshold {
		slog.Debug("trader: crossing above upper threshold, skipping",
			"market", m.Slug, "bid", trig.Price)
		e.clearCrossing(m.ID)
		return domain.EntryTrigger{}, false
	}

	if !e.crossingConfirmed(m.ID) {
		return domain.EntryTrigger{}, false
	}

	dup, err := e.store.HasOpenPosition(ctx, m.ID)
	if err != nil {
		slog.Warn("trader: duplicate check failed", "market", m.Slug, "err", err)
		return domain.EntryTrigger{}, false
	}
	if dup {
		return domain.EntryTrigger{}, false
	}

	return trig, true
}

// staleBook reports whether the snapshot regressed behind the newest one
// already applied for its token. Books without a server timestamp pass
// through; we cannot order what the venue did not stamp.
func (e *Engine) staleBook(l domain.Ladder) bool {
	if l.TokenID == "" || l.Timestamp.IsZero() {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if last, ok := e.seenAt[l.TokenID]; ok && l.Timestamp.Before(last) {
		return true
	}
	e.seenAt[l.TokenID] = l.Timestamp
	return false
}

// crossingConfirmed tracks how long the crossing has been sustained. The
// first tick over the threshold starts the clock; the entry fires once the
// crossing has held for the configured confirmation window.
func (e *Engine) crossingConfirmed(marketID string) bool {
	window := e.cfg.ConfirmationWindow()
	if window <= 0 {
		return true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	first, ok := e.armedAt[marketID]
	if !ok {
		e.armedAt[marketID] = time.Now()
		return false
	}
	return time.Since(first) >= window
}

// clearCrossing resets the confirmation clock when the bid falls back under
// the threshold or into the skip band.
func (e *Engine) clearCrossing(marketID string) {
	e.mu.Lock()
	delete(e.armedAt, marketID)
	e.mu.Unlock()
}

// stopConfirmed mirrors crossingConfirmed for the stop-loss: the breach must
// hold for the sell confirmation window before the early exit fires, so a
// single flickering tick does not dump the position.
func (e *Engine) stopConfirmed(positionID string) bool {
	window := e.cfg.SellConfirmationWindow()
	if window <= 0 {
		return true
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	first, ok := e.stopAt[positionID]
	if !ok {
		e.stopAt[positionID] = time.Now()
		return false
	}
	return time.Since(first) >= window
}

// clearStop resets the stop-loss clock once the bid recovers.
func (e *Engine) clearStop(positionID string) {
	e.mu.Lock()
	delete(e.stopAt, positionID)
	e.mu.Unlock()
}
