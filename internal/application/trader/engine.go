package trader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/thresholdbot/config"
	"github.com/alejandrodnm/thresholdbot/internal/domain"
	"github.com/alejandrodnm/thresholdbot/internal/ports"
)

// Engine drives the threshold strategy over a set of watched markets. Each
// market gets its own watcher goroutine that owns the full position
// lifecycle; the storage layer's one-open-position-per-market guard keeps
// concurrent watchers from ever doubling up on a market.
type Engine struct {
	books    ports.BookProvider
	executor ports.OrderExecutor
	oracle   ports.ResolutionOracle
	store    ports.TradeStorage
	notifier ports.Notifier
	fees     domain.FeeModel
	cfg      *config.Config

	events chan domain.LifecycleEvent

	mu      sync.Mutex
	armedAt map[string]time.Time // marketID → first sustained crossing
	stopAt  map[string]time.Time // positionID → first stop-loss breach
	seenAt  map[string]time.Time // tokenID → newest applied book timestamp

	// ledgerMu serializes principal appends across market watchers: each
	// append reads the latest entry and extends it, and two interleaved
	// read+insert pairs would fork the chain.
	ledgerMu sync.Mutex
}

// New wires a live trading engine.
func New(
	books ports.BookProvider,
	executor ports.OrderExecutor,
	oracle ports.ResolutionOracle,
	store ports.TradeStorage,
	notifier ports.Notifier,
	cfg *config.Config,
) *Engine {
	return &Engine{
		books:    books,
		executor: executor,
		oracle:   oracle,
		store:    store,
		notifier: notifier,
		fees:     domain.DefaultFeeModel(),
		cfg:      cfg,
		events:   make(chan domain.LifecycleEvent, 64),
		armedAt:  make(map[string]time.Time),
		stopAt:   make(map[string]time.Time),
		seenAt:   make(map[string]time.Time),
	}
}

// Events exposes the lifecycle transition stream. Transitions are dropped if
// the consumer falls behind; the database remains the durable record.
func (e *Engine) Events() <-chan domain.LifecycleEvent {
	return e.events
}

// Run watches every configured market until ctx is cancelled. Open positions
// found in storage are resumed first so a restart never strands an order.
func (e *Engine) Run(ctx context.Context) error {
	open, err := e.store.GetOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("trader.Run: load open positions: %w", err)
	}

	resumed := make(map[string]domain.Position, len(open))
	for _, p := range open {
		resumed[p.MarketID] = p
		slog.Info("trader: resuming position",
			"market", p.MarketSlug, "state", string(p.State))
	}

	var wg sync.WaitGroup
	for _, m := range e.cfg.Trader.Markets {
		wg.Add(1)
		go func(m config.MarketRef) {
			defer wg.Done()
			if p, ok := resumed[m.ID]; ok {
				e.resumePosition(ctx, m, p)
			}
			e.watchMarket(ctx, m)
		}(m)
	}
	wg.Wait()
	return ctx.Err()
}

// watchMarket is the per-market loop: poll books while armed, and hand off
// to the position lifecycle once an entry fires.
func (e *Engine) watchMarket(ctx context.Context, m config.MarketRef) {
	ticker := time.NewTicker(e.cfg.PollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		trig, ok := e.pollEntry(ctx, m)
		if !ok {
			continue
		}

		pos, err := e.openPosition(ctx, m, trig)
		if err != nil {
			if domain.IsRejectedOrder(err) {
				slog.Error("trader: entry rejected by exchange", "market", m.Slug, "err", err)
			} else {
				slog.Warn("trader: entry skipped", "market", m.Slug, "err", err)
			}
			continue
		}
		e.runLifecycle(ctx, m, pos)
	}
}

// runLifecycle takes a position from buy placement through close.
func (e *Engine) runLifecycle(ctx context.Context, m config.MarketRef, pos *domain.Position) {
	if err := e.awaitBuyFill(ctx, pos); err != nil {
		e.abort(ctx, pos, fmt.Sprintf("buy leg: %v", err))
		return
	}
	if ctx.Err() != nil {
		return
	}

	if err := e.placeInitialSell(ctx, pos); err != nil {
		e.abort(ctx, pos, fmt.Sprintf("initial sell: %v", err))
		return
	}

	e.monitorExit(ctx, m, pos)
}

// resumePosition picks a restored position back up at the phase its state
// says it was in when the process stopped.
func (e *Engine) resumePosition(ctx context.Context, m config.MarketRef, p domain.Position) {
	pos := &p
	switch pos.State {
	case domain.StateBuyPending:
		e.runLifecycle(ctx, m, pos)
	case domain.StateHeld:
		if err := e.placeInitialSell(ctx, pos); err != nil {
			e.abort(ctx, pos, fmt.Sprintf("initial sell on resume: %v", err))
			return
		}
		e.monitorExit(ctx, m, pos)
	case domain.StateSellPendingInitial, domain.StateSellPendingEarly:
		e.monitorExit(ctx, m, pos)
	case domain.StateResolving:
		e.awaitResolution(ctx, pos)
	default:
		slog.Warn("trader: cannot resume position",
			"market", pos.MarketSlug, "state", string(pos.State))
	}
}

// transition advances the state machine, persists, and emits the event.
func (e *Engine) transition(ctx context.Context, pos *domain.Position, next domain.LifecycleState, note string) error {
	from := pos.State
	if err := pos.Transition(next); err != nil {
		return err
	}
	if err := e.store.UpdatePosition(ctx, *pos); err != nil {
		return fmt.Errorf("persist transition: %w", err)
	}

	ev := domain.LifecycleEvent{
		PositionID: pos.ID,
		MarketID:   pos.MarketID,
		MarketSlug: pos.MarketSlug,
		From:       from,
		To:         next,
		Note:       note,
		At:         time.Now().UTC(),
	}
	select {
	case e.events <- ev:
	default:
	}
	if e.notifier != nil {
		_ = e.notifier.NotifyEvent(ctx, ev)
	}

	slog.Info("trader: transition",
		"market", pos.MarketSlug,
		"from", string(from),
		"to", string(next),
		"note", note)
	return nil
}

// abort force-closes a position after an unrecoverable error, cancelling
// whatever order is still resting. If a cancel fails the position stays in
// the open set, annotated, so a resume can reconcile the possibly-live
// order instead of stranding it. The spent capital is written back to the
// principal chain as a realized loss only if the buy leg actually filled.
func (e *Engine) abort(ctx context.Context, pos *domain.Position, note string) {
	slog.Error("trader: aborting position", "market", pos.MarketSlug, "note", note)

	cancelFailed := false
	for _, leg := range []domain.OrderLeg{pos.Buy, pos.Sell} {
		if !leg.Open() {
			continue
		}
		if err := e.executor.CancelOrder(ctx, leg.CLOBOrderID); err != nil {
			slog.Warn("trader: cancel during abort failed",
				"order", leg.CLOBOrderID, "err", err)
			cancelFailed = true
		}
	}

	if cancelFailed {
		pos.FailureNote = note + " (cancel failed, order may still be live)"
		if err := e.store.UpdatePosition(ctx, *pos); err != nil {
			slog.Error("trader: persist aborted position failed", "err", err)
		}
		slog.Error("trader: abort left position open pending cancel",
			"market", pos.MarketSlug, "position", pos.ID)
		return
	}

	pos.FailureNote = note
	pos.Outcome = domain.OutcomeUnresolved
	now := time.Now().UTC()
	pos.ClosedAt = &now

	if pos.DollarsSpent > 0 {
		pos.NetPayout = -(pos.DollarsSpent + pos.BuyFee)
		pos.ROI = domain.ComputeROI(pos.NetPayout, pos.DollarsSpent, pos.BuyFee)
		if err := e.appendPrincipal(ctx, pos); err != nil {
			pos.FailureNote = note + "; " + err.Error()
			slog.Error("trader: abort ledger append failed",
				"position", pos.ID, "err", err)
		}
	}

	if err := e.transition(ctx, pos, domain.StateClosed, note); err != nil {
		slog.Error("trader: could not close aborted position", "err", err)
	}
}

// appendPrincipal chains the realized result into the capital ledger. The
// bankroll read and the insert happen under ledgerMu so concurrent closes
// extend the chain one at a time.
func (e *Engine) appendPrincipal(ctx context.Context, pos *domain.Position) error {
	e.ledgerMu.Lock()
	defer e.ledgerMu.Unlock()

	before := e.principal(ctx)
	entry := domain.PrincipalEntry{
		Timestamp:   time.Now().UTC(),
		Before:      before,
		After:       before + pos.NetPayout,
		RealizedPnL: pos.NetPayout,
		PositionID:  pos.ID,
	}
	if err := e.store.AppendPrincipal(ctx, entry); err != nil {
		return fmt.Errorf("append principal %s: %w", pos.ID, err)
	}
	return nil
}

// principal returns the bankroll per the ledger's last entry, falling back
// to the configured starting capital on an empty ledger.
func (e *Engine) principal(ctx context.Context) float64 {
	last, ok, err := e.store.LatestPrincipal(ctx)
	if err != nil {
		slog.Warn("trader: read principal failed, using initial", "err", err)
		return e.cfg.Trader.InitialPrincipal
	}
	if !ok {
		return e.cfg.Trader.InitialPrincipal
	}
	return last.After
}
