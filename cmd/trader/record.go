package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/thresholdbot/config"
	"github.com/alejandrodnm/thresholdbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/thresholdbot/internal/adapters/storage"
)

// runRecord sondea los orderbooks de los mercados configurados y guarda cada
// snapshot. Los datos grabados alimentan el modo -backtest.
func runRecord(ctx context.Context, cfg *config.Config) {
	if len(cfg.Trader.Markets) == 0 {
		slog.Error("no markets configured; add trader.markets to the config file")
		os.Exit(1)
	}

	snaps, err := storage.NewSnapshotStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open snapshot store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer snaps.Close()

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)

	// token_id → market_id para reasociar los books del batch.
	marketOf := make(map[string]string, len(cfg.Trader.Markets)*2)
	tokenIDs := make([]string, 0, len(cfg.Trader.Markets)*2)
	for _, m := range cfg.Trader.Markets {
		for _, tok := range []string{m.YesTokenID, m.NoTokenID} {
			if tok == "" {
				continue
			}
			marketOf[tok] = m.ID
			tokenIDs = append(tokenIDs, tok)
		}
	}

	slog.Info("recording orderbook snapshots",
		"markets", len(cfg.Trader.Markets),
		"tokens", len(tokenIDs),
		"interval", cfg.PollInterval())

	ticker := time.NewTicker(cfg.PollInterval())
	defer ticker.Stop()

	cycles, saved := 0, 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("recording stopped", "cycles", cycles, "snapshots", saved)
			return
		case <-ticker.C:
			cycles++
			n, err := recordCycle(ctx, client, snaps, marketOf, tokenIDs)
			if err != nil {
				slog.Warn("record cycle failed", "cycle", cycles, "err", err)
				continue
			}
			saved += n
			if cycles%60 == 0 {
				slog.Info("recording progress", "cycles", cycles, "snapshots", saved)
			}
		}
	}
}

func recordCycle(ctx context.Context, client *polymarket.Client, snaps *storage.SnapshotStore, marketOf map[string]string, tokenIDs []string) (int, error) {
	ladders, err := client.FetchLadders(ctx, tokenIDs)
	if err != nil {
		return 0, err
	}

	saved := 0
	for tokenID, ladder := range ladders {
		if len(ladder.Bids) == 0 && len(ladder.Asks) == 0 {
			continue
		}
		if err := snaps.SaveLadder(ctx, marketOf[tokenID], ladder); err != nil {
			slog.Warn("failed to save snapshot", "token", tokenID, "err", err)
			continue
		}
		saved++
		slog.Debug("snapshot saved",
			"token", tokenID,
			"mid", ladder.Midpoint(),
			"bid_depth", ladder.BidDepthShares(),
			"ask_depth", ladder.AskDepthShares())
	}
	return saved, nil
}
