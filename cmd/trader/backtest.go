package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/alejandrodnm/thresholdbot/config"
	"github.com/alejandrodnm/thresholdbot/internal/adapters/notify"
	"github.com/alejandrodnm/thresholdbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/thresholdbot/internal/adapters/storage"
	"github.com/alejandrodnm/thresholdbot/internal/application/backtest"
	"github.com/alejandrodnm/thresholdbot/internal/domain"
)

func runBacktest(ctx context.Context, cfg *config.Config) {
	slog.Info("=== BACKTEST MODE: grid search over recorded snapshots ===")

	snaps, err := storage.NewSnapshotStore(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open snapshot store", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer snaps.Close()

	markets := make([]backtest.MarketTokens, 0, len(cfg.Trader.Markets))
	for _, m := range cfg.Trader.Markets {
		markets = append(markets, backtest.MarketTokens{
			MarketID:   m.ID,
			YesTokenID: m.YesTokenID,
			NoTokenID:  m.NoTokenID,
		})
	}
	if len(markets) == 0 {
		slog.Error("no markets configured; nothing to replay")
		os.Exit(1)
	}

	oracle := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)

	histories, err := backtest.LoadHistories(ctx, snaps, oracle, markets)
	if err != nil {
		slog.Error("failed to load market histories", "err", err)
		os.Exit(1)
	}
	if len(histories) == 0 {
		slog.Warn("no resolved markets with snapshots; record more data first")
		return
	}
	slog.Info("backtest: histories loaded", "markets", len(histories))

	driver := backtest.NewDriver(histories, backtest.Settings{
		StopLoss:   cfg.Strategy.StopLoss,
		MarginSell: cfg.Strategy.MarginSell,
		Fees:       domain.DefaultFeeModel(),
	})

	thresholds := cfg.Backtest.Thresholds
	if len(thresholds) == 0 {
		thresholds = []float64{cfg.Strategy.Threshold}
	}
	margins := cfg.Backtest.Margins
	if len(margins) == 0 {
		margins = []float64{cfg.Strategy.Margin}
	}
	stakes := cfg.Backtest.Stakes
	if len(stakes) == 0 {
		stakes = []float64{cfg.Strategy.MaxStake}
	}

	results := driver.GridSearch(ctx, thresholds, margins, stakes, cfg.Backtest.Workers)
	backtest.SortResults(results, cfg.Backtest.SortBy)

	notifier := notify.NewConsole(cfg.Backtest.TopN)
	if err := notifier.NotifyBacktest(ctx, results); err != nil {
		slog.Error("failed to print backtest results", "err", err)
		os.Exit(1)
	}

	slog.Info("backtest complete",
		"param_sets", len(results),
		"sort_by", cfg.Backtest.SortBy)
}
