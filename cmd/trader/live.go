package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/alejandrodnm/thresholdbot/config"
	"github.com/alejandrodnm/thresholdbot/internal/adapters/notify"
	"github.com/alejandrodnm/thresholdbot/internal/adapters/polymarket"
	"github.com/alejandrodnm/thresholdbot/internal/adapters/storage"
	"github.com/alejandrodnm/thresholdbot/internal/application/trader"
)

func runLive(ctx context.Context, cfg *config.Config) {
	privateKey := os.Getenv("POLY_PRIVATE_KEY")
	if privateKey == "" {
		slog.Error("POLY_PRIVATE_KEY not set; live trading needs a signing key")
		os.Exit(1)
	}
	rpcURL := os.Getenv("POLYGON_RPC_URL")
	if rpcURL == "" {
		rpcURL = "https://polygon-rpc.com"
	}

	if len(cfg.Trader.Markets) == 0 {
		slog.Error("no markets configured; add trader.markets to the config file")
		os.Exit(1)
	}

	slog.Info("=== LIVE TRADING MODE (REAL MONEY) ===",
		"threshold", cfg.Strategy.Threshold,
		"margin", cfg.Strategy.Margin,
		"max_stake", cfg.Strategy.MaxStake,
		"initial_principal", cfg.Trader.InitialPrincipal,
	)

	fmt.Printf("\n⚠️  LIVE TRADING MODE: REAL MONEY WILL BE SPENT\n")
	fmt.Printf("   Markets: %d | Threshold: %.2f | Max stake: $%.2f\n",
		len(cfg.Trader.Markets), cfg.Strategy.Threshold, cfg.Strategy.MaxStake)
	fmt.Printf("   Press Ctrl+C within 5 seconds to abort...\n\n")

	abortTimer := time.NewTimer(5 * time.Second)
	select {
	case <-abortTimer.C:
	case <-ctx.Done():
		slog.Info("live trading aborted by user")
		return
	}

	authClient, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.API.GammaBase, privateKey)
	if err != nil {
		slog.Error("failed to create auth client", "err", err)
		os.Exit(1)
	}

	if err := authClient.EnsureCreds(ctx); err != nil {
		slog.Error("failed to derive API credentials; check POLY_PRIVATE_KEY", "err", err)
		os.Exit(1)
	}
	slog.Info("live: authenticated with Polymarket CLOB", "address", authClient.Address())

	tradingClient, err := polymarket.NewTradingClient(authClient, rpcURL)
	if err != nil {
		slog.Error("failed to create trading client", "err", err)
		os.Exit(1)
	}

	balance, err := tradingClient.GetBalance(ctx)
	if err != nil {
		slog.Error("failed to get USDC balance", "err", err)
		os.Exit(1)
	}
	slog.Info("live: on-chain balance", "usdc", fmt.Sprintf("$%.2f", balance))

	if balance < cfg.Strategy.MinNotional {
		slog.Error("insufficient balance for even the minimum order",
			"balance", fmt.Sprintf("$%.2f", balance),
			"min_notional", fmt.Sprintf("$%.2f", cfg.Strategy.MinNotional))
		os.Exit(1)
	}

	client := polymarket.NewClient(cfg.API.CLOBBase, cfg.API.GammaBase)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	notifier := notify.NewConsole(cfg.Backtest.TopN)

	engine := trader.New(client, tradingClient, client, store, notifier, cfg)

	// El engine ya notifica por consola; aquí solo drenamos el canal para
	// que los sends no-bloqueantes nunca descarten eventos.
	go func() {
		for ev := range engine.Events() {
			slog.Debug("lifecycle event",
				"position", ev.PositionID,
				"from", string(ev.From),
				"to", string(ev.To))
		}
	}()

	slog.Info("live trading started; press Ctrl+C to exit")

	if err := engine.Run(ctx); err != nil {
		slog.Error("trader exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("thresholdbot stopped cleanly")
}

func runPositions(ctx context.Context, cfg *config.Config) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	positions, err := store.GetOpenPositions(ctx)
	if err != nil {
		slog.Error("failed to load positions", "err", err)
		os.Exit(1)
	}

	notifier := notify.NewConsole(cfg.Backtest.TopN)
	if err := notifier.NotifyPositions(ctx, positions); err != nil {
		slog.Error("failed to print positions", "err", err)
		os.Exit(1)
	}

	if entry, ok, err := store.LatestPrincipal(ctx); err == nil && ok {
		fmt.Printf("  Principal: $%.2f (last settled %s)\n\n",
			entry.After, entry.Timestamp.Format("2006-01-02 15:04"))
	}
}
