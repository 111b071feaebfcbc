package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/jmpark/tokendex/params"
	"github.com/jmpark/tokendex/pkg/api"
	"github.com/jmpark/tokendex/pkg/app/core/asset"
	"github.com/jmpark/tokendex/pkg/app/core/exchange"
	"github.com/jmpark/tokendex/pkg/storage"
	"github.com/jmpark/tokendex/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	var logger *zap.Logger
	var err error
	if cfg.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Asset registry: settlement plus configured tradable tokens ----
	settlement, err := asset.TickerFromString(cfg.Market.Settlement)
	if err != nil {
		sugar.Fatalw("bad settlement ticker", "ticker", cfg.Market.Settlement, "err", err)
	}
	registry := asset.NewRegistry(settlement, asset.NewToken(cfg.Market.Settlement))

	opts := []exchange.Option{exchange.WithLogger(sugar)}

	// ---- Persistence ----
	if cfg.Storage.DBPath != "" {
		store, err := storage.NewPebbleStore(cfg.Storage.DBPath)
		if err != nil {
			sugar.Fatalw("open store failed", "path", cfg.Storage.DBPath, "err", err)
		}
		defer store.Close()
		opts = append(opts, exchange.WithStore(store))
		sugar.Infow("persistence enabled", "path", cfg.Storage.DBPath)
	}
	if cfg.Storage.JournalPath != "" {
		journal, err := storage.NewFileJournal(cfg.Storage.JournalPath)
		if err != nil {
			sugar.Fatalw("open journal failed", "path", cfg.Storage.JournalPath, "err", err)
		}
		defer journal.Close()
		opts = append(opts, exchange.WithJournal(journal))
	}

	ex := exchange.New(registry, opts...)
	for _, ticker := range cfg.Market.Assets {
		t, err := asset.TickerFromString(ticker)
		if err != nil {
			sugar.Fatalw("bad asset ticker", "ticker", ticker, "err", err)
		}
		if err := ex.AddAsset(t, asset.NewToken(ticker)); err != nil {
			sugar.Fatalw("register asset failed", "ticker", ticker, "err", err)
		}
	}

	if err := ex.Recover(); err != nil {
		sugar.Fatalw("state recovery failed", "err", err)
	}

	// ---- API server ----
	server := api.NewServer(ex, sugar, cfg.API.AllowedOrigins)
	go func() {
		if err := server.Start(cfg.API.Addr); err != nil {
			sugar.Fatalw("api server failed", "err", err)
		}
	}()

	sugar.Infow("node started",
		"settlement", settlement.String(),
		"assets", cfg.Market.Assets,
		"api", cfg.API.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	sugar.Info("shutting down")
}
