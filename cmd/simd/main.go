// simd runs the CapitalLab market simulation daemon: the matching and
// market-making engine, the price movement ticker, and the REST/WS API
// the portal frontend talks to.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ngaboserge/capitallab-simulator-sub005/params"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/api"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/instrument"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/engine/quote"
	"github.com/ngaboserge/capitallab-simulator-sub005/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	var logger *zap.Logger
	var err error
	if cfg.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.LogFile, cfg.LogLevel)
	} else {
		logger, err = util.NewLogger(cfg.LogLevel)
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	eng := engine.New(sugar, engine.Config{
		MaxMovePerTickBps: cfg.Simulator.MaxMovePerTickBps,
		TapeDepth:         cfg.TapeDepth,
		Seed:              cfg.Simulator.Seed,
	}, util.RealClock{})

	for _, l := range params.DefaultListings() {
		in := instrument.Instrument{
			Symbol:       l.Symbol,
			Name:         l.Name,
			TickSize:     decimal.RequireFromString(l.TickSize),
			OpeningPrice: decimal.RequireFromString(l.OpeningPrice),
		}
		sc := quote.SpreadConfig{
			Symbol:              l.Symbol,
			BaseSpreadBps:       l.BaseSpreadBps,
			MinSpreadAbs:        decimal.RequireFromString(l.MinSpreadAbs),
			MaxSpreadAbs:        decimal.RequireFromString(l.MaxSpreadAbs),
			InventorySkewFactor: decimal.RequireFromString(l.SkewFactor),
			MaxPosition:         l.MaxPosition,
			QuoteSize:           l.QuoteSize,
		}
		if err := eng.AddInstrument(in, sc); err != nil {
			sugar.Fatalw("listing_failed", "symbol", l.Symbol, "err", err)
		}
	}

	server := api.NewServer(eng, sugar, api.Options{
		AllowedOrigins:  cfg.API.AllowedOrigins,
		OrderRatePerSec: cfg.API.OrderRatePerSec,
		OrderBurst:      cfg.API.OrderBurst,
	})
	go func() {
		if err := server.Run(cfg.API.Addr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Market movement simulator: the engine owns the price logic, this
	// loop owns the interval.
	ticker := time.NewTicker(cfg.Simulator.TickInterval)
	defer ticker.Stop()

	sugar.Infow("simulator_started",
		"tick_interval", cfg.Simulator.TickInterval,
		"max_move_bps", cfg.Simulator.MaxMovePerTickBps,
		"instruments", eng.Instruments().Count())

	for {
		select {
		case <-ticker.C:
			eng.Tick()
		case <-ctx.Done():
			sugar.Info("shutting down")
			return
		}
	}
}
