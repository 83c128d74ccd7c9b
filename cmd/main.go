package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"ml-algo-trader/internal/api"
	"ml-algo-trader/internal/executor"
	"ml-algo-trader/internal/features"
	"ml-algo-trader/internal/journal"
	"ml-algo-trader/internal/market"
	"ml-algo-trader/internal/model"
	"ml-algo-trader/internal/scorer"
	"ml-algo-trader/internal/service"
	"ml-algo-trader/internal/strategy"
	"ml-algo-trader/internal/trader"
)

func main() {
	// Secrets come from the environment; .env is a convenience for local runs.
	_ = godotenv.Load()

	cfg, err := service.LoadConfig("config")
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	service.InitLogger(cfg.LogLevel)
	defer service.Logger.Sync()
	logger := service.Logger.With(zap.String("symbol", cfg.Trading.Symbol))

	if len(cfg.Strategy.Features) == 0 {
		cfg.Strategy.Features = features.Schema()
	}

	if err := scorer.InitializeRuntime(); err != nil {
		logger.Fatal("ONNX runtime initialization failed", zap.Error(err))
	}
	predictor, err := scorer.NewONNX(cfg.Strategy.ModelPath, cfg.Strategy.Features)
	if err != nil {
		logger.Fatal("Model load failed", zap.Error(err))
	}
	defer predictor.Close()

	engine, err := strategy.NewEngine(predictor, cfg.Strategy.BuyThreshold, cfg.Strategy.SellThreshold, logger)
	if err != nil {
		// Schema mismatch and bad thresholds are configuration faults;
		// terminating here is the caller's call, not the engine's.
		logger.Fatal("Engine construction failed", zap.Error(err))
	}

	var gateway executor.Gateway
	var paper *executor.PaperGateway
	if cfg.Trading.Paper {
		paper = executor.NewPaperGateway(cfg.Trading.BaseAsset, cfg.Trading.QuoteAsset,
			cfg.Order.PaperQuoteBalance, logger)
		gateway = paper
		logger.Info("Running against the paper gateway",
			zap.Float64("quote_balance", cfg.Order.PaperQuoteBalance))
	} else {
		gateway = executor.NewBinanceGateway(cfg.Exchange, logger)
		if cfg.Exchange.Testnet {
			logger.Warn("RUNNING IN TESTNET MODE")
		} else {
			logger.Warn("RUNNING IN LIVE MODE (REAL MONEY)")
		}
	}

	jnl, err := journal.OpenCSV(cfg.JournalPath)
	if err != nil {
		logger.Fatal("Journal open failed", zap.Error(err))
	}

	bot := trader.New(engine, gateway, jnl, trader.Config{
		Symbol:          cfg.Trading.Symbol,
		BaseAsset:       cfg.Trading.BaseAsset,
		QuoteAsset:      cfg.Trading.QuoteAsset,
		SpendFraction:   cfg.Order.SpendFraction,
		SellFraction:    cfg.Order.SellFraction,
		PrecisionDigits: cfg.Order.PrecisionDigits,
		MinNotional:     cfg.Order.MinNotional,
	}, logger)

	feed := market.NewFeed(cfg.Exchange, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !cfg.Trading.Paper {
		restorePosition(ctx, gateway, engine, cfg, logger)
	}

	if cfg.Trading.Stream {
		runStream(ctx, cfg, bot, feed, paper, logger)
	} else {
		runPoll(ctx, cfg, bot, feed, paper, logger)
	}
	logger.Info("Bot stopped")
}

// restorePosition reconciles the engine's starting position against actual
// venue holdings: base-asset value above the venue minimum means a prior run
// left us Long.
func restorePosition(ctx context.Context, gateway executor.Gateway, engine *strategy.Engine,
	cfg *service.Config, logger *zap.Logger) {

	balance, err := gateway.FetchBalance(ctx, cfg.Trading.BaseAsset)
	if err != nil {
		logger.Warn("Position restore skipped: balance probe failed", zap.Error(err))
		return
	}
	price, err := gateway.FetchPrice(ctx, cfg.Trading.Symbol)
	if err != nil {
		logger.Warn("Position restore skipped: price probe failed", zap.Error(err))
		return
	}
	if balance*price >= cfg.Order.MinNotional {
		engine.Restore(model.PositionLong)
		logger.Info("Restored position from venue holdings",
			zap.Float64("base_balance", balance),
			zap.Float64("value", balance*price))
	}
}

// runPoll fetches fresh history every poll interval and runs one cycle,
// matching the original periodic loop. Cycle errors are isolated: logged,
// then retried on the next tick.
func runPoll(ctx context.Context, cfg *service.Config, bot *trader.Trader,
	feed *market.Feed, paper *executor.PaperGateway, logger *zap.Logger) {

	ticker := time.NewTicker(cfg.Trading.PollInterval)
	defer ticker.Stop()

	logger.Info("Polling loop started",
		zap.String("interval", cfg.Trading.Interval),
		zap.Duration("poll_every", cfg.Trading.PollInterval))

	for {
		runOnce(ctx, cfg, bot, feed, paper, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func runOnce(ctx context.Context, cfg *service.Config, bot *trader.Trader,
	feed *market.Feed, paper *executor.PaperGateway, logger *zap.Logger) {

	series, err := feed.History(ctx, cfg.Trading.Symbol, cfg.Trading.Interval, cfg.Trading.HistoryLimit)
	if err != nil {
		logger.Error("Data fetch failed, retrying next cycle", zap.Error(err))
		return
	}
	if len(series) == 0 {
		return
	}
	if paper != nil {
		paper.MarkPrice(series[len(series)-1].Close)
	}

	res, err := bot.RunCycle(ctx, series)
	if err != nil {
		if errors.Is(err, model.ErrSchemaMismatch) {
			logger.Fatal("Unrecoverable configuration error", zap.Error(err))
		}
		logger.Error("Cycle failed, retrying next cycle", zap.Error(err))
		return
	}
	logger.Info("Cycle complete",
		zap.String("decision", string(res.Decision)),
		zap.Float64("close", series[len(series)-1].Close))
}

// runStream seeds a rolling window from REST history, then drives a cycle
// from every closed candle on the websocket stream.
func runStream(ctx context.Context, cfg *service.Config, bot *trader.Trader,
	feed *market.Feed, paper *executor.PaperGateway, logger *zap.Logger) {

	window := market.NewWindow(cfg.Trading.HistoryLimit)
	series, err := feed.History(ctx, cfg.Trading.Symbol, cfg.Trading.Interval, cfg.Trading.HistoryLimit)
	if err != nil {
		logger.Fatal("History warmup failed", zap.Error(err))
	}
	if err := window.Seed(series); err != nil {
		logger.Fatal("History warmup produced an invalid series", zap.Error(err))
	}

	connector := api.NewConnector(cfg.Exchange.WSURL, cfg.Trading.Symbol, cfg.Trading.Interval, logger)
	go connector.Start(ctx)

	logger.Info("Stream loop started", zap.Int("warmup_candles", window.Len()))

	for candle := range connector.Candles() {
		if err := window.Push(candle); err != nil {
			logger.Warn("Dropping out-of-order stream candle", zap.Error(err))
			continue
		}
		if paper != nil {
			paper.MarkPrice(candle.Close)
		}
		res, err := bot.RunCycle(ctx, window.Snapshot())
		if err != nil {
			if errors.Is(err, model.ErrSchemaMismatch) {
				logger.Fatal("Unrecoverable configuration error", zap.Error(err))
			}
			logger.Error("Cycle failed, retrying on next candle", zap.Error(err))
			continue
		}
		logger.Info("Cycle complete",
			zap.String("decision", string(res.Decision)),
			zap.Float64("close", candle.Close))
	}
}
