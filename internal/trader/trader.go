// Package trader sequences one full trading cycle: decision, sizing,
// execution, journaling.
package trader

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ml-algo-trader/internal/executor"
	"ml-algo-trader/internal/journal"
	"ml-algo-trader/internal/model"
	"ml-algo-trader/internal/sizing"
	"ml-algo-trader/internal/strategy"
)

// Config carries the instrument and sizing parameters for one trader.
type Config struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	SpendFraction   float64
	SellFraction    float64
	PrecisionDigits int32
	MinNotional     float64
}

// Result summarizes a completed cycle.
type Result struct {
	Decision   model.Decision
	NoOpReason sizing.NoOpReason // set when a Buy/Sell sized to nothing
	Fill       *model.Fill       // set when an order filled
}

type Trader struct {
	engine  *strategy.Engine
	gateway executor.Gateway
	journal journal.Journal
	cfg     Config
	logger  *zap.Logger
}

func New(engine *strategy.Engine, gateway executor.Gateway, jnl journal.Journal, cfg Config, logger *zap.Logger) *Trader {
	return &Trader{
		engine:  engine,
		gateway: gateway,
		journal: jnl,
		cfg:     cfg,
		logger:  logger.With(zap.String("symbol", cfg.Symbol)),
	}
}

// RunCycle executes exactly one cycle over the given candle series.
//
// Errors abort the cycle and are retryable next time, with one deliberate
// asymmetry: once Decide has committed a position transition, an execution
// failure does NOT roll it back. The position tracks intended holdings;
// the operator sees the divergence in the log.
func (t *Trader) RunCycle(ctx context.Context, series []model.Candle) (Result, error) {
	decision, err := t.engine.Decide(series)
	if err != nil {
		return Result{}, fmt.Errorf("decide: %w", err)
	}

	res := Result{Decision: decision}
	if decision == model.DecisionHold {
		return res, nil
	}

	price, err := t.gateway.FetchPrice(ctx, t.cfg.Symbol)
	if err != nil {
		t.logger.Error("Price query failed after decision; will retry next cycle", zap.Error(err))
		return res, err
	}

	var plan sizing.OrderPlan
	switch decision {
	case model.DecisionBuy:
		balance, err := t.gateway.FetchBalance(ctx, t.cfg.QuoteAsset)
		if err != nil {
			t.logger.Error("Balance query failed after decision; will retry next cycle", zap.Error(err))
			return res, err
		}
		plan = sizing.SizeBuy(balance, price, t.cfg.SpendFraction, t.cfg.PrecisionDigits, t.cfg.MinNotional)
	case model.DecisionSell:
		balance, err := t.gateway.FetchBalance(ctx, t.cfg.BaseAsset)
		if err != nil {
			t.logger.Error("Balance query failed after decision; will retry next cycle", zap.Error(err))
			return res, err
		}
		plan = sizing.SizeSell(balance, price, t.cfg.SellFraction, t.cfg.PrecisionDigits, t.cfg.MinNotional)
	}

	if plan.NoOp {
		res.NoOpReason = plan.Reason
		t.logger.Warn("Order not placed",
			zap.String("decision", string(decision)),
			zap.String("reason", string(plan.Reason)),
			zap.Float64("price", price))
		return res, nil
	}

	fill, err := t.gateway.PlaceMarketOrder(ctx, t.cfg.Symbol, plan)
	if err != nil {
		t.logger.Error("Execution failed; position reflects intent, not holdings",
			zap.String("decision", string(decision)),
			zap.String("position", string(t.engine.Position())),
			zap.Error(err))
		return res, err
	}
	res.Fill = &fill

	record := model.TradeRecord{
		Timestamp:  time.Now(),
		Action:     fill.Side,
		Amount:     fill.Amount,
		Price:      fill.Price,
		TotalValue: fill.Amount * fill.Price,
	}
	if err := t.journal.Append(record); err != nil {
		// The trade happened; a journal failure must not fail the cycle.
		t.logger.Warn("Trade executed but journal append failed", zap.Error(err))
	} else {
		t.logger.Info("Trade journaled",
			zap.String("action", string(record.Action)),
			zap.Float64("amount", record.Amount),
			zap.Float64("price", record.Price),
			zap.Float64("total_value", record.TotalValue))
	}

	return res, nil
}
