package executor

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ml-algo-trader/internal/model"
	"ml-algo-trader/internal/sizing"
)

// PaperGateway fills orders instantly at the marked price against in-memory
// balances. It backs dry runs and tests; no network, no fees.
type PaperGateway struct {
	mu       sync.Mutex
	balances map[string]float64
	price    float64

	baseAsset  string
	quoteAsset string
	logger     *zap.Logger
}

func NewPaperGateway(baseAsset, quoteAsset string, quoteBalance float64, logger *zap.Logger) *PaperGateway {
	return &PaperGateway{
		balances: map[string]float64{
			baseAsset:  0,
			quoteAsset: quoteBalance,
		},
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		logger:     logger.With(zap.String("gateway", "paper")),
	}
}

// MarkPrice sets the price at which subsequent queries and fills settle.
// The polling loop marks the last closed candle before each cycle.
func (g *PaperGateway) MarkPrice(price float64) {
	g.mu.Lock()
	g.price = price
	g.mu.Unlock()
}

func (g *PaperGateway) FetchBalance(_ context.Context, asset string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[asset], nil
}

func (g *PaperGateway) FetchPrice(_ context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.price <= 0 {
		return 0, fmt.Errorf("%w: no price marked for %s", model.ErrPriceQuery, symbol)
	}
	return g.price, nil
}

func (g *PaperGateway) PlaceMarketOrder(_ context.Context, symbol string, plan sizing.OrderPlan) (model.Fill, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.price <= 0 {
		return model.Fill{}, fmt.Errorf("%w: no price marked for %s", model.ErrExecution, symbol)
	}

	amount := plan.AmountFloat()
	notional := amount * g.price

	switch plan.Side {
	case model.SideBuy:
		if notional > g.balances[g.quoteAsset] {
			return model.Fill{}, fmt.Errorf("%w: buy notional %.2f exceeds %s balance %.2f",
				model.ErrExecution, notional, g.quoteAsset, g.balances[g.quoteAsset])
		}
		g.balances[g.quoteAsset] -= notional
		g.balances[g.baseAsset] += amount
	case model.SideSell:
		if amount > g.balances[g.baseAsset] {
			return model.Fill{}, fmt.Errorf("%w: sell amount %.6f exceeds %s balance %.6f",
				model.ErrExecution, amount, g.baseAsset, g.balances[g.baseAsset])
		}
		g.balances[g.baseAsset] -= amount
		g.balances[g.quoteAsset] += notional
	default:
		return model.Fill{}, fmt.Errorf("%w: unknown side %q", model.ErrExecution, plan.Side)
	}

	g.logger.Info("Paper fill",
		zap.String("side", string(plan.Side)),
		zap.Float64("amount", amount),
		zap.Float64("price", g.price))

	return model.Fill{Symbol: symbol, Side: plan.Side, Amount: amount, Price: g.price}, nil
}
