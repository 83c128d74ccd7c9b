package executor

import (
	"context"

	"ml-algo-trader/internal/model"
	"ml-algo-trader/internal/sizing"
)

// Gateway is the venue capability the trading core consumes. Implementations
// own authentication, rate limiting and transport; the core only sees
// balances, prices and fills. Timeout and cancellation policy belong to the
// caller's context.
type Gateway interface {
	// FetchBalance returns the free balance of an asset, e.g. "USDT".
	FetchBalance(ctx context.Context, asset string) (float64, error)

	// FetchPrice returns the last traded price for a symbol, e.g. "ETHUSDT".
	FetchPrice(ctx context.Context, symbol string) (float64, error)

	// PlaceMarketOrder submits the sized plan as a market order and returns
	// the fill. The plan must not be a NoOp.
	PlaceMarketOrder(ctx context.Context, symbol string, plan sizing.OrderPlan) (model.Fill, error)
}
