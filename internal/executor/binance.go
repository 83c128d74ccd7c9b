package executor

import (
	"context"
	"fmt"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"ml-algo-trader/internal/model"
	"ml-algo-trader/internal/service"
	"ml-algo-trader/internal/sizing"
)

// BinanceGateway implements Gateway against the Binance spot API.
type BinanceGateway struct {
	client *binance.Client
	logger *zap.Logger
}

// NewBinanceGateway builds a spot client. With cfg.Testnet set the client
// talks to the Binance spot testnet; cfg.RESTURL overrides the base URL when
// present.
func NewBinanceGateway(cfg service.ExchangeConfig, logger *zap.Logger) *BinanceGateway {
	binance.UseTestnet = cfg.Testnet
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.RESTURL != "" {
		client.BaseURL = cfg.RESTURL
	}
	return &BinanceGateway{
		client: client,
		logger: logger.With(zap.String("gateway", "binance")),
	}
}

func (g *BinanceGateway) FetchBalance(ctx context.Context, asset string) (float64, error) {
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrBalanceQuery, err)
	}
	for _, b := range account.Balances {
		if b.Asset != asset {
			continue
		}
		free, err := service.StringToFloat(b.Free)
		if err != nil {
			return 0, fmt.Errorf("%w: unparseable balance %q for %s", model.ErrBalanceQuery, b.Free, asset)
		}
		return free, nil
	}
	// Asset absent from the account listing means a zero balance, not a
	// query failure.
	return 0, nil
}

func (g *BinanceGateway) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := g.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", model.ErrPriceQuery, err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("%w: no ticker for %s", model.ErrPriceQuery, symbol)
	}
	price, err := service.StringToFloat(prices[0].Price)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: unparseable ticker price %q", model.ErrPriceQuery, prices[0].Price)
	}
	return price, nil
}

func (g *BinanceGateway) PlaceMarketOrder(ctx context.Context, symbol string, plan sizing.OrderPlan) (model.Fill, error) {
	side := binance.SideTypeBuy
	if plan.Side == model.SideSell {
		side = binance.SideTypeSell
	}

	g.logger.Info("Placing market order",
		zap.String("symbol", symbol),
		zap.String("side", string(plan.Side)),
		zap.String("amount", plan.AmountString()))

	res, err := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(plan.AmountString()).
		Do(ctx)
	if err != nil {
		return model.Fill{}, fmt.Errorf("%w: %v", model.ErrExecution, err)
	}

	filled, err := service.StringToFloat(res.ExecutedQuantity)
	if err != nil || filled <= 0 {
		return model.Fill{}, fmt.Errorf("%w: order %d reported executed quantity %q",
			model.ErrExecution, res.OrderID, res.ExecutedQuantity)
	}
	fillPrice := plan.Price
	if quote, err := service.StringToFloat(res.CummulativeQuoteQuantity); err == nil && quote > 0 {
		fillPrice = quote / filled
	}

	return model.Fill{
		Symbol: symbol,
		Side:   plan.Side,
		Amount: filled,
		Price:  fillPrice,
	}, nil
}
