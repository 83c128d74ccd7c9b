// Package market supplies candle history to the trading core.
package market

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"ml-algo-trader/internal/model"
	"ml-algo-trader/internal/service"
)

const maxHistoryLimit = 1000

// Feed fetches kline history over the Binance REST API. Market data needs no
// credentials.
type Feed struct {
	client *binance.Client
	logger *zap.Logger
}

func NewFeed(cfg service.ExchangeConfig, logger *zap.Logger) *Feed {
	binance.UseTestnet = cfg.Testnet
	client := binance.NewClient("", "")
	if cfg.RESTURL != "" {
		client.BaseURL = cfg.RESTURL
	}
	return &Feed{client: client, logger: logger.With(zap.String("feed", "binance"))}
}

// History returns up to limit most-recent candles for symbol/interval,
// oldest first, with the still-forming kline dropped so the pipeline only
// ever sees fully closed candles.
func (f *Feed) History(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	kls, err := f.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s/%s: %w", symbol, interval, err)
	}

	now := time.Now()
	out := make([]model.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		closeTime := time.UnixMilli(kl.CloseTime)
		if closeTime.After(now) {
			continue // still forming
		}
		c, err := parseKline(kl, closeTime)
		if err != nil {
			return nil, fmt.Errorf("fetch klines %s/%s: %w", symbol, interval, err)
		}
		out = append(out, c)
	}
	f.logger.Debug("Fetched candle history",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("count", len(out)))
	return out, nil
}

func parseKline(kl *binance.Kline, closeTime time.Time) (model.Candle, error) {
	open, err1 := service.StringToFloat(kl.Open)
	high, err2 := service.StringToFloat(kl.High)
	low, err3 := service.StringToFloat(kl.Low)
	closePx, err4 := service.StringToFloat(kl.Close)
	volume, err5 := service.StringToFloat(kl.Volume)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return model.Candle{}, fmt.Errorf("unparseable kline field: %w", err)
		}
	}
	return model.Candle{
		OpenTime:  time.UnixMilli(kl.OpenTime),
		CloseTime: closeTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
	}, nil
}
