package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1m", time.Minute},
		{"15m", 15 * time.Minute},
		{"4h", 4 * time.Hour},
		{"1d", 24 * time.Hour},
	}
	for _, tc := range cases {
		got, err := ParseIntervalDuration(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseIntervalDurationRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "h", "4w", "0m", "-1h", "4.5h", "xh"} {
		_, err := ParseIntervalDuration(in)
		assert.Error(t, err, in)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Trading: TradingConfig{
				Symbol: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT",
				Interval: "4h", Paper: true,
			},
			Strategy: StrategyConfig{BuyThreshold: 0.30, SellThreshold: 0.25},
			Order:    OrderConfig{SpendFraction: 0.98, SellFraction: 1.0, PrecisionDigits: 4, MinNotional: 15},
		}
	}

	cfg := valid()
	assert.NoError(t, cfg.validate())

	cfg = valid()
	cfg.Strategy.SellThreshold = 0.30 // equal thresholds collapse the dead zone
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.Strategy.SellThreshold = 0.40
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.Trading.Interval = "4w"
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.Order.SpendFraction = 1.5
	assert.Error(t, cfg.validate())

	cfg = valid()
	cfg.Order.PrecisionDigits = -1
	assert.Error(t, cfg.validate())

	// Live trading without credentials must not start.
	cfg = valid()
	cfg.Trading.Paper = false
	cfg.Exchange.APIKey = ""
	assert.Error(t, cfg.validate())
}
