// internal/service/config.go
package service

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// ExchangeConfig holds venue connection settings. Credentials are read from
// the environment, never from the config file.
type ExchangeConfig struct {
	Name    string
	RESTURL string
	WSURL   string
	Testnet bool

	APIKey    string `mapstructure:"-"`
	SecretKey string `mapstructure:"-"`
}

// TradingConfig identifies the instrument and the candle history per cycle.
type TradingConfig struct {
	Symbol       string // venue symbol, e.g. "ETHUSDT"
	BaseAsset    string // e.g. "ETH"
	QuoteAsset   string // e.g. "USDT"
	Interval     string // candle timeframe, e.g. "4h"
	HistoryLimit int    // candles fetched per cycle
	PollInterval time.Duration
	Stream       bool // drive cycles from the websocket kline stream
	Paper        bool // paper gateway instead of the live venue
}

// StrategyConfig holds the model and the hysteresis thresholds. Features is
// the training-time feature order of the model artifact; the signal engine
// refuses to start when it disagrees with the pipeline's schema.
type StrategyConfig struct {
	ModelPath     string
	BuyThreshold  float64
	SellThreshold float64
	Features      []string
}

// OrderConfig holds sizing parameters.
type OrderConfig struct {
	SpendFraction   float64 // share of quote balance spent on a buy
	SellFraction    float64 // share of base balance sold on a sell
	PrecisionDigits int32   // decimal places a legal order amount may carry
	MinNotional     float64 // venue minimum order value in quote currency

	PaperQuoteBalance float64 // starting quote balance for paper trading
}

type Config struct {
	Exchange    ExchangeConfig `mapstructure:"Exchange"`
	Trading     TradingConfig  `mapstructure:"Trading"`
	Strategy    StrategyConfig `mapstructure:"Strategy"`
	Order       OrderConfig    `mapstructure:"Order"`
	JournalPath string         `mapstructure:"JournalPath"`
	LogLevel    string         `mapstructure:"LogLevel"`
}

// LoadConfig reads config/config.yaml, applies defaults and environment
// credentials, and validates. Validation failures are configuration errors
// and should terminate the process at the call site.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)

	viper.SetDefault("Trading.HistoryLimit", 1000)
	viper.SetDefault("Trading.PollInterval", "60s")
	viper.SetDefault("Order.SpendFraction", 0.98)
	viper.SetDefault("Order.SellFraction", 1.0)
	viper.SetDefault("Order.PrecisionDigits", 4)
	viper.SetDefault("Order.MinNotional", 15)
	viper.SetDefault("JournalPath", "trade_log.csv")
	viper.SetDefault("LogLevel", "info")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if cfg.Exchange.Testnet {
		cfg.Exchange.APIKey = os.Getenv("BINANCE_TESTNET_API_KEY")
		cfg.Exchange.SecretKey = os.Getenv("BINANCE_TESTNET_SECRET_KEY")
	} else {
		cfg.Exchange.APIKey = os.Getenv("BINANCE_API_KEY")
		cfg.Exchange.SecretKey = os.Getenv("BINANCE_SECRET_KEY")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Trading.Symbol == "" || c.Trading.BaseAsset == "" || c.Trading.QuoteAsset == "" {
		return fmt.Errorf("Trading.Symbol, BaseAsset and QuoteAsset are required")
	}
	if c.Trading.Interval == "" {
		return fmt.Errorf("Trading.Interval is required")
	}
	if _, err := ParseIntervalDuration(c.Trading.Interval); err != nil {
		return fmt.Errorf("Trading.Interval: %w", err)
	}
	if c.Strategy.SellThreshold >= c.Strategy.BuyThreshold {
		return fmt.Errorf("Strategy.SellThreshold (%.4f) must be below Strategy.BuyThreshold (%.4f)",
			c.Strategy.SellThreshold, c.Strategy.BuyThreshold)
	}
	if c.Strategy.BuyThreshold > 1 || c.Strategy.SellThreshold < 0 {
		return fmt.Errorf("thresholds must lie inside [0, 1]")
	}
	if c.Order.SpendFraction <= 0 || c.Order.SpendFraction > 1 {
		return fmt.Errorf("Order.SpendFraction must be in (0, 1]")
	}
	if c.Order.SellFraction <= 0 || c.Order.SellFraction > 1 {
		return fmt.Errorf("Order.SellFraction must be in (0, 1]")
	}
	if c.Order.PrecisionDigits < 0 {
		return fmt.Errorf("Order.PrecisionDigits must not be negative")
	}
	if !c.Trading.Paper && c.Exchange.APIKey == "" {
		return fmt.Errorf("missing exchange API credentials in environment")
	}
	return nil
}
