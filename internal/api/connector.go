package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ml-algo-trader/internal/model"
	"ml-algo-trader/internal/service"
)

// wsKlineEvent mirrors the Binance kline stream payload. The stream reuses
// letters in both cases ("e"/"E", "l"/"L", "v"/"V") and encoding/json falls
// back to case-insensitive matching, so every such key needs its own
// exact-tagged field or the decoder crosses them.
type wsKlineEvent struct {
	Event     string  `json:"e"`
	EventTime int64   `json:"E"` // ms
	Symbol    string  `json:"s"`
	Kline     wsKline `json:"k"`
}

type wsKline struct {
	StartTime    int64  `json:"t"` // interval open, ms
	CloseTime    int64  `json:"T"` // interval close, ms
	Interval     string `json:"i"`
	FirstTradeID int64  `json:"f"`
	LastTradeID  int64  `json:"L"`
	Open         string `json:"o"`
	High         string `json:"h"`
	Low          string `json:"l"`
	Close        string `json:"c"`
	Volume       string `json:"v"`
	QuoteVolume  string `json:"q"`
	TakerVolume  string `json:"V"`
	TakerQuote   string `json:"Q"`
	TradeCount   int64  `json:"n"`
	Final        bool   `json:"x"` // true once the kline is closed
}

// Connector subscribes to one symbol's kline stream and emits only closed
// candles. It redials on transport errors until the context is cancelled.
type Connector struct {
	streamURL string
	symbol    string
	candles   chan model.Candle
	logger    *zap.Logger
}

func NewConnector(wsURL, symbol, interval string, logger *zap.Logger) *Connector {
	streamURL := fmt.Sprintf("%s/ws/%s@kline_%s",
		strings.TrimRight(wsURL, "/"), strings.ToLower(symbol), interval)
	return &Connector{
		streamURL: streamURL,
		symbol:    symbol,
		candles:   make(chan model.Candle, 64),
		logger:    logger.With(zap.String("symbol", symbol)),
	}
}

// Candles is the closed-candle output channel. It is closed when Start
// returns.
func (c *Connector) Candles() <-chan model.Candle {
	return c.candles
}

// Start blocks, feeding the candle channel until ctx is cancelled.
func (c *Connector) Start(ctx context.Context) {
	defer close(c.candles)
	for {
		if ctx.Err() != nil {
			return
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.streamURL, nil)
		if err != nil {
			c.logger.Error("WS dial failed, retrying", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}
		c.logger.Info("Subscribed to kline stream", zap.String("url", c.streamURL))
		c.readLoop(ctx, conn)
		conn.Close()
	}
}

func (c *Connector) readLoop(ctx context.Context, conn *websocket.Conn) {
	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("WS read failed, reconnecting", zap.Error(err))
			}
			return
		}
		candle, closed, err := parseKlineEvent(message)
		if err != nil {
			c.logger.Debug("Skipping unparseable stream message", zap.Error(err))
			continue
		}
		if !closed {
			continue
		}
		select {
		case c.candles <- candle:
		default:
			c.logger.Warn("Candle channel full, dropping candle",
				zap.Time("open_time", candle.OpenTime))
		}
	}
}

func parseKlineEvent(message []byte) (model.Candle, bool, error) {
	var ev wsKlineEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return model.Candle{}, false, err
	}
	if ev.Event != "kline" {
		return model.Candle{}, false, fmt.Errorf("unexpected event %q", ev.Event)
	}
	if !ev.Kline.Final {
		return model.Candle{}, false, nil
	}

	open, err1 := service.StringToFloat(ev.Kline.Open)
	high, err2 := service.StringToFloat(ev.Kline.High)
	low, err3 := service.StringToFloat(ev.Kline.Low)
	closePx, err4 := service.StringToFloat(ev.Kline.Close)
	volume, err5 := service.StringToFloat(ev.Kline.Volume)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return model.Candle{}, false, fmt.Errorf("unparseable kline field: %w", err)
		}
	}

	return model.Candle{
		OpenTime:  time.UnixMilli(ev.Kline.StartTime),
		CloseTime: time.UnixMilli(ev.Kline.CloseTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
	}, true, nil
}
