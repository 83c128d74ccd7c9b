package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// closedKlineEvent is a complete stream message as Binance sends it. The
// uppercase keys ("E", "f", "L", "q", "V", "Q", "n", "B") must stay in the
// fixture: they share letters with the fields the parser actually reads, and
// a missing exact tag makes the decoder cross them case-insensitively.
const closedKlineEvent = `{
	"e": "kline", "E": 1704070800123, "s": "ETHUSDT",
	"k": {
		"t": 1704067200000, "T": 1704070799999, "s": "ETHUSDT", "i": "1h",
		"f": 1361000, "L": 1361427,
		"o": "2301.50", "c": "2310.01", "h": "2315.00", "l": "2299.99",
		"v": "1523.412", "n": 428, "x": true,
		"q": "3513274.11", "V": "812.006", "Q": "1872410.92", "B": "0"
	}
}`

func TestParseKlineEventClosed(t *testing.T) {
	candle, closed, err := parseKlineEvent([]byte(closedKlineEvent))
	require.NoError(t, err)
	require.True(t, closed)

	assert.Equal(t, time.UnixMilli(1704067200000), candle.OpenTime)
	assert.Equal(t, time.UnixMilli(1704070799999), candle.CloseTime)
	assert.Equal(t, 2301.50, candle.Open)
	assert.Equal(t, 2315.00, candle.High)
	assert.Equal(t, 2299.99, candle.Low)
	assert.Equal(t, 2310.01, candle.Close)
	assert.Equal(t, 1523.412, candle.Volume)
}

func TestParseKlineEventStillForming(t *testing.T) {
	msg := `{"e":"kline","E":1704069000500,"s":"ETHUSDT","k":{"t":1704067200000,"T":1704070799999,"i":"1h","f":1361000,"L":1361200,"o":"1","h":"1","l":"1","c":"1","v":"1","q":"1","V":"1","Q":"1","n":200,"x":false}}`
	_, closed, err := parseKlineEvent([]byte(msg))
	require.NoError(t, err)
	assert.False(t, closed)
}

func TestParseKlineEventWrongEventType(t *testing.T) {
	msg := `{"e":"aggTrade","s":"ETHUSDT"}`
	_, _, err := parseKlineEvent([]byte(msg))
	assert.Error(t, err)
}

func TestParseKlineEventBadJSON(t *testing.T) {
	_, _, err := parseKlineEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseKlineEventBadNumericField(t *testing.T) {
	msg := `{"e":"kline","s":"ETHUSDT","k":{"t":1704067200000,"T":1704070799999,"i":"1h","o":"oops","h":"1","l":"1","c":"1","v":"1","x":true}}`
	_, _, err := parseKlineEvent([]byte(msg))
	assert.Error(t, err)
}

func TestStreamURL(t *testing.T) {
	c := NewConnector("wss://stream.binance.com:9443/", "ETHUSDT", "1h", zap.NewNop())
	assert.Equal(t, "wss://stream.binance.com:9443/ws/ethusdt@kline_1h", c.streamURL)
}
