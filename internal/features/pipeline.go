// Package features turns candle history into the model input vector.
//
// The numeric definitions mirror the pipeline the classifier was trained on:
// Wilder RSI and ATR, MACD(12,26,9) histogram, Bollinger(20,2) %B, OBV first
// difference, log returns, plus one-candle lags of RSI and log return. All
// indicator math goes through go-talib so live values match training values.
package features

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"ml-algo-trader/internal/model"
)

// SchemaVersion identifies the feature layout below. Bump it whenever a
// feature is added, removed or reordered; the model artifact must agree.
const SchemaVersion = 1

var schema = []string{
	"log_return",
	"RSI_14",
	"MACD_hist",
	"ATR_14",
	"RSI_lag1",
	"return_lag1",
	"OBV_slope",
	"BBP",
}

const (
	rsiPeriod    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	atrPeriod    = 14
	bbandsPeriod = 20
	bbandsStdDev = 2

	// MACD histogram is the last indicator to warm up: slow EMA plus signal
	// EMA need macdSlow+macdSignal-2 candles before the first defined value.
	macdWarmup = macdSlow + macdSignal - 2

	// MinHistory is the shortest series that still yields one fully defined
	// row: the warmed-up candle, its lag candle, and the log-return seed.
	MinHistory = macdWarmup + 2
)

// windowStdDev is the population standard deviation of xs, computed from
// exact sums so a window of identical values yields exactly zero.
func windowStdDev(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// Schema returns the feature names in input order.
func Schema() []string {
	out := make([]string, len(schema))
	copy(out, schema)
	return out
}

// Transform computes the feature vector for the most recent candle of series.
// Candles without full lookback history are dropped; if the tail row itself
// is not fully defined, Transform fails with model.ErrInsufficientData.
func Transform(series []model.Candle) (model.FeatureVector, error) {
	if err := model.ValidateSeries(series, MinHistory); err != nil {
		return model.FeatureVector{}, err
	}

	n := len(series)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, c := range series {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
		volumes[i] = c.Volume
	}

	logReturns := make([]float64, n)
	for i := 1; i < n; i++ {
		if closes[i-1] <= 0 || closes[i] <= 0 {
			return model.FeatureVector{}, fmt.Errorf("%w: non-positive close at candle %d", model.ErrMalformedData, i)
		}
		logReturns[i] = math.Log(closes[i] / closes[i-1])
	}

	rsi := talib.Rsi(closes, rsiPeriod)
	_, _, macdHist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	atr := talib.Atr(highs, lows, closes, atrPeriod)

	obv := talib.Obv(closes, volumes)
	obvSlope := make([]float64, n)
	for i := 1; i < n; i++ {
		obvSlope[i] = obv[i] - obv[i-1]
	}

	upper, _, lower := talib.BBands(closes, bbandsPeriod, bbandsStdDev, bbandsStdDev, talib.SMA)
	last := n - 1
	width := upper[last] - lower[last]
	// A flat price window collapses the bands and leaves the row undefined,
	// same as a NaN row dropped during training. talib's rolling variance
	// carries floating-point residue on identical closes, so the window
	// deviation is computed directly: for identical values it is exactly zero.
	if windowStdDev(closes[last+1-bbandsPeriod:last+1]) == 0 || width <= 0 {
		return model.FeatureVector{}, fmt.Errorf("%w: degenerate bollinger band at tail", model.ErrInsufficientData)
	}
	bbp := (closes[last] - lower[last]) / width

	values := []float64{
		logReturns[last],
		rsi[last],
		macdHist[last],
		atr[last],
		rsi[last-1],
		logReturns[last-1],
		obvSlope[last],
		bbp,
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.FeatureVector{}, fmt.Errorf("%w: feature %q undefined at tail", model.ErrInsufficientData, schema[i])
		}
	}

	return model.FeatureVector{Schema: Schema(), Values: values}, nil
}
