package model

import (
	"errors"
	"fmt"
	"time"
)

// Candle is one closed OHLCV interval.
type Candle struct {
	OpenTime  time.Time
	CloseTime time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ValidateSeries checks the candle-series invariants: at least minLen candles,
// strictly increasing open times, no duplicates.
func ValidateSeries(series []Candle, minLen int) error {
	if len(series) < minLen {
		return fmt.Errorf("%w: have %d candles, need at least %d", ErrInsufficientData, len(series), minLen)
	}
	for i := 1; i < len(series); i++ {
		if !series[i].OpenTime.After(series[i-1].OpenTime) {
			return fmt.Errorf("%w: candle %d open time %s not after %s",
				ErrMalformedData, i, series[i].OpenTime, series[i-1].OpenTime)
		}
	}
	return nil
}

// Position is the engine's holding state.
type Position string

const (
	PositionCash Position = "CASH"
	PositionLong Position = "LONG"
)

// Decision is the output of one signal-engine cycle.
type Decision string

const (
	DecisionBuy  Decision = "BUY"
	DecisionSell Decision = "SELL"
	DecisionHold Decision = "HOLD"
)

// Side is the direction of an order sent to the venue.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// FeatureVector is a feature row in fixed schema order. Index i of Values
// holds the feature named by Schema[i].
type FeatureVector struct {
	Schema []string
	Values []float64
}

// Get returns the value for a named feature.
func (fv FeatureVector) Get(name string) (float64, bool) {
	for i, n := range fv.Schema {
		if n == name {
			return fv.Values[i], true
		}
	}
	return 0, false
}

// TradeRecord is one executed trade, immutable once journaled.
type TradeRecord struct {
	Timestamp  time.Time
	Action     Side
	Amount     float64
	Price      float64
	TotalValue float64 // Amount * Price
}

// Fill is the venue's confirmation of a market order.
type Fill struct {
	Symbol string
	Side   Side
	Amount float64
	Price  float64
}

// Error kinds, one per failure policy. Callers branch with errors.Is.
var (
	// ErrInsufficientData: candle history too short for the feature lookback.
	// Retryable next cycle.
	ErrInsufficientData = errors.New("insufficient candle history")

	// ErrMalformedData: series violates ordering invariants. Retryable.
	ErrMalformedData = errors.New("malformed candle series")

	// ErrSchemaMismatch: feature schema differs from the model's expected
	// input order. Configuration fault, not retryable.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrBalanceQuery / ErrPriceQuery: gateway query failed. Retryable.
	ErrBalanceQuery = errors.New("balance query failed")
	ErrPriceQuery   = errors.New("price query failed")

	// ErrExecution: order rejected or transport failure after the decision
	// was committed. The position is not rolled back.
	ErrExecution = errors.New("order execution failed")

	// ErrJournalAppend: the trade executed but could not be journaled.
	ErrJournalAppend = errors.New("journal append failed")
)
