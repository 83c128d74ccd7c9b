// Package sizing converts balances into precision-compliant order amounts.
//
// All arithmetic runs on shopspring decimals: truncating a binary float at a
// digit boundary can gain or lose one unit at the last place, and the venue
// rejects over-precise or over-spent amounts outright.
package sizing

import (
	"github.com/shopspring/decimal"

	"ml-algo-trader/internal/model"
)

// NoOpReason says why no order should be placed.
type NoOpReason string

const (
	// ReasonInsufficientBalance: there is nothing to trade with (zero or
	// negative balance, or no usable price).
	ReasonInsufficientBalance NoOpReason = "INSUFFICIENT_BALANCE"

	// ReasonBelowMinimumNotional: the truncated amount values below the
	// venue minimum order size.
	ReasonBelowMinimumNotional NoOpReason = "BELOW_MINIMUM_NOTIONAL"
)

// OrderPlan is either a sized order or a NoOp with a reason.
type OrderPlan struct {
	Side      model.Side
	Amount    decimal.Decimal // truncated to Precision digits
	Price     float64
	Precision int32

	NoOp   bool
	Reason NoOpReason
}

// AmountString renders the amount with exactly Precision decimals, the form
// the venue expects on the wire.
func (p OrderPlan) AmountString() string {
	return p.Amount.StringFixed(p.Precision)
}

// AmountFloat is the amount as float64, for journaling and logging.
func (p OrderPlan) AmountFloat() float64 {
	return p.Amount.InexactFloat64()
}

func noOp(side model.Side, price float64, digits int32, reason NoOpReason) OrderPlan {
	return OrderPlan{Side: side, Price: price, Precision: digits, NoOp: true, Reason: reason}
}

// SizeBuy spends spendFraction of the quote balance at price, truncating the
// amount toward zero at precisionDigits. spendFraction below 1 keeps a buffer
// for fees and slippage.
func SizeBuy(quoteBalance, price, spendFraction float64, precisionDigits int32, minNotional float64) OrderPlan {
	if quoteBalance <= 0 || price <= 0 {
		return noOp(model.SideBuy, price, precisionDigits, ReasonInsufficientBalance)
	}

	spend := decimal.NewFromFloat(quoteBalance).Mul(decimal.NewFromFloat(spendFraction))
	priceDec := decimal.NewFromFloat(price)
	amount := spend.Div(priceDec).RoundDown(precisionDigits)
	if amount.Mul(priceDec).LessThan(decimal.NewFromFloat(minNotional)) {
		return noOp(model.SideBuy, price, precisionDigits, ReasonBelowMinimumNotional)
	}

	return OrderPlan{Side: model.SideBuy, Amount: amount, Price: price, Precision: precisionDigits}
}

// SizeSell liquidates sellFraction of the base balance, with the same
// truncation discipline. sellFraction is typically 1.0.
func SizeSell(baseBalance, price, sellFraction float64, precisionDigits int32, minNotional float64) OrderPlan {
	if baseBalance <= 0 || price <= 0 {
		return noOp(model.SideSell, price, precisionDigits, ReasonInsufficientBalance)
	}

	priceDec := decimal.NewFromFloat(price)
	amount := decimal.NewFromFloat(baseBalance).
		Mul(decimal.NewFromFloat(sellFraction)).
		RoundDown(precisionDigits)
	if amount.Mul(priceDec).LessThan(decimal.NewFromFloat(minNotional)) {
		return noOp(model.SideSell, price, precisionDigits, ReasonBelowMinimumNotional)
	}

	return OrderPlan{Side: model.SideSell, Amount: amount, Price: price, Precision: precisionDigits}
}
