// Package strategy holds the hysteresis signal engine: one probability in,
// one Buy/Sell/Hold decision out, with the Cash/Long position owned here.
package strategy

import (
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"ml-algo-trader/internal/features"
	"ml-algo-trader/internal/model"
)

// Predictor is the injected scoring capability. Predict returns the model's
// probability of an upward move, in [0, 1]. InputSchema reports the feature
// names, in order, the model was trained on.
type Predictor interface {
	Predict(fv model.FeatureVector) (float64, error)
	InputSchema() []string
}

// Engine drives the two-state position machine. sellThreshold < buyThreshold
// leaves a dead zone that absorbs probability noise: anything inside
// [sell, buy] is a Hold no matter the position, so the engine cannot whipsaw
// between Buy and Sell on an oscillating score.
type Engine struct {
	mu        sync.Mutex
	predictor Predictor

	buyThreshold  float64
	sellThreshold float64

	position model.Position
	logger   *zap.Logger
}

// NewEngine validates the thresholds and checks the feature schema against
// the predictor's expected input order. A mismatch is a configuration fault
// (model.ErrSchemaMismatch) and must not be papered over by reordering.
func NewEngine(p Predictor, buyThreshold, sellThreshold float64, logger *zap.Logger) (*Engine, error) {
	if sellThreshold >= buyThreshold {
		return nil, fmt.Errorf("sell threshold %.4f must be below buy threshold %.4f", sellThreshold, buyThreshold)
	}
	if !slices.Equal(features.Schema(), p.InputSchema()) {
		return nil, fmt.Errorf("%w: pipeline emits %v, model expects %v",
			model.ErrSchemaMismatch, features.Schema(), p.InputSchema())
	}
	return &Engine{
		predictor:     p,
		buyThreshold:  buyThreshold,
		sellThreshold: sellThreshold,
		position:      model.PositionCash,
		logger:        logger,
	}, nil
}

// Decide runs one cycle: features, probability, hysteresis. Pipeline and
// predictor errors propagate unchanged with the position untouched. The
// position transition is committed atomically with the returned decision and
// is independent of whatever the caller later does with the order.
func (e *Engine) Decide(series []model.Candle) (model.Decision, error) {
	fv, err := features.Transform(series)
	if err != nil {
		return "", err
	}

	p, err := e.predictor.Predict(fv)
	if err != nil {
		return "", fmt.Errorf("predict: %w", err)
	}
	if p < 0 || p > 1 {
		return "", fmt.Errorf("predict: probability %.6f outside [0, 1]", p)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	decision := model.DecisionHold
	switch {
	case e.position == model.PositionCash && p > e.buyThreshold:
		decision = model.DecisionBuy
		e.position = model.PositionLong
	case e.position == model.PositionLong && p < e.sellThreshold:
		decision = model.DecisionSell
		e.position = model.PositionCash
	}

	if decision != model.DecisionHold {
		e.logger.Info("Position transition",
			zap.String("decision", string(decision)),
			zap.String("position", string(e.position)),
			zap.Float64("probability", p))
	} else {
		e.logger.Debug("Holding",
			zap.String("position", string(e.position)),
			zap.Float64("probability", p))
	}

	return decision, nil
}

// Position returns the current holding state.
func (e *Engine) Position() model.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// Restore seeds the position, for callers that persist holdings across
// restarts. Reconciling it against actual venue balances is the caller's job.
func (e *Engine) Restore(pos model.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.position = pos
}
