package market

import (
	"fmt"
	"sync"

	"ml-algo-trader/internal/model"
)

// Window holds the most recent closed candles, oldest first, trimmed FIFO to
// a fixed capacity. It bridges the streaming connector and the per-cycle
// snapshot the pipeline consumes.
type Window struct {
	mu      sync.Mutex
	max     int
	candles []model.Candle
}

func NewWindow(max int) *Window {
	if max < 1 {
		max = 1
	}
	return &Window{max: max, candles: make([]model.Candle, 0, max)}
}

// Seed replaces the window contents with a validated history slice, keeping
// the most recent max candles.
func (w *Window) Seed(series []model.Candle) error {
	if err := model.ValidateSeries(series, 1); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(series) > w.max {
		series = series[len(series)-w.max:]
	}
	w.candles = append(w.candles[:0], series...)
	return nil
}

// Push appends one closed candle. Candles that do not advance the clock are
// rejected so a replayed stream event cannot corrupt the series ordering.
func (w *Window) Push(c model.Candle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if n := len(w.candles); n > 0 && !c.OpenTime.After(w.candles[n-1].OpenTime) {
		return fmt.Errorf("%w: candle open %s does not advance past %s",
			model.ErrMalformedData, c.OpenTime, w.candles[n-1].OpenTime)
	}
	w.candles = append(w.candles, c)
	if len(w.candles) > w.max {
		w.candles = w.candles[len(w.candles)-w.max:]
	}
	return nil
}

// Snapshot returns a copy of the current series, oldest first.
func (w *Window) Snapshot() []model.Candle {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]model.Candle, len(w.candles))
	copy(out, w.candles)
	return out
}

func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.candles)
}
