package trader

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ml-algo-trader/internal/executor"
	"ml-algo-trader/internal/features"
	"ml-algo-trader/internal/journal"
	"ml-algo-trader/internal/model"
	"ml-algo-trader/internal/sizing"
	"ml-algo-trader/internal/strategy"
)

type stubPredictor struct {
	p float64
}

func (s *stubPredictor) Predict(model.FeatureVector) (float64, error) { return s.p, nil }
func (s *stubPredictor) InputSchema() []string                        { return features.Schema() }

func genSeries(n int) []model.Candle {
	series := make([]model.Candle, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range series {
		price := 100 + 5*math.Sin(float64(i)/5)
		series[i] = model.Candle{
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			CloseTime: start.Add(time.Duration(i+1) * time.Hour),
			Open:      price - 0.2,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    10 + float64(i%7),
		}
	}
	return series
}

func testConfig() Config {
	return Config{
		Symbol:          "ETHUSDT",
		BaseAsset:       "ETH",
		QuoteAsset:      "USDT",
		SpendFraction:   0.98,
		SellFraction:    1.0,
		PrecisionDigits: 4,
		MinNotional:     15,
	}
}

func newBot(t *testing.T, stub *stubPredictor, gw executor.Gateway, jnl journal.Journal) (*Trader, *strategy.Engine) {
	t.Helper()
	engine, err := strategy.NewEngine(stub, 0.30, 0.25, zap.NewNop())
	require.NoError(t, err)
	return New(engine, gw, jnl, testConfig(), zap.NewNop()), engine
}

// Full buy-then-sell round trip against the paper gateway and a real CSV
// journal.
func TestRoundTripBuyThenSell(t *testing.T) {
	ctx := context.Background()
	stub := &stubPredictor{p: 0.35}
	paper := executor.NewPaperGateway("ETH", "USDT", 1000, zap.NewNop())
	paper.MarkPrice(2000)

	jnl, err := journal.OpenCSV(filepath.Join(t.TempDir(), "trade_log.csv"))
	require.NoError(t, err)

	bot, engine := newBot(t, stub, paper, jnl)
	series := genSeries(1000)

	// Cycle 1: p=0.35 > buy threshold from Cash.
	res, err := bot.RunCycle(ctx, series)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBuy, res.Decision)
	assert.Equal(t, model.PositionLong, engine.Position())
	require.NotNil(t, res.Fill)
	assert.InDelta(t, 0.49, res.Fill.Amount, 1e-12) // 1000*0.98/2000 floored at 4 digits
	assert.InDelta(t, 2000, res.Fill.Price, 1e-12)

	records, err := jnl.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, model.SideBuy, records[0].Action)
	assert.InDelta(t, 0.49, records[0].Amount, 1e-12)
	assert.InDelta(t, 980, records[0].TotalValue, 1e-9)

	// Cycle 2: p=0.10 < sell threshold from Long liquidates the position.
	stub.p = 0.10
	res, err = bot.RunCycle(ctx, series)
	require.NoError(t, err)
	assert.Equal(t, model.DecisionSell, res.Decision)
	assert.Equal(t, model.PositionCash, engine.Position())
	require.NotNil(t, res.Fill)
	assert.InDelta(t, 0.49, res.Fill.Amount, 1e-12)

	records, err = jnl.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, model.SideSell, records[1].Action)

	base, _ := paper.FetchBalance(ctx, "ETH")
	assert.InDelta(t, 0, base, 1e-12)
}

func TestHoldPlacesNothing(t *testing.T) {
	stub := &stubPredictor{p: 0.27} // inside the dead zone
	paper := executor.NewPaperGateway("ETH", "USDT", 1000, zap.NewNop())
	paper.MarkPrice(2000)
	jnl, err := journal.OpenCSV(filepath.Join(t.TempDir(), "trade_log.csv"))
	require.NoError(t, err)

	bot, engine := newBot(t, stub, paper, jnl)
	res, err := bot.RunCycle(context.Background(), genSeries(200))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionHold, res.Decision)
	assert.Nil(t, res.Fill)
	assert.Equal(t, model.PositionCash, engine.Position())

	records, err := jnl.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBuyBelowMinimumNotionalIsNoOp(t *testing.T) {
	stub := &stubPredictor{p: 0.35}
	paper := executor.NewPaperGateway("ETH", "USDT", 5, zap.NewNop())
	paper.MarkPrice(2000)
	jnl, err := journal.OpenCSV(filepath.Join(t.TempDir(), "trade_log.csv"))
	require.NoError(t, err)

	bot, engine := newBot(t, stub, paper, jnl)
	res, err := bot.RunCycle(context.Background(), genSeries(200))
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBuy, res.Decision)
	assert.Equal(t, sizing.ReasonBelowMinimumNotional, res.NoOpReason)
	assert.Nil(t, res.Fill)
	// The decision was committed even though no order went out.
	assert.Equal(t, model.PositionLong, engine.Position())

	records, err := jnl.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

// failingGateway wraps the paper gateway and fails selected calls.
type failingGateway struct {
	*executor.PaperGateway
	failPlace   bool
	failBalance bool
	failPrice   bool
}

func (g *failingGateway) FetchBalance(ctx context.Context, asset string) (float64, error) {
	if g.failBalance {
		return 0, model.ErrBalanceQuery
	}
	return g.PaperGateway.FetchBalance(ctx, asset)
}

func (g *failingGateway) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	if g.failPrice {
		return 0, model.ErrPriceQuery
	}
	return g.PaperGateway.FetchPrice(ctx, symbol)
}

func (g *failingGateway) PlaceMarketOrder(ctx context.Context, symbol string, plan sizing.OrderPlan) (model.Fill, error) {
	if g.failPlace {
		return model.Fill{}, model.ErrExecution
	}
	return g.PaperGateway.PlaceMarketOrder(ctx, symbol, plan)
}

func newFailingGateway() *failingGateway {
	paper := executor.NewPaperGateway("ETH", "USDT", 1000, zap.NewNop())
	paper.MarkPrice(2000)
	return &failingGateway{PaperGateway: paper}
}

func TestExecutionFailureKeepsPosition(t *testing.T) {
	stub := &stubPredictor{p: 0.35}
	gw := newFailingGateway()
	gw.failPlace = true
	jnl, err := journal.OpenCSV(filepath.Join(t.TempDir(), "trade_log.csv"))
	require.NoError(t, err)

	bot, engine := newBot(t, stub, gw, jnl)
	_, err = bot.RunCycle(context.Background(), genSeries(200))
	assert.ErrorIs(t, err, model.ErrExecution)
	// Position tracks intent: no rollback on a failed order.
	assert.Equal(t, model.PositionLong, engine.Position())

	records, err := jnl.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestBalanceQueryFailureAbortsCycle(t *testing.T) {
	stub := &stubPredictor{p: 0.35}
	gw := newFailingGateway()
	gw.failBalance = true
	jnl, err := journal.OpenCSV(filepath.Join(t.TempDir(), "trade_log.csv"))
	require.NoError(t, err)

	bot, _ := newBot(t, stub, gw, jnl)
	_, err = bot.RunCycle(context.Background(), genSeries(200))
	assert.ErrorIs(t, err, model.ErrBalanceQuery)

	records, err := jnl.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPriceQueryFailureAbortsCycle(t *testing.T) {
	stub := &stubPredictor{p: 0.35}
	gw := newFailingGateway()
	gw.failPrice = true
	jnl, err := journal.OpenCSV(filepath.Join(t.TempDir(), "trade_log.csv"))
	require.NoError(t, err)

	bot, _ := newBot(t, stub, gw, jnl)
	_, err = bot.RunCycle(context.Background(), genSeries(200))
	assert.ErrorIs(t, err, model.ErrPriceQuery)
}

type failingJournal struct{}

func (failingJournal) Append(model.TradeRecord) error        { return model.ErrJournalAppend }
func (failingJournal) ReadAll() ([]model.TradeRecord, error) { return nil, nil }

func TestJournalFailureDoesNotFailTheCycle(t *testing.T) {
	stub := &stubPredictor{p: 0.35}
	paper := executor.NewPaperGateway("ETH", "USDT", 1000, zap.NewNop())
	paper.MarkPrice(2000)

	bot, _ := newBot(t, stub, paper, failingJournal{})
	res, err := bot.RunCycle(context.Background(), genSeries(200))
	require.NoError(t, err)
	require.NotNil(t, res.Fill)
}

func TestDataErrorAbortsBeforeAnyGatewayCall(t *testing.T) {
	stub := &stubPredictor{p: 0.99}
	gw := newFailingGateway()
	gw.failPrice = true // would fail loudly if reached
	jnl, err := journal.OpenCSV(filepath.Join(t.TempDir(), "trade_log.csv"))
	require.NoError(t, err)

	bot, engine := newBot(t, stub, gw, jnl)
	_, err = bot.RunCycle(context.Background(), genSeries(10))
	assert.ErrorIs(t, err, model.ErrInsufficientData)
	assert.Equal(t, model.PositionCash, engine.Position())
}
