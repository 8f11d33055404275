package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/metrics"
	"github.com/newthinker/reversion/internal/quality"
	"github.com/newthinker/reversion/internal/risk"
)

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithIndicators(lateralIndicators())}, opts...)
	return NewEngine(risk.NewSizer(risk.DefaultConfig()), opts...)
}

func TestEngine_Run_BandReentryTrade(t *testing.T) {
	rec := &memRecorder{}
	e := newTestEngine(t, WithRecorder(rec), WithMetrics(metrics.NewRegistry()))
	bars := reentryBars()

	res, err := e.Run(context.Background(), "EURUSD", bars, risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, core.SideBuy, tr.Side)
	assert.Equal(t, bars[25].Time, tr.EntryTime)
	assert.Equal(t, 1.0950, tr.EntryPrice)
	assert.InDelta(t, 1.0839, tr.StopLoss, 1e-9)
	assert.Equal(t, 1.11, tr.TakeProfit)
	assert.Equal(t, 0.67, tr.Size)
	assert.Equal(t, ExitTakeProfit, tr.ExitReason)
	assert.Equal(t, bars[27].Time, tr.ExitTime)
	assert.Equal(t, 2, tr.BarsHeld)
	assert.InDelta(t, (1.11-1.095)*100000*0.67, tr.Profit, 1e-6)
	assert.Equal(t, core.OutcomeProfit, tr.Outcome)
	assert.NotEmpty(t, tr.ID)
	require.NotNil(t, tr.Features)
	assert.Equal(t, 20.0, tr.Features.TrendStrength)

	assert.Equal(t, DefaultInitialBalance, res.InitialBalance)
	assert.InDelta(t, DefaultInitialBalance+tr.Profit, res.FinalBalance, 1e-9)
	assert.InDelta(t, tr.Profit, res.TotalProfit, 1e-9)
	assert.Equal(t, res.FinalBalance, tr.BalanceAfter)
	assert.Equal(t, 1, res.Wins)
	assert.Equal(t, 1.0, res.WinRate)
	assert.Equal(t, 1, res.Signals)
	assert.Equal(t, "bollinger_reversion", res.Strategy)
	assert.Equal(t, len(bars), res.Bars)

	require.Len(t, rec.trades, 1)
	assert.Equal(t, tr.ID, rec.trades[0].ID)
	assert.Equal(t, "take_profit", rec.trades[0].ExitReason)
	buys := decisionsWith(rec.decisions, "buy")
	require.Len(t, buys, 1)
	assert.Equal(t, bars[25].Time, buys[0].Time)
	assert.Equal(t, "SL: 1.08390, TP: 1.11000", buys[0].Detail)
}

func TestEngine_Run_QualityFilterRejects(t *testing.T) {
	rec := &memRecorder{}
	e := newTestEngine(t, WithRecorder(rec), WithClassifier(constClassifier(quality.VerdictBad)))

	res, err := e.Run(context.Background(), "EURUSD", reentryBars(), risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Filtered)
	assert.Equal(t, DefaultInitialBalance, res.FinalBalance)

	assert.Empty(t, decisionsWith(rec.decisions, "buy"))
	require.Len(t, rec.decisions, 9)
	rejected := rec.decisions[5]
	assert.Equal(t, journal.DecisionIgnored, rejected.Decision)
	assert.Equal(t, "rejected by quality filter", rejected.Reason)
	assert.Contains(t, rejected.Detail, "band_position=")
}

func TestEngine_Run_GoodClassifierKeepsTrade(t *testing.T) {
	e := newTestEngine(t, WithClassifier(constClassifier(quality.VerdictGood)))

	res, err := e.Run(context.Background(), "EURUSD", reentryBars(), risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)
	assert.Len(t, res.Trades, 1)
	assert.Zero(t, res.Filtered)
}

func TestEngine_Run_TrendingMarketNoTrades(t *testing.T) {
	rec := &memRecorder{}
	e := newTestEngine(t, WithIndicators(trendingIndicators()), WithRecorder(rec))
	bars := reentryBars()

	res, err := e.Run(context.Background(), "EURUSD", bars, risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)
	assert.Zero(t, res.TotalTrades)
	assert.Zero(t, res.Signals)
	assert.Equal(t, res.InitialBalance, res.FinalBalance)
	assert.Zero(t, res.WinRate)

	// Bars 20 through len-2 are evaluated and all rejected by the regime filter.
	require.Len(t, rec.decisions, len(bars)-2-20+1)
	assert.Equal(t, "market not lateral (ADX 40.00)", rec.decisions[0].Reason)
}

func TestEngine_Run_ShortSeries(t *testing.T) {
	e := newTestEngine(t)

	for _, n := range []int{0, 1, 21} {
		res, err := e.Run(context.Background(), "EURUSD", flatBars(n), risk.DefaultInstrument("EURUSD"))
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.NotNil(t, res.Trades)
		assert.Empty(t, res.Trades)
		assert.Equal(t, DefaultInitialBalance, res.FinalBalance)
		assert.Zero(t, res.TotalProfit)
	}
}

func TestEngine_Run_InvalidPlanSkipped(t *testing.T) {
	bars := reentryBars()
	// Close re-enters above the middle band, so a middle-band target sits behind entry.
	bars[25] = bar(25, 1.0850, 1.1060, 1.1050)
	cfg := risk.DefaultConfig()
	cfg.TakeProfit = risk.TakeProfitMiddle
	e := NewEngine(risk.NewSizer(cfg), WithLogger(zaptest.NewLogger(t)), WithIndicators(lateralIndicators()))

	res, err := e.Run(context.Background(), "EURUSD", bars, risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 1, res.Signals)
	assert.Equal(t, 1, res.Skipped)
}

func TestEngine_Run_Cancelled(t *testing.T) {
	e := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx, "EURUSD", reentryBars(), risk.DefaultInstrument("EURUSD"))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Trades)
	assert.Equal(t, res.InitialBalance, res.FinalBalance)
}

func TestEngine_Run_InitialBalance(t *testing.T) {
	e := newTestEngine(t, WithInitialBalance(50000))

	res, err := e.Run(context.Background(), "EURUSD", reentryBars(), risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)
	assert.Equal(t, 50000.0, res.InitialBalance)
	require.Len(t, res.Trades, 1)
	// Risk scales with balance: 0.01 × 50000 / 150 per lot.
	assert.Equal(t, 3.33, res.Trades[0].Size)
}

func TestEngine_Run_DecisionPerEvaluatedBar(t *testing.T) {
	rec := &memRecorder{}
	e := newTestEngine(t, WithRecorder(rec))
	bars := reentryBars()

	_, err := e.Run(context.Background(), "EURUSD", bars, risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)

	// Bars 20 through len-2 each leave exactly one record.
	require.Len(t, rec.decisions, len(bars)-2-20+1)
	for i, d := range rec.decisions {
		assert.Equal(t, bars[20+i].Time, d.Time)
		if i == 5 {
			assert.Equal(t, "buy", d.Decision)
			continue
		}
		assert.Equal(t, journal.DecisionIgnored, d.Decision)
		assert.Equal(t, "no band re-entry", d.Reason)
	}
}

// overlappingBars opens buys at 25 and 29 that both take profit at 45, then a
// third buy at 48 that takes profit at 50.
func overlappingBars() []core.OHLCV {
	bars := flatBars(53)
	for _, i := range []int{24, 28, 47} {
		bars[i] = bar(i, 1.0840, 1.0920, 1.0850)
		bars[i+1] = bar(i+1, 1.0850, 1.0960, 1.0950)
	}
	bars[45] = bar(45, 1.0990, 1.1120, 1.1050)
	bars[50] = bar(50, 1.0990, 1.1120, 1.1050)
	return bars
}

func TestEngine_Run_SizesFromRealizedBalance(t *testing.T) {
	e := newTestEngine(t)
	bars := overlappingBars()

	res, err := e.Run(context.Background(), "EURUSD", bars, risk.DefaultInstrument("EURUSD"))
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)

	first, second, third := res.Trades[0], res.Trades[1], res.Trades[2]
	assert.Equal(t, bars[25].Time, first.EntryTime)
	assert.Equal(t, bars[29].Time, second.EntryTime)
	assert.Equal(t, bars[48].Time, third.EntryTime)
	assert.Equal(t, bars[45].Time, first.ExitTime)
	assert.Equal(t, bars[45].Time, second.ExitTime)
	assert.Equal(t, bars[50].Time, third.ExitTime)

	// The second trade opens while the first is still running, so both are
	// sized from the starting balance.
	assert.Equal(t, 0.67, first.Size)
	assert.Equal(t, 0.67, second.Size)
	// Both have paid out by bar 48: 0.01 × 12010 / 150 per lot.
	assert.Equal(t, 0.80, third.Size)

	assert.InDelta(t, 11005, first.BalanceAfter, 1e-6)
	assert.InDelta(t, 12010, second.BalanceAfter, 1e-6)
	assert.InDelta(t, 13210, third.BalanceAfter, 1e-6)
	assert.InDelta(t, 13210, res.FinalBalance, 1e-6)
	assert.InDelta(t, 3210, res.TotalProfit, 1e-6)
	assert.Zero(t, res.Stats.MaxDrawdown)
}

func TestResult_SettleInExitOrder(t *testing.T) {
	res := newResult("run", "bollinger_reversion", "EURUSD", nil, 1000)
	// Entry order differs from exit order.
	res.add(Trade{Profit: 300, ExitTime: t0.Add(5 * time.Hour)})
	res.add(Trade{Profit: -200, ExitTime: t0.Add(2 * time.Hour)})

	assert.Equal(t, 1000.0, res.settle(t0.Add(time.Hour)))
	assert.Equal(t, 800.0, res.settle(t0.Add(2*time.Hour)))
	assert.Equal(t, 800.0, res.Trades[1].BalanceAfter)
	assert.Zero(t, res.Trades[0].BalanceAfter)

	res.finish()
	assert.Equal(t, 1100.0, res.FinalBalance)
	assert.Equal(t, 1100.0, res.Trades[0].BalanceAfter)
	assert.Equal(t, 100.0, res.TotalProfit)
	// Curve 1000, 800, 1100 has a 20% trough.
	assert.InDelta(t, 20, res.Stats.MaxDrawdown, 1e-9)
}
