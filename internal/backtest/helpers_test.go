package backtest

import (
	"context"
	"sync"
	"time"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
	"github.com/newthinker/reversion/internal/indicator"
	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/quality"
)

var t0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func bar(i int, low, high, close float64) core.OHLCV {
	return core.OHLCV{
		Symbol: "EURUSD",
		Open:   close,
		High:   high,
		Low:    low,
		Close:  close,
		Time:   t0.Add(time.Duration(i) * time.Hour),
	}
}

// flatBars returns n quiet bars around 1.1000
func flatBars(n int) []core.OHLCV {
	bars := make([]core.OHLCV, n)
	for i := range bars {
		bars[i] = bar(i, 1.0990, 1.1010, 1.1000)
	}
	return bars
}

// reentryBars dips below the lower band at 24, closes back inside at 25 and
// reaches the upper band at 27.
func reentryBars() []core.OHLCV {
	bars := flatBars(30)
	bars[24] = bar(24, 1.0840, 1.0920, 1.0850)
	bars[25] = bar(25, 1.0850, 1.0960, 1.0950)
	bars[27] = bar(27, 1.0990, 1.1120, 1.1050)
	return bars
}

// constBands sets fixed bands, ADX and ATR on every row
type constBands struct {
	upper, middle, lower float64
	adx, atr             float64
}

func (constBands) Name() string { return "const" }

func (c constBands) Apply(rows []indicator.Row) {
	for i := range rows {
		rows[i].Upper, rows[i].Middle, rows[i].Lower = c.upper, c.middle, c.lower
		rows[i].ADX, rows[i].ATR = c.adx, c.atr
	}
}

func lateralIndicators() *indicator.Engine {
	return indicator.NewEngine(constBands{upper: 1.11, middle: 1.10, lower: 1.09, adx: 20, atr: 0.001})
}

func trendingIndicators() *indicator.Engine {
	return indicator.NewEngine(constBands{upper: 1.11, middle: 1.10, lower: 1.09, adx: 40, atr: 0.001})
}

type constClassifier quality.Verdict

func (c constClassifier) Predict(features.Vector) quality.Verdict { return quality.Verdict(c) }

// memRecorder keeps journal entries in memory
type memRecorder struct {
	mu        sync.Mutex
	trades    []journal.TradeRecord
	decisions []journal.Decision
}

func (m *memRecorder) RecordTrade(_ context.Context, r journal.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = append(m.trades, r)
	return nil
}

func (m *memRecorder) RecordDecision(_ context.Context, d journal.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *memRecorder) Trades(context.Context) ([]journal.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]journal.TradeRecord(nil), m.trades...), nil
}

func (m *memRecorder) Close() error { return nil }

func decisionsWith(decisions []journal.Decision, decision string) []journal.Decision {
	var out []journal.Decision
	for _, d := range decisions {
		if d.Decision == decision {
			out = append(out, d)
		}
	}
	return out
}
