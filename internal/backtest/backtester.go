package backtest

import (
	"context"
	"time"

	"github.com/newthinker/reversion/internal/collector"
	"github.com/newthinker/reversion/internal/risk"
)

// Backtester runs the engine against history fetched from a price source
type Backtester struct {
	provider collector.Provider
	engine   *Engine
}

// New creates a new Backtester with the given provider and engine
func New(provider collector.Provider, engine *Engine) *Backtester {
	return &Backtester{
		provider: provider,
		engine:   engine,
	}
}

// RunRange fetches symbol's bars over [start, end] and replays them
func (b *Backtester) RunRange(ctx context.Context, symbol string, start, end time.Time, interval string, inst risk.Instrument) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := b.provider.FetchHistory(symbol, start, end, interval)
	if err != nil {
		return nil, err
	}

	res, err := b.engine.Run(ctx, symbol, bars, inst)
	if res != nil {
		if !start.IsZero() {
			res.StartDate = start
		}
		if !end.IsZero() {
			res.EndDate = end
		}
	}
	return res, err
}
