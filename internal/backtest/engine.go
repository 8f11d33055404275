package backtest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
	"github.com/newthinker/reversion/internal/indicator"
	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/logger"
	"github.com/newthinker/reversion/internal/metrics"
	"github.com/newthinker/reversion/internal/quality"
	"github.com/newthinker/reversion/internal/risk"
	"github.com/newthinker/reversion/internal/strategy"
)

// DefaultInitialBalance is the account balance every run starts from
const DefaultInitialBalance = 10000.0

// Engine replays the detection, filter, sizing and simulation pipeline
// over a bar series. An Engine holds no per-run state and may be reused.
type Engine struct {
	log            *zap.Logger
	indicators     *indicator.Engine
	strategy       strategy.Strategy
	sizer          *risk.Sizer
	classifier     quality.Classifier
	recorder       journal.Recorder
	metrics        *metrics.Registry
	initialBalance float64
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithClassifier enables the quality filter. A nil classifier approves everything.
func WithClassifier(c quality.Classifier) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithRecorder journals simulated trades and decisions
func WithRecorder(r journal.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMetrics reports signals, verdicts, trades and run durations
func WithMetrics(m *metrics.Registry) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIndicators replaces the default indicator set
func WithIndicators(ind *indicator.Engine) Option {
	return func(e *Engine) { e.indicators = ind }
}

// WithStrategy replaces the default band re-entry detector
func WithStrategy(s strategy.Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithInitialBalance overrides DefaultInitialBalance
func WithInitialBalance(balance float64) Option {
	return func(e *Engine) {
		if balance > 0 {
			e.initialBalance = balance
		}
	}
}

// NewEngine creates a backtest engine sizing trades with sizer
func NewEngine(sizer *risk.Sizer, opts ...Option) *Engine {
	e := &Engine{
		sizer:          sizer,
		initialBalance: DefaultInitialBalance,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sizer == nil {
		e.sizer = risk.NewSizer(risk.DefaultConfig())
	}
	if e.indicators == nil {
		e.indicators = indicator.NewDefaultEngine(indicator.DefaultParams())
	}
	if e.strategy == nil {
		e.strategy = strategy.NewDetector(strategy.DefaultLateralThreshold)
	}
	if e.recorder == nil {
		e.recorder = journal.NewNop()
	}
	e.log = logger.Component(logger.OrNop(e.log), "backtest")
	return e
}

// Run replays bars for symbol. Series too short to produce a signal yield an
// empty result. On cancellation the trades simulated so far are returned
// together with ctx.Err().
func (e *Engine) Run(ctx context.Context, symbol string, bars []core.OHLCV, inst risk.Instrument) (*Result, error) {
	started := time.Now()
	res := newResult(uuid.NewString(), e.strategy.Name(), symbol, bars, e.initialBalance)
	log := e.log.With(zap.String("symbol", symbol), zap.String("run_id", res.RunID))

	// Bar i needs MinHistory bars before its feature bar and one bar after it.
	last := len(bars) - 2
	if last < features.MinHistory {
		res.finish()
		log.Info("series too short for backtest", zap.Int("bars", len(bars)))
		e.metrics.RecordBacktest("empty", time.Since(started).Seconds())
		return res, nil
	}

	rows := e.indicators.Compute(bars)

	for i := features.MinHistory; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			res.finish()
			log.Warn("backtest cancelled", zap.Int("at", i), zap.Int("trades", res.TotalTrades))
			e.metrics.RecordBacktest("cancelled", time.Since(started).Seconds())
			return res, err
		}

		if trade, ok := e.step(ctx, log, res, symbol, rows, bars, i, inst); ok {
			res.add(trade)
			e.record(ctx, log, trade)
		}
	}

	res.finish()
	log.Info("backtest complete",
		zap.Int("trades", res.TotalTrades),
		zap.Float64("win_rate", res.WinRate),
		zap.Float64("total_profit", res.TotalProfit),
		zap.Duration("elapsed", time.Since(started)),
	)
	e.metrics.RecordBacktest("ok", time.Since(started).Seconds())
	return res, nil
}

// step evaluates bar i and returns the trade it opens, if any
func (e *Engine) step(ctx context.Context, log *zap.Logger, res *Result, symbol string,
	rows []indicator.Row, bars []core.OHLCV, i int, inst risk.Instrument) (Trade, bool) {
	at := bars[i].Time
	lateral := e.strategy.IsLateral(rows, i)
	sig := strategy.Analyze(e.strategy, symbol, rows, i, at)
	if !lateral {
		e.decide(ctx, log, symbol, at, journal.DecisionIgnored, sig.Reason, "")
		return Trade{}, false
	}
	side, ok := sig.Action.Side()
	if !ok {
		e.decide(ctx, log, symbol, at, journal.DecisionIgnored, sig.Reason, "")
		return Trade{}, false
	}
	res.Signals++
	e.metrics.RecordSignal(symbol, string(sig.Action))

	var fv *features.Vector
	if v, ok := features.Extract(rows, i-1); ok {
		fv = &v
		verdict := quality.Approve(e.classifier, v)
		e.metrics.RecordFilterVerdict(string(verdict))
		if verdict == quality.VerdictBad {
			res.Filtered++
			e.decide(ctx, log, symbol, at, journal.DecisionIgnored, "rejected by quality filter", v.String())
			return Trade{}, false
		}
	}

	// Size from realized balance only. Trades still open at this bar have not
	// paid out yet.
	balance := res.settle(at)
	plan, err := e.sizer.Plan(side, rows, i-1, i, balance, inst)
	if err != nil {
		res.Skipped++
		log.Debug("risk plan rejected", zap.Int("at", i), zap.Error(err))
		e.decide(ctx, log, symbol, at, journal.DecisionIgnored, "risk plan rejected", err.Error())
		return Trade{}, false
	}

	exit, err := Simulate(side, plan.Entry, plan.StopLoss, plan.TakeProfit, bars[i+1:], inst.ContractSize*plan.Size)
	if err != nil {
		res.Skipped++
		log.Warn("simulation failed", zap.Int("at", i), zap.Error(err))
		return Trade{}, false
	}

	e.decide(ctx, log, symbol, at, string(side), sig.Reason, plan.Levels())
	return Trade{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		Side:       side,
		EntryTime:  at,
		EntryPrice: plan.Entry,
		StopLoss:   plan.StopLoss,
		TakeProfit: plan.TakeProfit,
		Size:       plan.Size,
		ExitTime:   exit.Time,
		ExitPrice:  exit.Price,
		ExitReason: exit.Reason,
		BarsHeld:   exit.BarsHeld,
		Profit:     exit.Profit,
		Outcome:    core.OutcomeOf(exit.Profit),
		Features:   fv,
	}, true
}

func (e *Engine) record(ctx context.Context, log *zap.Logger, t Trade) {
	e.metrics.RecordTrade(t.Symbol, string(t.Side), string(t.Outcome), t.Profit)
	if err := e.recorder.RecordTrade(ctx, t.Record()); err != nil {
		log.Warn("failed to journal trade", zap.String("trade_id", t.ID), zap.Error(err))
	}
}

func (e *Engine) decide(ctx context.Context, log *zap.Logger, symbol string, at time.Time, decision, reason, detail string) {
	e.metrics.RecordDecision(symbol, decision)
	err := e.recorder.RecordDecision(ctx, journal.Decision{
		Symbol:   symbol,
		Time:     at,
		Decision: decision,
		Reason:   reason,
		Detail:   detail,
	})
	if err != nil {
		log.Warn("failed to journal decision", zap.Error(err))
	}
}
