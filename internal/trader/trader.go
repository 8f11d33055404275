// Package trader runs the live decision cycle against a broker gateway.
package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/broker"
	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/features"
	"github.com/newthinker/reversion/internal/indicator"
	"github.com/newthinker/reversion/internal/journal"
	"github.com/newthinker/reversion/internal/logger"
	"github.com/newthinker/reversion/internal/metrics"
	"github.com/newthinker/reversion/internal/notifier"
	"github.com/newthinker/reversion/internal/quality"
	"github.com/newthinker/reversion/internal/risk"
	"github.com/newthinker/reversion/internal/strategy"
)

// Config controls what the cycle watches and whether it submits orders
type Config struct {
	Symbols   []string      `mapstructure:"symbols" yaml:"symbols"`
	Timeframe string        `mapstructure:"timeframe" yaml:"timeframe"`
	Bars      int           `mapstructure:"bars" yaml:"bars"`         // bars fetched per symbol
	MinBars   int           `mapstructure:"min_bars" yaml:"min_bars"` // fewer bars skip the symbol
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
	Execute   bool          `mapstructure:"execute" yaml:"execute"` // false is decision-only
}

// DefaultConfig returns the cycle defaults
func DefaultConfig() Config {
	return Config{
		Symbols:   []string{"EURUSD"},
		Timeframe: "H1",
		Bars:      100,
		MinBars:   25,
		Interval:  time.Hour,
	}
}

// Validate checks the cycle can run
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return core.Errorf(core.ErrConfigInvalid, "trader.symbols is empty")
	}
	if c.Bars < c.MinBars || c.MinBars < 3 {
		return core.Errorf(core.ErrConfigInvalid, "trader.bars (%d) must be >= trader.min_bars (%d) >= 3", c.Bars, c.MinBars)
	}
	if c.Interval <= 0 {
		return core.Errorf(core.ErrConfigInvalid, "trader.interval must be positive")
	}
	return nil
}

// Trader is the live orchestrator
type Trader struct {
	cfg         Config
	log         *zap.Logger
	gateway     broker.Gateway
	indicators  *indicator.Engine
	strategy    strategy.Strategy
	sizer       *risk.Sizer
	checker     *broker.RiskChecker
	recorder    journal.Recorder
	metrics     *metrics.Registry
	notifiers   *notifier.Registry
	instruments map[string]risk.Instrument

	mu         sync.RWMutex
	classifier quality.Classifier
	watchlist  []string
	running    bool
	cancel     context.CancelFunc
	cycles     int
	lastCycle  time.Time
}

// Option configures a Trader
type Option func(*Trader)

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(t *Trader) { t.log = log }
}

// WithIndicators replaces the default indicator set
func WithIndicators(ind *indicator.Engine) Option {
	return func(t *Trader) { t.indicators = ind }
}

// WithStrategy replaces the default band re-entry detector
func WithStrategy(s strategy.Strategy) Option {
	return func(t *Trader) { t.strategy = s }
}

// WithClassifier sets the initial quality classifier
func WithClassifier(c quality.Classifier) Option {
	return func(t *Trader) { t.classifier = c }
}

// WithRecorder journals decisions
func WithRecorder(r journal.Recorder) Option {
	return func(t *Trader) { t.recorder = r }
}

// WithMetrics reports cycle activity
func WithMetrics(m *metrics.Registry) Option {
	return func(t *Trader) { t.metrics = m }
}

// WithNotifiers delivers each cycle's buy and sell decisions
func WithNotifiers(n *notifier.Registry) Option {
	return func(t *Trader) { t.notifiers = n }
}

// WithInstruments supplies per-symbol stop margins that override the
// sizer's default
func WithInstruments(instruments []risk.Instrument) Option {
	return func(t *Trader) {
		for _, inst := range instruments {
			t.instruments[inst.Symbol] = inst
		}
	}
}

// New creates a trader over gateway
func New(cfg Config, gateway broker.Gateway, sizer *risk.Sizer, opts ...Option) *Trader {
	def := DefaultConfig()
	if cfg.Timeframe == "" {
		cfg.Timeframe = def.Timeframe
	}
	if cfg.Bars <= 0 {
		cfg.Bars = def.Bars
	}
	if cfg.MinBars <= 0 {
		cfg.MinBars = def.MinBars
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if sizer == nil {
		sizer = risk.NewSizer(risk.DefaultConfig())
	}

	t := &Trader{
		cfg:         cfg,
		gateway:     gateway,
		sizer:       sizer,
		instruments: make(map[string]risk.Instrument),
		watchlist:   append([]string(nil), cfg.Symbols...),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.indicators == nil {
		t.indicators = indicator.NewDefaultEngine(indicator.DefaultParams())
	}
	if t.strategy == nil {
		t.strategy = strategy.NewDetector(strategy.DefaultLateralThreshold)
	}
	if t.recorder == nil {
		t.recorder = journal.NewNop()
	}
	t.log = logger.Component(logger.OrNop(t.log), "trader")
	t.checker = broker.NewRiskChecker(sizer.Config().MaxDailyLoss, gateway)
	return t
}

// SetClassifier swaps the quality classifier, e.g. after retraining
func (t *Trader) SetClassifier(c quality.Classifier) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.classifier = c
}

func (t *Trader) currentClassifier() quality.Classifier {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.classifier
}

// SetWatchlist sets the symbols to evaluate
func (t *Trader) SetWatchlist(symbols []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watchlist = append([]string(nil), symbols...)
}

// Watchlist returns the current symbols
func (t *Trader) Watchlist() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.watchlist...)
}

// Start runs a cycle immediately and then every Interval until ctx ends
func (t *Trader) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("trader already running")
	}
	t.running = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	t.log.Info("trader starting",
		zap.Int("watchlist_count", len(t.Watchlist())),
		zap.Duration("interval", t.cfg.Interval),
		zap.Bool("execute", t.cfg.Execute),
	)

	t.Cycle(ctx)

	ticker := time.NewTicker(t.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.log.Info("trader shutting down")
			t.mu.Lock()
			t.running = false
			t.mu.Unlock()
			return ctx.Err()
		case <-ticker.C:
			t.Cycle(ctx)
		}
	}
}

// Stop stops the loop started by Start
func (t *Trader) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// Cycle evaluates every watched symbol once and returns the decisions made
func (t *Trader) Cycle(ctx context.Context) []journal.Decision {
	started := time.Now()
	symbols := t.Watchlist()
	t.metrics.SetWatchedSymbols(len(symbols))

	if len(symbols) == 0 {
		t.log.Debug("no symbols in watchlist")
		return nil
	}

	var decisions []journal.Decision
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			break
		}
		if d, ok := t.evaluate(ctx, symbol); ok {
			decisions = append(decisions, d)
		}
	}

	t.mu.Lock()
	t.cycles++
	t.lastCycle = started
	t.mu.Unlock()
	t.metrics.RecordScanCycle(time.Since(started).Seconds())
	t.notify(ctx, decisions)
	t.log.Debug("cycle complete", zap.Int("symbols", len(symbols)), zap.Int("decisions", len(decisions)))
	return decisions
}

// evaluate runs the pipeline on symbol's latest bar
// lateralReason names the ADX cut-off when the strategy exposes one
func lateralReason(s strategy.Strategy, fallback string) string {
	if th, ok := s.(interface{ LateralThreshold() float64 }); ok {
		return fmt.Sprintf("market not lateral (ADX >= %g)", th.LateralThreshold())
	}
	return fallback
}

func (t *Trader) evaluate(ctx context.Context, symbol string) (journal.Decision, bool) {
	log := t.log.With(zap.String("symbol", symbol))

	bars, err := t.gateway.FetchBars(ctx, symbol, t.cfg.Timeframe, t.cfg.Bars)
	if err != nil {
		log.Error("failed to fetch bars", zap.Error(err))
		return journal.Decision{}, false
	}
	if len(bars) < t.cfg.MinBars {
		log.Warn("not enough bars", zap.Int("bars", len(bars)), zap.Int("min_bars", t.cfg.MinBars))
		return journal.Decision{}, false
	}

	rows := t.indicators.Compute(bars)
	at := len(rows) - 1
	now := bars[at].Time

	sig := strategy.Analyze(t.strategy, symbol, rows, at, now)
	if !t.strategy.IsLateral(rows, at) {
		return t.decide(ctx, log, journal.Decision{
			Symbol:   symbol,
			Time:     now,
			Decision: journal.DecisionIgnored,
			Reason:   lateralReason(t.strategy, sig.Reason),
			Detail:   fmt.Sprintf("ADX: %.2f", rows[at].ADX),
		}), true
	}

	side, ok := sig.Action.Side()
	if !ok {
		log.Debug("no signal", zap.String("reason", sig.Reason))
		return t.decide(ctx, log, journal.Decision{
			Symbol:   symbol,
			Time:     now,
			Decision: journal.DecisionIgnored,
			Reason:   sig.Reason,
		}), true
	}
	t.metrics.RecordSignal(symbol, string(sig.Action))

	if fv, ok := features.Extract(rows, at-1); ok {
		verdict := quality.Approve(t.currentClassifier(), fv)
		t.metrics.RecordFilterVerdict(string(verdict))
		if verdict == quality.VerdictBad {
			return t.decide(ctx, log, journal.Decision{
				Symbol:   symbol,
				Time:     now,
				Decision: journal.DecisionIgnored,
				Reason:   "rejected by quality filter",
				Detail:   fv.String(),
			}), true
		}
	}

	plan, err := t.plan(ctx, symbol, side, rows, at)
	if err != nil {
		log.Warn("risk plan rejected", zap.Error(err))
		return t.decide(ctx, log, journal.Decision{
			Symbol:   symbol,
			Time:     now,
			Decision: journal.DecisionIgnored,
			Reason:   "risk plan rejected",
			Detail:   err.Error(),
		}), true
	}

	d := t.decide(ctx, log, journal.Decision{
		Symbol:   symbol,
		Time:     now,
		Decision: string(side),
		Reason:   sig.Reason,
		Detail:   plan.Levels(),
	})
	if t.cfg.Execute {
		t.execute(ctx, log, symbol, plan)
	}
	return d, true
}

func (t *Trader) plan(ctx context.Context, symbol string, side core.Side, rows []indicator.Row, at int) (risk.Plan, error) {
	info, err := t.gateway.SymbolInfo(ctx, symbol)
	if err != nil {
		return risk.Plan{}, err
	}
	balance, err := t.gateway.GetBalance(ctx)
	if err != nil {
		return risk.Plan{}, err
	}
	inst := info.Instrument(t.instruments[symbol].StopMargin)
	return t.sizer.Plan(side, rows, at-1, at, balance.Balance, inst)
}

func (t *Trader) execute(ctx context.Context, log *zap.Logger, symbol string, plan risk.Plan) {
	side, _ := broker.SideOf(plan.Side)
	req := broker.OrderRequest{
		Symbol:        symbol,
		Side:          side,
		Type:          broker.OrderTypeMarket,
		Volume:        plan.Size,
		StopLoss:      plan.StopLoss,
		TakeProfit:    plan.TakeProfit,
		Comment:       t.strategy.Name(),
		ClientOrderID: uuid.NewString(),
	}

	if check := t.checker.Check(ctx, req); !check.Allowed {
		log.Warn("order blocked by risk check", zap.String("reason", check.Reason))
		return
	}

	order, err := t.gateway.PlaceOrder(ctx, req)
	if err != nil {
		log.Error("order failed", zap.Error(err))
		return
	}
	log.Info("order placed",
		zap.String("order_id", order.OrderID),
		zap.String("side", string(order.Side)),
		zap.Float64("volume", order.Volume),
		zap.Float64("fill_price", order.FillPrice),
	)
}

func (t *Trader) decide(ctx context.Context, log *zap.Logger, d journal.Decision) journal.Decision {
	t.metrics.RecordDecision(d.Symbol, d.Decision)
	log.Info("decision",
		zap.String("decision", d.Decision),
		zap.String("reason", d.Reason),
		zap.String("detail", d.Detail),
	)
	if err := t.recorder.RecordDecision(ctx, d); err != nil {
		log.Warn("failed to journal decision", zap.Error(err))
	}
	return d
}

func (t *Trader) notify(ctx context.Context, decisions []journal.Decision) {
	actionable := notifier.Actionable(decisions)
	if len(actionable) == 0 || t.notifiers.Len() == 0 {
		return
	}
	for name, err := range t.notifiers.NotifyAllBatch(ctx, actionable) {
		t.log.Warn("notification failed", zap.String("notifier", name), zap.Error(err))
	}
}

// Stats returns trader statistics
func (t *Trader) Stats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return map[string]any{
		"running":    t.running,
		"watchlist":  len(t.watchlist),
		"cycles":     t.cycles,
		"last_cycle": t.lastCycle,
		"execute":    t.cfg.Execute,
		"gateway":    t.gateway.Name(),
		"classifier": t.classifier != nil,
		"notifiers":  t.notifiers.Len(),
	}
}
