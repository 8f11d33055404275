// Package mock provides an in-memory broker gateway for tests and dry runs.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/reversion/internal/broker"
	"github.com/newthinker/reversion/internal/collector"
	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/risk"
)

// Gateway implements broker.Gateway in memory. Market orders fill
// immediately at the last known close.
type Gateway struct {
	mu        sync.RWMutex
	connected bool

	bars     map[string][]core.OHLCV
	symbols  map[string]broker.SymbolInfo
	provider collector.Provider
	lookback time.Duration

	balance broker.Balance
	orders  []broker.Order
	failure error

	now func() time.Time
}

// Option configures the mock gateway.
type Option func(*Gateway)

// WithBars seeds bars for a symbol.
func WithBars(symbol string, bars []core.OHLCV) Option {
	return func(g *Gateway) {
		g.bars[symbol] = append([]core.OHLCV(nil), bars...)
	}
}

// WithProvider loads bars on demand from a price source covering lookback.
func WithProvider(p collector.Provider, lookback time.Duration) Option {
	return func(g *Gateway) {
		g.provider = p
		g.lookback = lookback
	}
}

// WithSymbolInfo registers lot and tick constraints for a symbol.
func WithSymbolInfo(info broker.SymbolInfo) Option {
	return func(g *Gateway) {
		g.symbols[info.Symbol] = info
	}
}

// WithBalance sets the account balance.
func WithBalance(b broker.Balance) Option {
	return func(g *Gateway) {
		g.balance = b
	}
}

// WithFailure makes every PlaceOrder call fail with err.
func WithFailure(err error) Option {
	return func(g *Gateway) {
		g.failure = err
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// New creates a mock gateway with a 10000 USD balance.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		bars:    make(map[string][]core.OHLCV),
		symbols: make(map[string]broker.SymbolInfo),
		balance: broker.Balance{
			Currency: "USD",
			Balance:  10000,
			Equity:   10000,
		},
		lookback: 30 * 24 * time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the broker identifier.
func (g *Gateway) Name() string {
	return "mock"
}

// Connect establishes connection to the mock broker.
func (g *Gateway) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.connected {
		return broker.ErrAlreadyConnected
	}
	g.connected = true
	return nil
}

// Disconnect closes the connection.
func (g *Gateway) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	return nil
}

// IsConnected returns the connection status.
func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// FetchBars returns the most recent count bars for symbol.
func (g *Gateway) FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]core.OHLCV, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, core.Errorf(core.ErrInvalidArgument, "count %d", count)
	}
	if !g.IsConnected() {
		return nil, core.ErrBrokerDisconnected
	}

	bars, err := g.series(symbol, timeframe)
	if err != nil {
		return nil, err
	}
	if len(bars) > count {
		bars = bars[len(bars)-count:]
	}
	return append([]core.OHLCV(nil), bars...), nil
}

func (g *Gateway) series(symbol, timeframe string) ([]core.OHLCV, error) {
	g.mu.RLock()
	bars, ok := g.bars[symbol]
	provider := g.provider
	g.mu.RUnlock()
	if ok {
		return bars, nil
	}
	if provider == nil {
		return nil, core.Errorf(core.ErrNoData, "no bars for %s", symbol)
	}

	end := g.now()
	bars, err := provider.FetchHistory(symbol, end.Add(-g.lookback), end, timeframe)
	if err != nil {
		return nil, err
	}
	return bars, nil
}

// SymbolInfo returns registered constraints, or standard currency-pair
// constraints for any symbol the gateway has prices for.
func (g *Gateway) SymbolInfo(ctx context.Context, symbol string) (*broker.SymbolInfo, error) {
	if !g.IsConnected() {
		return nil, core.ErrBrokerDisconnected
	}
	g.mu.RLock()
	info, ok := g.symbols[symbol]
	_, priced := g.bars[symbol]
	hasProvider := g.provider != nil
	g.mu.RUnlock()

	if ok {
		return &info, nil
	}
	if priced || hasProvider {
		info := broker.SymbolInfoFor(risk.DefaultInstrument(symbol), 5)
		return &info, nil
	}
	return nil, fmt.Errorf("%w: %s", broker.ErrUnknownSymbol, symbol)
}

// GetBalance returns the account balance.
func (g *Gateway) GetBalance(ctx context.Context) (*broker.Balance, error) {
	if !g.IsConnected() {
		return nil, core.ErrBrokerDisconnected
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	b := g.balance
	b.UpdatedAt = g.now()
	return &b, nil
}

// SetBalance replaces the account balance.
func (g *Gateway) SetBalance(b broker.Balance) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balance = b
}

// PlaceOrder fills a market order at the last close.
func (g *Gateway) PlaceOrder(ctx context.Context, request broker.OrderRequest) (*broker.Order, error) {
	if !g.IsConnected() {
		return nil, core.ErrBrokerDisconnected
	}
	if err := request.Validate(); err != nil {
		return nil, core.WrapError(core.ErrOrderFailed, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failure != nil {
		return nil, core.WrapError(core.ErrOrderFailed, g.failure)
	}

	var fill float64
	if bars := g.bars[request.Symbol]; len(bars) > 0 {
		fill = bars[len(bars)-1].Close
	}

	order := broker.Order{
		OrderID:       uuid.NewString(),
		ClientOrderID: request.ClientOrderID,
		Symbol:        request.Symbol,
		Side:          request.Side,
		Type:          request.Type,
		Volume:        request.Volume,
		StopLoss:      request.StopLoss,
		TakeProfit:    request.TakeProfit,
		Status:        broker.OrderStatusFilled,
		FillPrice:     fill,
		CreatedAt:     g.now(),
	}
	g.orders = append(g.orders, order)
	return &order, nil
}

// Orders returns the orders placed so far.
func (g *Gateway) Orders() []broker.Order {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]broker.Order(nil), g.orders...)
}

var _ broker.Gateway = (*Gateway)(nil)
