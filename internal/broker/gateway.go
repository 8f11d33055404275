package broker

import (
	"context"

	"github.com/newthinker/reversion/internal/core"
)

// Gateway defines the broker capability the decision cycle relies on.
type Gateway interface {
	// Name returns the broker identifier (e.g., "mock", "mt5").
	Name() string

	// Connection management
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool

	// Market data
	FetchBars(ctx context.Context, symbol, timeframe string, count int) ([]core.OHLCV, error)
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)

	// Account operations
	GetBalance(ctx context.Context) (*Balance, error)

	// Order operations
	PlaceOrder(ctx context.Context, request OrderRequest) (*Order, error)
}
