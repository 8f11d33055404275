package broker_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/reversion/internal/broker"
	"github.com/newthinker/reversion/internal/broker/mock"
)

func buyRequest(volume float64) broker.OrderRequest {
	return broker.OrderRequest{
		Symbol:     "EURUSD",
		Side:       broker.OrderSideBuy,
		Type:       broker.OrderTypeMarket,
		Volume:     volume,
		StopLoss:   1.0950,
		TakeProfit: 1.1100,
	}
}

func connected(t *testing.T, opts ...mock.Option) *mock.Gateway {
	t.Helper()
	opts = append([]mock.Option{mock.WithSymbolInfo(broker.SymbolInfo{
		Symbol:     "EURUSD",
		VolumeMin:  0.01,
		VolumeMax:  10,
		VolumeStep: 0.01,
		TickValue:  1,
		TickSize:   0.00001,
	})}, opts...)
	gw := mock.New(opts...)
	require.NoError(t, gw.Connect(context.Background()))
	t.Cleanup(func() { gw.Disconnect() })
	return gw
}

func TestRiskChecker_Check_OrderAllowed(t *testing.T) {
	gw := connected(t, mock.WithBalance(broker.Balance{Currency: "USD", Balance: 10000}))
	checker := broker.NewRiskChecker(0.05, gw)

	result := checker.Check(context.Background(), buyRequest(0.5))

	assert.True(t, result.Allowed, "Order should be allowed")
	assert.Empty(t, result.Reason)
}

func TestRiskChecker_Check_DailyLossLimitReached(t *testing.T) {
	gw := connected(t, mock.WithBalance(broker.Balance{Currency: "USD", Balance: 10000, DailyPL: -500}))
	checker := broker.NewRiskChecker(0.05, gw)

	result := checker.Check(context.Background(), buyRequest(0.5))

	assert.False(t, result.Allowed, "Order should be rejected at the loss limit")
	assert.Contains(t, result.Reason, "daily loss limit reached")
	assert.Contains(t, result.Reason, "5.00%")
}

func TestRiskChecker_Check_PositiveDailyPL_Allowed(t *testing.T) {
	gw := connected(t, mock.WithBalance(broker.Balance{Currency: "USD", Balance: 10000, DailyPL: 800}))
	checker := broker.NewRiskChecker(0.05, gw)

	assert.True(t, checker.Check(context.Background(), buyRequest(0.5)).Allowed)
}

func TestRiskChecker_Check_VolumeOutOfRange(t *testing.T) {
	gw := connected(t)
	checker := broker.NewRiskChecker(0.05, gw)

	result := checker.Check(context.Background(), buyRequest(25))
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "outside")
}

func TestRiskChecker_Check_InvalidRequest(t *testing.T) {
	gw := connected(t)
	checker := broker.NewRiskChecker(0.05, gw)

	req := buyRequest(0.5)
	req.StopLoss = 1.2
	result := checker.Check(context.Background(), req)
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "invalid stops")
}

func TestRiskChecker_Check_Disconnected(t *testing.T) {
	gw := mock.New()
	checker := broker.NewRiskChecker(0.05, gw)

	result := checker.Check(context.Background(), buyRequest(0.5))
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "failed to get balance")
}
