// Package broker provides types and interfaces for broker integrations.
package broker

import (
	"errors"
	"time"

	"github.com/newthinker/reversion/internal/core"
	"github.com/newthinker/reversion/internal/risk"
)

// Broker-specific errors.
var (
	// ErrAlreadyConnected indicates the broker is already connected.
	ErrAlreadyConnected = errors.New("broker: already connected")
	// ErrInvalidSymbol indicates an invalid or empty symbol.
	ErrInvalidSymbol = errors.New("broker: invalid symbol")
	// ErrUnknownSymbol indicates the broker does not list the symbol.
	ErrUnknownSymbol = errors.New("broker: unknown symbol")
	// ErrInvalidVolume indicates a non-positive lot volume.
	ErrInvalidVolume = errors.New("broker: invalid volume")
	// ErrInvalidSide indicates a side other than BUY or SELL.
	ErrInvalidSide = errors.New("broker: invalid side")
	// ErrInvalidOrderType indicates an unsupported order type.
	ErrInvalidOrderType = errors.New("broker: invalid order type")
	// ErrInvalidStops indicates stop-loss or take-profit on the wrong side of the market.
	ErrInvalidStops = errors.New("broker: invalid stops")
)

// OrderSide represents the direction of an order.
type OrderSide string

const (
	// OrderSideBuy represents a buy order.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell represents a sell order.
	OrderSideSell OrderSide = "SELL"
)

// SideOf converts a position side into an order side.
func SideOf(s core.Side) (OrderSide, bool) {
	switch s {
	case core.SideBuy:
		return OrderSideBuy, true
	case core.SideSell:
		return OrderSideSell, true
	default:
		return "", false
	}
}

// OrderType represents the type of order execution.
type OrderType string

const (
	// OrderTypeMarket executes at current market price.
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus represents the lifecycle status of an order.
type OrderStatus string

const (
	// OrderStatusFilled indicates order has been completely filled.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusRejected indicates order was rejected by broker.
	OrderStatusRejected OrderStatus = "REJECTED"
)

// OrderRequest represents a request to place a new order.
type OrderRequest struct {
	// Symbol is the instrument (e.g., "EURUSD").
	Symbol string `json:"symbol"`
	// Side indicates buy or sell.
	Side OrderSide `json:"side"`
	// Type specifies the order execution type.
	Type OrderType `json:"type"`
	// Volume is the size in lots.
	Volume float64 `json:"volume"`
	// StopLoss is the protective exit price.
	StopLoss float64 `json:"stop_loss"`
	// TakeProfit is the target exit price.
	TakeProfit float64 `json:"take_profit"`
	// Comment is attached to the order on the broker side.
	Comment string `json:"comment,omitempty"`
	// ClientOrderID is an optional client-specified identifier.
	ClientOrderID string `json:"client_order_id,omitempty"`
}

// Validate checks if the order request has valid required fields.
func (r OrderRequest) Validate() error {
	if r.Symbol == "" {
		return ErrInvalidSymbol
	}
	if r.Side != OrderSideBuy && r.Side != OrderSideSell {
		return ErrInvalidSide
	}
	if r.Type != OrderTypeMarket {
		return ErrInvalidOrderType
	}
	if r.Volume <= 0 {
		return ErrInvalidVolume
	}
	if r.StopLoss <= 0 || r.TakeProfit <= 0 {
		return ErrInvalidStops
	}
	if r.Side == OrderSideBuy && r.StopLoss >= r.TakeProfit {
		return ErrInvalidStops
	}
	if r.Side == OrderSideSell && r.StopLoss <= r.TakeProfit {
		return ErrInvalidStops
	}
	return nil
}

// Order represents an order in the broker system.
type Order struct {
	// OrderID is the broker-assigned unique identifier.
	OrderID string `json:"order_id"`
	// ClientOrderID is the client-specified identifier if provided.
	ClientOrderID string `json:"client_order_id,omitempty"`
	// Symbol is the instrument.
	Symbol string `json:"symbol"`
	// Side indicates buy or sell.
	Side OrderSide `json:"side"`
	// Type specifies the order execution type.
	Type OrderType `json:"type"`
	// Volume is the requested size in lots.
	Volume float64 `json:"volume"`
	// StopLoss and TakeProfit as accepted by the broker.
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	// Status is the current order status.
	Status OrderStatus `json:"status"`
	// FillPrice is the execution price.
	FillPrice float64 `json:"fill_price"`
	// CreatedAt is when the order was created.
	CreatedAt time.Time `json:"created_at"`
	// RejectionReason contains the reason if order was rejected.
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// IsFilled returns true if the order is completely filled.
func (o Order) IsFilled() bool {
	return o.Status == OrderStatusFilled
}

// Balance represents account balance information.
type Balance struct {
	// Currency is the account currency code (e.g., "USD").
	Currency string `json:"currency"`
	// Balance is the realized account balance.
	Balance float64 `json:"balance"`
	// Equity includes floating profit and loss.
	Equity float64 `json:"equity"`
	// DailyPL is today's realized profit/loss, negative when losing.
	DailyPL float64 `json:"daily_pl"`
	// UpdatedAt is when the balance was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// SymbolInfo describes the trading constraints of one instrument.
type SymbolInfo struct {
	Symbol       string  `json:"symbol"`
	Digits       int     `json:"digits"`
	Point        float64 `json:"point"`
	ContractSize float64 `json:"contract_size"`
	VolumeMin    float64 `json:"volume_min"`
	VolumeMax    float64 `json:"volume_max"`
	VolumeStep   float64 `json:"volume_step"`
	TickValue    float64 `json:"tick_value"`
	TickSize     float64 `json:"tick_size"`
}

// Instrument converts broker constraints for the risk sizer. A zero
// stopMargin leaves the sizer's configured margin in effect.
func (s SymbolInfo) Instrument(stopMargin float64) risk.Instrument {
	return risk.Instrument{
		Symbol:       s.Symbol,
		StopMargin:   stopMargin,
		ContractSize: s.ContractSize,
		MinLot:       s.VolumeMin,
		MaxLot:       s.VolumeMax,
		LotStep:      s.VolumeStep,
		TickValue:    s.TickValue,
		TickSize:     s.TickSize,
	}
}

// SymbolInfoFor describes a risk instrument in broker terms.
func SymbolInfoFor(inst risk.Instrument, digits int) SymbolInfo {
	point := inst.TickSize
	return SymbolInfo{
		Symbol:       inst.Symbol,
		Digits:       digits,
		Point:        point,
		ContractSize: inst.ContractSize,
		VolumeMin:    inst.MinLot,
		VolumeMax:    inst.MaxLot,
		VolumeStep:   inst.LotStep,
		TickValue:    inst.TickValue,
		TickSize:     inst.TickSize,
	}
}
